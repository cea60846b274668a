// Package password implements secret hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.Verify] also accepts bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// older user tables. [Argon2.NeedsUpgrade] reports true for those and for Argon2id
// hashes produced with weaker parameters, so callers can re-hash after the next
// successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the plaintext length policy. It does
// not store or retrieve secrets.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other sphereauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
