// Package httpapi exposes the sphereauth Engine over a chi router.
//
// Every response uses the JSON envelope {code, message, data}; code is 0 on success
// and a five-digit error code otherwise, whose first three digits are the HTTP status.
// Student routes require a teacher access token.
package httpapi
