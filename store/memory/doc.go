// Package memory provides an in-process sphereauth.UserStore for tests, local
// development and the load generator. Every mutation holds one mutex so reset code
// consumption is atomic per user.
package memory
