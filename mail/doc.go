// Package mail delivers password reset codes.
//
// Delivery is best effort: a Dispatcher queues messages for a single background
// worker and logs failures instead of returning them to the request path.
package mail
