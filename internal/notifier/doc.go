// Package notifier delivers fired reminders to a transport.
//
// Delivery is asynchronous: Deliver enqueues and returns, a small worker pool
// drains the queue under a token-bucket rate limit and retries failed sends
// with jittered exponential backoff. The same reminder firing twice inside the
// dedup window is delivered once.
//
// # History
//
// The service keeps a short in-memory history of delivered reminders for
// the HTTP diagnostics endpoint.
package notifier
