// Package httputil provides the JSON response helpers shared by
// the API handlers, so every endpoint emits the same envelope for success,
// validation failures and sanitized internal errors.
package httputil
