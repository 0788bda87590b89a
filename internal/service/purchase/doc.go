// Package purchase records e-book sales as receipts.
//
// Every call writes a new record with a fresh transaction id; there is no
// idempotency key, so a retried request produces a second receipt. The owner
// is notified of each sale without the notification affecting the result.
package purchase
