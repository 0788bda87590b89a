// Package subscription implements the email-list signup service.
//
// Email is the dedup key: a second signup for the same address returns the
// existing subscriber instead of creating another one. New signups trigger
// an owner notification whose outcome never affects the signup result.
//
// The service layer depends on the Repository interface defined in
// repository.go. It never imports net/http or a database driver directly.
package subscription
