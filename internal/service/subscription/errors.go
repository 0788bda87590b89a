package subscription

import "errors"

// Sentinel errors for the subscription service layer.
var (
	ErrNotFound        = errors.New("subscriber not found")
	ErrSubscribeFailed = errors.New("subscription failed")
	ErrListFailed      = errors.New("listing subscribers failed")
)
