package purchase

import "errors"

// Sentinel errors for the purchase service layer.
var (
	ErrPurchaseFailed = errors.New("purchase failed")
	ErrListFailed     = errors.New("listing purchases failed")
)
