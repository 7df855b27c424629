// Package bank defines the value accounts that fund relay fees.
package bank

import "time"

// Account holds a spendable balance for a caller identity. Balances exist in
// the relay's own ledger; the fee debited at send time is credited to the
// administrator account.
type Account struct {
	Address   string
	Balance   uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}
