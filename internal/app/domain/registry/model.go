// Package registry defines the chain catalog records consumed by the relay.
package registry

import "time"

// Chain is one registered remote (or the local) chain. The relay only reads
// the Active flag; everything else is catalog bookkeeping.
type Chain struct {
	ID        uint32
	Name      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Adapter is a caller identity authorized to deliver inbound messages on
// behalf of a chain.
type Adapter struct {
	ID        string
	ChainID   uint32
	Address   string
	CreatedAt time.Time
}
