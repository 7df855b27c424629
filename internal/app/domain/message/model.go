// Package message defines the cross-chain message model shared by the relay
// services and stores.
package message

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Status is the lifecycle state of a message.
type Status string

const (
	StatusPending  Status = "pending"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"
)

const (
	// RecipientLength is the fixed size of a recipient address. The bytes are
	// opaque to the relay and interpreted by the destination chain.
	RecipientLength = 32

	// MaxPayloadSize bounds the opaque payload carried by a message.
	MaxPayloadSize = 1024
)

// Message represents one cross-chain communication. Outbound messages are
// created pending and wait for an off-chain relayer; inbound messages record
// a delivery that already happened and are created executed.
type Message struct {
	ID          string
	SourceChain uint32
	DestChain   uint32
	Nonce       uint64
	Sender      string
	Recipient   []byte
	Payload     []byte
	CreatedAt   uint64 // chain height when the message was recorded
	ExpiresAt   uint64 // height after which delivery is refused; 0 = never
	Status      Status
	CreatedTime time.Time
	UpdatedTime time.Time
}

// DeriveID computes the content-addressed message identifier: the hex-encoded
// SHA-256 digest of recipient followed by payload. Nonce and chain are not
// part of the input, so two messages with identical recipient and payload
// share an identifier and upsert the same store row. That holds across
// directions too: an outbound send sharing content with an earlier executed
// inbound delivery overwrites its row, which then reads pending again. The
// delivery ledger keys on (chain, nonce) rather than the identifier, so
// replay protection is unaffected by either collision.
func DeriveID(recipient, payload []byte) string {
	h := sha256.New()
	h.Write(recipient)
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidatePayload checks recipient and payload bounds.
func ValidatePayload(recipient, payload []byte) error {
	if len(recipient) != RecipientLength {
		return fmt.Errorf("recipient must be %d bytes, got %d", RecipientLength, len(recipient))
	}
	if len(payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload exceeds %d bytes", MaxPayloadSize)
	}
	return nil
}

// CanTransition reports whether a status change is allowed. Transitions only
// move forward out of pending.
func (s Status) CanTransition(to Status) bool {
	return s == StatusPending && (to == StatusExecuted || to == StatusFailed)
}
