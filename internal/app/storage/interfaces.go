package storage

import (
	"context"

	"github.com/R3E-Network/relay_layer/internal/app/domain/bank"
	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/internal/app/domain/registry"
)

// RelayStore persists messages, nonce counters, delivery markers, and the
// relay fee. The two composite operations are the atomicity boundary: every
// precondition the engine re-checks inside them either holds for the whole
// operation or nothing is written.
type RelayStore interface {
	// CreateOutbound atomically transfers fee from payer to collector,
	// assigns the next nonce for msg.SourceChain (incrementing the counter by
	// exactly one), and upserts msg as pending. Returns
	// message.ErrPaymentFailed when the payer cannot cover the fee; in that
	// case nothing is mutated.
	CreateOutbound(ctx context.Context, msg message.Message, fee uint64, payer, collector string) (message.Message, error)

	// CreateInbound atomically records the (msg.SourceChain, msg.Nonce)
	// delivery marker and upserts msg as executed. The marker insert is the
	// commit point: a second call for the same pair returns
	// message.ErrAlreadyProcessed with nothing mutated.
	CreateInbound(ctx context.Context, msg message.Message) (message.Message, error)

	GetMessage(ctx context.Context, id string) (message.Message, error)
	ListMessages(ctx context.Context, status message.Status) ([]message.Message, error)

	// UpdateMessageStatus applies a forward status transition. Only
	// pending messages may move, to executed or failed.
	UpdateMessageStatus(ctx context.Context, id string, to message.Status) (message.Message, error)

	// ListExpiredPending returns pending messages whose expiration height has
	// been reached at the given height.
	ListExpiredPending(ctx context.Context, height uint64) ([]message.Message, error)

	// IsDelivered reports whether a (chain, nonce) pair has been consumed.
	// Unseen pairs are false.
	IsDelivered(ctx context.Context, chainID uint32, nonce uint64) (bool, error)

	// NextNonceValue returns the nonce the next outbound message for the
	// chain would be assigned. Unseen chains start at 0.
	NextNonceValue(ctx context.Context, chainID uint32) (uint64, error)

	GetRelayFee(ctx context.Context) (uint64, error)
	SetRelayFee(ctx context.Context, amount uint64) error
}

// RegistryStore persists the chain catalog and adapter registrations.
type RegistryStore interface {
	CreateChain(ctx context.Context, ch registry.Chain) (registry.Chain, error)
	UpdateChain(ctx context.Context, ch registry.Chain) (registry.Chain, error)
	GetChain(ctx context.Context, id uint32) (registry.Chain, error)
	ListChains(ctx context.Context) ([]registry.Chain, error)

	CreateAdapter(ctx context.Context, ad registry.Adapter) (registry.Adapter, error)
	ListAdapters(ctx context.Context, chainID uint32) ([]registry.Adapter, error)
	HasAdapter(ctx context.Context, chainID uint32, address string) (bool, error)
}

// BankStore persists fee-funding accounts.
type BankStore interface {
	// GetBalance returns the balance for an address, zero for unseen ones.
	GetBalance(ctx context.Context, address string) (uint64, error)

	// Credit adds to an address balance, creating the account when missing,
	// and returns the new balance.
	Credit(ctx context.Context, address string, amount uint64) (uint64, error)

	GetAccount(ctx context.Context, address string) (bank.Account, error)
}
