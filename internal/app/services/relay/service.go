// Package relay implements the message relay engine: outbound sequencing and
// fee collection, inbound replay protection and expiry, and the read-only
// query surface.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/internal/app/events"
	"github.com/R3E-Network/relay_layer/internal/app/metrics"
	"github.com/R3E-Network/relay_layer/internal/app/storage"
	"github.com/R3E-Network/relay_layer/pkg/logger"
)

// ChainCatalog is the external collaborator answering the two questions the
// relay needs about the chain registry. The relay never mutates the catalog.
type ChainCatalog interface {
	IsChainActive(ctx context.Context, chainID uint32) (bool, error)
	IsRegisteredAdapter(ctx context.Context, chainID uint32, caller string) (bool, error)
}

// HeightSource reports the local chain height used for message creation and
// expiry decisions.
type HeightSource interface {
	Height(ctx context.Context) (uint64, error)
}

// Config fixes the engine's identity parameters at construction.
type Config struct {
	// LocalChain is the chain identifier outbound messages originate from.
	LocalChain uint32

	// Admin is the administrator identity: sole fee setter and fee collector.
	Admin string
}

// Service is the relay engine.
type Service struct {
	catalog ChainCatalog
	store   storage.RelayStore
	heights HeightSource
	bus     *events.Bus
	cfg     Config
	log     *logger.Logger
}

// New constructs a relay engine.
func New(catalog ChainCatalog, store storage.RelayStore, heights HeightSource, bus *events.Bus, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("relay")
	}
	return &Service{
		catalog: catalog,
		store:   store,
		heights: heights,
		bus:     bus,
		cfg:     cfg,
		log:     log,
	}
}

// Send records an outbound message. The destination chain must be active and
// the caller must cover the current relay fee; fee transfer, nonce
// assignment, and message persistence commit atomically in the store. On
// success a message-sent event hands the message off to the off-chain
// relayer.
func (s *Service) Send(ctx context.Context, caller string, destChain uint32, recipient, payload []byte, expiresAt uint64) (message.Message, error) {
	if strings.TrimSpace(caller) == "" {
		return message.Message{}, fmt.Errorf("caller is required")
	}
	if err := message.ValidatePayload(recipient, payload); err != nil {
		return message.Message{}, err
	}

	active, err := s.catalog.IsChainActive(ctx, destChain)
	if err != nil {
		return message.Message{}, fmt.Errorf("chain catalog lookup: %w", err)
	}
	if !active {
		return message.Message{}, fmt.Errorf("%w: destination chain %d", message.ErrInvalidChain, destChain)
	}

	height, err := s.heights.Height(ctx)
	if err != nil {
		return message.Message{}, fmt.Errorf("resolve height: %w", err)
	}

	fee, err := s.store.GetRelayFee(ctx)
	if err != nil {
		return message.Message{}, err
	}

	msg := message.Message{
		ID:          message.DeriveID(recipient, payload),
		SourceChain: s.cfg.LocalChain,
		DestChain:   destChain,
		Sender:      caller,
		Recipient:   recipient,
		Payload:     payload,
		CreatedAt:   height,
		ExpiresAt:   expiresAt,
	}

	msg, err = s.store.CreateOutbound(ctx, msg, fee, caller, s.cfg.Admin)
	if err != nil {
		return message.Message{}, err
	}

	s.bus.Publish(events.FromMessage(events.TypeMessageSent, msg))
	metrics.RecordMessageSent()
	s.log.WithField("message_id", msg.ID).
		WithField("dest_chain", destChain).
		WithField("nonce", msg.Nonce).
		WithField("fee", fee).
		Info("message sent")
	return msg, nil
}

// Receive records an inbound delivery. The caller must be a registered
// adapter for the source chain. Checks run cheapest first: delivery marker,
// chain activity, expiry. The delivery-marker insert inside the store is the
// irrevocable commit point; a consumed (chain, nonce) pair can never be
// delivered again.
func (s *Service) Receive(ctx context.Context, caller string, sourceChain uint32, nonce uint64, sender string, recipient, payload []byte, expiresAt uint64, id string) (message.Message, error) {
	if strings.TrimSpace(caller) == "" {
		return message.Message{}, fmt.Errorf("caller is required")
	}
	if err := message.ValidatePayload(recipient, payload); err != nil {
		return message.Message{}, err
	}

	registered, err := s.catalog.IsRegisteredAdapter(ctx, sourceChain, caller)
	if err != nil {
		return message.Message{}, fmt.Errorf("adapter lookup: %w", err)
	}
	if !registered {
		return message.Message{}, fmt.Errorf("%w: %s is not an adapter for chain %d", message.ErrNotAuthorized, caller, sourceChain)
	}

	delivered, err := s.store.IsDelivered(ctx, sourceChain, nonce)
	if err != nil {
		return message.Message{}, err
	}
	if delivered {
		metrics.RecordReplayRejected()
		return message.Message{}, fmt.Errorf("%w: chain %d nonce %d", message.ErrAlreadyProcessed, sourceChain, nonce)
	}

	active, err := s.catalog.IsChainActive(ctx, sourceChain)
	if err != nil {
		return message.Message{}, fmt.Errorf("chain catalog lookup: %w", err)
	}
	if !active {
		return message.Message{}, fmt.Errorf("%w: source chain %d", message.ErrInvalidChain, sourceChain)
	}

	height, err := s.heights.Height(ctx)
	if err != nil {
		return message.Message{}, fmt.Errorf("resolve height: %w", err)
	}
	if expiresAt != 0 && height >= expiresAt {
		return message.Message{}, fmt.Errorf("%w: expiration %d at height %d", message.ErrMessageExpired, expiresAt, height)
	}

	if id == "" {
		id = message.DeriveID(recipient, payload)
	}

	msg := message.Message{
		ID:          id,
		SourceChain: sourceChain,
		DestChain:   s.cfg.LocalChain,
		Nonce:       nonce,
		Sender:      sender,
		Recipient:   recipient,
		Payload:     payload,
		CreatedAt:   height,
		ExpiresAt:   expiresAt,
	}

	msg, err = s.store.CreateInbound(ctx, msg)
	if err != nil {
		if errors.Is(err, message.ErrAlreadyProcessed) {
			metrics.RecordReplayRejected()
		}
		return message.Message{}, err
	}

	s.bus.Publish(events.FromMessage(events.TypeMessageReceived, msg))
	metrics.RecordMessageReceived()
	s.log.WithField("message_id", msg.ID).
		WithField("source_chain", sourceChain).
		WithField("nonce", nonce).
		Info("message received")
	return msg, nil
}

// SetRelayFee changes the fee charged per outbound message. Admin only; the
// new fee applies to every subsequent send immediately.
func (s *Service) SetRelayFee(ctx context.Context, caller string, amount uint64) error {
	if caller != s.cfg.Admin {
		return fmt.Errorf("%w: fee mutation requires admin", message.ErrNotAuthorized)
	}
	if err := s.store.SetRelayFee(ctx, amount); err != nil {
		return err
	}
	metrics.SetRelayFee(amount)
	s.log.WithField("fee", amount).Info("relay fee updated")
	return nil
}

// RelayFee returns the current fee.
func (s *Service) RelayFee(ctx context.Context) (uint64, error) {
	return s.store.GetRelayFee(ctx)
}

// GetMessage retrieves a message by identifier.
func (s *Service) GetMessage(ctx context.Context, id string) (message.Message, error) {
	return s.store.GetMessage(ctx, id)
}

// ListMessages returns messages, optionally filtered by status.
func (s *Service) ListMessages(ctx context.Context, status message.Status) ([]message.Message, error) {
	return s.store.ListMessages(ctx, status)
}

// IsDelivered reports whether a (chain, nonce) pair was already consumed.
// Unseen pairs are false.
func (s *Service) IsDelivered(ctx context.Context, chainID uint32, nonce uint64) (bool, error) {
	return s.store.IsDelivered(ctx, chainID, nonce)
}

// NextNonce returns the nonce the next outbound message for the chain would
// receive.
func (s *Service) NextNonce(ctx context.Context, chainID uint32) (uint64, error) {
	return s.store.NextNonceValue(ctx, chainID)
}

// MarkFailed moves a pending message to failed. Admin only; used to close out
// messages that will never be delivered.
func (s *Service) MarkFailed(ctx context.Context, caller, id string) (message.Message, error) {
	if caller != s.cfg.Admin {
		return message.Message{}, fmt.Errorf("%w: status fix requires admin", message.ErrNotAuthorized)
	}

	msg, err := s.store.UpdateMessageStatus(ctx, id, message.StatusFailed)
	if err != nil {
		return message.Message{}, err
	}
	s.log.WithField("message_id", id).Warn("message marked failed")
	return msg, nil
}

// SweepExpired fails every pending message whose expiration height has been
// reached. Returns the number of messages transitioned.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	height, err := s.heights.Height(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve height: %w", err)
	}

	expired, err := s.store.ListExpiredPending(ctx, height)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, msg := range expired {
		if _, err := s.store.UpdateMessageStatus(ctx, msg.ID, message.StatusFailed); err != nil {
			s.log.WithError(err).WithField("message_id", msg.ID).Warn("expiry sweep skipped message")
			continue
		}
		swept++
	}
	if swept > 0 {
		metrics.RecordExpired(swept)
		s.log.WithField("count", swept).WithField("height", height).Info("expired messages failed")
	}
	return swept, nil
}
