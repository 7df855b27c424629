// Package registry implements the chain catalog: the authoritative record of
// which chains exist, whether they are active, and which adapters may deliver
// for them. The relay consumes it read-only through two predicates.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/internal/app/domain/registry"
	"github.com/R3E-Network/relay_layer/internal/app/storage"
	"github.com/R3E-Network/relay_layer/pkg/logger"
)

// Service manages chain and adapter registrations.
type Service struct {
	store storage.RegistryStore
	admin string
	log   *logger.Logger
}

// New constructs a registry service. Mutations are restricted to the admin
// identity fixed at construction.
func New(store storage.RegistryStore, admin string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Service{
		store: store,
		admin: admin,
		log:   log,
	}
}

func (s *Service) authorize(caller string) error {
	if strings.TrimSpace(caller) == "" || caller != s.admin {
		return fmt.Errorf("%w: registry mutation requires admin", message.ErrNotAuthorized)
	}
	return nil
}

// RegisterChain records a new chain. New chains start active.
func (s *Service) RegisterChain(ctx context.Context, caller string, id uint32, name string) (registry.Chain, error) {
	if err := s.authorize(caller); err != nil {
		return registry.Chain{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return registry.Chain{}, fmt.Errorf("chain name is required")
	}

	ch, err := s.store.CreateChain(ctx, registry.Chain{ID: id, Name: name, Active: true})
	if err != nil {
		return registry.Chain{}, err
	}
	s.log.WithField("chain_id", id).WithField("name", name).Info("chain registered")
	return ch, nil
}

// SetChainActive toggles a chain's active flag.
func (s *Service) SetChainActive(ctx context.Context, caller string, id uint32, active bool) (registry.Chain, error) {
	if err := s.authorize(caller); err != nil {
		return registry.Chain{}, err
	}

	ch, err := s.store.GetChain(ctx, id)
	if err != nil {
		return registry.Chain{}, err
	}
	if ch.Active == active {
		return ch, nil
	}

	ch.Active = active
	ch, err = s.store.UpdateChain(ctx, ch)
	if err != nil {
		return registry.Chain{}, err
	}
	s.log.WithField("chain_id", id).WithField("active", active).Info("chain state changed")
	return ch, nil
}

// RegisterAdapter authorizes an address to deliver inbound messages for a
// chain.
func (s *Service) RegisterAdapter(ctx context.Context, caller string, chainID uint32, address string) (registry.Adapter, error) {
	if err := s.authorize(caller); err != nil {
		return registry.Adapter{}, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return registry.Adapter{}, fmt.Errorf("adapter address is required")
	}

	if _, err := s.store.GetChain(ctx, chainID); err != nil {
		return registry.Adapter{}, err
	}

	ad, err := s.store.CreateAdapter(ctx, registry.Adapter{ChainID: chainID, Address: address})
	if err != nil {
		return registry.Adapter{}, err
	}
	s.log.WithField("chain_id", chainID).WithField("address", address).Info("adapter registered")
	return ad, nil
}

// GetChain retrieves a chain record.
func (s *Service) GetChain(ctx context.Context, id uint32) (registry.Chain, error) {
	return s.store.GetChain(ctx, id)
}

// ListChains returns all registered chains.
func (s *Service) ListChains(ctx context.Context) ([]registry.Chain, error) {
	return s.store.ListChains(ctx)
}

// ListAdapters returns the adapters registered for a chain.
func (s *Service) ListAdapters(ctx context.Context, chainID uint32) ([]registry.Adapter, error) {
	return s.store.ListAdapters(ctx, chainID)
}

// IsChainActive reports whether a chain is registered and active. Unknown
// chains are inactive, not errors.
func (s *Service) IsChainActive(ctx context.Context, chainID uint32) (bool, error) {
	ch, err := s.store.GetChain(ctx, chainID)
	if err != nil {
		if errors.Is(err, message.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ch.Active, nil
}

// IsRegisteredAdapter reports whether the caller may deliver for the chain.
func (s *Service) IsRegisteredAdapter(ctx context.Context, chainID uint32, caller string) (bool, error) {
	return s.store.HasAdapter(ctx, chainID, caller)
}
