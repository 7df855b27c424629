// Package bank manages the value accounts that pay relay fees.
package bank

import (
	"context"
	"fmt"
	"strings"

	"github.com/R3E-Network/relay_layer/internal/app/domain/bank"
	"github.com/R3E-Network/relay_layer/internal/app/storage"
	"github.com/R3E-Network/relay_layer/pkg/logger"
)

// Service exposes deposits and balance queries. The fee debit itself happens
// inside the relay store's outbound transaction, not here.
type Service struct {
	store storage.BankStore
	log   *logger.Logger
}

// New constructs a bank service.
func New(store storage.BankStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("bank")
	}
	return &Service{store: store, log: log}
}

// Deposit credits an address and returns the new balance.
func (s *Service) Deposit(ctx context.Context, address string, amount uint64) (uint64, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, fmt.Errorf("address is required")
	}
	if amount == 0 {
		return 0, fmt.Errorf("amount must be positive")
	}

	balance, err := s.store.Credit(ctx, address, amount)
	if err != nil {
		return 0, err
	}
	s.log.WithField("address", address).
		WithField("amount", amount).
		WithField("balance", balance).
		Info("deposit credited")
	return balance, nil
}

// Balance returns the spendable balance for an address, zero for unseen ones.
func (s *Service) Balance(ctx context.Context, address string) (uint64, error) {
	return s.store.GetBalance(ctx, address)
}

// Account returns the full account record.
func (s *Service) Account(ctx context.Context, address string) (bank.Account, error) {
	return s.store.GetAccount(ctx, address)
}
