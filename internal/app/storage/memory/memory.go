package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/R3E-Network/relay_layer/internal/app/domain/bank"
	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/internal/app/domain/registry"
	"github.com/R3E-Network/relay_layer/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development. A single mutex covers all state, so the composite relay
// operations are trivially atomic.
type Store struct {
	mu         sync.RWMutex
	nextID     int64
	messages   map[string]message.Message
	nonces     map[uint32]uint64
	deliveries map[deliveryKey]time.Time
	relayFee   uint64
	chains     map[uint32]registry.Chain
	adapters   map[uint32][]registry.Adapter
	accounts   map[string]bank.Account
}

type deliveryKey struct {
	chainID uint32
	nonce   uint64
}

var _ storage.RelayStore = (*Store)(nil)
var _ storage.RegistryStore = (*Store)(nil)
var _ storage.BankStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:     1,
		messages:   make(map[string]message.Message),
		nonces:     make(map[uint32]uint64),
		deliveries: make(map[deliveryKey]time.Time),
		chains:     make(map[uint32]registry.Chain),
		adapters:   make(map[uint32][]registry.Adapter),
		accounts:   make(map[string]bank.Account),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// RelayStore implementation ---------------------------------------------------

func (s *Store) CreateOutbound(_ context.Context, msg message.Message, fee uint64, payer, collector string) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fee > 0 {
		from := s.accounts[payer]
		if from.Balance < fee {
			return message.Message{}, fmt.Errorf("%w: balance %d below fee %d", message.ErrPaymentFailed, from.Balance, fee)
		}
		s.debitLocked(payer, fee)
		s.creditLocked(collector, fee)
	}

	msg.Nonce = s.nonces[msg.SourceChain]
	s.nonces[msg.SourceChain]++

	msg.Status = message.StatusPending
	now := time.Now().UTC()
	if existing, ok := s.messages[msg.ID]; ok {
		msg.CreatedTime = existing.CreatedTime
	} else {
		msg.CreatedTime = now
	}
	msg.UpdatedTime = now

	s.messages[msg.ID] = cloneMessage(msg)
	return cloneMessage(msg), nil
}

func (s *Store) CreateInbound(_ context.Context, msg message.Message) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := deliveryKey{chainID: msg.SourceChain, nonce: msg.Nonce}
	if _, exists := s.deliveries[key]; exists {
		return message.Message{}, fmt.Errorf("%w: chain %d nonce %d", message.ErrAlreadyProcessed, msg.SourceChain, msg.Nonce)
	}

	now := time.Now().UTC()
	s.deliveries[key] = now

	msg.Status = message.StatusExecuted
	if existing, ok := s.messages[msg.ID]; ok {
		msg.CreatedTime = existing.CreatedTime
	} else {
		msg.CreatedTime = now
	}
	msg.UpdatedTime = now

	s.messages[msg.ID] = cloneMessage(msg)
	return cloneMessage(msg), nil
}

func (s *Store) GetMessage(_ context.Context, id string) (message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return message.Message{}, fmt.Errorf("%w: message %s", message.ErrNotFound, id)
	}
	return cloneMessage(msg), nil
}

func (s *Store) ListMessages(_ context.Context, status message.Status) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]message.Message, 0)
	for _, msg := range s.messages {
		if status == "" || msg.Status == status {
			result = append(result, cloneMessage(msg))
		}
	}
	return result, nil
}

func (s *Store) UpdateMessageStatus(_ context.Context, id string, to message.Status) (message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return message.Message{}, fmt.Errorf("%w: message %s", message.ErrNotFound, id)
	}
	if !msg.Status.CanTransition(to) {
		return message.Message{}, fmt.Errorf("message %s is %s, cannot become %s", id, msg.Status, to)
	}

	msg.Status = to
	msg.UpdatedTime = time.Now().UTC()
	s.messages[id] = msg
	return cloneMessage(msg), nil
}

func (s *Store) ListExpiredPending(_ context.Context, height uint64) ([]message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]message.Message, 0)
	for _, msg := range s.messages {
		if msg.Status == message.StatusPending && msg.ExpiresAt != 0 && msg.ExpiresAt <= height {
			result = append(result, cloneMessage(msg))
		}
	}
	return result, nil
}

func (s *Store) IsDelivered(_ context.Context, chainID uint32, nonce uint64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.deliveries[deliveryKey{chainID: chainID, nonce: nonce}]
	return ok, nil
}

func (s *Store) NextNonceValue(_ context.Context, chainID uint32) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nonces[chainID], nil
}

func (s *Store) GetRelayFee(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.relayFee, nil
}

func (s *Store) SetRelayFee(_ context.Context, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relayFee = amount
	return nil
}

// RegistryStore implementation ------------------------------------------------

func (s *Store) CreateChain(_ context.Context, ch registry.Chain) (registry.Chain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.chains[ch.ID]; exists {
		return registry.Chain{}, fmt.Errorf("chain %d already registered", ch.ID)
	}

	now := time.Now().UTC()
	ch.CreatedAt = now
	ch.UpdatedAt = now
	s.chains[ch.ID] = ch
	return ch, nil
}

func (s *Store) UpdateChain(_ context.Context, ch registry.Chain) (registry.Chain, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.chains[ch.ID]
	if !ok {
		return registry.Chain{}, fmt.Errorf("%w: chain %d", message.ErrNotFound, ch.ID)
	}

	ch.CreatedAt = original.CreatedAt
	ch.UpdatedAt = time.Now().UTC()
	s.chains[ch.ID] = ch
	return ch, nil
}

func (s *Store) GetChain(_ context.Context, id uint32) (registry.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ch, ok := s.chains[id]
	if !ok {
		return registry.Chain{}, fmt.Errorf("%w: chain %d", message.ErrNotFound, id)
	}
	return ch, nil
}

func (s *Store) ListChains(_ context.Context) ([]registry.Chain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]registry.Chain, 0, len(s.chains))
	for _, ch := range s.chains {
		result = append(result, ch)
	}
	return result, nil
}

func (s *Store) CreateAdapter(_ context.Context, ad registry.Adapter) (registry.Adapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.adapters[ad.ChainID] {
		if existing.Address == ad.Address {
			return registry.Adapter{}, fmt.Errorf("adapter %s already registered for chain %d", ad.Address, ad.ChainID)
		}
	}

	if ad.ID == "" {
		ad.ID = s.nextIDLocked()
	}
	ad.CreatedAt = time.Now().UTC()
	s.adapters[ad.ChainID] = append(s.adapters[ad.ChainID], ad)
	return ad, nil
}

func (s *Store) ListAdapters(_ context.Context, chainID uint32) ([]registry.Adapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]registry.Adapter, 0, len(s.adapters[chainID]))
	result = append(result, s.adapters[chainID]...)
	return result, nil
}

func (s *Store) HasAdapter(_ context.Context, chainID uint32, address string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ad := range s.adapters[chainID] {
		if ad.Address == address {
			return true, nil
		}
	}
	return false, nil
}

// BankStore implementation ----------------------------------------------------

func (s *Store) GetBalance(_ context.Context, address string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[address].Balance, nil
}

func (s *Store) Credit(_ context.Context, address string, amount uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct := s.creditLocked(address, amount)
	return acct.Balance, nil
}

func (s *Store) GetAccount(_ context.Context, address string) (bank.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[address]
	if !ok {
		return bank.Account{}, fmt.Errorf("%w: account %s", message.ErrNotFound, address)
	}
	return acct, nil
}

func (s *Store) creditLocked(address string, amount uint64) bank.Account {
	now := time.Now().UTC()
	acct, ok := s.accounts[address]
	if !ok {
		acct = bank.Account{Address: address, CreatedAt: now}
	}
	acct.Balance += amount
	acct.UpdatedAt = now
	s.accounts[address] = acct
	return acct
}

func (s *Store) debitLocked(address string, amount uint64) {
	acct := s.accounts[address]
	acct.Address = address
	acct.Balance -= amount
	acct.UpdatedAt = time.Now().UTC()
	s.accounts[address] = acct
}

func cloneMessage(msg message.Message) message.Message {
	msg.Recipient = append([]byte(nil), msg.Recipient...)
	msg.Payload = append([]byte(nil), msg.Payload...)
	return msg
}
