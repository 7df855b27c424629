package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/R3E-Network/relay_layer/internal/app/domain/bank"
	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/internal/app/domain/registry"
	"github.com/R3E-Network/relay_layer/internal/app/storage"
	"github.com/google/uuid"
)

const relayFeeKey = "relay_fee"

// Store implements the storage interfaces backed by PostgreSQL. The composite
// relay operations each run in a single transaction so that fee transfer,
// nonce assignment, delivery marking, and message persistence commit as one
// unit or not at all.
type Store struct {
	db *sql.DB
}

var _ storage.RelayStore = (*Store)(nil)
var _ storage.RegistryStore = (*Store)(nil)
var _ storage.BankStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- RelayStore -------------------------------------------------------------

func (s *Store) CreateOutbound(ctx context.Context, msg message.Message, fee uint64, payer, collector string) (message.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return message.Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	if fee > 0 {
		var balance int64
		err := tx.QueryRowContext(ctx, `
			SELECT balance FROM relay_accounts WHERE address = $1 FOR UPDATE
		`, payer).Scan(&balance)
		if errors.Is(err, sql.ErrNoRows) {
			return message.Message{}, fmt.Errorf("%w: account %s unfunded", message.ErrPaymentFailed, payer)
		}
		if err != nil {
			return message.Message{}, err
		}
		if uint64(balance) < fee {
			return message.Message{}, fmt.Errorf("%w: balance %d below fee %d", message.ErrPaymentFailed, balance, fee)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE relay_accounts SET balance = balance - $2, updated_at = $3 WHERE address = $1
		`, payer, int64(fee), now); err != nil {
			return message.Message{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO relay_accounts (address, balance, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			ON CONFLICT (address)
			DO UPDATE SET balance = relay_accounts.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		`, collector, int64(fee), now); err != nil {
			return message.Message{}, err
		}
	}

	var next int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO relay_nonces (chain_id, next_nonce)
		VALUES ($1, 1)
		ON CONFLICT (chain_id)
		DO UPDATE SET next_nonce = relay_nonces.next_nonce + 1
		RETURNING next_nonce
	`, int64(msg.SourceChain)).Scan(&next); err != nil {
		return message.Message{}, err
	}
	msg.Nonce = uint64(next - 1)

	msg.Status = message.StatusPending
	msg.CreatedTime = now
	msg.UpdatedTime = now
	if err := upsertMessage(ctx, tx, msg); err != nil {
		return message.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

func (s *Store) CreateInbound(ctx context.Context, msg message.Message) (message.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return message.Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO relay_deliveries (chain_id, nonce, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (chain_id, nonce) DO NOTHING
	`, int64(msg.SourceChain), int64(msg.Nonce), now)
	if err != nil {
		return message.Message{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return message.Message{}, fmt.Errorf("%w: chain %d nonce %d", message.ErrAlreadyProcessed, msg.SourceChain, msg.Nonce)
	}

	msg.Status = message.StatusExecuted
	msg.CreatedTime = now
	msg.UpdatedTime = now
	if err := upsertMessage(ctx, tx, msg); err != nil {
		return message.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return message.Message{}, err
	}
	return msg, nil
}

func upsertMessage(ctx context.Context, tx *sql.Tx, msg message.Message) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO relay_messages (id, source_chain, dest_chain, nonce, sender, recipient, payload, created_height, expires_height, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id)
		DO UPDATE SET source_chain = EXCLUDED.source_chain,
			dest_chain = EXCLUDED.dest_chain,
			nonce = EXCLUDED.nonce,
			sender = EXCLUDED.sender,
			recipient = EXCLUDED.recipient,
			payload = EXCLUDED.payload,
			created_height = EXCLUDED.created_height,
			expires_height = EXCLUDED.expires_height,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`, msg.ID, int64(msg.SourceChain), int64(msg.DestChain), int64(msg.Nonce), msg.Sender, msg.Recipient, msg.Payload,
		int64(msg.CreatedAt), int64(msg.ExpiresAt), string(msg.Status), msg.CreatedTime, msg.UpdatedTime)
	return err
}

const messageColumns = `id, source_chain, dest_chain, nonce, sender, recipient, payload, created_height, expires_height, status, created_at, updated_at`

func scanMessage(row interface{ Scan(...interface{}) error }) (message.Message, error) {
	var (
		msg                     message.Message
		sourceChain, destChain  int64
		nonce, created, expires int64
		status                  string
	)
	if err := row.Scan(&msg.ID, &sourceChain, &destChain, &nonce, &msg.Sender, &msg.Recipient, &msg.Payload,
		&created, &expires, &status, &msg.CreatedTime, &msg.UpdatedTime); err != nil {
		return message.Message{}, err
	}
	msg.SourceChain = uint32(sourceChain)
	msg.DestChain = uint32(destChain)
	msg.Nonce = uint64(nonce)
	msg.CreatedAt = uint64(created)
	msg.ExpiresAt = uint64(expires)
	msg.Status = message.Status(status)
	return msg, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (message.Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+` FROM relay_messages WHERE id = $1
	`, id)

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return message.Message{}, fmt.Errorf("%w: message %s", message.ErrNotFound, id)
	}
	return msg, err
}

func (s *Store) ListMessages(ctx context.Context, status message.Status) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM relay_messages
		WHERE $1 = '' OR status = $1
		ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func (s *Store) UpdateMessageStatus(ctx context.Context, id string, to message.Status) (message.Message, error) {
	if !message.StatusPending.CanTransition(to) {
		return message.Message{}, fmt.Errorf("cannot transition to %s", to)
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE relay_messages SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
		RETURNING `+messageColumns+`
	`, id, string(to), time.Now().UTC(), string(message.StatusPending))

	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish a missing message from a non-pending one.
		if _, getErr := s.GetMessage(ctx, id); getErr != nil {
			return message.Message{}, getErr
		}
		return message.Message{}, fmt.Errorf("message %s is not pending, cannot become %s", id, to)
	}
	return msg, err
}

func (s *Store) ListExpiredPending(ctx context.Context, height uint64) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM relay_messages
		WHERE status = $1 AND expires_height > 0 AND expires_height <= $2
		ORDER BY created_at
	`, string(message.StatusPending), int64(height))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]message.Message, error) {
	var result []message.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (s *Store) IsDelivered(ctx context.Context, chainID uint32, nonce uint64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM relay_deliveries WHERE chain_id = $1 AND nonce = $2)
	`, int64(chainID), int64(nonce)).Scan(&exists)
	return exists, err
}

func (s *Store) NextNonceValue(ctx context.Context, chainID uint32) (uint64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `
		SELECT next_nonce FROM relay_nonces WHERE chain_id = $1
	`, int64(chainID)).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return uint64(next), err
}

func (s *Store) GetRelayFee(ctx context.Context) (uint64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM relay_config WHERE key = $1
	`, relayFeeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return uint64(value), err
}

func (s *Store) SetRelayFee(ctx context.Context, amount uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, relayFeeKey, int64(amount))
	return err
}

// --- RegistryStore ----------------------------------------------------------

func (s *Store) CreateChain(ctx context.Context, ch registry.Chain) (registry.Chain, error) {
	now := time.Now().UTC()
	ch.CreatedAt = now
	ch.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_chains (id, name, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, int64(ch.ID), ch.Name, ch.Active, ch.CreatedAt, ch.UpdatedAt)
	if err != nil {
		return registry.Chain{}, err
	}
	return ch, nil
}

func (s *Store) UpdateChain(ctx context.Context, ch registry.Chain) (registry.Chain, error) {
	existing, err := s.GetChain(ctx, ch.ID)
	if err != nil {
		return registry.Chain{}, err
	}

	ch.CreatedAt = existing.CreatedAt
	ch.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE relay_chains SET name = $2, active = $3, updated_at = $4 WHERE id = $1
	`, int64(ch.ID), ch.Name, ch.Active, ch.UpdatedAt)
	if err != nil {
		return registry.Chain{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return registry.Chain{}, fmt.Errorf("%w: chain %d", message.ErrNotFound, ch.ID)
	}
	return ch, nil
}

func (s *Store) GetChain(ctx context.Context, id uint32) (registry.Chain, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, active, created_at, updated_at FROM relay_chains WHERE id = $1
	`, int64(id))

	var (
		ch      registry.Chain
		chainID int64
	)
	if err := row.Scan(&chainID, &ch.Name, &ch.Active, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.Chain{}, fmt.Errorf("%w: chain %d", message.ErrNotFound, id)
		}
		return registry.Chain{}, err
	}
	ch.ID = uint32(chainID)
	return ch, nil
}

func (s *Store) ListChains(ctx context.Context) ([]registry.Chain, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active, created_at, updated_at FROM relay_chains ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []registry.Chain
	for rows.Next() {
		var (
			ch      registry.Chain
			chainID int64
		)
		if err := rows.Scan(&chainID, &ch.Name, &ch.Active, &ch.CreatedAt, &ch.UpdatedAt); err != nil {
			return nil, err
		}
		ch.ID = uint32(chainID)
		result = append(result, ch)
	}
	return result, rows.Err()
}

func (s *Store) CreateAdapter(ctx context.Context, ad registry.Adapter) (registry.Adapter, error) {
	if ad.ID == "" {
		ad.ID = uuid.NewString()
	}
	ad.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relay_adapters (id, chain_id, address, created_at)
		VALUES ($1, $2, $3, $4)
	`, ad.ID, int64(ad.ChainID), ad.Address, ad.CreatedAt)
	if err != nil {
		return registry.Adapter{}, err
	}
	return ad, nil
}

func (s *Store) ListAdapters(ctx context.Context, chainID uint32) ([]registry.Adapter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chain_id, address, created_at FROM relay_adapters
		WHERE chain_id = $1
		ORDER BY created_at
	`, int64(chainID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []registry.Adapter
	for rows.Next() {
		var (
			ad  registry.Adapter
			cid int64
		)
		if err := rows.Scan(&ad.ID, &cid, &ad.Address, &ad.CreatedAt); err != nil {
			return nil, err
		}
		ad.ChainID = uint32(cid)
		result = append(result, ad)
	}
	return result, rows.Err()
}

func (s *Store) HasAdapter(ctx context.Context, chainID uint32, address string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM relay_adapters WHERE chain_id = $1 AND address = $2)
	`, int64(chainID), address).Scan(&exists)
	return exists, err
}

// --- BankStore --------------------------------------------------------------

func (s *Store) GetBalance(ctx context.Context, address string) (uint64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM relay_accounts WHERE address = $1
	`, address).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return uint64(balance), err
}

func (s *Store) Credit(ctx context.Context, address string, amount uint64) (uint64, error) {
	now := time.Now().UTC()

	var balance int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO relay_accounts (address, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (address)
		DO UPDATE SET balance = relay_accounts.balance + EXCLUDED.balance, updated_at = EXCLUDED.updated_at
		RETURNING balance
	`, address, int64(amount), now).Scan(&balance)
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

func (s *Store) GetAccount(ctx context.Context, address string) (bank.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT address, balance, created_at, updated_at FROM relay_accounts WHERE address = $1
	`, address)

	var (
		acct    bank.Account
		balance int64
	)
	if err := row.Scan(&acct.Address, &balance, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return bank.Account{}, fmt.Errorf("%w: account %s", message.ErrNotFound, address)
		}
		return bank.Account{}, err
	}
	acct.Balance = uint64(balance)
	return acct, nil
}
