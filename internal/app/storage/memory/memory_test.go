package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
)

func testMessage(id string, nonce uint64) message.Message {
	recipient := make([]byte, message.RecipientLength)
	return message.Message{
		ID:          id,
		SourceChain: 1,
		DestChain:   7,
		Nonce:       nonce,
		Sender:      "alice",
		Recipient:   recipient,
		Payload:     []byte("payload"),
		CreatedAt:   100,
		Status:      message.StatusPending,
	}
}

func TestCreateOutbound(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Credit(ctx, "alice", 500); err != nil {
		t.Fatalf("credit: %v", err)
	}

	msg, err := store.CreateOutbound(ctx, testMessage("m1", 0), 500, "alice", "collector")
	if err != nil {
		t.Fatalf("create outbound: %v", err)
	}
	if msg.Nonce != 0 {
		t.Fatalf("expected nonce 0, got %d", msg.Nonce)
	}

	if balance, _ := store.GetBalance(ctx, "alice"); balance != 0 {
		t.Fatalf("expected alice balance 0, got %d", balance)
	}
	if balance, _ := store.GetBalance(ctx, "collector"); balance != 500 {
		t.Fatalf("expected collector balance 500, got %d", balance)
	}
	if next, _ := store.NextNonceValue(ctx, 1); next != 1 {
		t.Fatalf("expected next nonce 1, got %d", next)
	}
	if _, err := store.GetMessage(ctx, "m1"); err != nil {
		t.Fatalf("get message: %v", err)
	}
}

func TestCreateOutbound_InsufficientBalance(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Credit(ctx, "alice", 100); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := store.CreateOutbound(ctx, testMessage("m1", 0), 500, "alice", "collector")
	if !errors.Is(err, message.ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}

	// The whole operation rolls back: no debit, no nonce, no message.
	if balance, _ := store.GetBalance(ctx, "alice"); balance != 100 {
		t.Fatalf("balance mutated: %d", balance)
	}
	if next, _ := store.NextNonceValue(ctx, 1); next != 0 {
		t.Fatalf("nonce drawn: %d", next)
	}
	if _, err := store.GetMessage(ctx, "m1"); !errors.Is(err, message.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateOutbound_ZeroFee(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Unfunded senders may relay when the fee is zero.
	if _, err := store.CreateOutbound(ctx, testMessage("m1", 0), 0, "alice", "collector"); err != nil {
		t.Fatalf("create outbound: %v", err)
	}
}

func TestCreateOutbound_UpsertsByID(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateOutbound(ctx, testMessage("m1", 0), 0, "alice", "collector"); err != nil {
		t.Fatalf("first: %v", err)
	}
	second := testMessage("m1", 0)
	second.Payload = []byte("other")
	if _, err := store.CreateOutbound(ctx, second, 0, "alice", "collector"); err != nil {
		t.Fatalf("second: %v", err)
	}

	msgs, err := store.ListMessages(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after upsert, got %d", len(msgs))
	}
	if string(msgs[0].Payload) != "other" {
		t.Fatalf("upsert did not replace payload: %q", msgs[0].Payload)
	}
}

func TestUpsertCollisionAcrossDirections(t *testing.T) {
	store := New()
	ctx := context.Background()

	inbound := testMessage("m1", 4)
	inbound.Status = message.StatusExecuted
	if _, err := store.CreateInbound(ctx, inbound); err != nil {
		t.Fatalf("create inbound: %v", err)
	}

	// A later send with the same content shares the id and replaces the row;
	// the row reads pending again. See the DeriveID contract.
	if _, err := store.CreateOutbound(ctx, testMessage("m1", 0), 0, "alice", "collector"); err != nil {
		t.Fatalf("create outbound: %v", err)
	}

	got, err := store.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if got.Status != message.StatusPending {
		t.Fatalf("expected pending after overwrite, got %s", got.Status)
	}

	// The delivery ledger keys on (chain, nonce), so the consumed pair stays
	// consumed regardless of the row overwrite.
	delivered, err := store.IsDelivered(ctx, 1, 4)
	if err != nil {
		t.Fatalf("is delivered: %v", err)
	}
	if !delivered {
		t.Fatalf("delivery marker lost on overwrite")
	}
}

func TestCreateInbound_ReplayRejected(t *testing.T) {
	store := New()
	ctx := context.Background()

	msg := testMessage("m1", 4)
	msg.Status = message.StatusExecuted
	if _, err := store.CreateInbound(ctx, msg); err != nil {
		t.Fatalf("create inbound: %v", err)
	}

	delivered, err := store.IsDelivered(ctx, 1, 4)
	if err != nil {
		t.Fatalf("is delivered: %v", err)
	}
	if !delivered {
		t.Fatalf("expected (1,4) delivered")
	}

	replay := testMessage("m2", 4)
	replay.Status = message.StatusExecuted
	if _, err := store.CreateInbound(ctx, replay); !errors.Is(err, message.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
	if _, err := store.GetMessage(ctx, "m2"); !errors.Is(err, message.ErrNotFound) {
		t.Fatalf("replay stored a message: %v", err)
	}
}

func TestCreateInboundConcurrentSameNonce(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Every worker races to deliver (chain 1, nonce 4); the check+insert on
	// the delivery ledger must admit exactly one.
	const workers = 32
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := testMessage(fmt.Sprintf("m%d", i), 4)
			msg.Status = message.StatusExecuted
			_, err := store.CreateInbound(ctx, msg)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	accepted := 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, message.ErrAlreadyProcessed):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly 1 accepted delivery, got %d", accepted)
	}
}

func TestCreateOutboundConcurrentNonces(t *testing.T) {
	store := New()
	ctx := context.Background()

	const workers = 64
	var wg sync.WaitGroup
	nonces := make(chan uint64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := store.CreateOutbound(ctx, testMessage(fmt.Sprintf("m%d", i), 0), 0, "alice", "collector")
			if err != nil {
				t.Errorf("create outbound: %v", err)
				return
			}
			nonces <- msg.Nonce
		}(i)
	}
	wg.Wait()
	close(nonces)

	// Nonces 0..workers-1 each assigned exactly once, no gaps, no repeats.
	seen := make(map[uint64]bool, workers)
	for nonce := range nonces {
		if seen[nonce] {
			t.Fatalf("nonce %d assigned twice", nonce)
		}
		seen[nonce] = true
	}
	for i := uint64(0); i < workers; i++ {
		if !seen[i] {
			t.Fatalf("nonce %d never assigned", i)
		}
	}
	if next, _ := store.NextNonceValue(ctx, 1); next != workers {
		t.Fatalf("expected next nonce %d, got %d", workers, next)
	}
}

func TestUpdateMessageStatus(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateOutbound(ctx, testMessage("m1", 0), 0, "alice", "collector"); err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := store.UpdateMessageStatus(ctx, "m1", message.StatusFailed)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != message.StatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}

	// Only pending messages transition.
	if _, err := store.UpdateMessageStatus(ctx, "m1", message.StatusExecuted); err == nil {
		t.Fatalf("expected transition error")
	}
	if _, err := store.UpdateMessageStatus(ctx, "missing", message.StatusFailed); !errors.Is(err, message.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListMessagesByStatus(t *testing.T) {
	store := New()
	ctx := context.Background()

	for i, id := range []string{"m1", "m2", "m3"} {
		if _, err := store.CreateOutbound(ctx, testMessage(id, uint64(i)), 0, "alice", "collector"); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	if _, err := store.UpdateMessageStatus(ctx, "m2", message.StatusFailed); err != nil {
		t.Fatalf("update: %v", err)
	}

	pending, err := store.ListMessages(ctx, message.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	all, err := store.ListMessages(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(all))
	}
}

func TestListExpiredPending(t *testing.T) {
	store := New()
	ctx := context.Background()

	expiring := testMessage("m1", 0)
	expiring.ExpiresAt = 150
	eternal := testMessage("m2", 1)

	for _, msg := range []message.Message{expiring, eternal} {
		if _, err := store.CreateOutbound(ctx, msg, 0, "alice", "collector"); err != nil {
			t.Fatalf("create %s: %v", msg.ID, err)
		}
	}

	expired, err := store.ListExpiredPending(ctx, 149)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected none expired at 149, got %d", len(expired))
	}

	expired, err = store.ListExpiredPending(ctx, 150)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "m1" {
		t.Fatalf("unexpected expired set: %#v", expired)
	}
}

func TestNoncesPerChain(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateOutbound(ctx, testMessage("m1", 0), 0, "alice", "collector"); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Chains keep independent nonce streams.
	if next, _ := store.NextNonceValue(ctx, 1); next != 1 {
		t.Fatalf("expected chain 1 nonce 1, got %d", next)
	}
	if next, _ := store.NextNonceValue(ctx, 2); next != 0 {
		t.Fatalf("expected chain 2 nonce 0, got %d", next)
	}
}

func TestRelayFee(t *testing.T) {
	store := New()
	ctx := context.Background()

	fee, err := store.GetRelayFee(ctx)
	if err != nil {
		t.Fatalf("get fee: %v", err)
	}
	if fee != 0 {
		t.Fatalf("expected default fee 0, got %d", fee)
	}

	if err := store.SetRelayFee(ctx, 500); err != nil {
		t.Fatalf("set fee: %v", err)
	}
	if fee, _ := store.GetRelayFee(ctx); fee != 500 {
		t.Fatalf("expected fee 500, got %d", fee)
	}
}

func TestCloneIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	original := testMessage("m1", 0)
	if _, err := store.CreateOutbound(ctx, original, 0, "alice", "collector"); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.Payload[0] = 'X'

	again, err := store.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if string(again.Payload) != "payload" {
		t.Fatalf("caller mutation leaked into store: %q", again.Payload)
	}
}
