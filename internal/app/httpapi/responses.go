package httpapi

import (
	"encoding/hex"
	"time"

	"github.com/R3E-Network/relay_layer/internal/app/domain/bank"
	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/internal/app/domain/registry"
	"github.com/R3E-Network/relay_layer/internal/app/events"
)

// Response bodies mirror the request wire format: snake_case keys, recipient
// and payload hex-encoded.

type messageResponse struct {
	ID          string         `json:"id"`
	SourceChain uint32         `json:"source_chain"`
	DestChain   uint32         `json:"dest_chain"`
	Nonce       uint64         `json:"nonce"`
	Sender      string         `json:"sender"`
	Recipient   string         `json:"recipient"`
	Payload     string         `json:"payload"`
	CreatedAt   uint64         `json:"created_at"`
	ExpiresAt   uint64         `json:"expires_at"`
	Status      message.Status `json:"status"`
	CreatedTime time.Time      `json:"created_time"`
	UpdatedTime time.Time      `json:"updated_time"`
}

func toMessageResponse(msg message.Message) messageResponse {
	return messageResponse{
		ID:          msg.ID,
		SourceChain: msg.SourceChain,
		DestChain:   msg.DestChain,
		Nonce:       msg.Nonce,
		Sender:      msg.Sender,
		Recipient:   hex.EncodeToString(msg.Recipient),
		Payload:     hex.EncodeToString(msg.Payload),
		CreatedAt:   msg.CreatedAt,
		ExpiresAt:   msg.ExpiresAt,
		Status:      msg.Status,
		CreatedTime: msg.CreatedTime,
		UpdatedTime: msg.UpdatedTime,
	}
}

func toMessageResponses(msgs []message.Message) []messageResponse {
	result := make([]messageResponse, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, toMessageResponse(msg))
	}
	return result
}

type chainResponse struct {
	ID        uint32    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toChainResponse(ch registry.Chain) chainResponse {
	return chainResponse{
		ID:        ch.ID,
		Name:      ch.Name,
		Active:    ch.Active,
		CreatedAt: ch.CreatedAt,
		UpdatedAt: ch.UpdatedAt,
	}
}

func toChainResponses(chains []registry.Chain) []chainResponse {
	result := make([]chainResponse, 0, len(chains))
	for _, ch := range chains {
		result = append(result, toChainResponse(ch))
	}
	return result
}

type adapterResponse struct {
	ID        string    `json:"id"`
	ChainID   uint32    `json:"chain_id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

func toAdapterResponse(ad registry.Adapter) adapterResponse {
	return adapterResponse{
		ID:        ad.ID,
		ChainID:   ad.ChainID,
		Address:   ad.Address,
		CreatedAt: ad.CreatedAt,
	}
}

func toAdapterResponses(adapters []registry.Adapter) []adapterResponse {
	result := make([]adapterResponse, 0, len(adapters))
	for _, ad := range adapters {
		result = append(result, toAdapterResponse(ad))
	}
	return result
}

type accountResponse struct {
	Address   string    `json:"address"`
	Balance   uint64    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toAccountResponse(acct bank.Account) accountResponse {
	return accountResponse{
		Address:   acct.Address,
		Balance:   acct.Balance,
		CreatedAt: acct.CreatedAt,
		UpdatedAt: acct.UpdatedAt,
	}
}

type eventResponse struct {
	ID          string      `json:"id"`
	Type        events.Type `json:"type"`
	MessageID   string      `json:"message_id"`
	SourceChain uint32      `json:"source_chain"`
	DestChain   uint32      `json:"dest_chain"`
	Nonce       uint64      `json:"nonce"`
	Sender      string      `json:"sender"`
	Recipient   string      `json:"recipient"`
	Timestamp   time.Time   `json:"timestamp"`
}

func toEventResponse(event events.Event) eventResponse {
	return eventResponse{
		ID:          event.ID,
		Type:        event.Type,
		MessageID:   event.MessageID,
		SourceChain: event.SourceChain,
		DestChain:   event.DestChain,
		Nonce:       event.Nonce,
		Sender:      event.Sender,
		Recipient:   hex.EncodeToString(event.Recipient),
		Timestamp:   event.Timestamp,
	}
}
