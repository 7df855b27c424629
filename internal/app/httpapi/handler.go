// Package httpapi exposes the relay layer over REST plus a websocket event
// feed for off-chain relayers.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	app "github.com/R3E-Network/relay_layer/internal/app"
	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/internal/app/metrics"
	"github.com/gorilla/mux"
)

// Options configures the HTTP surface.
type Options struct {
	// AuthSecret signs and verifies caller JWTs. Empty disables auth, which
	// is only acceptable for local development.
	AuthSecret string

	// RateLimit caps requests per second across the API; 0 disables.
	RateLimit float64
	RateBurst int

	// AuditSize bounds the in-memory audit ring buffer.
	AuditSize int
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app   *app.Application
	audit *auditLog
}

// NewHandler returns the fully wired API: routing, auth, rate limiting,
// auditing, and metrics instrumentation.
func NewHandler(application *app.Application, opts Options) http.Handler {
	h := &handler{app: application, audit: newAuditLog(opts.AuditSize)}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/messages/send", h.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/messages/receive", h.receiveMessage).Methods(http.MethodPost)
	v1.HandleFunc("/messages", h.listMessages).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id}", h.getMessage).Methods(http.MethodGet)
	v1.HandleFunc("/deliveries/{chain}/{nonce}", h.getDelivery).Methods(http.MethodGet)
	v1.HandleFunc("/fee", h.getFee).Methods(http.MethodGet)
	v1.HandleFunc("/fee", h.setFee).Methods(http.MethodPut)
	v1.HandleFunc("/chains", h.registerChain).Methods(http.MethodPost)
	v1.HandleFunc("/chains", h.listChains).Methods(http.MethodGet)
	v1.HandleFunc("/chains/{id}", h.getChain).Methods(http.MethodGet)
	v1.HandleFunc("/chains/{id}/active", h.setChainActive).Methods(http.MethodPut)
	v1.HandleFunc("/chains/{id}/adapters", h.registerAdapter).Methods(http.MethodPost)
	v1.HandleFunc("/chains/{id}/adapters", h.listAdapters).Methods(http.MethodGet)
	v1.HandleFunc("/accounts/{address}/deposit", h.deposit).Methods(http.MethodPost)
	v1.HandleFunc("/accounts/{address}", h.getAccount).Methods(http.MethodGet)
	v1.HandleFunc("/events/ws", h.eventsWebsocket).Methods(http.MethodGet)
	v1.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)

	var wrapped http.Handler = r
	wrapped = wrapWithAudit(wrapped, h.audit)
	wrapped = wrapWithAuth(wrapped, opts.AuthSecret)
	wrapped = wrapWithRateLimit(wrapped, opts.RateLimit, opts.RateBurst)
	wrapped = metrics.InstrumentHandler(wrapped)
	return wrapped
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- relay ------------------------------------------------------------------

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		DestChain uint32 `json:"dest_chain"`
		Recipient string `json:"recipient"` // hex, 32 bytes
		Payload   string `json:"payload"`   // hex
		ExpiresAt uint64 `json:"expires_at"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	recipient, err := hex.DecodeString(payload.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("recipient must be hex: %w", err))
		return
	}
	data, err := hex.DecodeString(payload.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("payload must be hex: %w", err))
		return
	}

	msg, err := h.app.Relay.Send(r.Context(), caller(r), payload.DestChain, recipient, data, payload.ExpiresAt)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *handler) receiveMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SourceChain uint32 `json:"source_chain"`
		Nonce       uint64 `json:"nonce"`
		Sender      string `json:"sender"`
		Recipient   string `json:"recipient"` // hex, 32 bytes
		Payload     string `json:"payload"`   // hex
		ExpiresAt   uint64 `json:"expires_at"`
		ID          string `json:"id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	recipient, err := hex.DecodeString(payload.Recipient)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("recipient must be hex: %w", err))
		return
	}
	data, err := hex.DecodeString(payload.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("payload must be hex: %w", err))
		return
	}

	msg, err := h.app.Relay.Receive(r.Context(), caller(r), payload.SourceChain, payload.Nonce,
		payload.Sender, recipient, data, payload.ExpiresAt, payload.ID)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	status := message.Status(r.URL.Query().Get("status"))
	msgs, err := h.app.Relay.ListMessages(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(msgs))
}

func (h *handler) getMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.app.Relay.GetMessage(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponse(msg))
}

func (h *handler) getDelivery(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(mux.Vars(r)["chain"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	nonce, err := strconv.ParseUint(mux.Vars(r)["nonce"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid nonce: %w", err))
		return
	}

	delivered, err := h.app.Relay.IsDelivered(r.Context(), chainID, nonce)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"delivered": delivered})
}

func (h *handler) getFee(w http.ResponseWriter, r *http.Request) {
	fee, err := h.app.Relay.RelayFee(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee": fee})
}

func (h *handler) setFee(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount uint64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.app.Relay.SetRelayFee(r.Context(), caller(r), payload.Amount); err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"fee": payload.Amount})
}

// --- registry ---------------------------------------------------------------

func (h *handler) registerChain(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID   uint32 `json:"id"`
		Name string `json:"name"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ch, err := h.app.Registry.RegisterChain(r.Context(), caller(r), payload.ID, payload.Name)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toChainResponse(ch))
}

func (h *handler) listChains(w http.ResponseWriter, r *http.Request) {
	chains, err := h.app.Registry.ListChains(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toChainResponses(chains))
}

func (h *handler) getChain(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ch, err := h.app.Registry.GetChain(r.Context(), chainID)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toChainResponse(ch))
}

func (h *handler) setChainActive(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var payload struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ch, err := h.app.Registry.SetChainActive(r.Context(), caller(r), chainID, payload.Active)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toChainResponse(ch))
}

func (h *handler) registerAdapter(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var payload struct {
		Address string `json:"address"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ad, err := h.app.Registry.RegisterAdapter(r.Context(), caller(r), chainID, payload.Address)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdapterResponse(ad))
}

func (h *handler) listAdapters(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	adapters, err := h.app.Registry.ListAdapters(r.Context(), chainID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdapterResponses(adapters))
}

// --- bank -------------------------------------------------------------------

func (h *handler) deposit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount uint64 `json:"amount"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	balance, err := h.app.Bank.Deposit(r.Context(), mux.Vars(r)["address"], payload.Amount)
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"balance": balance})
}

func (h *handler) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.app.Bank.Account(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, statusFromError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acct))
}

// --- helpers ----------------------------------------------------------------

func parseChainID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id: %w", err)
	}
	return uint32(id), nil
}

func statusFromError(err error) int {
	switch {
	case errors.Is(err, message.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, message.ErrInvalidChain):
		return http.StatusUnprocessableEntity
	case errors.Is(err, message.ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, message.ErrMessageExpired):
		return http.StatusGone
	case errors.Is(err, message.ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, message.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
