package httpapi

import (
	"net/http"
	"sync"
	"time"
)

type auditEntry struct {
	Time       time.Time `json:"time"`
	Caller     string    `json:"caller"`
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
}

// auditLog is a bounded in-memory ring of recent API calls.
type auditLog struct {
	mu      sync.Mutex
	entries []auditEntry
	max     int
}

func newAuditLog(max int) *auditLog {
	if max <= 0 {
		max = 200
	}
	return &auditLog{max: max}
}

func (l *auditLog) add(entry auditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.max {
		l.entries = l.entries[len(l.entries)-l.max:]
	}
}

func (l *auditLog) list() []auditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	result := make([]auditEntry, len(l.entries))
	copy(result, l.entries)
	return result
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.audit.list())
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func wrapWithAudit(next http.Handler, audit *auditLog) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The websocket feed is skipped: wrapping its ResponseWriter would
		// hide the Hijacker the upgrade needs.
		if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" || r.URL.Path == "/v1/events/ws" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		audit.add(auditEntry{
			Time:       time.Now().UTC(),
			Caller:     caller(r),
			Path:       r.URL.Path,
			Method:     r.Method,
			Status:     rec.status,
			RemoteAddr: r.RemoteAddr,
		})
	})
}
