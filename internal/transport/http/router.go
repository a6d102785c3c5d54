// Package httptransport is the Transport Front (spec §5): the HTTP surface
// over the Coordinator, Session Shell, and Push Hub. It is the sole place
// that translates a Coordinator *model.Error into an HTTP status (spec §7)
// and the sole place that decodes/encodes wire JSON — the Coordinator
// itself never imports net/http.
package httptransport

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/coordinator"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/idgen"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/model"
	"github.com/dsk1ra/rendezvous-signal/internal/rendezvous/pushhub"
	"github.com/dsk1ra/rendezvous-signal/internal/session"
)

// Handler bundles everything the HTTP surface needs.
type Handler struct {
	logger      *slog.Logger
	coordinator *coordinator.Coordinator
	sessions    *session.Registry
	push        pushhub.Hub
	idgen       *idgen.Generator
	publicURL   string
	heartbeat   time.Duration
}

// New constructs a Handler.
func New(logger *slog.Logger, c *coordinator.Coordinator, s *session.Registry, push pushhub.Hub, g *idgen.Generator, publicURL string, heartbeatInterval time.Duration) *Handler {
	return &Handler{
		logger:      logger,
		coordinator: c,
		sessions:    s,
		push:        push,
		idgen:       g,
		publicURL:   publicURL,
		heartbeat:   heartbeatInterval,
	}
}

// Router builds the chi.Router for the full spec §6 route table, plus the
// supplemented session endpoints.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/health", h.health)

	r.Post("/register", h.register)
	r.Post("/heartbeat", h.heartbeat)

	// init carries client_id/session_token in its own body (spec wire
	// table), so it verifies the session inline rather than through the
	// header-based requireSession middleware used by send.
	r.Post("/connection/init", h.connectionInit)
	r.Post("/connection/join", h.connectionJoin)
	r.With(h.requireSession).Post("/connection/send", h.connectionSend)
	r.Post("/connection/recv", h.connectionRecv)

	r.Get("/ws/{mailbox_id}", h.wsUpgrade)

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"public_base_url":         h.publicURL,
		"heartbeat_interval_secs": int64(h.heartbeat.Seconds()),
	})
}

// -------- session shell --------

type registerRequest struct {
	DeviceLabel string `json:"device_label"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "malformed request body"})
		return
	}

	res := h.sessions.Register(req.DeviceLabel)
	writeJSON(w, http.StatusOK, map[string]any{
		"client_id":               res.ClientID,
		"session_token":           res.SessionToken,
		"heartbeat_interval_secs": res.HeartbeatIntervalSecs,
		"display_name":            res.DisplayName,
	})
}

type heartbeatRequest struct {
	ClientID     uuid.UUID `json:"client_id"`
	SessionToken string    `json:"session_token"`
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "malformed request body"})
		return
	}

	res, err := h.sessions.Heartbeat(req.ClientID, req.SessionToken)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"next_heartbeat_secs": res.NextHeartbeatSecs})
}

func writeSessionError(w http.ResponseWriter, err error) {
	status := http.StatusNotFound
	if err == session.ErrInvalidToken {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, errorBody{Code: "session_error", Message: err.Error()})
}

// requireSession enforces the (client_id, session_token) pre-check from the
// X-Client-Id / X-Session-Token headers. Only send is routed through it;
// init runs the same check inline from its body, and join and recv need
// none (spec §4.F).
func (h *Handler) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIDStr := r.Header.Get("X-Client-Id")
		token := r.Header.Get("X-Session-Token")

		clientID, err := uuid.Parse(clientIDStr)
		if err != nil {
			writeError(w, model.ErrUnauthorizedSession())
			return
		}
		if err := h.sessions.Verify(clientID, token); err != nil {
			writeError(w, model.ErrUnauthorizedSession())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -------- rendezvous --------

// rendezvous IDs and tokens are URL-safe base64 without padding, the
// encoding idgen.RendezvousToken produces; ciphertext is opaque client
// payload, base64 with padding, the same two encodings the reference client
// library uses.
func validB64RawURL(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil
}

func validB64Std(s string) bool {
	if s == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

type connectionInitRequest struct {
	ClientID        uuid.UUID `json:"client_id"`
	SessionToken    string    `json:"session_token"`
	RendezvousIDB64 string    `json:"rendezvous_id_b64"`
}

func (h *Handler) connectionInit(w http.ResponseWriter, r *http.Request) {
	var req connectionInitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "malformed request body"})
		return
	}
	if err := h.sessions.Verify(req.ClientID, req.SessionToken); err != nil {
		writeError(w, model.ErrUnauthorizedSession())
		return
	}
	if !validB64RawURL(req.RendezvousIDB64) {
		writeError(w, model.ErrValidation("rendezvous_id_b64 is missing or not valid base64"))
		return
	}

	res, errc := h.coordinator.Init(r.Context(), req.RendezvousIDB64)
	if errc != nil {
		writeError(w, errc)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mailbox_id":        res.MailboxID,
		"expires_at_epoch_ms": res.ExpiresAtMs,
	})
}

type connectionJoinRequest struct {
	TokenB64 string `json:"token_b64"`
}

func (h *Handler) connectionJoin(w http.ResponseWriter, r *http.Request) {
	var req connectionJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "malformed request body"})
		return
	}
	if !validB64RawURL(req.TokenB64) {
		writeError(w, model.ErrValidation("token_b64 is missing or not valid base64"))
		return
	}

	res, errc := h.coordinator.Join(r.Context(), req.TokenB64)
	if errc != nil {
		writeError(w, errc)
		return
	}

	payload, err := json.Marshal(res.PushNotify)
	if err != nil {
		h.logger.Error("marshal join notification", "error", err)
	} else if err := h.push.Notify(r.Context(), res.InitiatorMailboxID, payload); err != nil {
		h.logger.Warn("push notify failed", "mailbox_id", res.InitiatorMailboxID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mailbox_id":        res.MailboxID,
		"expires_at_epoch_ms": res.ExpiresAtMs,
	})
}

type mailboxSendRequest struct {
	MailboxID     string `json:"mailbox_id"`
	CiphertextB64 string `json:"ciphertext_b64"`
}

func (h *Handler) connectionSend(w http.ResponseWriter, r *http.Request) {
	var req mailboxSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "malformed request body"})
		return
	}
	if req.MailboxID == "" {
		writeError(w, model.ErrValidation("mailbox_id is required"))
		return
	}
	if !validB64Std(req.CiphertextB64) {
		writeError(w, model.ErrValidation("ciphertext_b64 is missing or not valid base64"))
		return
	}

	res, errc := h.coordinator.Send(r.Context(), req.MailboxID, req.CiphertextB64)
	if errc != nil {
		writeError(w, errc)
		return
	}

	payload, err := json.Marshal(res.Message)
	if err != nil {
		h.logger.Error("marshal mailbox message", "error", err)
	} else {
		h.logger.Info("pushing notification", "mailbox_id", res.PeerMailboxID)
		if err := h.push.Notify(r.Context(), res.PeerMailboxID, payload); err != nil {
			h.logger.Warn("push notify failed", "mailbox_id", res.PeerMailboxID, "error", err)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

type mailboxRecvRequest struct {
	MailboxID string `json:"mailbox_id"`
}

func (h *Handler) connectionRecv(w http.ResponseWriter, r *http.Request) {
	var req mailboxRecvRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "bad_request", Message: "malformed request body"})
		return
	}
	if req.MailboxID == "" {
		writeError(w, model.ErrValidation("mailbox_id is required"))
		return
	}

	res, errc := h.coordinator.Recv(r.Context(), req.MailboxID)
	if errc != nil {
		writeError(w, errc)
		return
	}

	messages := res.Messages
	if messages == nil {
		messages = []model.MailboxMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":      messages,
		"last_sequence": res.LastSequence,
	})
}
