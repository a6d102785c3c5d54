package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsUpgrade subscribes a client to a mailbox's Push Hub notifications over
// a WebSocket connection. The mailbox is verified to exist before the
// upgrade so a client never ends up with an open socket pinned to a
// mailbox that was never created (spec §4.E).
func (h *Handler) wsUpgrade(w http.ResponseWriter, r *http.Request) {
	mailboxID := chi.URLParam(r, "mailbox_id")

	if errc := h.coordinator.VerifyMailbox(r.Context(), mailboxID); errc != nil {
		writeError(w, errc)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	msgs, unsubscribe, err := h.push.Subscribe(r.Context(), mailboxID)
	if err != nil {
		h.logger.Error("ws subscribe failed", "mailbox_id", mailboxID, "error", err)
		return
	}
	defer unsubscribe()

	h.logger.Info("ws opened", "mailbox_id", mailboxID)

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.logger.Warn("ws send failed", "mailbox_id", mailboxID, "error", err)
				return
			}
		}
	}
}
