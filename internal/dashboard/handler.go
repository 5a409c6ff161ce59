package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/notify"
)

// ChangeData is the payload of every change message.
type ChangeData struct {
	Reason   string   `json:"reason,omitempty"`
	EntryIDs []string `json:"entry_ids,omitempty"`
	Count    int      `json:"count,omitempty"`
	Error    string   `json:"error,omitempty"`
}

var kindToType = map[notify.Kind]MessageType{
	notify.DatasetChanged:    MessageTypeDatasetChanged,
	notify.EntriesChanged:    MessageTypeEntriesChanged,
	notify.SyncComplete:      MessageTypeSyncComplete,
	notify.SyncFailed:        MessageTypeSyncFailed,
	notify.RehydrateComplete: MessageTypeRehydrateComplete,
}

// Handler turns notify events into dashboard messages.
type Handler struct {
	server *Server
	logger *zap.Logger
}

// NewHandler creates a handler that broadcasts through server.
func NewHandler(server *Server, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{server: server, logger: logger.Named("dashboard")}
}

// Attach subscribes the handler to hub.
func (h *Handler) Attach(hub *notify.Hub) (unsubscribe func()) {
	return hub.Subscribe("dashboard", h.HandleEvent)
}

// HandleEvent broadcasts ev, followed by a fresh stats snapshot for events
// that change counts.
func (h *Handler) HandleEvent(ev notify.Event) {
	typ, ok := kindToType[ev.Kind]
	if !ok {
		h.logger.Debug("ignoring event", zap.String("kind", string(ev.Kind)))
		return
	}

	data, err := json.Marshal(ChangeData{Reason: ev.Reason, EntryIDs: ev.EntryIDs, Count: ev.Count, Error: ev.Error})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: ev.Timestamp, Data: data})

	if ev.Kind == notify.SyncFailed {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if msg, ok := h.server.statsMessage(ctx); ok && msg.Data != nil {
		h.server.Broadcast(msg)
	}
}
