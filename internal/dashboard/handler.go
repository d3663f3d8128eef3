package dashboard

import (
	"encoding/json"
	"log"
	"time"

	"github.com/Umer9538/nfcapp-offline/internal/cache"
	"github.com/Umer9538/nfcapp-offline/internal/connectivity"
	"github.com/Umer9538/nfcapp-offline/internal/engine"
	"github.com/Umer9538/nfcapp-offline/internal/queue"
)

// Handler formats offline-layer events as dashboard messages.
// It bridges between the daemon and the WebSocket server.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates an event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{server: server, logger: logger}
}

// OnEnqueued handles a request entering the queue
func (h *Handler) OnEnqueued(req queue.Request, queueSize int) {
	h.send(MessageTypeQueueUpdate, QueueUpdateData{
		Action:    "enqueued",
		RequestID: req.ID,
		Method:    req.Method,
		Target:    req.Target,
		Priority:  req.Priority.String(),
		QueueSize: queueSize,
	})
}

// OnQueueSize handles a bulk change in queue occupancy
func (h *Handler) OnQueueSize(queueSize int) {
	h.send(MessageTypeQueueUpdate, QueueUpdateData{
		Action:    "resized",
		QueueSize: queueSize,
	})
}

// OnQueueCleared handles the queue being emptied
func (h *Handler) OnQueueCleared() {
	h.send(MessageTypeQueueUpdate, QueueUpdateData{Action: "cleared"})
}

// OnSyncComplete handles the end of a sync pass
func (h *Handler) OnSyncComplete(result engine.Result, duration time.Duration) {
	h.send(MessageTypeSyncComplete, SyncCompleteData{
		Success:  result.Success,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Duration: duration,
	})
}

// OnCacheStats handles a cache occupancy snapshot
func (h *Handler) OnCacheStats(stats cache.Stats) {
	h.send(MessageTypeCacheStats, CacheStatsData{
		TotalEntries:   stats.TotalEntries,
		ExpiredEntries: stats.ExpiredEntries,
		ValidEntries:   stats.ValidEntries,
	})
}

// OnConnectivityChange handles a reachability transition
func (h *Handler) OnConnectivityChange(event connectivity.Event) {
	h.send(MessageTypeConnectivity, ConnectivityData{Online: event.Online})
}

// send marshals data and broadcasts it under the given message type
func (h *Handler) send(typ MessageType, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}

	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      payload,
	})
}
