package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/reelpost/reelpost-backend/internal/logger"
	"github.com/reelpost/reelpost-backend/internal/requestdata"
	"github.com/reelpost/reelpost-backend/internal/sse"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *sse.SSEHub

	mu      sync.RWMutex
	clients map[string]*sse.SSEClient // key: caller attribution key
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{
		Log:     log,
		Hub:     hub,
		clients: make(map[string]*sse.SSEClient),
	}
}

// GET /api/realtime/stream
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	identity := requestdata.GetIdentity(c.Request.Context())
	if identity.IsZero() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	subject := identity.Key()
	h.Log.Info("SSEStream open", "subject", subject)

	h.mu.Lock()
	// One stream per caller; a reconnect replaces the old one.
	if existing, ok := h.clients[subject]; ok {
		h.Hub.CloseClient(existing)
		delete(h.clients, subject)
	}
	client := h.Hub.NewSSEClient(subject)
	h.clients[subject] = client
	h.mu.Unlock()

	// Every caller hears their own channel (assignment offers land here).
	h.Hub.AddChannel(client, subject)

	h.Hub.ServeHTTP(c.Writer, c.Request, client)

	h.mu.Lock()
	// A reconnect may already have replaced this client; only evict our own
	// registry entry.
	if h.clients[subject] == client {
		delete(h.clients, subject)
	}
	h.mu.Unlock()
	h.Hub.CloseClient(client)
}

// POST /api/realtime/subscribe
func (h *RealtimeHandler) SSESubscribe(c *gin.Context) {
	client, channel, ok := h.resolveSubscription(c)
	if !ok {
		return
	}
	h.Hub.AddChannel(client, channel)
	c.JSON(http.StatusOK, gin.H{"message": "subscribed", "channel": channel})
}

// POST /api/realtime/unsubscribe
func (h *RealtimeHandler) SSEUnsubscribe(c *gin.Context) {
	client, channel, ok := h.resolveSubscription(c)
	if !ok {
		return
	}
	h.Hub.RemoveChannel(client, channel)
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed", "channel": channel})
}

func (h *RealtimeHandler) resolveSubscription(c *gin.Context) (*sse.SSEClient, string, bool) {
	identity := requestdata.GetIdentity(c.Request.Context())
	if identity.IsZero() {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return nil, "", false
	}

	var req struct {
		Channel string `json:"channel"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Channel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel"})
		return nil, "", false
	}

	h.mu.RLock()
	client, exists := h.clients[identity.Key()]
	h.mu.RUnlock()
	if !exists {
		c.JSON(http.StatusConflict, gin.H{"error": "no active SSE connection for this caller"})
		return nil, "", false
	}
	return client, req.Channel, true
}
