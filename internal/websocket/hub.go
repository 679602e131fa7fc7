// internal/websocket/hub.go
package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	wstypes "ticketsync/internal/domain/realtime"
	"ticketsync/internal/pkg/jwt"
)

// anonymous groups connections that presented no token.
const anonymous = ""

// ErrInvalidToken rejects a connection whose access token does not verify.
var ErrInvalidToken = errors.New("invalid token")

// Hub tracks push connections by user and fans events out to all of them.
type Hub struct {
	// Registered clients by user ID
	clients map[string]map[*Client]bool
	mu      sync.RWMutex

	Register   chan *Client
	unregister chan *Client

	broadcast chan *BroadcastMessage
	done      chan struct{}

	jwtVerifier *jwt.Verifier
	logger      *zap.Logger
}

type BroadcastMessage struct {
	// UserIDs limits delivery; nil means everyone.
	UserIDs []string
	Frame   []byte
}

func NewHub(jwtVerifier *jwt.Verifier, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		Register:    make(chan *Client),
		unregister:  make(chan *Client, 16),
		broadcast:   make(chan *BroadcastMessage, 256),
		done:        make(chan struct{}),
		jwtVerifier: jwtVerifier,
		logger:      logger.Named("hub"),
	}
}

// AuthenticateClient validates an access token. An empty token yields an
// anonymous client; a bad one is rejected.
func (h *Hub) AuthenticateClient(token string) (*ClientAuth, error) {
	if token == "" {
		return &ClientAuth{}, nil
	}
	claims, err := h.jwtVerifier.VerifyAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &ClientAuth{
		UserID: claims.UserID,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.userID] == nil {
		h.clients[client.userID] = make(map[*Client]bool)
	}
	h.clients[client.userID][client] = true

	h.logger.Info("client connected",
		zap.String("user_id", client.userID),
		zap.Int("total", h.totalClients()),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.userID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			client.Close()

			if len(clients) == 0 {
				delete(h.clients, client.userID)
			}

			h.logger.Info("client disconnected",
				zap.String("user_id", client.userID),
				zap.Int("total", h.totalClients()),
			)
		}
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.UserIDs == nil {
		for _, clients := range h.clients {
			for client := range clients {
				client.SendFrame(msg.Frame)
			}
		}
		return
	}
	for _, userID := range msg.UserIDs {
		for client := range h.clients[userID] {
			client.SendFrame(msg.Frame)
		}
	}
}

// Broadcast queues {event, data} for every connected client.
func (h *Hub) Broadcast(event wstypes.EventType, data any) {
	env, err := wstypes.NewEnvelope(event, data)
	if err != nil {
		h.logger.Error("failed to encode push frame", zap.String("event", string(event)), zap.Error(err))
		return
	}
	frame, err := env.ToJSON()
	if err != nil {
		h.logger.Error("failed to encode push frame", zap.String("event", string(event)), zap.Error(err))
		return
	}
	h.enqueue(&BroadcastMessage{Frame: frame})
}

// SendRaw queues an arbitrary frame for every client. Used to exercise
// client tolerance of unknown and malformed frames.
func (h *Hub) SendRaw(frame []byte) {
	h.enqueue(&BroadcastMessage{Frame: frame})
}

func (h *Hub) enqueue(msg *BroadcastMessage) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

func (h *Hub) TotalClients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalClients()
}

// DisconnectUser closes every connection held by userID.
func (h *Hub) DisconnectUser(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[userID]; ok {
		for client := range clients {
			client.Close()
		}
		delete(h.clients, userID)
		h.logger.Info("disconnected all clients for user", zap.String("user_id", userID))
	}
}

func (h *Hub) totalClients() int {
	total := 0
	for _, clients := range h.clients {
		total += len(clients)
	}
	return total
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, clients := range h.clients {
		for client := range clients {
			client.Close()
		}
	}
	h.clients = make(map[string]map[*Client]bool)
}
