package main

import (
	"context"
	"log/slog"
	"sync"
)

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and routes them to rooms
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      *RoomManager
	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	cfg    Config
	auth   *Auth
	wallet *WalletClient // nil in free rooms
	log    *slog.Logger

	// Entry payments already spent on a join, by transaction hash
	proofMu    sync.Mutex
	usedProofs map[string]struct{}
}

// NewHub creates a Hub. wallet may be nil.
func NewHub(cfg Config, rooms *RoomManager, auth *Auth, wallet *WalletClient, logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		rooms:      rooms,
		ipConns:    make(map[string]int),
		cfg:        cfg,
		auth:       auth,
		wallet:     wallet,
		log:        logger,
		usedProofs: make(map[string]struct{}),
	}
}

// ClaimProof marks an entry payment as spent. It returns false if the
// payment was already used for a join.
func (h *Hub) ClaimProof(proof PaymentProof) bool {
	tx, err := proof.Decode()
	if err != nil {
		return false
	}
	hash := tx.Hash()

	h.proofMu.Lock()
	defer h.proofMu.Unlock()
	if _, used := h.usedProofs[hash]; used {
		return false
	}
	h.usedProofs[hash] = struct{}{}
	return true
}

// ReleaseProof frees a claimed payment whose join did not complete
func (h *Hub) ReleaseProof(proof PaymentProof) {
	tx, err := proof.Decode()
	if err != nil {
		return
	}
	h.proofMu.Lock()
	delete(h.usedProofs, tx.Hash())
	h.proofMu.Unlock()
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events until ctx is cancelled
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			// Remove from room if in one
			client.leaveRoom(ctx)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
