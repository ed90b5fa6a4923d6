package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

const maxRooms = 100

var ErrTooManyRooms = errors.New("room limit reached")

// RoomManager creates rooms on demand and runs each in its own goroutine
type RoomManager struct {
	cfg     Config
	wallet  *WalletClient
	journal *Journal
	log     *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*Room
	order []string

	group *errgroup.Group
	ctx   context.Context
}

// NewRoomManager creates a manager. wallet and journal may be nil.
func NewRoomManager(cfg Config, wallet *WalletClient, journal *Journal, logger *slog.Logger) *RoomManager {
	m := &RoomManager{
		cfg:     cfg,
		wallet:  wallet,
		journal: journal,
		log:     logger,
		rooms:   make(map[string]*Room),
	}
	if wallet != nil {
		wallet.OnBalance(m.broadcastBalance)
	}
	return m
}

// Start binds the manager to ctx; every room stops when ctx is cancelled
func (m *RoomManager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.group, m.ctx = errgroup.WithContext(ctx)
}

// Wait blocks until the manager's context is done and every room has stopped
func (m *RoomManager) Wait() error {
	m.mu.RLock()
	g, ctx := m.group, m.ctx
	m.mu.RUnlock()
	if g == nil {
		return nil
	}
	<-ctx.Done()
	return g.Wait()
}

// JoinOrCreate returns the oldest room with a free slot, creating one when
// all are full.
func (m *RoomManager) JoinOrCreate() (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		if r := m.rooms[id]; r.Occupancy() < m.cfg.MaxClients {
			return r, nil
		}
	}
	if m.group == nil {
		return nil, fmt.Errorf("rooms: manager not started")
	}
	if len(m.rooms) >= maxRooms {
		return nil, ErrTooManyRooms
	}

	id := GenerateID(4)
	var recorder PayoutRecorder
	if m.journal != nil {
		recorder = m.journal.ForRoom(id)
	}
	var wallet Wallet
	if m.wallet != nil {
		wallet = m.wallet
	}
	r := NewRoom(id, m.cfg, wallet, recorder, m.log)
	if m.wallet != nil {
		r.NotifyBalance(m.wallet.TemporaryBalance())
	}

	m.rooms[id] = r
	m.order = append(m.order, id)
	m.group.Go(func() error { return r.Run(m.ctx) })
	return r, nil
}

// Get returns a room by ID
func (m *RoomManager) Get(id string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

// Rooms returns rooms in creation order
func (m *RoomManager) Rooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.rooms[id])
	}
	return out
}

// Statuses collects a status from every room
func (m *RoomManager) Statuses(ctx context.Context) []RoomStatus {
	var out []RoomStatus
	for _, r := range m.Rooms() {
		st, err := r.Status(ctx)
		if err != nil {
			m.log.Warn("rooms: status", "room", r.ID, "err", err)
			continue
		}
		out = append(out, st)
	}
	return out
}

func (m *RoomManager) broadcastBalance(balance int64) {
	for _, r := range m.Rooms() {
		r.NotifyBalance(balance)
	}
}
