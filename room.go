package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"
)

const (
	BroadcastRate  = 30 // state snapshots per second
	BroadcastEvery = TickRate / BroadcastRate
	roomInboxSize  = 256
)

var (
	ErrRoomFull   = errors.New("room full")
	ErrRoomClosed = errors.New("room closed")
	ErrDuplicate  = errors.New("identity already in room")
)

// Broadcaster interface for sending messages to clients
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

// RoomStatus is a point-in-time summary for the panel
type RoomStatus struct {
	ID        string   `json:"id"`
	Type      RoomType `json:"type"`
	Tick      uint64   `json:"tick"`
	Tanks     int      `json:"tanks"`
	Bullets   int      `json:"bullets"`
	Capacity  int      `json:"capacity"`
	Pending   int      `json:"pendingPayouts"`
	Balance   int64    `json:"balance"`
	Consensus bool     `json:"consensus"`
}

type joinReq struct {
	identity string
	name     string
	address  string
	client   Broadcaster
	reply    chan error
}

type leaveReq struct {
	identity string
}

type commandReq struct {
	identity string
	payload  any
}

type statusReq struct {
	reply chan RoomStatus
}

// Room drives one world. All world and queue state is owned by the Run
// goroutine; other goroutines talk to it through the inbox.
type Room struct {
	ID  string
	cfg Config
	log *slog.Logger

	world  *World
	clock  *SimulationClock
	queue  *SettlementQueue
	wallet Wallet
	rng    *rand.Rand

	clients   map[string]Broadcaster
	inbox     chan any
	balanceCh chan int64
	done      chan struct{}
	ctx       context.Context

	occupancy atomic.Int32
}

// NewRoom builds a room and its arena. wallet and recorder may be nil.
func NewRoom(id string, cfg Config, wallet Wallet, recorder PayoutRecorder, logger *slog.Logger) *Room {
	r := &Room{
		ID:        id,
		cfg:       cfg,
		log:       logger.With("room", id),
		world:     NewWorld(),
		wallet:    wallet,
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		clients:   make(map[string]Broadcaster),
		inbox:     make(chan any, roomInboxSize),
		balanceCh: make(chan int64, 1),
		done:      make(chan struct{}),
		ctx:       context.Background(),
	}
	r.queue = NewSettlementQueue(cfg, wallet, recorder, r.log)
	r.clock = NewSimulationClock(r.fixedUpdate)
	for _, o := range DefaultLayout() {
		r.world.AddObstacle(o)
	}
	return r
}

// Run processes the inbox and advances the clock until ctx is cancelled
func (r *Room) Run(ctx context.Context) error {
	r.ctx = ctx
	defer close(r.done)

	ticker := time.NewTicker(FixedStep)
	defer ticker.Stop()
	last := time.Now()

	r.log.Info("room: created", "type", r.cfg.RoomType, "capacity", r.cfg.MaxClients)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("room: disposed", "tick", r.world.Tick())
			return nil
		case msg := <-r.inbox:
			r.handle(msg)
		case bal := <-r.balanceCh:
			r.queue.SetBalance(bal)
		case now := <-ticker.C:
			r.frame(now.Sub(last))
			last = now
		}
	}
}

// Occupancy is safe to call from any goroutine
func (r *Room) Occupancy() int {
	return int(r.occupancy.Load())
}

// Join adds a tank and waits until the room has accepted or rejected it
func (r *Room) Join(ctx context.Context, identity, name, address string, client Broadcaster) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, joinReq{identity: identity, name: name, address: address, client: client, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRoomClosed
	}
}

// Leave removes the identity's tank
func (r *Room) Leave(ctx context.Context, identity string) error {
	return r.send(ctx, leaveReq{identity: identity})
}

// Command forwards one raw command payload
func (r *Room) Command(ctx context.Context, identity string, payload any) error {
	return r.send(ctx, commandReq{identity: identity, payload: payload})
}

// Status returns a summary taken between ticks
func (r *Room) Status(ctx context.Context) (RoomStatus, error) {
	reply := make(chan RoomStatus, 1)
	if err := r.send(ctx, statusReq{reply: reply}); err != nil {
		return RoomStatus{}, err
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return RoomStatus{}, ctx.Err()
	case <-r.done:
		return RoomStatus{}, ErrRoomClosed
	}
}

// NotifyBalance hands a wallet balance to the room. Only the newest value
// is kept if the room has not consumed the previous one.
func (r *Room) NotifyBalance(balance int64) {
	for {
		select {
		case r.balanceCh <- balance:
			return
		default:
		}
		select {
		case <-r.balanceCh:
		default:
		}
	}
}

func (r *Room) send(ctx context.Context, msg any) error {
	select {
	case r.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.done:
		return ErrRoomClosed
	}
}

func (r *Room) handle(msg any) {
	switch m := msg.(type) {
	case joinReq:
		m.reply <- r.handleJoin(m.identity, m.name, m.address, m.client)
	case leaveReq:
		r.handleLeave(m.identity)
	case commandReq:
		r.handleCommand(m.identity, m.payload)
	case statusReq:
		m.reply <- r.status()
	}
}

func (r *Room) handleJoin(identity, name, address string, client Broadcaster) error {
	if r.world.Tank(identity) != nil {
		return ErrDuplicate
	}
	if _, seated := r.clients[identity]; !seated && r.occupants() >= r.cfg.MaxClients {
		return ErrRoomFull
	}

	x, z := SpawnPoint(r.rng, r.world.Obstacles())
	angle := r.rng.Float64() * 2 * math.Pi
	t := NewTank(identity, name, address, x, z, angle)
	r.world.AddTank(t)
	if client != nil {
		r.clients[identity] = client
		client.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
			ID:        identity,
			Room:      r.ID,
			RoomType:  r.cfg.RoomType,
			WorldSize: WorldSize,
			Obstacles: obstacleStates(r.world.Obstacles()),
		}})
	}
	r.occupancy.Store(int32(r.occupants()))

	if r.cfg.RoomType == RoomPaid {
		r.queue.EnqueueGameFee()
	}
	r.log.Info("room: tank joined", "tank", identity, "x", x, "z", z)
	return nil
}

func (r *Room) handleLeave(identity string) {
	delete(r.clients, identity)
	t := r.world.RemoveTank(identity)
	r.occupancy.Store(int32(r.occupants()))
	if t == nil {
		return
	}
	if t.Health > 0 {
		r.queue.EnqueueRefund(t.Address, t.Health)
	}
	r.log.Info("room: tank left", "tank", identity, "health", t.Health)
}

// handleCommand drops payloads that are not command tokens, commands for
// unknown tanks and commands past the per-tick capacity.
func (r *Room) handleCommand(identity string, payload any) {
	t := r.world.Tank(identity)
	if t == nil {
		return
	}
	cmd, ok := ParseCommand(payload)
	if !ok {
		return
	}
	t.Enqueue(cmd)
}

func (r *Room) frame(delta time.Duration) {
	r.clock.Advance(delta)
}

// occupants counts connected clients, spectators included, plus tanks
// joined without a client
func (r *Room) occupants() int {
	n := len(r.clients)
	for _, t := range r.world.Tanks() {
		if _, ok := r.clients[t.ID]; !ok {
			n++
		}
	}
	return n
}

// fixedUpdate is one tick: world step, kill prizes, settlement drain, then
// broadcasts.
func (r *Room) fixedUpdate() {
	r.world.Step()

	for _, k := range r.world.DrainKills() {
		if k.ShooterAddress != "" {
			r.queue.EnqueuePrize(k.ShooterAddress)
		}
		r.log.Info("room: tank destroyed", "tank", k.TargetID, "by", k.ShooterID)
	}
	if n := r.occupants(); int32(n) != r.occupancy.Load() {
		r.occupancy.Store(int32(n))
	}

	if r.cfg.Monetized() {
		r.queue.Drain(r.ctx)
	}

	for _, ev := range r.world.DrainEvents() {
		r.broadcastJSON(Envelope{T: ev.Type, Data: ev.Explosion})
	}
	if r.world.Tick()%BroadcastEvery == 0 {
		r.broadcastState()
	}
}

func (r *Room) broadcastState() {
	if len(r.clients) == 0 {
		return
	}
	data, err := EncodeSnapshot(snapshotOf(r.world))
	if err != nil {
		r.log.Error("room: encode snapshot", "err", err)
		return
	}
	for _, c := range r.clients {
		c.SendBinary(data)
	}
}

func (r *Room) broadcastJSON(msg Envelope) {
	for _, c := range r.clients {
		c.SendJSON(msg)
	}
}

func (r *Room) status() RoomStatus {
	st := RoomStatus{
		ID:       r.ID,
		Type:     r.cfg.RoomType,
		Tick:     r.world.Tick(),
		Tanks:    r.world.TankCount(),
		Bullets:  r.world.BulletCount(),
		Capacity: r.cfg.MaxClients,
		Pending:  r.queue.Len(),
		Balance:  r.queue.Balance(),
	}
	if r.wallet != nil {
		st.Consensus = r.wallet.ConsensusEstablished()
	}
	return st
}
