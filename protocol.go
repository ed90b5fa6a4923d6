package main

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Client -> Server message types
const (
	MsgJoin    = "join"
	MsgLeave   = "leave"
	MsgCommand = "command"
)

// Server -> Client message types
const (
	MsgWelcome = "welcome"
	MsgLeft    = "left"
	MsgError   = "error"

	EventTankExplosion   = "hexTankExplosion"
	EventBulletExplosion = "bulletExplosion"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; D is decoded per message type
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg carries the signed join ticket
type JoinMsg struct {
	Ticket string `json:"ticket"`
}

// ExplosionEvent is the payload of both explosion broadcasts
type ExplosionEvent struct {
	X     float64 `json:"x" msgpack:"x"`
	Z     float64 `json:"z" msgpack:"z"`
	Angle float64 `json:"angle" msgpack:"angle"`
	ID    string  `json:"id" msgpack:"id"`
}

// Event is one broadcast emitted by the world during a tick
type Event struct {
	Type      string
	Explosion ExplosionEvent
}

// TankState is sent per tank in each snapshot
type TankState struct {
	ID         string  `json:"id" msgpack:"id"`
	Name       string  `json:"n" msgpack:"n"`
	X          float64 `json:"x" msgpack:"x"`
	Z          float64 `json:"z" msgpack:"z"`
	Angle      float64 `json:"a" msgpack:"a"`
	Health     int     `json:"hp" msgpack:"hp"`
	Damage     int     `json:"dmg" msgpack:"dmg"`
	Kills      int     `json:"k" msgpack:"k"`
	Invincible bool    `json:"inv,omitempty" msgpack:"inv,omitempty"`
}

// BulletState is sent per bullet in each snapshot
type BulletState struct {
	ID     string  `json:"id" msgpack:"id"`
	Parent string  `json:"p" msgpack:"p"`
	X      float64 `json:"x" msgpack:"x"`
	Z      float64 `json:"z" msgpack:"z"`
	Angle  float64 `json:"a" msgpack:"a"`
}

// ObstacleState describes static geometry, sent once on welcome
type ObstacleState struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind"`
	Model  string  `json:"model"`
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	Radius float64 `json:"r,omitempty"`
	Width  float64 `json:"w,omitempty"`
	Height float64 `json:"h,omitempty"`
}

// GameState is the binary snapshot broadcast
type GameState struct {
	Tanks   []TankState   `json:"t" msgpack:"t"`
	Bullets []BulletState `json:"b" msgpack:"b"`
	Tick    uint64        `json:"tick" msgpack:"tick"`
}

// WelcomeMsg is sent to a tank's owner when it joins
type WelcomeMsg struct {
	ID        string          `json:"id"`
	Room      string          `json:"room"`
	RoomType  RoomType        `json:"type"`
	WorldSize float64         `json:"size"`
	Obstacles []ObstacleState `json:"obstacles"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// EncodeSnapshot serialises a snapshot for a binary websocket frame
func EncodeSnapshot(gs *GameState) ([]byte, error) {
	return msgpack.Marshal(gs)
}

// DecodeSnapshot is the inverse of EncodeSnapshot
func DecodeSnapshot(data []byte) (*GameState, error) {
	var gs GameState
	if err := msgpack.Unmarshal(data, &gs); err != nil {
		return nil, err
	}
	return &gs, nil
}

func snapshotOf(w *World) *GameState {
	gs := &GameState{Tick: w.Tick()}
	for _, t := range w.Tanks() {
		gs.Tanks = append(gs.Tanks, TankState{
			ID:         t.ID,
			Name:       t.Name,
			X:          round2(t.X),
			Z:          round2(t.Z),
			Angle:      round2(t.Angle),
			Health:     t.Health,
			Damage:     t.Damage,
			Kills:      t.Kills,
			Invincible: t.Invincible,
		})
	}
	for _, b := range w.Bullets() {
		gs.Bullets = append(gs.Bullets, BulletState{
			ID:     b.ID,
			Parent: b.ParentID,
			X:      round2(b.X),
			Z:      round2(b.Z),
			Angle:  round2(b.Angle),
		})
	}
	return gs
}

func obstacleStates(obstacles []*Obstacle) []ObstacleState {
	out := make([]ObstacleState, 0, len(obstacles))
	for _, o := range obstacles {
		out = append(out, ObstacleState{
			ID:     o.ID,
			Kind:   o.Kind.String(),
			Model:  o.ModelType,
			X:      o.X,
			Z:      o.Z,
			Radius: o.Body.Radius,
			Width:  o.Body.Width,
			Height: o.Body.Height,
		})
	}
	return out
}
