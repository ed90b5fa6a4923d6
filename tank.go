package main

import (
	"math"
	"strconv"
)

const (
	TankRadius             = 0.7
	TankMaxHealth          = 5
	TankSpeedLimit         = 0.5                       // units/tick
	TankAcceleration       = TankSpeedLimit / TickRate // units/tick²
	TankRotationLimit      = 2.5 * math.Pi / 180       // rad/tick
	TankRotationAccel      = 6.25 / TickRate * math.Pi / 180
	TankCommandCapacity    = 10  // buffered commands per tick
	TankShootCooldownTicks = 15  // ticks between shots
	TankInvincibleTicks    = 300 // ticks of spawn protection
	BulletSpawnOffset      = 0.95
)

// Command is one discrete player input
type Command byte

const (
	CmdUpKeyDown Command = iota + 1
	CmdUpKeyUp
	CmdDownKeyDown
	CmdDownKeyUp
	CmdLeftKeyDown
	CmdLeftKeyUp
	CmdRightKeyDown
	CmdRightKeyUp
	CmdShootDown
)

var commandTokens = map[string]Command{
	"upKeyDown":    CmdUpKeyDown,
	"upKeyUp":      CmdUpKeyUp,
	"downKeyDown":  CmdDownKeyDown,
	"downKeyUp":    CmdDownKeyUp,
	"leftKeyDown":  CmdLeftKeyDown,
	"leftKeyUp":    CmdLeftKeyUp,
	"rightKeyDown": CmdRightKeyDown,
	"rightKeyUp":   CmdRightKeyUp,
	"shootDown":    CmdShootDown,
}

// ParseCommand maps a wire payload to a Command. Anything that is not one
// of the known string tokens is rejected.
func ParseCommand(payload any) (Command, bool) {
	s, ok := payload.(string)
	if !ok {
		return 0, false
	}
	cmd, ok := commandTokens[s]
	return cmd, ok
}

// Tank is one player's vehicle. Speed is signed: forward thrust drives it
// negative along (cos, -sin) of the heading.
type Tank struct {
	ID      string
	Name    string
	Address string

	X, Z  float64
	Angle float64

	Health     int
	Damage     int // hits landed
	Kills      int
	Invincible bool

	Body *CollisionBody

	commands      []Command
	speed         float64
	rotationSpeed float64

	forward     bool
	backward    bool
	rotateLeft  bool
	rotateRight bool

	canShoot        bool
	shootTicks      int
	invincibleTicks int
	bulletsFired    int
}

// NewTank creates a tank with full health and spawn protection active
func NewTank(id, name, address string, x, z, angle float64) *Tank {
	return &Tank{
		ID:         id,
		Name:       name,
		Address:    address,
		X:          x,
		Z:          z,
		Angle:      PositiveAngle(angle),
		Health:     TankMaxHealth,
		Invincible: true,
		canShoot:   true,
		Body:       NewCircleBody(EntityRef{Kind: KindTank, ID: id}, x, z, TankRadius),
		commands:   make([]Command, 0, TankCommandCapacity),
	}
}

// Enqueue buffers a command for the next tick. Commands past capacity are
// dropped and false is returned.
func (t *Tank) Enqueue(cmd Command) bool {
	if len(t.commands) >= TankCommandCapacity {
		return false
	}
	t.commands = append(t.commands, cmd)
	return true
}

// Pending returns the number of buffered commands
func (t *Tank) Pending() int {
	return len(t.commands)
}

// Speed returns the current signed linear speed
func (t *Tank) Speed() float64 {
	return t.speed
}

// RotationSpeed returns the current rotation speed magnitude
func (t *Tank) RotationSpeed() float64 {
	return t.rotationSpeed
}

// Update advances the tank one tick and returns the bullet it fired, if any.
// If the previous collision pass flagged the body, the position is held for
// this tick.
func (t *Tank) Update() *Bullet {
	fired := t.processCommands()

	t.decelerate()
	t.accelerate()
	t.limitTopSpeed()
	if t.forward && t.backward {
		t.speed = 0
	}
	t.updateRotation()

	if !t.Body.Collided {
		t.X, t.Z = advance(t.X, t.Z, t.Angle, t.speed)
	}
	t.Body.UpdateBody(t.X, t.Z)

	t.updateInvincibility()
	t.updateShooting()
	return fired
}

func (t *Tank) processCommands() *Bullet {
	var fired *Bullet
	for _, cmd := range t.commands {
		switch cmd {
		case CmdUpKeyDown:
			t.forward = true
		case CmdUpKeyUp:
			t.forward = false
		case CmdDownKeyDown:
			t.backward = true
		case CmdDownKeyUp:
			t.backward = false
		case CmdLeftKeyDown:
			t.rotateLeft = true
		case CmdLeftKeyUp:
			t.rotateLeft = false
			t.stopRotation()
		case CmdRightKeyDown:
			t.rotateRight = true
		case CmdRightKeyUp:
			t.rotateRight = false
			t.stopRotation()
		case CmdShootDown:
			if b := t.shoot(); b != nil {
				fired = b
			}
		}
	}
	t.commands = t.commands[:0]
	return fired
}

func (t *Tank) stopRotation() {
	if !t.rotateLeft && !t.rotateRight {
		t.rotationSpeed = 0
	}
}

func (t *Tank) decelerate() {
	if t.forward || t.backward {
		return
	}
	if t.speed > 0 {
		t.speed = math.Max(0, t.speed-TankAcceleration)
	} else if t.speed < 0 {
		t.speed = math.Min(0, t.speed+TankAcceleration)
	}
}

func (t *Tank) accelerate() {
	if t.forward {
		t.speed -= TankAcceleration
	}
	if t.backward {
		t.speed += TankAcceleration
	}
}

func (t *Tank) limitTopSpeed() {
	t.speed = Clamp(t.speed, -TankSpeedLimit, TankSpeedLimit)
}

func (t *Tank) updateRotation() {
	switch {
	case t.rotateLeft && !t.rotateRight:
		t.rotate(-1)
	case t.rotateRight && !t.rotateLeft:
		t.rotate(1)
	}
}

// rotate turns the tank one tick in direction (-1 left, +1 right)
func (t *Tank) rotate(direction float64) {
	t.rotationSpeed = math.Min(t.rotationSpeed+TankRotationAccel, TankRotationLimit)
	t.Angle = PositiveAngle(t.Angle + direction*t.rotationSpeed)
}

func (t *Tank) shoot() *Bullet {
	if !t.canShoot {
		return nil
	}
	t.canShoot = false
	t.shootTicks = 0
	t.bulletsFired++
	x := t.X - BulletSpawnOffset*math.Cos(t.Angle)
	z := t.Z - BulletSpawnOffset*-math.Sin(t.Angle)
	id := t.ID + "-" + strconv.Itoa(t.bulletsFired)
	return NewBullet(id, t.ID, x, z, t.Angle, t.Invincible)
}

func (t *Tank) updateShooting() {
	if t.canShoot {
		return
	}
	t.shootTicks++
	if t.shootTicks >= TankShootCooldownTicks {
		t.canShoot = true
		t.shootTicks = 0
	}
}

func (t *Tank) updateInvincibility() {
	if !t.Invincible {
		return
	}
	t.invincibleTicks++
	if t.invincibleTicks >= TankInvincibleTicks {
		t.Invincible = false
	}
}

// syncFromBody takes over a positional correction applied to the body
func (t *Tank) syncFromBody() {
	t.X = t.Body.X
	t.Z = t.Body.Z
}

// advance moves a point along heading angle by the signed speed
func advance(x, z, angle, speed float64) (float64, float64) {
	return x + speed*math.Cos(angle), z + speed*-math.Sin(angle)
}
