package main

const (
	BulletRadius        = 0.1
	BulletSpeed         = -1.0 // units/tick, same sign convention as tank speed
	BulletLifetimeTicks = 720
)

// Bullet is a projectile fired by a tank. Invincible is copied from the
// firing tank at spawn and never changes.
type Bullet struct {
	ID         string
	ParentID   string
	X, Z       float64
	Angle      float64
	Invincible bool
	Body       *CollisionBody
	age        int
}

func NewBullet(id, parentID string, x, z, angle float64, invincible bool) *Bullet {
	return &Bullet{
		ID:         id,
		ParentID:   parentID,
		X:          x,
		Z:          z,
		Angle:      angle,
		Invincible: invincible,
		Body:       NewCircleBody(EntityRef{Kind: KindBullet, ID: id}, x, z, BulletRadius),
	}
}

// Update moves the bullet one tick and reports whether its lifetime is spent
func (b *Bullet) Update() bool {
	b.X, b.Z = advance(b.X, b.Z, b.Angle, BulletSpeed)
	b.Body.UpdateBody(b.X, b.Z)
	b.age++
	return b.age >= BulletLifetimeTicks
}

// Age returns how many ticks the bullet has lived
func (b *Bullet) Age() int {
	return b.age
}

// ExplosionAt reports where the bullet was when it detonated
func (b *Bullet) ExplosionAt() ExplosionEvent {
	return ExplosionEvent{X: b.X, Z: b.Z, Angle: b.Angle, ID: b.ID}
}
