package main

// Kill records a tank destroyed during a tick
type Kill struct {
	ShooterID      string
	ShooterAddress string
	TargetID       string
}

// World owns every entity in one room and runs the per-tick pipeline:
// update all entities, rebuild the index, resolve collisions and combat.
// Iteration follows insertion order so a tick is deterministic.
type World struct {
	tanks         map[string]*Tank
	tankOrder     []string
	bullets       map[string]*Bullet
	bulletOrder   []string
	obstacles     map[string]*Obstacle
	obstacleOrder []string

	index *SpatialIndex
	tick  uint64

	events []Event
	kills  []Kill

	// set when a correction moved a body during the current pass
	moved bool
}

func NewWorld() *World {
	return &World{
		tanks:     make(map[string]*Tank),
		bullets:   make(map[string]*Bullet),
		obstacles: make(map[string]*Obstacle),
		index:     NewSpatialIndex(SpatialCellSize),
	}
}

// Tick returns the number of completed fixed updates
func (w *World) Tick() uint64 {
	return w.tick
}

// AddTank registers a tank. An existing tank with the same id is replaced.
func (w *World) AddTank(t *Tank) {
	if _, ok := w.tanks[t.ID]; !ok {
		w.tankOrder = append(w.tankOrder, t.ID)
	}
	w.tanks[t.ID] = t
}

// RemoveTank deletes the tank and every bullet it fired. It returns the
// removed tank, or nil if none was registered.
func (w *World) RemoveTank(id string) *Tank {
	t, ok := w.tanks[id]
	if !ok {
		return nil
	}
	delete(w.tanks, id)
	w.tankOrder = removeID(w.tankOrder, id)

	for _, bid := range append([]string(nil), w.bulletOrder...) {
		if b := w.bullets[bid]; b != nil && b.ParentID == id {
			w.RemoveBullet(bid)
		}
	}
	return t
}

// Tank looks up a tank by id
func (w *World) Tank(id string) *Tank {
	return w.tanks[id]
}

// Tanks returns tanks in insertion order
func (w *World) Tanks() []*Tank {
	out := make([]*Tank, 0, len(w.tankOrder))
	for _, id := range w.tankOrder {
		out = append(out, w.tanks[id])
	}
	return out
}

func (w *World) TankCount() int {
	return len(w.tanks)
}

func (w *World) AddBullet(b *Bullet) {
	if _, ok := w.bullets[b.ID]; !ok {
		w.bulletOrder = append(w.bulletOrder, b.ID)
	}
	w.bullets[b.ID] = b
}

func (w *World) RemoveBullet(id string) {
	if _, ok := w.bullets[id]; !ok {
		return
	}
	delete(w.bullets, id)
	w.bulletOrder = removeID(w.bulletOrder, id)
}

func (w *World) Bullet(id string) *Bullet {
	return w.bullets[id]
}

// Bullets returns bullets in insertion order
func (w *World) Bullets() []*Bullet {
	out := make([]*Bullet, 0, len(w.bulletOrder))
	for _, id := range w.bulletOrder {
		out = append(out, w.bullets[id])
	}
	return out
}

func (w *World) BulletCount() int {
	return len(w.bullets)
}

func (w *World) AddObstacle(o *Obstacle) {
	if _, ok := w.obstacles[o.ID]; !ok {
		w.obstacleOrder = append(w.obstacleOrder, o.ID)
	}
	w.obstacles[o.ID] = o
}

// Obstacles returns static geometry in insertion order
func (w *World) Obstacles() []*Obstacle {
	out := make([]*Obstacle, 0, len(w.obstacleOrder))
	for _, id := range w.obstacleOrder {
		out = append(out, w.obstacles[id])
	}
	return out
}

// Index exposes the broad-phase grid as of the end of the last tick
func (w *World) Index() *SpatialIndex {
	return w.index
}

// DrainEvents returns and clears the events emitted since the last call
func (w *World) DrainEvents() []Event {
	ev := w.events
	w.events = nil
	return ev
}

// DrainKills returns and clears the kills recorded since the last call
func (w *World) DrainKills() []Kill {
	k := w.kills
	w.kills = nil
	return k
}

// Step runs one fixed update
func (w *World) Step() {
	w.tick++
	w.updateEntities()
	w.rebuildIndex()

	w.moved = false
	w.resolveCollisions()
	if w.moved {
		w.rebuildIndex()
	}
}

func (w *World) updateEntities() {
	for _, id := range append([]string(nil), w.tankOrder...) {
		if b := w.tanks[id].Update(); b != nil {
			w.AddBullet(b)
		}
	}

	for _, id := range append([]string(nil), w.bulletOrder...) {
		b := w.bullets[id]
		if _, ok := w.tanks[b.ParentID]; !ok {
			w.RemoveBullet(id)
			continue
		}
		if b.Update() {
			w.RemoveBullet(id)
		}
	}
}

func (w *World) rebuildIndex() {
	w.index.Clear()
	for _, id := range w.tankOrder {
		w.index.Register(w.tanks[id].Body)
	}
	for _, id := range w.bulletOrder {
		w.index.Register(w.bullets[id].Body)
	}
	for _, id := range w.obstacleOrder {
		w.index.Register(w.obstacles[id].Body)
	}
}

func (w *World) resolveCollisions() {
	for _, id := range append([]string(nil), w.tankOrder...) {
		if t, ok := w.tanks[id]; ok {
			w.resolveTank(t)
		}
	}
	for _, id := range append([]string(nil), w.bulletOrder...) {
		if b, ok := w.bullets[id]; ok {
			w.resolveBullet(b)
		}
	}
}

// resolveTank checks one tank against everything sharing its cells. Each
// neighbour is tested at most once per tank even when it spans several cells.
func (w *World) resolveTank(t *Tank) {
	self := t.Body.Owner
	checked := map[EntityRef]struct{}{self: {}}
	cells := append([]CellKey(nil), t.Body.Cells...)

	for _, key := range cells {
		for _, ref := range w.index.Query(key) {
			if _, seen := checked[ref]; seen {
				continue
			}
			checked[ref] = struct{}{}

			switch ref.Kind {
			case KindTank:
				other, ok := w.tanks[ref.ID]
				if !ok {
					continue
				}
				if CircleCircleCollision(t.Body, other.Body, PushBoth) {
					t.syncFromBody()
					other.syncFromBody()
					w.moved = true
				}
			case KindBullet:
				b, ok := w.bullets[ref.ID]
				if !ok || b.ParentID == t.ID {
					continue
				}
				if CircleCircleCollision(t.Body, b.Body, DetectOnly) {
					if w.resolveHit(t, b) {
						return
					}
				}
			case KindStaticCircle:
				o, ok := w.obstacles[ref.ID]
				if !ok {
					continue
				}
				if CircleCircleCollision(t.Body, o.Body, PushFirst) {
					t.syncFromBody()
					w.moved = true
				}
			case KindStaticRectangle:
				o, ok := w.obstacles[ref.ID]
				if !ok {
					continue
				}
				if CircleRectangleCollision(t.Body, o.Body, PushFirst) {
					t.syncFromBody()
					w.moved = true
				}
			}
		}
	}
}

// resolveBullet removes the bullet on its first contact with a tank it did
// not fire or with static geometry. Other bullets are ignored.
func (w *World) resolveBullet(b *Bullet) {
	for _, key := range append([]CellKey(nil), b.Body.Cells...) {
		for _, ref := range w.index.Query(key) {
			switch ref.Kind {
			case KindTank:
				t, ok := w.tanks[ref.ID]
				if !ok || t.ID == b.ParentID {
					continue
				}
				if CircleCircleCollision(t.Body, b.Body, DetectOnly) {
					w.resolveHit(t, b)
					return
				}
			case KindStaticCircle, KindStaticRectangle:
				o, ok := w.obstacles[ref.ID]
				if !ok || !bulletHitsObstacle(b, o) {
					continue
				}
				b.Body.Collided = true
				if !b.Invincible {
					w.emit(EventBulletExplosion, b.ExplosionAt())
				}
				w.RemoveBullet(b.ID)
				return
			}
		}
	}
}

func bulletHitsObstacle(b *Bullet, o *Obstacle) bool {
	if o.Kind == KindStaticRectangle {
		return CircleRectangleCollision(b.Body, o.Body, DetectOnly)
	}
	return CircleCircleCollision(b.Body, o.Body, DetectOnly)
}

// resolveHit applies combat between a bullet and the tank it touched and
// consumes the bullet. Damage only lands when neither side is invincible.
// It reports whether the target tank died.
func (w *World) resolveHit(target *Tank, b *Bullet) bool {
	b.Body.Collided = true
	defer w.RemoveBullet(b.ID)

	if b.Invincible || target.Invincible {
		return false
	}

	target.Body.Collided = true
	shooter := w.tanks[b.ParentID]
	if shooter != nil {
		shooter.Damage++
	}
	target.Health--
	w.emit(EventBulletExplosion, b.ExplosionAt())

	if target.Health > 0 {
		return false
	}
	target.Health = 0

	kill := Kill{TargetID: target.ID}
	if shooter != nil {
		shooter.Kills++
		kill.ShooterID = shooter.ID
		kill.ShooterAddress = shooter.Address
	}
	w.kills = append(w.kills, kill)
	w.emit(EventTankExplosion, ExplosionEvent{X: target.X, Z: target.Z, Angle: target.Angle, ID: target.ID})
	w.RemoveTank(target.ID)
	return true
}

func (w *World) emit(typ string, ev ExplosionEvent) {
	w.events = append(w.events, Event{Type: typ, Explosion: ev})
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
