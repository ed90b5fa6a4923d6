package main

import (
	"fmt"
	"math"
	"math/rand/v2"
)

const (
	WorldSize = 200.0

	borderThickness = 2.0
	rockRingRadius  = 40.0
	rockCount       = 12
	rockRadius      = 2.5
	spawnAttempts   = 16
	spawnClearance  = 1.0
)

// Obstacle is static world geometry: a rock (circle) or a wall (rectangle)
type Obstacle struct {
	ID        string
	Kind      EntityKind
	X, Z      float64
	ModelType string
	Body      *CollisionBody
}

func NewStaticCircle(id string, x, z, radius float64, modelType string) *Obstacle {
	return &Obstacle{
		ID:        id,
		Kind:      KindStaticCircle,
		X:         x,
		Z:         z,
		ModelType: modelType,
		Body:      NewCircleBody(EntityRef{Kind: KindStaticCircle, ID: id}, x, z, radius),
	}
}

func NewStaticRectangle(id string, x, z, width, height float64, modelType string) *Obstacle {
	return &Obstacle{
		ID:        id,
		Kind:      KindStaticRectangle,
		X:         x,
		Z:         z,
		ModelType: modelType,
		Body:      NewRectangleBody(EntityRef{Kind: KindStaticRectangle, ID: id}, x, z, width, height),
	}
}

// DefaultLayout returns the fixed arena: border walls, a ring of rocks
// around the centre and four inner walls.
func DefaultLayout() []*Obstacle {
	half := WorldSize / 2
	edge := half + borderThickness/2
	span := WorldSize + 2*borderThickness

	obstacles := []*Obstacle{
		NewStaticRectangle("border-north", 0, -edge, span, borderThickness, "border"),
		NewStaticRectangle("border-south", 0, edge, span, borderThickness, "border"),
		NewStaticRectangle("border-west", -edge, 0, borderThickness, span, "border"),
		NewStaticRectangle("border-east", edge, 0, borderThickness, span, "border"),
	}

	for i := 0; i < rockCount; i++ {
		a := 2 * math.Pi * float64(i) / rockCount
		obstacles = append(obstacles, NewStaticCircle(
			fmt.Sprintf("rock-%d", i),
			rockRingRadius*math.Cos(a), rockRingRadius*math.Sin(a),
			rockRadius, "rock",
		))
	}

	wallOffset := half / 2
	obstacles = append(obstacles,
		NewStaticRectangle("wall-0", -wallOffset, -wallOffset, 20, 2, "wall"),
		NewStaticRectangle("wall-1", wallOffset, -wallOffset, 2, 20, "wall"),
		NewStaticRectangle("wall-2", wallOffset, wallOffset, 20, 2, "wall"),
		NewStaticRectangle("wall-3", -wallOffset, wallOffset, 2, 20, "wall"),
	)
	return obstacles
}

// randomCoordinate returns an integer coordinate in [-WorldSize/2, WorldSize/2]
func randomCoordinate(rng *rand.Rand) float64 {
	half := int(WorldSize / 2)
	return float64(rng.IntN(2*half+1) - half)
}

// SpawnPoint picks a random spawn position clear of every obstacle. After
// spawnAttempts misses the last candidate is used; the collision pass pushes
// it out on the first tick.
func SpawnPoint(rng *rand.Rand, obstacles []*Obstacle) (float64, float64) {
	var x, z float64
	for range spawnAttempts {
		x, z = randomCoordinate(rng), randomCoordinate(rng)
		probe := NewCircleBody(EntityRef{Kind: KindTank}, x, z, TankRadius+spawnClearance)
		if !overlapsAny(probe, obstacles) {
			break
		}
	}
	return x, z
}

func overlapsAny(probe *CollisionBody, obstacles []*Obstacle) bool {
	for _, o := range obstacles {
		switch o.Kind {
		case KindStaticCircle:
			if CircleCircleCollision(probe, o.Body, DetectOnly) {
				return true
			}
		case KindStaticRectangle:
			if CircleRectangleCollision(probe, o.Body, DetectOnly) {
				return true
			}
		}
	}
	return false
}
