package main

import "math"

// CollisionEpsilon is the gap left between bodies after a positional correction
const CollisionEpsilon = 0.01

// Shape of a collision body
type Shape byte

const (
	ShapeCircle Shape = iota + 1
	ShapeRectangle
)

// Response selects what a narrow-phase test does once it finds an overlap
type Response byte

const (
	// DetectOnly reports the overlap and moves nothing
	DetectOnly Response = iota
	// PushFirst moves only the first body out of the second
	PushFirst
	// PushBoth splits the correction evenly between the two bodies
	PushBoth
)

// CollisionBody is the collision footprint of one entity. Rectangles are
// axis-aligned; Width spans x and Height spans z.
type CollisionBody struct {
	Owner  EntityRef
	Shape  Shape
	X, Z   float64
	Radius float64
	Width  float64
	Height float64

	// Collided is set by any response involving this body and cleared when
	// the owner next writes its position back.
	Collided bool

	// Cells the body was registered under during the last rebuild
	Cells []CellKey
}

func NewCircleBody(owner EntityRef, x, z, radius float64) *CollisionBody {
	return &CollisionBody{Owner: owner, Shape: ShapeCircle, X: x, Z: z, Radius: radius}
}

func NewRectangleBody(owner EntityRef, x, z, width, height float64) *CollisionBody {
	return &CollisionBody{Owner: owner, Shape: ShapeRectangle, X: x, Z: z, Width: width, Height: height}
}

// UpdateBody moves the body to the owner's new position and clears Collided
func (b *CollisionBody) UpdateBody(x, z float64) {
	b.X = x
	b.Z = z
	b.Collided = false
}

func (b *CollisionBody) halfExtent() float64 {
	if b.Shape == ShapeRectangle {
		return math.Max(b.Width, b.Height) / 2
	}
	return b.Radius
}

// CircleCircleCollision tests two circles. Touching counts as a hit. When a
// correction is applied the bodies end CollisionEpsilon apart along the line
// between their centres; coincident centres separate along +x.
func CircleCircleCollision(a, b *CollisionBody, resp Response) bool {
	dx := a.X - b.X
	dz := a.Z - b.Z
	dist := math.Sqrt(dx*dx + dz*dz)
	radSum := a.Radius + b.Radius
	if dist > radSum {
		return false
	}
	if resp == DetectOnly {
		return true
	}

	nx, nz := 1.0, 0.0
	if dist > 0 {
		nx, nz = dx/dist, dz/dist
	}
	correction := radSum + CollisionEpsilon - dist

	switch resp {
	case PushBoth:
		half := correction / 2
		a.X += nx * half
		a.Z += nz * half
		b.X -= nx * half
		b.Z -= nz * half
		b.Collided = true
	default:
		a.X += nx * correction
		a.Z += nz * correction
	}
	a.Collided = true
	return true
}

// CircleRectangleCollision tests a circle against an axis-aligned rectangle
// and, unless resp is DetectOnly, pushes the circle out. The rectangle never
// moves.
func CircleRectangleCollision(c, r *CollisionBody, resp Response) bool {
	minX, maxX := r.X-r.Width/2, r.X+r.Width/2
	minZ, maxZ := r.Z-r.Height/2, r.Z+r.Height/2

	closestX := Clamp(c.X, minX, maxX)
	closestZ := Clamp(c.Z, minZ, maxZ)
	dx := c.X - closestX
	dz := c.Z - closestZ
	dist2 := dx*dx + dz*dz
	if dist2 > c.Radius*c.Radius {
		return false
	}
	if resp == DetectOnly {
		return true
	}

	if dist2 > 0 {
		dist := math.Sqrt(dist2)
		correction := c.Radius + CollisionEpsilon - dist
		c.X += dx / dist * correction
		c.Z += dz / dist * correction
		c.Collided = true
		return true
	}

	// Centre inside the rectangle: exit through the nearest edge
	exitX := minX - c.Radius - CollisionEpsilon
	depthX := c.X - minX
	if maxX-c.X < depthX {
		exitX = maxX + c.Radius + CollisionEpsilon
		depthX = maxX - c.X
	}
	exitZ := minZ - c.Radius - CollisionEpsilon
	depthZ := c.Z - minZ
	if maxZ-c.Z < depthZ {
		exitZ = maxZ + c.Radius + CollisionEpsilon
		depthZ = maxZ - c.Z
	}
	if depthX <= depthZ {
		c.X = exitX
	} else {
		c.Z = exitZ
	}
	c.Collided = true
	return true
}
