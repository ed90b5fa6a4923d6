package main

import "math"

const (
	SpatialCellSize = 5.0 // several tank diameters (TankRadius=0.7)
)

// EntityKind tags what an EntityRef points at
type EntityKind byte

const (
	KindTank EntityKind = iota + 1
	KindBullet
	KindStaticCircle
	KindStaticRectangle
)

func (k EntityKind) String() string {
	switch k {
	case KindTank:
		return "tank"
	case KindBullet:
		return "bullet"
	case KindStaticCircle:
		return "staticCircle"
	case KindStaticRectangle:
		return "staticRectangle"
	}
	return "unknown"
}

// EntityRef identifies an entity in the grid. A ref can outlive its entity
// until the next rebuild, so lookups through it must tolerate a miss.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

// CellKey addresses one grid cell. Keys are unbounded so entities outside
// the play area still hash.
type CellKey struct {
	X, Z int
}

// SpatialIndex is a uniform grid hash for broad-phase collision queries
type SpatialIndex struct {
	cellSize float64
	cells    map[CellKey][]EntityRef
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = SpatialCellSize
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[CellKey][]EntityRef),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (s *SpatialIndex) Clear() {
	for k := range s.cells {
		s.cells[k] = s.cells[k][:0]
	}
}

// CellFor returns the key of the cell containing (x, z)
func (s *SpatialIndex) CellFor(x, z float64) CellKey {
	return CellKey{
		X: int(math.Floor(x / s.cellSize)),
		Z: int(math.Floor(z / s.cellSize)),
	}
}

// Register adds the body to every cell its bounding box touches and records
// those keys on the body.
func (s *SpatialIndex) Register(b *CollisionBody) {
	half := b.halfExtent()
	lo := s.CellFor(b.X-half, b.Z-half)
	hi := s.CellFor(b.X+half, b.Z+half)

	b.Cells = b.Cells[:0]
	for cz := lo.Z; cz <= hi.Z; cz++ {
		for cx := lo.X; cx <= hi.X; cx++ {
			key := CellKey{X: cx, Z: cz}
			s.cells[key] = append(s.cells[key], b.Owner)
			b.Cells = append(b.Cells, key)
		}
	}
}

// Query returns the refs in one cell. The slice is owned by the index and
// is only valid until the next Clear.
func (s *SpatialIndex) Query(key CellKey) []EntityRef {
	return s.cells[key]
}

// Occupied counts cells that currently hold at least one ref
func (s *SpatialIndex) Occupied() int {
	n := 0
	for _, refs := range s.cells {
		if len(refs) > 0 {
			n++
		}
	}
	return n
}
