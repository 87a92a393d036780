package world

import (
	"math/rand"
)

// Deposit is a foragable pile of resources at a fixed position.
type Deposit struct {
	Position Point   `json:"position"`
	Size     float64 `json:"amount"`
}

// Harvest describes the outcome of one foraging attempt.
type Harvest struct {
	Amount   float64
	Position Point
	Depleted bool // The deposit reached zero and left the field
}

// Field holds the remaining deposits in iteration order.
// Deposits are never replenished.
type Field struct {
	deposits []*Deposit
}

// NewField creates a field from the given deposits. Empty deposits are dropped.
func NewField(deposits []Deposit) *Field {
	f := &Field{deposits: make([]*Deposit, 0, len(deposits))}
	for _, d := range deposits {
		if d.Size <= 0 {
			continue
		}
		d := d
		f.deposits = append(f.deposits, &d)
	}
	return f
}

// Forage gathers from the first deposit (in iteration order, not the nearest)
// lying within radius of pos. The amount is min(size, draw) where draw is
// uniform in [minQty, maxQty]. At most one deposit is touched per call.
func (f *Field) Forage(pos Point, radius float64, minQty, maxQty int, rng *rand.Rand) (Harvest, bool) {
	for i, d := range f.deposits {
		if Distance(pos, d.Position) > radius {
			continue
		}

		draw := float64(minQty + rng.Intn(maxQty-minQty+1))
		gathered := d.Size
		if draw < gathered {
			gathered = draw
		}
		d.Size -= gathered

		h := Harvest{Amount: gathered, Position: d.Position}
		if d.Size <= 0 {
			f.deposits = append(f.deposits[:i], f.deposits[i+1:]...)
			h.Depleted = true
		}
		return h, true
	}
	return Harvest{}, false
}

// Deposits returns a copy of the remaining deposits.
func (f *Field) Deposits() []Deposit {
	out := make([]Deposit, len(f.deposits))
	for i, d := range f.deposits {
		out[i] = *d
	}
	return out
}

// Len returns the number of remaining deposits.
func (f *Field) Len() int {
	return len(f.deposits)
}

// Total returns the summed size of all remaining deposits.
func (f *Field) Total() float64 {
	total := 0.0
	for _, d := range f.deposits {
		total += d.Size
	}
	return total
}
