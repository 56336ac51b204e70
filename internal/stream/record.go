package stream

import (
	"errors"
	"math"
	"math/rand/v2"
)

const (
	minRevenue   = 100_000.0
	maxRevenue   = 100_000_000.0
	minEmployees = 10
	maxEmployees = 10_000
)

// Record is one synthetic business location.
type Record struct {
	ID        uint64  `json:"id"`
	Name      string  `json:"name"`
	Industry  string  `json:"industry"`
	Revenue   float64 `json:"revenue"`
	Employees uint32  `json:"employees"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
}

// Pools is the vocabulary records are drawn from. It must not be modified
// once handed to a Source.
type Pools struct {
	Names      []string
	Industries []string
	Cities     []string
	States     []string
	Countries  []string
}

// Validate checks that every pool has at least one value.
func (p Pools) Validate() error {
	switch {
	case len(p.Names) == 0:
		return errors.New("pools: no names")
	case len(p.Industries) == 0:
		return errors.New("pools: no industries")
	case len(p.Cities) == 0:
		return errors.New("pools: no cities")
	case len(p.States) == 0:
		return errors.New("pools: no states")
	case len(p.Countries) == 0:
		return errors.New("pools: no countries")
	}
	return nil
}

// Source produces records from shared read-only pools. It holds no mutable
// state; callers bring their own random generator.
type Source struct {
	pools      Pools
	width      int // shortest of the name/industry/city/state pools
	valueBytes int // longest values a record can draw, summed
}

// NewSource returns a Source over pools.
func NewSource(pools Pools) (*Source, error) {
	if err := pools.Validate(); err != nil {
		return nil, err
	}

	width := len(pools.Names)
	for _, n := range []int{len(pools.Industries), len(pools.Cities), len(pools.States)} {
		if n < width {
			width = n
		}
	}

	valueBytes := longest(pools.Countries)
	for _, p := range [][]string{pools.Names, pools.Industries, pools.Cities, pools.States} {
		valueBytes += longest(p[:width])
	}

	return &Source{pools: pools, width: width, valueBytes: valueBytes}, nil
}

// ValueBytes is the byte length of the longest string values one record can
// carry.
func (s *Source) ValueBytes() int { return s.valueBytes }

func longest(values []string) int {
	n := 0
	for _, v := range values {
		n = max(n, len(v))
	}
	return n
}

// Next generates the record with the given id.
// One pool index is shared by name, industry, city and state so a name keeps
// a stable location; the country is drawn on its own.
func (s *Source) Next(rng *rand.Rand, id uint64) Record {
	i := rng.IntN(s.width)
	return Record{
		ID:        id,
		Name:      s.pools.Names[i],
		Industry:  s.pools.Industries[i],
		Revenue:   math.Round((minRevenue+rng.Float64()*(maxRevenue-minRevenue))*100) / 100,
		Employees: uint32(minEmployees + rng.IntN(maxEmployees-minEmployees)),
		City:      s.pools.Cities[i],
		State:     s.pools.States[i],
		Country:   s.pools.Countries[rng.IntN(len(s.pools.Countries))],
	}
}

// taskRand returns the generator owned by one task. It depends only on the
// stream seed and the sequence index.
func taskRand(seed, seq uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seq))
}
