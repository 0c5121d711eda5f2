package rng

import (
	"context"
	"math/rand"

	"govariant/ports"
)

// Adapter derives independent deterministic streams from a base seed.
// The stream name is mixed into the seed so "split/label-0" and
// "forest/tree-3" never share a sequence for the same base seed.
type Adapter struct{}

var _ ports.RNGPort = (*Adapter)(nil)

// New returns the deterministic RNG adapter.
func New() *Adapter {
	return &Adapter{}
}

// SeededStream creates a deterministic random number generator for a named operation
func (a *Adapter) SeededStream(ctx context.Context, name string, seed int64) (*rand.Rand, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rand.New(rand.NewSource(StreamSeed(name, seed))), nil
}

// StreamSeed combines a stream name and base seed into one source seed.
func StreamSeed(name string, seed int64) int64 {
	if name == "" {
		return seed
	}
	return int64(hashString(name))<<1 ^ seed
}

// hashString creates a simple hash for deterministic seeding
func hashString(s string) uint32 {
	var hash uint32 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint32(c) // djb2
	}
	return hash
}
