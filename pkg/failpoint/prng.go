package failpoint

import (
	"context"
	"math/rand/v2"
)

// PRNG is the pseudo-random source that probabilistic fail points draw from.
// A PRNG belongs to a single goroutine; attach it to that goroutine's context
// with WithPRNG to make its random activations reproducible.
type PRNG struct {
	r *rand.Rand
}

// NewPRNG returns a PRNG seeded with seed.
func NewPRNG(seed int32) *PRNG {
	p := &PRNG{}
	p.Reseed(seed)
	return p
}

// Reseed resets the sequence of p to the one produced by seed.
func (p *PRNG) Reseed(seed int32) {
	s := uint64(uint32(seed))
	p.r = rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// NextPositiveInt32 returns a pseudo-random value in [0, MaxInt32].
func (p *PRNG) NextPositiveInt32() int32 {
	return p.r.Int32()
}

type prngKey struct{}

// WithPRNG returns a context carrying p. Evaluations performed with the
// returned context draw from p.
func WithPRNG(ctx context.Context, p *PRNG) context.Context {
	return context.WithValue(ctx, prngKey{}, p)
}

// WithRandomSeed returns a context carrying a fresh PRNG seeded with seed.
func WithRandomSeed(ctx context.Context, seed int32) context.Context {
	return WithPRNG(ctx, NewPRNG(seed))
}

// PRNGFromContext returns the PRNG attached to ctx, if any.
func PRNGFromContext(ctx context.Context) (*PRNG, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(prngKey{}).(*PRNG)
	return p, ok && p != nil
}

// nextPositiveInt32 draws from the context PRNG, or from the runtime's
// per-P generator when none is attached.
func nextPositiveInt32(ctx context.Context) int32 {
	if p, ok := PRNGFromContext(ctx); ok {
		return p.NextPositiveInt32()
	}
	return rand.Int32()
}
