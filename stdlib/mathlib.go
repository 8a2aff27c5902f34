package stdlib

import (
	"encoding/binary"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/crypto/blake2b"

	"github.com/taintscript/seclua/value"
	"github.com/taintscript/seclua/vm"
)

// registerMathLib installs the `math` table. math.random is backed by a
// math/rand.Rand seeded through blake2b (spec DOMAIN STACK table: "seed-
// quality RNG path for math.random reseeding... the 'secure RNG...
// opaque service' §1 names"); spec.md treats the RNG itself as an
// opaque external service, so only the *reseeding* path is concrete
// here, not a claim that every math.random draw is cryptographically
// secure.
func registerMathLib(tbl *vm.Table) {
	src := newSeededSource()
	rng := rand.New(src)
	var mu sync.Mutex

	register(tbl, "random", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		switch len(args) {
		case 0:
			return []value.Value{value.Num(rng.Float64())}, nil
		case 1:
			m, _ := argNumber(args, 0)
			return []value.Value{value.Num(float64(rng.Intn(int(m)) + 1))}, nil
		default:
			lo, _ := argNumber(args, 0)
			hi, _ := argNumber(args, 1)
			n := int(hi) - int(lo) + 1
			if n <= 0 {
				return []value.Value{value.Num(lo)}, nil
			}
			return []value.Value{value.Num(float64(int(lo) + rng.Intn(n)))}, nil
		}
	})
	register(tbl, "randomseed", func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		n, _ := argNumber(args, 0)
		src.reseed(uint64(n))
		return nil, nil
	})

	register(tbl, "floor", unary(math.Floor))
	register(tbl, "ceil", unary(math.Ceil))
	register(tbl, "abs", unary(math.Abs))
	register(tbl, "sqrt", unary(math.Sqrt))
	register(tbl, "max", variadic(math.Max, math.Inf(-1)))
	register(tbl, "min", variadic(math.Min, math.Inf(1)))

	tbl.RawSet(value.Str("pi"), value.Num(math.Pi))
	tbl.RawSet(value.Str("huge"), value.Num(math.Inf(1)))
}

func unary(f func(float64) float64) vm.GoFunction {
	return func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		n, _ := argNumber(args, 0)
		return []value.Value{value.Num(f(n))}, nil
	}
}

func variadic(f func(a, b float64) float64, identity float64) vm.GoFunction {
	return func(th *vm.Thread, args []value.Value) ([]value.Value, error) {
		acc := identity
		for _, a := range args {
			if a.Type == value.TypeNumber {
				acc = f(acc, a.Number)
			}
		}
		return []value.Value{value.Num(acc)}, nil
	}
}

// blakeSource is a math/rand.Source64 whose seed is stretched through
// blake2b rather than passed directly to the linear congruential
// generator math/rand's default Source uses, giving a higher-quality
// initial state than a bare integer seed — the "opaque external service"
// §1 names, made concrete as a deterministic-but-well-mixed reseed path.
type blakeSource struct {
	mu     sync.Mutex
	state  [8]uint64
	cursor int
}

func newSeededSource() *blakeSource {
	s := &blakeSource{}
	s.reseed(1)
	return s
}

func (s *blakeSource) reseed(seed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	sum := blake2b.Sum512(buf[:])
	for i := 0; i < 8; i++ {
		s.state[i] = binary.LittleEndian.Uint64(sum[i*8 : i*8+8])
	}
	s.cursor = 0
}

func (s *blakeSource) Int63() int64 {
	return int64(s.Uint64() >> 1)
}

func (s *blakeSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.state[s.cursor%8]
	s.cursor++
	// xorshift64* to decorrelate successive draws from the same
	// blake2b-derived state word rather than cycling it unchanged.
	v ^= v >> 12
	v ^= v << 25
	v ^= v >> 27
	s.state[(s.cursor-1)%8] = v
	return v * 2685821657736338717
}

func (s *blakeSource) Seed(seed int64) {
	s.reseed(uint64(seed))
}
