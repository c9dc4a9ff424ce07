package pipeline

import (
	"hash/fnv"
	"math/rand"
)

// RunKey uniquely identifies a reproducible pipeline run. Two runs with
// the same RunKey and identical input MUST produce bit-for-bit identical
// reports.
type RunKey int64

// NewRunKey creates a RunKey from a seed value.
func NewRunKey(seed int64) RunKey {
	return RunKey(seed)
}

// RNG subsystem names. Each stage of the pipeline draws from its own
// stream so that, say, adding an extra weight tensor to the network does
// not perturb the clustering restarts.
const (
	// SubsystemWeights seeds network weight initialization.
	SubsystemWeights = "weights"

	// SubsystemShuffle seeds the per-epoch shuffle of training indices.
	SubsystemShuffle = "shuffle"

	// SubsystemCluster seeds k-means restarts. Uses the master seed
	// directly so the historical --seed 42 clustering behavior is
	// preserved exactly.
	SubsystemCluster = "cluster"
)

// PartitionedRNG provides deterministic, isolated RNG instances per
// pipeline subsystem.
//
// Derivation formula:
//   - For SubsystemCluster: uses the master seed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. The pipeline is single-threaded.
type PartitionedRNG struct {
	key        RunKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a RunKey.
func NewPartitionedRNG(key RunKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same subsystem name always returns the same *rand.Rand
// instance (cached). Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	var derivedSeed int64
	if name == SubsystemCluster {
		derivedSeed = int64(p.key)
	} else {
		derivedSeed = int64(p.key) ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derivedSeed))
	p.subsystems[name] = rng
	return rng
}

// Key returns the RunKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() RunKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
