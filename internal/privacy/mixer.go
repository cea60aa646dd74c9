package privacy

import (
	"context"
	"errors"
	"sync"

	"github.com/kunal-drall/lendcircle-core/internal/zkp"
	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

var (
	ErrBatchTooSmall = errors.New("mix batch has not reached the minimum anonymity set")
	ErrBatchTooLarge = errors.New("mix batch exceeds the maximum anonymity set")
	ErrMixProofFailed = errors.New("mix proof failed verification")
)

// Mixer batch parameters.
const (
	MinMixSize = 3
	MaxMixSize = 20
	MixFeeBP   = 10 // 0.10%
)

// Mixer accumulates pending deposit commitments into a queue and releases
// them as a single batched mix once enough have arrived to form a real
// anonymity set. A batch that never reaches MinMixSize simply waits; one
// that's forced out early (operator override) is the caller's call, not
// the mixer's.
type Mixer struct {
	mu sync.Mutex

	oracle  *zkp.Oracle
	pending []types.Hash
}

// NewMixer creates a transaction mixer.
func NewMixer(oracle *zkp.Oracle) *Mixer {
	return &Mixer{oracle: oracle}
}

// Enqueue adds commitment to the pending batch and returns the batch's
// current size.
func (mx *Mixer) Enqueue(commitment types.Hash) int {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	mx.pending = append(mx.pending, commitment)
	return len(mx.pending)
}

// ReadyToMix reports whether the pending batch has reached MinMixSize.
func (mx *Mixer) ReadyToMix() bool {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	return len(mx.pending) >= MinMixSize
}

// CalculateFee returns the protocol fee owed on amount at MixFeeBP basis
// points, rounding down.
func CalculateFee(amount uint64) uint64 {
	return amount * MixFeeBP / 10000
}

// PrivacyScore scores a mix's anonymity set size on a 0-100 scale: the
// larger the set (up to MaxMixSize), the closer to full marks.
func PrivacyScore(setSize int) int {
	if setSize <= 0 {
		return 0
	}
	if setSize >= MaxMixSize {
		return 100
	}
	return setSize * 100 / MaxMixSize
}

// ExecuteMix drains up to MaxMixSize pending commitments into a single
// Mix, requiring at least MinMixSize and a verified mix proof attesting
// the input/output commitments conserve value under a random permutation.
func (mx *Mixer) ExecuteMix(ctx context.Context, mixID types.Hash, outputCommits []types.Hash, nullifiers []types.Hash, proof []byte, totalAmount uint64) (*types.Mix, error) {
	mx.mu.Lock()
	defer mx.mu.Unlock()

	if len(mx.pending) < MinMixSize {
		return nil, ErrBatchTooSmall
	}

	batchSize := len(mx.pending)
	if batchSize > MaxMixSize {
		batchSize = MaxMixSize
	}

	ok, err := mx.oracle.Verify(ctx, &zkp.ProofData{CircuitID: zkp.CircuitMix, Proof: proof})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrMixProofFailed
	}

	inputs := mx.pending[:batchSize]
	mx.pending = mx.pending[batchSize:]

	mix := &types.Mix{
		MixID:            mixID,
		InputCommits:     inputs,
		OutputCommits:    outputCommits,
		Nullifiers:       nullifiers,
		ZKProof:          proof,
		AnonymitySetSize: batchSize,
		Fee:              CalculateFee(totalAmount),
		PrivacyScore:     PrivacyScore(batchSize),
	}

	return mix, nil
}
