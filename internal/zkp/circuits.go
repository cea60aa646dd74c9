package zkp

import (
	"context"
	"errors"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/std/hash/mimc"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Circuit errors
var (
	ErrCircuitNotCompiled      = errors.New("circuit not compiled")
	ErrProofGenerationFailed   = errors.New("proof generation failed")
	ErrProofVerificationFailed = errors.New("proof verification failed")
	ErrInvalidPublicInputs     = errors.New("invalid public inputs")
	ErrUnknownCircuit          = errors.New("unknown circuit id")
)

// CircuitID names one of the eighteen proof families the protocol proves
// and verifies against. Every component that needs a zk-SNARK goes
// through the Oracle by name rather than holding its own gnark plumbing.
type CircuitID string

const (
	CircuitMembership               CircuitID = "membership"
	CircuitBidRange                 CircuitID = "bid_range"
	CircuitBidFairness              CircuitID = "bid_fairness"
	CircuitWinnerSelection          CircuitID = "winner_selection"
	CircuitPayment                  CircuitID = "payment"
	CircuitTrustScore               CircuitID = "trust_score"
	CircuitVoteValidity             CircuitID = "vote_validity"
	CircuitTransfer                 CircuitID = "transfer"
	CircuitBalance                  CircuitID = "balance"
	CircuitMix                      CircuitID = "mix"
	CircuitWalletOwnership          CircuitID = "wallet_ownership"
	CircuitRoute                    CircuitID = "route"
	CircuitAnonymityPoolMembership  CircuitID = "anonymity_pool_membership"
	CircuitStakeAdequacy            CircuitID = "stake_adequacy"
	CircuitDefaultDetection         CircuitID = "default_detection"
	CircuitLiquidation              CircuitID = "liquidation"
	CircuitPenalty                  CircuitID = "penalty"
	CircuitInsurance                CircuitID = "insurance"
)

// circuitShape groups the eighteen named circuits onto a handful of
// underlying gnark constraint shapes. Several named circuits are the same
// shape proved against different witnesses (a stake-adequacy proof and a
// trust-score proof are both range proofs; a liquidation proof and a
// penalty proof are both authorization proofs).
type circuitShape int

const (
	shapeRange circuitShape = iota
	shapeConservation
	shapeWinner
	shapeMembership
	shapeNullifier
	shapeAuthorization
)

var circuitShapes = map[CircuitID]circuitShape{
	CircuitBidRange:                shapeRange,
	CircuitStakeAdequacy:           shapeRange,
	CircuitTrustScore:              shapeRange,
	CircuitInsurance:                shapeRange,
	CircuitPayment:                 shapeConservation,
	CircuitTransfer:                shapeConservation,
	CircuitBalance:                 shapeConservation,
	CircuitMix:                     shapeConservation,
	CircuitWinnerSelection:         shapeWinner,
	CircuitBidFairness:             shapeWinner,
	CircuitMembership:              shapeMembership,
	CircuitAnonymityPoolMembership: shapeMembership,
	CircuitVoteValidity:            shapeNullifier,
	CircuitDefaultDetection:        shapeNullifier,
	CircuitWalletOwnership:         shapeNullifier,
	CircuitRoute:                   shapeAuthorization,
	CircuitLiquidation:             shapeAuthorization,
	CircuitPenalty:                 shapeAuthorization,
}

// Oracle compiles, proves, and verifies every named circuit behind one
// interface. Every component calls Oracle.Prove/Verify instead of holding
// its own gnark setup, so swapping the backend never touches callers.
type Oracle struct {
	mu sync.RWMutex

	circuits      map[CircuitID]*CompiledCircuit
	provingKeys   map[CircuitID]groth16.ProvingKey
	verifyingKeys map[CircuitID]groth16.VerifyingKey
}

// CompiledCircuit holds one circuit's constraint system.
type CompiledCircuit struct {
	R1CS     frontend.CompiledConstraintSystem
	Compiled bool
}

// NewOracle creates an empty Oracle. Call CompileAll before first use.
func NewOracle() *Oracle {
	return &Oracle{
		circuits:      make(map[CircuitID]*CompiledCircuit),
		provingKeys:   make(map[CircuitID]groth16.ProvingKey),
		verifyingKeys: make(map[CircuitID]groth16.VerifyingKey),
	}
}

// RangeCircuit proves MinValue <= Value <= MaxValue for a committed value
// without revealing it. Backs bid_range, stake_adequacy, trust_score, and
// insurance reserve-adequacy proofs.
type RangeCircuit struct {
	Commitment frontend.Variable `gnark:",public"`
	MinValue   frontend.Variable `gnark:",public"`
	MaxValue   frontend.Variable `gnark:",public"`

	Value   frontend.Variable
	Blinder frontend.Variable
}

// Define implements the range constraint.
func (c *RangeCircuit) Define(api frontend.API) error {
	diffLow := api.Sub(c.Value, c.MinValue)
	api.AssertIsLessOrEqual(0, diffLow)

	diffHigh := api.Sub(c.MaxValue, c.Value)
	api.AssertIsLessOrEqual(0, diffHigh)

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Value, c.Blinder)
	api.AssertIsEqual(c.Commitment, h.Sum())

	return nil
}

// ConservationCircuit proves sum(inputs) = sum(outputs) + fee, the balance
// law underlying payment, transfer, cross-chain balance, and mix proofs.
type ConservationCircuit struct {
	Fee frontend.Variable `gnark:",public"`

	InValues  []frontend.Variable
	OutValues []frontend.Variable
}

// Define implements the conservation constraint.
func (c *ConservationCircuit) Define(api frontend.API) error {
	var inSum, outSum frontend.Variable = 0, 0

	for _, v := range c.InValues {
		inSum = api.Add(inSum, v)
	}
	for _, v := range c.OutValues {
		outSum = api.Add(outSum, v)
	}

	outPlusFee := api.Add(outSum, c.Fee)
	api.AssertIsEqual(inSum, outPlusFee)

	return nil
}

// WinnerCircuit proves WinnerValue is less than or equal to every value in
// OtherValues, i.e. the disclosed winner really was the lowest (cheapest)
// eligible bid. Backs winner_selection and bid_fairness.
type WinnerCircuit struct {
	WinnerCommitment frontend.Variable `gnark:",public"`
	NumOthers        frontend.Variable `gnark:",public"`

	WinnerValue   frontend.Variable
	WinnerBlinder frontend.Variable
	OtherValues   []frontend.Variable
}

// Define implements the winner-selection constraint.
func (c *WinnerCircuit) Define(api frontend.API) error {
	for _, other := range c.OtherValues {
		diff := api.Sub(other, c.WinnerValue)
		api.AssertIsLessOrEqual(0, diff)
	}

	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.WinnerValue, c.WinnerBlinder)
	api.AssertIsEqual(c.WinnerCommitment, h.Sum())

	return nil
}

// MembershipCircuit proves a leaf is included in a Merkle tree of the
// given depth without revealing its position. Backs circle membership
// proofs and anonymity-pool membership proofs alike.
type MembershipCircuit struct {
	Root frontend.Variable `gnark:",public"`
	Leaf frontend.Variable `gnark:",public"`

	PathElements []frontend.Variable
	PathBits     []frontend.Variable
}

// Define implements Merkle inclusion via iterated MiMC hashing.
func (c *MembershipCircuit) Define(api frontend.API) error {
	current := c.Leaf

	for i := range c.PathElements {
		h, err := mimc.NewMiMC(api)
		if err != nil {
			return err
		}

		left := api.Select(c.PathBits[i], c.PathElements[i], current)
		right := api.Select(c.PathBits[i], current, c.PathElements[i])
		h.Write(left, right)
		current = h.Sum()
	}

	api.AssertIsEqual(current, c.Root)
	return nil
}

// NullifierCircuit proves Nullifier = H(Secret, Context) for a secret the
// prover holds without revealing it. Backs vote-validity, default-
// detection, and wallet-ownership proofs, each of which differ only in
// which context value is bound in.
type NullifierCircuit struct {
	Nullifier frontend.Variable `gnark:",public"`
	Context   frontend.Variable `gnark:",public"`

	Secret frontend.Variable
}

// Define implements the nullifier-derivation constraint.
func (c *NullifierCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Secret, c.Context)
	api.AssertIsEqual(c.Nullifier, h.Sum())
	return nil
}

// AuthorizationCircuit proves a justification value opens a published
// policy commitment, e.g. the encrypted reason behind a liquidation or
// penalty really does hash to the policy hash the governance layer
// published. Backs liquidation, penalty, and route-selection proofs.
type AuthorizationCircuit struct {
	PolicyCommitment frontend.Variable `gnark:",public"`

	Justification frontend.Variable
	Blinder       frontend.Variable
}

// Define implements the authorization constraint.
func (c *AuthorizationCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Justification, c.Blinder)
	api.AssertIsEqual(c.PolicyCommitment, h.Sum())
	return nil
}

// templateFor returns a zero-valued witness template sized for the given
// circuit, used only at compile time.
func templateFor(shape circuitShape, size int) frontend.Circuit {
	switch shape {
	case shapeRange:
		return &RangeCircuit{}
	case shapeConservation:
		in := make([]frontend.Variable, size)
		out := make([]frontend.Variable, size)
		return &ConservationCircuit{InValues: in, OutValues: out}
	case shapeWinner:
		return &WinnerCircuit{OtherValues: make([]frontend.Variable, size)}
	case shapeMembership:
		return &MembershipCircuit{
			PathElements: make([]frontend.Variable, size),
			PathBits:     make([]frontend.Variable, size),
		}
	case shapeNullifier:
		return &NullifierCircuit{}
	case shapeAuthorization:
		return &AuthorizationCircuit{}
	default:
		return nil
	}
}

// Compile builds the constraint system and Groth16 keys for id. size
// parameterizes variable-length circuits (number of conservation legs,
// number of competing bids, Merkle depth); it is ignored for fixed-shape
// circuits.
func (o *Oracle) Compile(id CircuitID, size int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	shape, ok := circuitShapes[id]
	if !ok {
		return ErrUnknownCircuit
	}

	circuit := templateFor(shape, size)

	compiled, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return err
	}

	pk, vk, err := groth16.Setup(compiled)
	if err != nil {
		return err
	}

	o.circuits[id] = &CompiledCircuit{R1CS: compiled, Compiled: true}
	o.provingKeys[id] = pk
	o.verifyingKeys[id] = vk

	return nil
}

// CompileAll compiles every named circuit with the given default sizing
// for variable-length shapes (Merkle depth, conservation leg count, bid
// pool size). Called once at node startup.
func (o *Oracle) CompileAll(defaultSize int) error {
	for id := range circuitShapes {
		if err := o.Compile(id, defaultSize); err != nil {
			return err
		}
	}
	return nil
}

// ProofData is a serialized Groth16 proof plus its public witness, tagged
// with the circuit it was produced against.
type ProofData struct {
	CircuitID    CircuitID
	Proof        []byte
	PublicInputs []byte
}

// Prove generates a ProofData for id against witness.
func (o *Oracle) Prove(ctx context.Context, id CircuitID, witness frontend.Circuit) (*ProofData, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	compiled, exists := o.circuits[id]
	if !exists || !compiled.Compiled {
		return nil, ErrCircuitNotCompiled
	}

	pk, exists := o.provingKeys[id]
	if !exists {
		return nil, ErrCircuitNotCompiled
	}

	w, err := frontend.NewWitness(witness, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}

	proof, err := groth16.Prove(compiled.R1CS, pk, w)
	if err != nil {
		return nil, ErrProofGenerationFailed
	}

	proofBytes := proof.MarshalBinary()

	publicWitness, err := w.Public()
	if err != nil {
		return nil, err
	}
	publicBytes, err := publicWitness.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return &ProofData{
		CircuitID:    id,
		Proof:        proofBytes,
		PublicInputs: publicBytes,
	}, nil
}

// Verify checks proofData against the compiled verifying key for its
// circuit. This is the only code path every component's proof check runs
// through; nothing in the protocol accepts a proof without calling this.
func (o *Oracle) Verify(ctx context.Context, proofData *ProofData) (bool, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	vk, exists := o.verifyingKeys[proofData.CircuitID]
	if !exists {
		return false, ErrCircuitNotCompiled
	}

	proof := groth16.NewProof(ecc.BN254)
	if err := proof.UnmarshalBinary(proofData.Proof); err != nil {
		return false, err
	}

	publicWitness, err := frontend.NewWitness(nil, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}
	if err := publicWitness.UnmarshalBinary(proofData.PublicInputs); err != nil {
		return false, err
	}

	if err := groth16.Verify(proof, vk, publicWitness); err != nil {
		return false, nil
	}

	return true, nil
}

// GetVerifyingKey exposes the verifying key for id, for components that
// need to ship it to an external verifier.
func (o *Oracle) GetVerifyingKey(id CircuitID) (groth16.VerifyingKey, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	vk, exists := o.verifyingKeys[id]
	if !exists {
		return nil, ErrCircuitNotCompiled
	}

	return vk, nil
}

// hashToField passes a types.Hash to a circuit as a frontend.Variable (its
// raw bytes). It is unexported, so only witnesses built inside this
// package can use it.
func hashToField(h types.Hash) frontend.Variable {
	return h.Bytes()
}
