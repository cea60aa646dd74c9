// Package zkp implements the cryptographic commitment, nullifier, and
// proving primitives shared by every lending-circle component: identity
// commitments, bid amounts, trust scores, vote weights, and cross-chain
// balances are all opened and verified through this package.
package zkp

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/kunal-drall/lendcircle-core/pkg/types"
)

// Commitment errors
var (
	ErrInvalidValue     = errors.New("invalid commitment value")
	ErrInvalidBlinder   = errors.New("invalid blinder")
	ErrInvalidPoint     = errors.New("invalid elliptic curve point")
	ErrCommitmentFailed = errors.New("commitment computation failed")
)

// Generator points for the Pedersen commitment scheme. In a production
// deployment these would come from a trusted, auditable setup ceremony
// rather than a deterministic derivation.
var (
	generatorG bn254.G1Affine
	generatorH bn254.G1Affine

	initialized = false
)

// InitializeGenerators sets up the Pedersen commitment generators.
func InitializeGenerators() error {
	if initialized {
		return nil
	}

	_, _, g1Gen, _ := bn254.Generators()
	generatorG = g1Gen

	hBytes := hashToBytes("LENDCIRCLE_PEDERSEN_H")
	generatorH.ScalarMultiplication(&generatorG, new(big.Int).SetBytes(hBytes))

	initialized = true
	return nil
}

// PedersenCommitment is C = v*G + r*H.
type PedersenCommitment struct {
	Point bn254.G1Affine
}

// CommitmentOpening carries the value/blinder pair needed to open a
// commitment during a disclosure flow.
type CommitmentOpening struct {
	Value   *big.Int
	Blinder *big.Int
}

// NewPedersenCommitment builds C = value*G + blinder*H.
func NewPedersenCommitment(value, blinder *big.Int) (*PedersenCommitment, error) {
	if err := InitializeGenerators(); err != nil {
		return nil, err
	}

	if value == nil || blinder == nil {
		return nil, ErrInvalidValue
	}

	var valueG bn254.G1Affine
	valueG.ScalarMultiplication(&generatorG, value)

	var blinderH bn254.G1Affine
	blinderH.ScalarMultiplication(&generatorH, blinder)

	var commitment bn254.G1Affine
	commitment.Add(&valueG, &blinderH)

	return &PedersenCommitment{Point: commitment}, nil
}

// NewRandomCommitment commits to value with a freshly sampled blinder and
// returns the blinder so the caller can retain it for later disclosure.
func NewRandomCommitment(value *big.Int) (*PedersenCommitment, *big.Int, error) {
	blinder, err := RandomScalar()
	if err != nil {
		return nil, nil, err
	}

	commitment, err := NewPedersenCommitment(value, blinder)
	if err != nil {
		return nil, nil, err
	}

	return commitment, blinder, nil
}

// Verify checks that the commitment opens to (value, blinder).
func (c *PedersenCommitment) Verify(value, blinder *big.Int) bool {
	expected, err := NewPedersenCommitment(value, blinder)
	if err != nil {
		return false
	}
	return c.Point.Equal(&expected.Point)
}

// Add combines two commitments homomorphically: C1+C2 = (v1+v2)G + (r1+r2)H.
// Used to prove round contributions sum to the payout without revealing
// either side.
func (c *PedersenCommitment) Add(other *PedersenCommitment) *PedersenCommitment {
	var result bn254.G1Affine
	result.Add(&c.Point, &other.Point)
	return &PedersenCommitment{Point: result}
}

// Sub subtracts two commitments: C1-C2 = (v1-v2)G + (r1-r2)H.
func (c *PedersenCommitment) Sub(other *PedersenCommitment) *PedersenCommitment {
	var negOther bn254.G1Affine
	negOther.Neg(&other.Point)

	var result bn254.G1Affine
	result.Add(&c.Point, &negOther)

	return &PedersenCommitment{Point: result}
}

// Bytes returns the compressed point encoding.
func (c *PedersenCommitment) Bytes() []byte {
	return c.Point.Marshal()
}

// FromBytes reconstructs a commitment from its compressed encoding.
func (c *PedersenCommitment) FromBytes(data []byte) error {
	return c.Point.Unmarshal(data)
}

// ToHash folds the commitment into a types.Hash for use as a map key or
// Merkle leaf.
func (c *PedersenCommitment) ToHash() types.Hash {
	return types.HashFromBytes(c.Bytes())
}

// RandomScalar samples a uniform scalar from the BN254 scalar field.
func RandomScalar() (*big.Int, error) {
	var scalar fr.Element
	_, err := scalar.SetRandom()
	if err != nil {
		return nil, err
	}
	return scalar.BigInt(new(big.Int)), nil
}

// hashToBytes derives deterministic bytes from a domain-separation string.
// Not a cryptographic hash-to-curve construction; adequate only for
// deriving the second, unrelated generator at startup.
func hashToBytes(input string) []byte {
	result := make([]byte, 32)
	data := []byte(input)
	for i := 0; i < 32; i++ {
		if i < len(data) {
			result[i] = data[i] ^ byte(i*17)
		} else {
			result[i] = byte(i * 31)
		}
	}
	return result
}

// ValueCommitment wraps a Pedersen commitment with an asset tag, so the
// same primitive can commit circle contributions, bid amounts, or
// cross-chain balances without type confusion.
type ValueCommitment struct {
	Commitment *PedersenCommitment
	AssetType  types.Hash
}

// NewValueCommitment commits to value under assetType with a random blinder.
func NewValueCommitment(value uint64, assetType types.Hash) (*ValueCommitment, *big.Int, error) {
	valueInt := new(big.Int).SetUint64(value)
	commitment, blinder, err := NewRandomCommitment(valueInt)
	if err != nil {
		return nil, nil, err
	}

	return &ValueCommitment{
		Commitment: commitment,
		AssetType:  assetType,
	}, blinder, nil
}

// VerifyValueConservation checks sum(inputs) = sum(outputs) + fee*G,
// the homomorphic check used to confirm a circle's collected round
// equals its payout plus protocol fee without revealing contributor
// amounts.
func VerifyValueConservation(
	inputCommitments []*PedersenCommitment,
	outputCommitments []*PedersenCommitment,
	fee uint64,
) bool {
	if err := InitializeGenerators(); err != nil {
		return false
	}

	var inputSum bn254.G1Affine
	inputSum.SetInfinity()
	for _, c := range inputCommitments {
		inputSum.Add(&inputSum, &c.Point)
	}

	var outputSum bn254.G1Affine
	outputSum.SetInfinity()
	for _, c := range outputCommitments {
		outputSum.Add(&outputSum, &c.Point)
	}

	var feeCommitment bn254.G1Affine
	feeCommitment.ScalarMultiplication(&generatorG, new(big.Int).SetUint64(fee))
	outputSum.Add(&outputSum, &feeCommitment)

	return inputSum.Equal(&outputSum)
}
