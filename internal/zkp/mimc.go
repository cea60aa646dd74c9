package zkp

import (
	"math/big"

	bn254mimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// MiMCHash folds values through the same MiMC permutation every in-circuit
// gadget here uses (mimc.NewMiMC(api)), so a witness built from it
// satisfies the corresponding Define constraint. Used by callers that must
// construct a witness outside a circuit, e.g. deriving a nullifier before
// proving.
func MiMCHash(values ...*big.Int) *big.Int {
	h := bn254mimc.NewMiMC()
	for _, v := range values {
		b := v.Bytes()
		buf := make([]byte, 32)
		copy(buf[32-len(b):], b)
		h.Write(buf)
	}
	return new(big.Int).SetBytes(h.Sum(nil))
}
