// Package zkbitcoin builds plonk proofs for the zkBitcoin circuits: it
// compiles gnark circuit definitions, combines them with powers-of-tau
// ceremony parameters into proving and verifying keys, and generates and
// checks proofs. The pipeline package sequences these steps over artifact
// files; this package holds the proving primitives themselves.
package zkbitcoin

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	kzg_bls12381 "github.com/consensys/gnark-crypto/ecc/bls12-381/kzg"
	kzg_bn254 "github.com/consensys/gnark-crypto/ecc/bn254/kzg"
	"github.com/consensys/gnark-crypto/kzg"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/scs"
)

// CompiledCircuit is a compiled circuit with its proving and verifying keys
type CompiledCircuit struct {
	Ccs   constraint.ConstraintSystem
	Pk    plonk.ProvingKey
	Vk    plonk.VerifyingKey
	Curve ecc.ID
}

// VerifiedProof is a proof and its witness, generated after verifying the proof
type VerifiedProof struct {
	Proof   plonk.Proof
	Witness witness.Witness
}

// Compile generates a CompiledCircuit from a circuit definition, a curve id,
// and ceremony parameters. The supported curves are ecc.BN254 and
// ecc.BLS12_381.
func Compile(circuit frontend.Circuit, curve ecc.ID, srs kzg.SRS) (
	*CompiledCircuit, error) {
	if curve != ecc.BN254 && curve != ecc.BLS12_381 {
		return nil, fmt.Errorf("unsupported curve: %v", curve)
	}
	ccs, err := frontend.Compile(curve.ScalarField(), scs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("error compiling circuit: %v", err)
	}
	return Setup(ccs, curve, srs)
}

// Setup combines a compiled constraint system with ceremony parameters into
// a proving/verifying keypair. It fails deterministically when the ceremony
// parameters are too small for the circuit or belong to a different curve.
func Setup(ccs constraint.ConstraintSystem, curve ecc.ID, srs kzg.SRS) (
	*CompiledCircuit, error) {
	required := MinSRSSize(ccs)
	available, err := srsSize(srs, curve)
	if err != nil {
		return nil, err
	}
	if available < required {
		return nil, fmt.Errorf("ceremony parameters hold %d G1 points, "+
			"circuit needs %d", available, required)
	}
	provingKey, verifyingKey, err := plonk.Setup(ccs, srs)
	if err != nil {
		return nil, fmt.Errorf("error setting up plonk: %v", err)
	}
	return &CompiledCircuit{ccs, provingKey, verifyingKey, curve}, nil
}

// MinSRSSize returns the number of G1 points the ceremony parameters must
// hold to set up the given constraint system.
func MinSRSSize(ccs constraint.ConstraintSystem) uint64 {
	numGates := uint64(ccs.GetNbConstraints() + ccs.GetNbPublicVariables())
	return ecc.NextPowerOfTwo(numGates) + 5
}

func srsSize(srs kzg.SRS, curve ecc.ID) (uint64, error) {
	switch s := srs.(type) {
	case *kzg_bn254.SRS:
		if curve != ecc.BN254 {
			return 0, fmt.Errorf("ceremony parameters are for bn254, "+
				"circuit curve is %v", curve)
		}
		return uint64(len(s.Pk.G1)), nil
	case *kzg_bls12381.SRS:
		if curve != ecc.BLS12_381 {
			return 0, fmt.Errorf("ceremony parameters are for bls12-381, "+
				"circuit curve is %v", curve)
		}
		return uint64(len(s.Pk.G1)), nil
	default:
		return 0, fmt.Errorf("unrecognized SRS type %T", srs)
	}
}

// NewSolvedWitness builds the full witness for a circuit assignment and
// checks it satisfies the circuit constraints, so that a bad assignment
// surfaces at witness generation rather than at proving.
func NewSolvedWitness(ccs constraint.ConstraintSystem, curve ecc.ID,
	assignment frontend.Circuit) (witness.Witness, error) {
	w, err := frontend.NewWitness(assignment, curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("error creating witness: %v", err)
	}
	if err := ccs.IsSolved(w); err != nil {
		return nil, fmt.Errorf("witness does not satisfy the circuit: %v", err)
	}
	return w, nil
}

// NewWitness builds a solved witness for an assignment of this circuit.
func (cc *CompiledCircuit) NewWitness(assignment frontend.Circuit) (
	witness.Witness, error) {
	return NewSolvedWitness(cc.Ccs, cc.Curve, assignment)
}

// Prove generates a proof from a full witness.
func (cc *CompiledCircuit) Prove(w witness.Witness) (plonk.Proof, error) {
	proof, err := plonk.Prove(cc.Ccs, cc.Pk, w)
	if err != nil {
		return nil, fmt.Errorf("error creating plonk proof: %v", err)
	}
	return proof, nil
}

// Verify generates a proof from a circuit assignment and verifies it
func (cc *CompiledCircuit) Verify(assignment frontend.Circuit) (
	*VerifiedProof, error) {
	w, err := cc.NewWitness(assignment)
	if err != nil {
		return nil, err
	}
	publicInputs, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("error creating public inputs: %v", err)
	}
	proof, err := cc.Prove(w)
	if err != nil {
		return nil, err
	}
	err = plonk.Verify(proof, cc.Vk, publicInputs)
	if err != nil {
		return nil, fmt.Errorf("error verifying plonk proof: %v", err)
	}
	return &VerifiedProof{proof, w}, nil
}

// CurveFromString parses a curve name as used in artifact files and CLI
// flags. The bn128 alias used by circom and snarkjs maps to bn254.
func CurveFromString(name string) (ecc.ID, error) {
	switch name {
	case "bn254", "bn128":
		return ecc.BN254, nil
	case "bls12_381", "bls12-381":
		return ecc.BLS12_381, nil
	default:
		return ecc.UNKNOWN, fmt.Errorf("unknown curve %q", name)
	}
}
