package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

func init() {
	Register(multiplierDef{})
	Register(preimageDef{})
}

// MultiplierCircuit proves knowledge of two secret factors of a public
// product: a * b = c.
type MultiplierCircuit struct {
	A frontend.Variable `gnark:"a"`
	B frontend.Variable `gnark:"b"`
	C frontend.Variable `gnark:"c,public"`
}

func (c *MultiplierCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.A, c.B), c.C)
	return nil
}

type multiplierDef struct{}

func (multiplierDef) Name() string              { return "multiplier" }
func (multiplierDef) Circuit() frontend.Circuit { return &MultiplierCircuit{} }

func (multiplierDef) Assign(inputs map[string]interface{}) (frontend.Circuit, error) {
	var c MultiplierCircuit
	var err error
	if c.A, err = input(inputs, "a"); err != nil {
		return nil, err
	}
	if c.B, err = input(inputs, "b"); err != nil {
		return nil, err
	}
	if c.C, err = input(inputs, "c"); err != nil {
		return nil, err
	}
	return &c, nil
}

// PreimageCircuit proves knowledge of a MiMC preimage for a public hash.
// MiMC is zk-SNARK friendly and keeps the circuit size small.
type PreimageCircuit struct {
	Preimage frontend.Variable `gnark:"preimage"`
	Hash     frontend.Variable `gnark:"hash,public"`
}

func (c *PreimageCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Preimage)
	api.AssertIsEqual(c.Hash, h.Sum())
	return nil
}

type preimageDef struct{}

func (preimageDef) Name() string              { return "preimage" }
func (preimageDef) Circuit() frontend.Circuit { return &PreimageCircuit{} }

func (preimageDef) Assign(inputs map[string]interface{}) (frontend.Circuit, error) {
	var c PreimageCircuit
	var err error
	if c.Preimage, err = input(inputs, "preimage"); err != nil {
		return nil, err
	}
	if c.Hash, err = input(inputs, "hash"); err != nil {
		return nil, err
	}
	return &c, nil
}
