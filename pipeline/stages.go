package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/consensys/gnark/backend/witness"

	"github.com/sigma0-xyz/zkbitcoin"
	"github.com/sigma0-xyz/zkbitcoin/artifacts"
	"github.com/sigma0-xyz/zkbitcoin/ceremony"
	"github.com/sigma0-xyz/zkbitcoin/circuit"
	"github.com/sigma0-xyz/zkbitcoin/verifier"
)

// ceremonyInitStage creates the phase-1 powers-of-tau accumulator. With a
// trusted or test-only setup there is no local phase 1 and the stage is a
// no-op.
type ceremonyInitStage struct{}

func (ceremonyInitStage) Name() string             { return "ceremony-init" }
func (ceremonyInitStage) Inputs(env *Env) []string { return nil }

func (ceremonyInitStage) Outputs(env *Env) []string {
	if env.Setup != ceremony.Local {
		return nil
	}
	return []string{Phase1StartFile}
}

func (s ceremonyInitStage) Run(ctx context.Context, env *Env) error {
	if env.Setup != ceremony.Local {
		return nil
	}
	f, err := ceremony.Initialize(env.Curve, env.Power)
	if err != nil {
		return err
	}
	return f.Save(env.Path(Phase1StartFile))
}

// contributeStage applies one contribution to the phase-1 accumulator.
// Contributions draw fresh randomness, so re-running never reproduces the
// same output.
type contributeStage struct{}

func (contributeStage) Name() string { return "contribute" }

func (contributeStage) Inputs(env *Env) []string {
	if env.Setup != ceremony.Local {
		return nil
	}
	return []string{Phase1StartFile}
}

func (contributeStage) Outputs(env *Env) []string {
	if env.Setup != ceremony.Local {
		return nil
	}
	return []string{Phase1EndFile}
}

func (s contributeStage) Run(ctx context.Context, env *Env) error {
	if env.Setup != ceremony.Local {
		return nil
	}
	f, err := ceremony.Load(env.Path(Phase1StartFile))
	if err != nil {
		return err
	}
	if err := f.Contribute(env.ContributionName); err != nil {
		return err
	}
	return f.Save(env.Path(Phase1EndFile))
}

// prepareStage produces the circuit-independent phase-2 parameters: from the
// contributed local accumulator, from an imported ceremony file, or from a
// test-only setup, depending on env.Setup.
type prepareStage struct{}

func (prepareStage) Name() string { return "prepare-phase2" }

func (prepareStage) Inputs(env *Env) []string {
	if env.Setup == ceremony.Local {
		return []string{Phase1EndFile}
	}
	return nil
}

func (prepareStage) Outputs(env *Env) []string {
	return []string{Phase2StartFile}
}

func (s prepareStage) Run(ctx context.Context, env *Env) error {
	var f *ceremony.File
	switch env.Setup {
	case ceremony.Local:
		phase1, err := ceremony.Load(env.Path(Phase1EndFile))
		if err != nil {
			return err
		}
		if f, err = phase1.PreparePhase2(); err != nil {
			return err
		}
	case ceremony.Trusted:
		path, err := artifacts.PowersOfTau(env.Power).Fetch(ctx)
		if err != nil {
			return err
		}
		if f, err = ceremony.ImportPtauFile(path, env.Power); err != nil {
			return err
		}
	case ceremony.TestOnly:
		srs, err := ceremony.TestOnlySRS(env.Curve, env.Power)
		if err != nil {
			return err
		}
		f = &ceremony.File{
			Curve:         env.Curve,
			Power:         env.Power,
			Phase:         ceremony.Phase2,
			Contributions: []ceremony.Contribution{{Name: "test-only"}},
			SRS:           srs,
		}
	default:
		return fmt.Errorf("unknown setup configuration %d", env.Setup)
	}
	return f.Save(env.Path(Phase2StartFile))
}

// compileStage compiles the selected circuit into its constraint system and
// symbol files. Compilation is deterministic, re-runs produce byte-identical
// artifacts.
type compileStage struct{}

func (compileStage) Name() string             { return "compile" }
func (compileStage) Inputs(env *Env) []string { return nil }

func (compileStage) Outputs(env *Env) []string {
	return []string{ConstraintFile, SymbolsFile}
}

func (s compileStage) Run(ctx context.Context, env *Env) error {
	def, err := circuit.Get(env.CircuitName)
	if err != nil {
		return err
	}
	ccs, err := circuit.Compile(env.CircuitName, env.Curve)
	if err != nil {
		return err
	}
	if err := circuit.WriteConstraintSystem(ccs, env.Path(ConstraintFile)); err != nil {
		return err
	}
	return circuit.WriteSymbols(def.Circuit(), env.Path(SymbolsFile))
}

// keygenStage combines the constraint system with the phase-2 parameters
// into the proving/verifying keypair, bound to the hash of the constraint
// system file.
type keygenStage struct{}

func (keygenStage) Name() string { return "keygen" }

func (keygenStage) Inputs(env *Env) []string {
	return []string{ConstraintFile, Phase2StartFile}
}

func (keygenStage) Outputs(env *Env) []string {
	return []string{KeypairFile}
}

func (s keygenStage) Run(ctx context.Context, env *Env) error {
	ccs, err := circuit.ReadConstraintSystem(env.Path(ConstraintFile), env.Curve)
	if err != nil {
		return err
	}
	f, err := ceremony.Load(env.Path(Phase2StartFile))
	if err != nil {
		return err
	}
	if f.Phase != ceremony.Phase2 {
		return fmt.Errorf("%s holds phase-%d parameters, run prepare-phase2 "+
			"first", Phase2StartFile, f.Phase)
	}
	if f.Curve != env.Curve {
		return fmt.Errorf("ceremony parameters are for %v, pipeline curve "+
			"is %v", f.Curve, env.Curve)
	}
	cc, err := zkbitcoin.Setup(ccs, env.Curve, f.SRS)
	if err != nil {
		return err
	}
	ccsHash, err := zkbitcoin.FileSHA256(env.Path(ConstraintFile))
	if err != nil {
		return err
	}
	return cc.WriteKeypair(env.Path(KeypairFile), ccsHash)
}

// exportVKStage extracts the public verification key from the keypair.
type exportVKStage struct{}

func (exportVKStage) Name() string { return "export-vk" }

func (exportVKStage) Inputs(env *Env) []string {
	return []string{KeypairFile, ConstraintFile}
}

func (exportVKStage) Outputs(env *Env) []string {
	return []string{VKFile}
}

func (s exportVKStage) Run(ctx context.Context, env *Env) error {
	kp, err := zkbitcoin.ReadKeypair(env.Path(KeypairFile))
	if err != nil {
		return err
	}
	ccs, err := circuit.ReadConstraintSystem(env.Path(ConstraintFile), kp.Curve)
	if err != nil {
		return err
	}
	return verifier.WriteVKJSON(env.Path(VKFile), kp.Vk, kp.Curve,
		ccs.GetNbPublicVariables())
}

// witnessStage solves the circuit on the inputs file and writes the full
// witness. Inputs that do not satisfy the circuit constraints fail here,
// before any proving work.
type witnessStage struct{}

func (witnessStage) Name() string { return "witness" }

func (witnessStage) Inputs(env *Env) []string {
	return []string{ConstraintFile, env.InputsFile}
}

func (witnessStage) Outputs(env *Env) []string {
	return []string{WitnessFile}
}

func (s witnessStage) Run(ctx context.Context, env *Env) error {
	def, err := circuit.Get(env.CircuitName)
	if err != nil {
		return err
	}
	inputs, err := circuit.ReadInputs(env.Path(env.InputsFile))
	if err != nil {
		return err
	}
	assignment, err := def.Assign(inputs)
	if err != nil {
		return err
	}
	ccs, err := circuit.ReadConstraintSystem(env.Path(ConstraintFile), env.Curve)
	if err != nil {
		return err
	}
	w, err := zkbitcoin.NewSolvedWitness(ccs, env.Curve, assignment)
	if err != nil {
		return err
	}
	data, err := w.MarshalBinary()
	if err != nil {
		return fmt.Errorf("error encoding witness: %v", err)
	}
	if err := os.WriteFile(env.Path(WitnessFile), data, 0644); err != nil {
		return fmt.Errorf("error writing witness file: %v", err)
	}
	return nil
}

// proveStage combines the keypair and the witness into the proof and its
// public inputs, the final pipeline outputs.
type proveStage struct{}

func (proveStage) Name() string { return "prove" }

func (proveStage) Inputs(env *Env) []string {
	return []string{KeypairFile, ConstraintFile, WitnessFile}
}

func (proveStage) Outputs(env *Env) []string {
	return []string{ProofFile, ProofInputsFile}
}

func (s proveStage) Run(ctx context.Context, env *Env) error {
	kp, err := zkbitcoin.ReadKeypair(env.Path(KeypairFile))
	if err != nil {
		return err
	}
	ccsHash, err := zkbitcoin.FileSHA256(env.Path(ConstraintFile))
	if err != nil {
		return err
	}
	if !bytes.Equal(ccsHash, kp.CcsHash) {
		return fmt.Errorf("keypair was generated for a different constraint "+
			"system, re-run keygen on the current %s", ConstraintFile)
	}
	ccs, err := circuit.ReadConstraintSystem(env.Path(ConstraintFile), kp.Curve)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(env.Path(WitnessFile))
	if err != nil {
		return fmt.Errorf("error reading witness file: %v", err)
	}
	w, err := witness.New(kp.Curve.ScalarField())
	if err != nil {
		return fmt.Errorf("error creating witness: %v", err)
	}
	if err := w.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("error decoding witness: %v", err)
	}
	cc := &zkbitcoin.CompiledCircuit{
		Ccs: ccs, Pk: kp.Pk, Vk: kp.Vk, Curve: kp.Curve,
	}
	proof, err := cc.Prove(w)
	if err != nil {
		return err
	}
	if err := zkbitcoin.WriteProofJSON(env.Path(ProofFile), proof, kp.Curve); err != nil {
		return err
	}
	return zkbitcoin.WritePublicInputsJSON(env.Path(ProofInputsFile), w)
}
