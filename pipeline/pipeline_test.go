package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"

	"github.com/sigma0-xyz/zkbitcoin"
	"github.com/sigma0-xyz/zkbitcoin/ceremony"
	"github.com/sigma0-xyz/zkbitcoin/pipeline"
	"github.com/sigma0-xyz/zkbitcoin/verifier"
)

// newTestEnv returns a pipeline environment over a fresh directory, sized
// small enough to run a full local ceremony in tests.
func newTestEnv(t *testing.T) *pipeline.Env {
	t.Helper()
	env := pipeline.DefaultEnv(t.TempDir())
	env.Power = 6
	return env
}

func writeInputs(t *testing.T, env *pipeline.Env, inputs string) {
	t.Helper()
	err := os.WriteFile(env.Path(env.InputsFile), []byte(inputs), 0644)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFullPipeline(t *testing.T) {
	env := newTestEnv(t)
	writeInputs(t, env, `{"a": 3, "b": 4, "c": 12}`)

	if err := pipeline.Run(context.Background(), env); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	for _, name := range []string{
		pipeline.Phase1StartFile, pipeline.Phase1EndFile,
		pipeline.Phase2StartFile, pipeline.ConstraintFile,
		pipeline.SymbolsFile, pipeline.KeypairFile, pipeline.VKFile,
		pipeline.WitnessFile, pipeline.ProofFile, pipeline.ProofInputsFile,
	} {
		if _, err := os.Stat(env.Path(name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	// the exported artifacts alone must satisfy an external verifier
	err := verifier.VerifyFiles(env.Path(pipeline.VKFile),
		env.Path(pipeline.ProofFile), env.Path(pipeline.ProofInputsFile))
	if err != nil {
		t.Errorf("proof rejected: %v", err)
	}
}

func TestFullPipelineBLS12381(t *testing.T) {
	env := newTestEnv(t)
	env.Curve = ecc.BLS12_381
	env.Setup = ceremony.TestOnly
	writeInputs(t, env, `{"a": 3, "b": 4, "c": 12}`)

	if err := pipeline.Run(context.Background(), env); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	err := verifier.VerifyFiles(env.Path(pipeline.VKFile),
		env.Path(pipeline.ProofFile), env.Path(pipeline.ProofInputsFile))
	if err != nil {
		t.Errorf("proof rejected: %v", err)
	}

	// the proof artifact must carry the flat calldata encoding on this
	// curve too
	data, err := os.ReadFile(env.Path(pipeline.ProofFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var p zkbitcoin.ProofJSON
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Curve != "bls12_381" {
		t.Errorf("expected curve bls12_381 in the artifact, got %q", p.Curve)
	}
	if len(p.Calldata) == 0 {
		t.Errorf("proof artifact has empty calldata")
	}
}

func TestBadInputsHaltBeforeProve(t *testing.T) {
	env := newTestEnv(t)
	writeInputs(t, env, `{"a": 3, "b": 4, "c": 13}`)

	err := pipeline.Run(context.Background(), env)
	if err == nil {
		t.Fatalf("expected pipeline to fail on unsatisfiable inputs")
	}
	if _, statErr := os.Stat(env.Path(pipeline.WitnessFile)); statErr == nil {
		t.Errorf("witness file written for unsatisfiable inputs")
	}
	if _, statErr := os.Stat(env.Path(pipeline.ProofFile)); statErr == nil {
		t.Errorf("prove stage ran after witness failure")
	}
}

func TestKeygenFailsOnUndersizedCeremony(t *testing.T) {
	env := newTestEnv(t)
	env.CircuitName = "preimage"
	env.Power = 1
	env.Setup = ceremony.TestOnly

	err := pipeline.Run(context.Background(), env)
	if err == nil {
		t.Fatalf("expected keygen to fail with undersized parameters")
	}
	if _, statErr := os.Stat(env.Path(pipeline.KeypairFile)); statErr == nil {
		t.Errorf("keypair written despite undersized parameters")
	}
}

func TestCompileIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.Setup = ceremony.TestOnly
	stage, err := pipeline.StageByName("compile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var artifacts [2][]byte
	for i := range artifacts {
		env.Force = true
		if err := pipeline.RunStage(context.Background(), env, stage); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		artifacts[i], err = os.ReadFile(env.Path(pipeline.ConstraintFile))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if !bytes.Equal(artifacts[0], artifacts[1]) {
		t.Errorf("re-compiling produced different artifacts")
	}
}

func TestContributionIsNotIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	initStage, err := pipeline.StageByName("ceremony-init")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contributeStage, err := pipeline.StageByName("contribute")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pipeline.RunStage(ctx, env, initStage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var artifacts [2][]byte
	for i := range artifacts {
		env.Force = true
		if err := pipeline.RunStage(ctx, env, contributeStage); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		artifacts[i], err = os.ReadFile(env.Path(pipeline.Phase1EndFile))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if bytes.Equal(artifacts[0], artifacts[1]) {
		t.Errorf("two ceremony contributions produced identical artifacts")
	}
}

func TestFreshStagesAreSkipped(t *testing.T) {
	env := newTestEnv(t)
	env.Setup = ceremony.TestOnly
	writeInputs(t, env, `{"a": 2, "b": 5, "c": 10}`)
	ctx := context.Background()

	if err := pipeline.Run(ctx, env); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	before, err := os.ReadFile(env.Path(pipeline.ProofFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// a second run finds every artifact fresh and rewrites nothing
	if err := pipeline.Run(ctx, env); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	after, err := os.ReadFile(env.Path(pipeline.ProofFile))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("second run rewrote the proof artifact")
	}
}

func TestProveRejectsMismatchedKeypair(t *testing.T) {
	env := newTestEnv(t)
	env.Setup = ceremony.TestOnly
	writeInputs(t, env, `{"a": 3, "b": 4, "c": 12}`)
	ctx := context.Background()

	if err := pipeline.Run(ctx, env); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
	// recompile a different circuit under the same artifact name: the
	// keypair binding must reject it
	env.CircuitName = "preimage"
	env.Force = true
	compileStage, err := pipeline.StageByName("compile")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pipeline.RunStage(ctx, env, compileStage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	proveStage, err := pipeline.StageByName("prove")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := pipeline.RunStage(ctx, env, proveStage); err == nil {
		t.Errorf("expected prove to reject a keypair for a different circuit")
	}
}

func TestStageByName(t *testing.T) {
	names := []string{"ceremony-init", "contribute", "prepare-phase2",
		"compile", "keygen", "export-vk", "witness", "prove"}
	for i, stage := range pipeline.Stages() {
		if stage.Name() != names[i] {
			t.Errorf("stage %d is %q, expected %q", i, stage.Name(), names[i])
		}
	}
	if _, err := pipeline.StageByName("upload"); err == nil {
		t.Errorf("expected error for unknown stage")
	}
}

func TestEnvPath(t *testing.T) {
	env := pipeline.DefaultEnv("/work")
	if got := env.Path("proof.json"); got != filepath.Join("/work", "proof.json") {
		t.Errorf("unexpected path %q", got)
	}
	if got := env.Path("/abs/inputs.json"); got != "/abs/inputs.json" {
		t.Errorf("unexpected path %q", got)
	}
}
