// Package pipeline sequences the proof workflow stages over artifact files in
// a working directory: ceremony, circuit compilation, key generation,
// verification-key export, witness generation and proving. Stages run in a
// fixed linear order, each consuming the files the previous ones produced,
// and the first failing stage aborts the whole run leaving earlier artifacts
// in place.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/rs/zerolog"

	"github.com/sigma0-xyz/zkbitcoin/ceremony"
	"github.com/sigma0-xyz/zkbitcoin/logger"
)

// Artifact file names. Fixed: the stage sequencing contract is expressed
// entirely through these files.
const (
	Phase1StartFile = "phase1_start.srs"
	Phase1EndFile   = "phase1_end.srs"
	Phase2StartFile = "phase2_start.srs"
	ConstraintFile  = "circuit.ccs"
	SymbolsFile     = "circuit.sym"
	KeypairFile     = "circuit_final.zkey"
	VKFile          = "vk.json"
	WitnessFile     = "witness.wtns"
	ProofFile       = "proof.json"
	ProofInputsFile = "proof_inputs.json"
)

// Env is the fixed configuration of a pipeline run.
type Env struct {
	// Dir is the working directory holding all artifacts
	Dir string
	// Curve is the proving curve, bn254 by default
	Curve ecc.ID
	// Power sizes the ceremony: circuits of up to 2^Power constraints
	Power uint8
	// CircuitName selects the registered circuit to compile and prove
	CircuitName string
	// ContributionName labels the ceremony contribution
	ContributionName string
	// InputsFile is the public/secret inputs file for witness generation,
	// relative to Dir unless absolute
	InputsFile string
	// Setup selects where the ceremony parameters come from
	Setup ceremony.Conf
	// Force re-runs stages whose outputs are already fresh
	Force bool

	Log zerolog.Logger
}

// DefaultEnv returns the default pipeline configuration over dir: bn254,
// power 14, the multiplier circuit, a locally run ceremony with one
// contribution.
func DefaultEnv(dir string) *Env {
	return &Env{
		Dir:              dir,
		Curve:            ecc.BN254,
		Power:            14,
		CircuitName:      "multiplier",
		ContributionName: "First contribution",
		InputsFile:       "inputs.json",
		Setup:            ceremony.Local,
		Log:              logger.Logger(),
	}
}

// Path resolves an artifact name inside the working directory.
func (e *Env) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(e.Dir, name)
}

// Stage is one step of the pipeline. Inputs and Outputs declare the artifact
// files the stage consumes and produces, and drive the freshness check that
// lets an unchanged stage be skipped on re-runs.
type Stage interface {
	Name() string
	Inputs(env *Env) []string
	Outputs(env *Env) []string
	Run(ctx context.Context, env *Env) error
}

// Stages returns the pipeline stages in their fixed execution order.
func Stages() []Stage {
	return []Stage{
		ceremonyInitStage{},
		contributeStage{},
		prepareStage{},
		compileStage{},
		keygenStage{},
		exportVKStage{},
		witnessStage{},
		proveStage{},
	}
}

// StageByName returns the stage with the given name.
func StageByName(name string) (Stage, error) {
	for _, s := range Stages() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unknown stage %q", name)
}

// Run executes all stages in order, stopping at the first failure and
// returning its error. Stages whose outputs are newer than all their inputs
// are skipped unless env.Force is set; there is no rollback, a failed run
// leaves the artifacts of completed stages in place.
func Run(ctx context.Context, env *Env) error {
	for _, stage := range Stages() {
		if err := RunStage(ctx, env, stage); err != nil {
			return err
		}
	}
	return nil
}

// RunStage executes a single stage, honoring the freshness check.
func RunStage(ctx context.Context, env *Env, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := env.Log.With().Str("stage", stage.Name()).Logger()
	if !env.Force && fresh(env, stage) {
		log.Debug().Msg("artifacts up to date, skipping")
		return nil
	}
	start := time.Now()
	log.Info().Msg("running")
	if err := stage.Run(ctx, env); err != nil {
		return fmt.Errorf("stage %s: %w", stage.Name(), err)
	}
	log.Info().Dur("took", time.Since(start)).
		Strs("outputs", stage.Outputs(env)).Msg("done")
	return nil
}

// fresh reports whether all the stage outputs exist and none is older than
// any of its inputs.
func fresh(env *Env, stage Stage) bool {
	var newestInput time.Time
	for _, in := range stage.Inputs(env) {
		info, err := os.Stat(env.Path(in))
		if err != nil {
			return false
		}
		if info.ModTime().After(newestInput) {
			newestInput = info.ModTime()
		}
	}
	for _, out := range stage.Outputs(env) {
		info, err := os.Stat(env.Path(out))
		if err != nil {
			return false
		}
		if info.ModTime().Before(newestInput) {
			return false
		}
	}
	return true
}
