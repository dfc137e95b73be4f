// Command zkbitcoin runs the plonk proof pipeline: a bare invocation
// executes every stage in order over the working directory, and each stage is
// also exposed as its own subcommand. The `setup` subcommand pre-fetches the
// trusted ceremony parameters and can be re-run safely.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sigma0-xyz/zkbitcoin"
	"github.com/sigma0-xyz/zkbitcoin/ceremony"
	"github.com/sigma0-xyz/zkbitcoin/logger"
	"github.com/sigma0-xyz/zkbitcoin/pipeline"
)

var (
	fDir              string
	fCurve            string
	fPower            uint8
	fCircuit          string
	fInputs           string
	fContributionName string
	fSetup            string
	fForce            bool
	fVerbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "zkbitcoin",
	Short: "run the plonk proof pipeline: ceremony, compile, keygen, witness, prove",
	Long: `zkbitcoin sequences the zero-knowledge proof workflow over artifact
files in the working directory: powers-of-tau ceremony, circuit compilation,
key generation, verification-key export, witness generation and proof
generation. Stages run in a fixed order and the first failure aborts the
run, leaving earlier artifacts in place.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv()
		if err != nil {
			return err
		}
		return pipeline.Run(cmd.Context(), env)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&fDir, "dir", ".", "working directory for artifacts")
	pf.StringVar(&fCurve, "curve", "bn254", "proving curve: bn254 or bls12-381")
	pf.Uint8Var(&fPower, "power", 14, "ceremony power: supports circuits of up to 2^power constraints")
	pf.StringVar(&fCircuit, "circuit", "multiplier", "registered circuit to compile and prove")
	pf.StringVar(&fInputs, "inputs", "inputs.json", "inputs file for witness generation")
	pf.StringVar(&fContributionName, "contribution-name", "First contribution", "label of the ceremony contribution")
	pf.StringVar(&fSetup, "setup", "local", "ceremony source: local, trusted or test-only")
	pf.BoolVar(&fForce, "force", false, "re-run stages whose artifacts are up to date")
	pf.BoolVarP(&fVerbose, "verbose", "v", false, "debug logging")
}

func buildEnv() (*pipeline.Env, error) {
	curve, err := zkbitcoin.CurveFromString(fCurve)
	if err != nil {
		return nil, err
	}
	var conf ceremony.Conf
	switch fSetup {
	case "local":
		conf = ceremony.Local
	case "trusted":
		conf = ceremony.Trusted
	case "test-only":
		conf = ceremony.TestOnly
	default:
		return nil, fmt.Errorf("unknown setup %q, want local, trusted or "+
			"test-only", fSetup)
	}
	if fVerbose {
		logger.Set(logger.Logger().Level(zerolog.DebugLevel))
	} else {
		logger.Set(logger.Logger().Level(zerolog.InfoLevel))
	}
	env := pipeline.DefaultEnv(fDir)
	env.Curve = curve
	env.Power = fPower
	env.CircuitName = fCircuit
	env.InputsFile = fInputs
	env.ContributionName = fContributionName
	env.Setup = conf
	env.Force = fForce
	env.Log = logger.Logger()
	return env, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
