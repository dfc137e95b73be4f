package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sigma0-xyz/zkbitcoin/artifacts"
	"github.com/sigma0-xyz/zkbitcoin/circuit"
	"github.com/sigma0-xyz/zkbitcoin/pipeline"
	"github.com/sigma0-xyz/zkbitcoin/verifier"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "fetch and cache the trusted ceremony parameters",
	Long: `setup downloads the perpetual powers-of-tau ceremony file for the
configured power into the local cache. It is idempotent: an already cached
file is not downloaded again, so it is safe to run before every pipeline
invocation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := artifacts.PowersOfTau(fPower).Fetch(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "verify a proof against the exported verification key",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv()
		if err != nil {
			return err
		}
		err = verifier.VerifyFiles(
			env.Path(pipeline.VKFile),
			env.Path(pipeline.ProofFile),
			env.Path(pipeline.ProofInputsFile))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "proof verified")
		return nil
	},
}

var exportSolidityCmd = &cobra.Command{
	Use:   "export-solidity",
	Short: "export the verification key as a solidity verifier contract",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := buildEnv()
		if err != nil {
			return err
		}
		vk, _, err := verifier.ReadVKJSON(env.Path(pipeline.VKFile))
		if err != nil {
			return err
		}
		out := filepath.Join(env.Dir, "Verifier.sol")
		if err := verifier.WriteSolidity(out, vk); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var circuitsCmd = &cobra.Command{
	Use:   "circuits",
	Short: "list the registered circuits",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range circuit.List() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func init() {
	rootCmd.AddCommand(setupCmd, verifyCmd, exportSolidityCmd, circuitsCmd)
	for _, stage := range pipeline.Stages() {
		rootCmd.AddCommand(stageCommand(stage))
	}
}

// stageCommand wraps a pipeline stage as a subcommand, so each stage can be
// run on its own against the artifacts already in the working directory.
func stageCommand(stage pipeline.Stage) *cobra.Command {
	return &cobra.Command{
		Use:   stage.Name(),
		Short: "run only the " + stage.Name() + " stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnv()
			if err != nil {
				return err
			}
			return pipeline.RunStage(cmd.Context(), env, stage)
		},
	}
}
