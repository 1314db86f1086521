package main

import (
	"github.com/spf13/cobra"
)

// buildRootCmd assembles the agentcore command tree.
func buildRootCmd() *cobra.Command {
	var debug bool

	root := &cobra.Command{
		Use:   "agentcore",
		Short: "Agent execution core: DSL workflows and the HybridAgent runtime",
		Long: `agentcore validates and runs declarative DSL workflows against a tool
registry, and hosts the long-running process backing a HybridAgent
deployment.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				cmd.SetContext(withDebugLogging(cmd.Context()))
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")

	root.AddCommand(buildRunCmd(), buildValidateDSLCmd(), buildServeCmd())
	return root
}

func buildRunCmd() *cobra.Command {
	var (
		file       string
		configPath string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a DSL workflow file",
		Example: `  # Run a workflow, using the default tool set
  agentcore run --file workflow.yaml

  # Run with a specific configuration file
  agentcore run --file workflow.json --config agentcore.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd.Context(), file, configPath)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the DSL workflow file (JSON or YAML)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildValidateDSLCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate-dsl",
		Short: "Validate a DSL workflow file without executing it",
		Example: `  agentcore validate-dsl --file workflow.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateDSL(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the DSL workflow file (JSON or YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host the long-running agent execution process",
		Long: `Start the agent execution core as a long-running process: load
configuration, initialize the in-memory ContextEngine and Checkpointer
reference implementations, and block until a termination signal arrives.

Concrete LLM providers, HTTP transports and persistence backends are not
owned by this core; a production deployment wires them in around this
entrypoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file")
	return cmd
}
