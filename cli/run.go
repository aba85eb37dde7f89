package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/petal-labs/petalpilot/agent"
	"github.com/petal-labs/petalpilot/core"
	"github.com/petal-labs/petalpilot/workflow"
)

// chainFile is the YAML shape of a runnable chain definition.
type chainFile struct {
	Name      string         `yaml:"name,omitempty"`
	Variables map[string]any `yaml:"variables,omitempty"`
	Steps     []agent.Step   `yaml:"steps"`
}

// NewRunCmd creates the "run" command, executing a chain definition.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <chain.yaml>",
		Short: "Run a multi-step tool chain from a YAML definition",
		Args:  cobra.ExactArgs(1),
		RunE:  runChain,
	}
	cmd.Flags().String("config", "", "Path to config file")
	return cmd
}

func runChain(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	// #nosec G304 -- path given explicitly on the command line.
	data, err := os.ReadFile(args[0])
	if err != nil {
		return exitError(exitValidation, "reading chain %q: %v", args[0], err)
	}
	var def chainFile
	if err := yaml.Unmarshal(data, &def); err != nil {
		return exitError(exitValidation, "parsing chain %q: %v", args[0], err)
	}
	if len(def.Steps) == 0 {
		return exitError(exitValidation, "chain %q has no steps", args[0])
	}

	a, err := buildApp(cmd.Context(), configPath, verbose)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	for name, value := range def.Variables {
		a.vars.Set(name, value, workflow.SourceUser)
	}

	report := a.runner.Run(cmd.Context(), agent.Chain{Name: def.Name, Steps: def.Steps}, &core.AgentContext{
		Personas: a.cfg.Personas,
	})

	out := cmd.OutOrStdout()
	for i, outcome := range report.Outcomes {
		switch {
		case outcome.Skipped:
			fmt.Fprintf(out, "%d. %s: skipped\n", i+1, outcome.Tool)
		case outcome.Result != nil && outcome.Result.Success:
			fmt.Fprintf(out, "%d. %s: ok\n", i+1, outcome.Tool)
			if outcome.Result.DisplayText != "" {
				fmt.Fprintln(out, indent(outcome.Result.DisplayText))
			}
		case outcome.Result != nil:
			fmt.Fprintf(out, "%d. %s: failed: %s\n", i+1, outcome.Tool, outcome.Result.Error)
		}
	}

	switch {
	case report.Stopped:
		return exitError(exitRuntime, "chain interrupted")
	case report.Failed:
		return exitError(exitRuntime, "chain failed")
	}
	return nil
}

func indent(s string) string {
	return "   " + s
}
