package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewToolsCmd creates the "tools" command, listing the capability catalog.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the built-in capability catalog",
		RunE:  runTools,
	}
	cmd.Flags().String("config", "", "Path to config file")
	cmd.Flags().Bool("json", false, "Emit the catalog as JSON")
	return cmd
}

func runTools(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	asJSON, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")

	a, err := buildApp(cmd.Context(), configPath, verbose)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	descriptions := a.registry.Descriptions()
	if asJSON {
		data, err := json.MarshalIndent(descriptions, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding catalog: %v", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tDESCRIPTION")
	for _, d := range descriptions {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.Category, d.Description)
	}
	return w.Flush()
}
