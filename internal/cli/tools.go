package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the browser tools advertised to the planner",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), appOptions{withSurfer: true})
	if err != nil {
		return err
	}
	defer a.close()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPARAMETERS\tDESCRIPTION")
	for _, def := range a.surfer.Tools() {
		params := ""
		for i, p := range def.Parameters {
			if i > 0 {
				params += ","
			}
			params += p.Name
			if !p.Required {
				params += "?"
			}
		}
		if params == "" {
			params = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", def.Name, params, def.Description)
	}
	return w.Flush()
}
