package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	stampedehttp "github.com/wesleyorama2/stampede/internal/http"
	"github.com/wesleyorama2/stampede/internal/scenario"
)

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the available scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			exec := stampedehttp.NewExecutor(stampedehttp.DefaultClientConfig())
			defer exec.Close()

			registry := scenario.NewRegistry()
			if err := scenario.RegisterBuiltins(registry, scenario.Target{}, exec); err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSETUP\tCHECKS\tDESCRIPTION")
			for _, name := range registry.Names() {
				s, err := registry.Lookup(name)
				if err != nil {
					return err
				}
				setup := "-"
				if s.Setup != nil {
					setup = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.Name, setup, len(s.Checks), s.Description)
			}
			return w.Flush()
		},
	}
}
