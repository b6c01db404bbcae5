package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Alias1177/YieldPredictor/internal/backend"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List prediction backends",
	RunE:  runBackends,
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

func runBackends(cmd *cobra.Command, args []string) error {
	reg, err := backend.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range reg.Names() {
		marker := " "
		if name == flagBackend {
			marker = "*"
		}
		status := "ready"
		if p, _ := reg.Get(name); p != nil {
			if _, ok := p.(*backend.Unavailable); ok {
				status = "unavailable"
			}
		}
		fmt.Fprintf(out, "%s %-8s %-20s %s\n", marker, name, backend.Label(name), status)
	}
	return nil
}
