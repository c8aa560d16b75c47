package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/manager"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List available detector plugins",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := manager.DefaultRegistry()
		cyan := color.New(color.FgCyan).SprintFunc()

		// Instantiate against the mock to read names and kinds; no model
		// traffic happens here.
		mock := llm.NewMockInvoker()
		for _, name := range registry.Names() {
			factory, err := registry.Lookup(name)
			if err != nil {
				return err
			}
			d := factory(mock)
			fmt.Printf("%s  %s\n", cyan(fmt.Sprintf("%-10s", d.Name())), d.Kind())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
}
