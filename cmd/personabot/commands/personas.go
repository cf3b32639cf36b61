package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/personabot/pkg/personabot/personas"
)

// newPersonasCmd creates the `personabot personas` command listing the
// available personas.
func newPersonasCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "personas",
		Short: "List the available personas",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, p := range personas.All() {
				marker := " "
				if p.Key == personas.Default {
					marker = "*"
				}
				fmt.Printf("%s %-20s %s\n", marker, p.Key, p.Name)
			}
			fmt.Println("\n* default persona")
		},
	}
}
