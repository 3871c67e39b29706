package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewDefinitionCmd создаёт группу команд для определений.
func NewDefinitionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definition",
		Short: "Inspect registered workflow definitions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs, err := clientFn().ListDefinitions(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"ID", "VERSION", "TENANT", "STEPS", "DESCRIPTION"}
			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = []string{d.ID, strconv.Itoa(d.Version), d.TenantID, strconv.Itoa(d.Steps), d.Description}
			}

			outputFn().Print(headers, rows, defs)
			return nil
		},
	})

	return cmd
}
