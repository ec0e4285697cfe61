package main

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List the scenarios that run would play",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			scenarios, err := a.scenarios()
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "ID", "Name", "Inputs", "Expect")
			for _, sc := range scenarios {
				table.Append([]string{sc.ID, sc.Name, strconv.Itoa(len(sc.Inputs)), sc.Expect.String()})
			}
			table.Render()
			return nil
		},
	}
}
