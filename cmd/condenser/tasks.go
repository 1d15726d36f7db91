package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTasksCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage stored task records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired task records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := a.store.PurgeExpired()
			if err != nil {
				return err
			}
			fmt.Printf("purged %d expired task(s)\n", n)
			return nil
		},
	})
	return cmd
}
