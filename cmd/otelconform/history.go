package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/otelconform/otelconform/pkg/history"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conformance runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}

			dsn := v.GetString("db")
			if dsn == "" {
				return fmt.Errorf("missing --db\n\nUsage: otelconform history --db runs.db")
			}

			store, err := history.Open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					fmt.Fprintf(os.Stderr, "error closing history store: %v\n", err)
				}
			}()

			entries, err := store.List(cmd.Context(), v.GetInt("limit"))
			if err != nil {
				return err
			}

			renderHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}

	cmd.Flags().String("db", "", "history database (sqlite path or postgres:// DSN)")
	cmd.Flags().Int("limit", 20, "maximum runs to list")

	return cmd
}
