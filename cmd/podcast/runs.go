package main

import (
	"errors"

	"github.com/snappy-loop/podcasts/internal/config"
	"github.com/snappy-loop/podcasts/internal/database"
	"github.com/spf13/cobra"
)

func newRunsCommand(cfg func() *config.Config) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "runs",
		Short:   "List recent generation runs",
		Example: `podcast runs --limit 5`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			if c.DatabaseURL == "" {
				return errors.New("DATABASE_URL is not set")
			}

			db, err := database.Connect(cmd.Context(), c.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := database.NewRunRepository(db).ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", database.DefaultListLimit, "number of runs to show")

	return cmd
}
