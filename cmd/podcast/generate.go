package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/snappy-loop/podcasts/internal/app"
	"github.com/snappy-loop/podcasts/internal/config"
	"github.com/snappy-loop/podcasts/internal/logging"
	"github.com/snappy-loop/podcasts/internal/models"
	"github.com/spf13/cobra"
)

// generator is the subset of pipeline.Generator used by the CLI.
type generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GenerationResult, error)
}

// generatorFactory builds a generator from config and returns a cleanup func.
type generatorFactory func(ctx context.Context, cfg *config.Config) (generator, func(), error)

func newAppGenerator(ctx context.Context, cfg *config.Config) (generator, func(), error) {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return a.Generator, a.Close, nil
}

func newRootCommand(newGenerator generatorFactory) *cobra.Command {
	var (
		cfg *config.Config
		req models.GenerationRequest
	)

	cmd := &cobra.Command{
		Use:   "podcast TOPIC",
		Short: "Generate a podcast script and audio for a topic",
		Example: `podcast "The history of coffee"
podcast "Space travel" --style playful --duration 5 --skip-audio`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg = config.Load()
			logging.Setup(cfg.LogLevel)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Topic = strings.Join(args, " ")
			if strings.TrimSpace(req.Topic) == "" {
				return models.ErrInvalidRequest
			}

			gen, cleanup, err := newGenerator(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := gen.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().StringVarP(&req.Style, "style", "s", models.DefaultStyle, "delivery style of the host")
	cmd.Flags().IntVarP(&req.DurationMinutes, "duration", "d", models.DefaultDurationMinutes, "target length in minutes")
	cmd.Flags().StringVarP(&req.Model, "model", "m", "", "text-generation model (default from DEFAULT_MODEL)")
	cmd.Flags().BoolVar(&req.SkipAudio, "skip-audio", false, "write the script only")
	cmd.Flags().StringVarP(&req.OutputDir, "output-dir", "o", "", "output directory (default from OUTPUT_DIR)")

	cmd.AddCommand(
		newRunsCommand(func() *config.Config { return cfg }),
		newEventsCommand(func() *config.Config { return cfg }),
	)

	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
