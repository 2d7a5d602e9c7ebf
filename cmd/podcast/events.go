package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/snappy-loop/podcasts/internal/config"
	"github.com/snappy-loop/podcasts/internal/kafka"
	"github.com/snappy-loop/podcasts/internal/models"
	"github.com/spf13/cobra"
)

func newEventsCommand(cfg func() *config.Config) *cobra.Command {
	var group string

	cmd := &cobra.Command{
		Use:     "events",
		Short:   "Follow generation events as JSON lines",
		Example: `podcast events --group my-dashboard`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := cfg()
			if !c.KafkaEnabled() {
				return errors.New("KAFKA_BROKERS is not set")
			}
			if group == "" {
				group = c.KafkaConsumerGroup
			}

			consumer := kafka.NewConsumer(c.KafkaBrokers, c.KafkaTopicEvents, group, eventPrinter(cmd.OutOrStdout()))
			defer consumer.Close()

			err := consumer.Start(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "consumer group (default from KAFKA_CONSUMER_GROUP)")

	return cmd
}

// eventPrinter writes each event as one JSON line.
func eventPrinter(w io.Writer) kafka.EventHandler {
	enc := json.NewEncoder(w)
	return kafka.EventHandlerFunc(func(_ context.Context, event *models.GenerationEvent) error {
		if err := enc.Encode(event); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
		return nil
	})
}
