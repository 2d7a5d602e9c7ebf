package pipeline

import (
	"context"

	"github.com/snappy-loop/podcasts/internal/models"
)

// EventPublisher publishes run outcomes (e.g. to Kafka). May be nil to skip publishing.
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.GenerationEvent) error
}

// RunRecorder stores run outcomes (e.g. in Postgres). May be nil to skip recording.
type RunRecorder interface {
	RecordEvent(ctx context.Context, event *models.GenerationEvent) error
}

// ArtifactMirror copies finished artifacts elsewhere (e.g. S3). May be nil.
type ArtifactMirror interface {
	Mirror(ctx context.Context, localPaths ...string) error
}
