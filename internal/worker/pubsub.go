package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the subscription.
const (
	JobWeatherIngest = "weather_ingest"
	JobHealthCheck   = "health_check"
)

// IngestTrigger is the work the Pub/Sub handler can start.
type IngestTrigger interface {
	Run(ctx context.Context) (*IngestResult, error)
	CheckProvider(ctx context.Context) error
}

// PubSubHandler starts ingestion jobs from Pub/Sub messages.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	job              IngestTrigger
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Job              IngestTrigger
	Logger           zerolog.Logger
}

// PubSubConfigFromEnv reads PUBSUB_PROJECT_ID and PUBSUB_SUBSCRIPTION.
// Enabled reports whether both are set.
func PubSubConfigFromEnv() (cfg PubSubConfig, enabled bool) {
	cfg.ProjectID = os.Getenv("PUBSUB_PROJECT_ID")
	cfg.SubscriptionName = os.Getenv("PUBSUB_SUBSCRIPTION")
	return cfg, cfg.ProjectID != "" && cfg.SubscriptionName != ""
}

// JobMessage is the payload of a trigger message.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// One ingestion at a time; a run can take up to the ingest timeout.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 1
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		job:              cfg.Job,
		logger:           cfg.Logger,
	}, nil
}

// Start processes messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		if h.Handle(ctx, msg.Data, logger) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Handle runs the job named in data and reports whether the message should be
// acknowledged. Unknown job types are acknowledged so they are not redelivered.
func (h *PubSubHandler) Handle(ctx context.Context, data []byte, logger zerolog.Logger) bool {
	return handleJob(ctx, h.job, data, logger)
}

func handleJob(ctx context.Context, job IngestTrigger, data []byte, logger zerolog.Logger) bool {
	start := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Error().Err(err).Msg("failed to parse message")
		return false
	}

	var err error
	switch msg.JobType {
	case JobWeatherIngest:
		_, err = job.Run(ctx)
	case JobHealthCheck:
		err = job.CheckProvider(ctx)
	default:
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(start)).
		Msg("job completed successfully")
	return true
}
