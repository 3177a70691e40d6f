package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/config"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Message headers.
const (
	HeaderDecision    = "decision"
	HeaderGeneratedAt = "generated_at"
)

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// DecisionWriter publishes scored observations to a Kafka topic.
// It implements pipeline.DecisionPublisher.
type DecisionWriter struct {
	writer messageWriter
	logger *slog.Logger
}

// NewDecisionWriter creates a Kafka producer for the configured decision topic.
func NewDecisionWriter(cfg *config.Config, logger *slog.Logger) *DecisionWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &DecisionWriter{writer: w, logger: logger}
}

// Publish serializes and sends the decisions in a single WriteMessages call.
// Messages are keyed by sensor and date so reruns land on the same partition.
func (w *DecisionWriter) Publish(ctx context.Context, records []domain.ScoredRecord, generatedAt time.Time) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeDecision(records[i], generatedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish decisions: %w", err)
	}
	w.logger.Info("decisions published", "count", len(msgs))
	return nil
}

func (w *DecisionWriter) Close() error {
	return w.writer.Close()
}

// DecisionMessage is the JSON value of a published decision.
type DecisionMessage struct {
	Sensor          domain.Sensor       `json:"sensor"`
	ObsDate         string              `json:"obs_date"`
	BaselineGroup   string              `json:"baseline_group"`
	IsEval          bool                `json:"is_eval"`
	Metric          domain.NullFloat    `json:"delt_rob"`
	MetricSource    domain.MetricSource `json:"delt_rob_source,omitempty"`
	Z               domain.NullFloat    `json:"z_delt_rob"`
	ZGap            domain.NullFloat    `json:"z_gap"`
	TailThreshold   domain.NullFloat    `json:"u_thr"`
	TailQuantile    domain.NullFloat    `json:"delt_rob_evt_q"`
	RobustZFlag     bool                `json:"robust_z_flag"`
	WeatherNormFlag bool                `json:"weather_norm_flag"`
	EVTTailFlag     bool                `json:"evt_tail_flag"`
	Score           int                 `json:"anomaly_score"`
	Decision        domain.Decision     `json:"decision"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

// MessageKey is the partition key of a decision.
func MessageKey(r domain.ScoredRecord) string {
	return string(r.Sensor) + "|" + domain.FormatDay(r.ObsDate)
}

func serializeDecision(r domain.ScoredRecord, generatedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(DecisionMessage{
		Sensor:          r.Sensor,
		ObsDate:         domain.FormatDay(r.ObsDate),
		BaselineGroup:   r.Group,
		IsEval:          r.IsEval,
		Metric:          r.Metric,
		MetricSource:    r.MetricSource,
		Z:               r.Z,
		ZGap:            r.ZGap,
		TailThreshold:   r.TailU,
		TailQuantile:    r.TailQuantile,
		RobustZFlag:     r.RobustZFlag,
		WeatherNormFlag: r.WeatherNormFlag,
		EVTTailFlag:     r.EVTTailFlag,
		Score:           r.Score,
		Decision:        r.Decision,
		GeneratedAt:     generatedAt.UTC(),
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize decision: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(MessageKey(r)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderDecision, Value: []byte(r.Decision)},
			{Key: HeaderGeneratedAt, Value: []byte(generatedAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}
