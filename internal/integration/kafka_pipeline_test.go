//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/kafka"
	"github.com/couchcryptid/lst-anomaly-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/lst-anomaly-etl/internal/config"
	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/couchcryptid/lst-anomaly-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testDecisionTopic = "test-decisions"

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("lst-anomaly-test"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// decodedMessage is a decision read back from the topic.
type decodedMessage struct {
	Key      string
	Headers  map[string]string
	Decision kafka.DecisionMessage
}

func readDecision(ctx context.Context, t *testing.T, consumer *kafkago.Reader) decodedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read decision")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var d kafka.DecisionMessage
	require.NoError(t, json.Unmarshal(msg.Value, &d), "unmarshal decision")
	return decodedMessage{Key: string(msg.Key), Headers: headers, Decision: d}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  []string{broker},
		Topic:    testDecisionTopic,
		GroupID:  "test-consumer-" + strconv.FormatInt(time.Now().UnixNano(), 10),
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// TestDecisionWriter verifies that published decisions arrive keyed by
// sensor and date with the decision header set.
func TestDecisionWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testDecisionTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testDecisionTopic}
	w := kafka.NewDecisionWriter(cfg, observability.DiscardLogger())
	t.Cleanup(func() { _ = w.Close() })

	day := time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC)
	rec := domain.ScoredRecord{
		ScoreRecord: domain.ScoreRecord{Sensor: domain.SensorConstellr, ObsDate: day, Metric: domain.Float(6.2), MetricSource: domain.MetricScene},
		Group:       "hires",
		IsEval:      true,
		Z:           domain.Float(4.1),
		RobustZFlag: true,
		EVTTailFlag: true,
		Score:       2,
		Decision:    domain.Decide(2),
	}
	generated := time.Date(2025, 7, 9, 6, 0, 0, 0, time.UTC)
	require.NoError(t, w.Publish(ctx, []domain.ScoredRecord{rec}, generated))

	got := readDecision(ctx, t, newConsumer(t, broker))
	assert.Equal(t, "constellr|2025-07-08", got.Key)
	assert.Equal(t, "investigate", got.Headers[kafka.HeaderDecision])
	assert.Equal(t, generated.Format(time.RFC3339), got.Headers[kafka.HeaderGeneratedAt])
	assert.Equal(t, domain.SensorConstellr, got.Decision.Sensor)
	assert.Equal(t, "2025-07-08", got.Decision.ObsDate)
	assert.Equal(t, domain.Float(6.2), got.Decision.Metric)
	assert.Equal(t, 2, got.Decision.Score)
}

// TestScorePublishesEvalDecisions runs the score job over an in-memory store
// and reads every evaluation decision back from Kafka.
func TestScorePublishesEvalDecisions(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testDecisionTopic)

	store := objectstore.NewFSStore(afero.NewMemMapFs(), "/data")
	require.NoError(t, store.Put(ctx, "in/landsat.csv", []byte(`Landsat acquisition date,Max Temp,Mean Temp
2022-07-01,33,30
2022-07-17,34,30
`), objectstore.ContentTypeCSV))
	require.NoError(t, store.Put(ctx, "in/downscaled.csv", []byte(`Sentinel 2 acquisition date,Max Temp,Mean Temp
2024-07-03,33,30
2024-07-08,33.5,30
2025-07-03,34,30
2025-07-08,45,30
`), objectstore.ContentTypeCSV))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testDecisionTopic}
	w := kafka.NewDecisionWriter(cfg, observability.DiscardLogger())
	t.Cleanup(func() { _ = w.Close() })

	p := pipeline.New(store, observability.DiscardLogger(), observability.NewMetricsForTesting(), pipeline.WithPublisher(w))
	res, err := p.RunScore(ctx, pipeline.ScoreOptions{
		Landsat:    "in/landsat.csv",
		Downscaled: "in/downscaled.csv",
		OutPrefix:  "out",
		Config:     domain.DefaultScoreConfig(),
	})
	require.NoError(t, err)
	eval := res.EvalOnly()
	require.Len(t, eval, 2)

	consumer := newConsumer(t, broker)
	keys := map[string]bool{}
	for range eval {
		got := readDecision(ctx, t, consumer)
		keys[got.Key] = true
		assert.True(t, got.Decision.IsEval)
		assert.Equal(t, "hires", got.Decision.BaselineGroup)
	}
	assert.Equal(t, map[string]bool{"downscaled|2025-07-03": true, "downscaled|2025-07-08": true}, keys)
}
