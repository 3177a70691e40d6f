package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/couchcryptid/lst-anomaly-etl/internal/domain"
	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func scored(sensor domain.Sensor, day time.Time, flags int) domain.ScoredRecord {
	r := domain.ScoredRecord{
		ScoreRecord: domain.ScoreRecord{
			Sensor:       sensor,
			ObsDate:      day,
			Metric:       domain.Float(2.5),
			MetricSource: domain.MetricDiffFromMean,
		},
		Group:       "hires",
		IsEval:      true,
		Z:           domain.Float(4.2),
		RobustZFlag: flags > 0,
		EVTTailFlag: flags > 1,
		Score:       flags,
	}
	r.Decision = domain.Decide(flags)
	return r
}

func TestSerializeDecision(t *testing.T) {
	now := time.Date(2025, 7, 4, 6, 0, 0, 0, time.UTC)
	rec := scored(domain.SensorConstellr, time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC), 2)

	msg, err := serializeDecision(rec, now)
	require.NoError(t, err)

	assert.Equal(t, []byte("constellr|2025-07-03"), msg.Key)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, HeaderDecision, msg.Headers[0].Key)
	assert.Equal(t, []byte("investigate"), msg.Headers[0].Value)
	assert.Equal(t, HeaderGeneratedAt, msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "constellr", body["sensor"])
	assert.Equal(t, "2025-07-03", body["obs_date"])
	assert.Equal(t, 2.5, body["delt_rob"])
	assert.Nil(t, body["z_gap"], "undefined values are null")
	assert.Equal(t, float64(2), body["anomaly_score"])
	assert.Equal(t, "investigate", body["decision"])
}

func TestDecisionWriter_Publish(t *testing.T) {
	fw := &fakeWriter{}
	w := &DecisionWriter{writer: fw, logger: observability.DiscardLogger()}
	day := time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC)

	require.NoError(t, w.Publish(context.Background(), nil, day))
	assert.Empty(t, fw.msgs)

	recs := []domain.ScoredRecord{
		scored(domain.SensorDownscaled, day, 0),
		scored(domain.SensorConstellr, day, 1),
	}
	require.NoError(t, w.Publish(context.Background(), recs, day))
	require.Len(t, fw.msgs, 2)
	assert.Equal(t, "downscaled|2025-07-03", string(fw.msgs[0].Key))
	assert.Equal(t, []byte("low_interest"), fw.msgs[1].Headers[0].Value)

	require.NoError(t, w.Close())
	assert.True(t, fw.closed)
}

func TestDecisionWriter_PublishError(t *testing.T) {
	fw := &fakeWriter{err: errors.New("broker down")}
	w := &DecisionWriter{writer: fw, logger: observability.DiscardLogger()}

	err := w.Publish(context.Background(), []domain.ScoredRecord{scored(domain.SensorLandsat, time.Now(), 0)}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
