package objectstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/couchcryptid/lst-anomaly-etl/internal/observability"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSStore_PutGetList(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(afero.NewMemMapFs(), "/data")

	require.NoError(t, s.Put(ctx, "anomalies/threshold_99p.json", []byte(`{}`), ContentTypeJSON))
	require.NoError(t, s.Put(ctx, "anomalies/anomaly_eval.csv", []byte("a\n"), ContentTypeCSV))
	require.NoError(t, s.Put(ctx, "lst/fordo/fordo_LST_summary.csv", []byte("b\n"), ContentTypeCSV))

	data, err := s.Get(ctx, "anomalies/threshold_99p.json")
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	keys, err := s.List(ctx, "anomalies/")
	require.NoError(t, err)
	assert.Equal(t, []string{"anomalies/anomaly_eval.csv", "anomalies/threshold_99p.json"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Equal(t, "file:///data/lst/x.csv", s.URI("lst/x.csv"))
	require.NoError(t, s.Ping(ctx))
}

func TestFSStore_Missing(t *testing.T) {
	ctx := context.Background()
	s := NewFSStore(afero.NewMemMapFs(), "/nowhere")

	_, err := s.Get(ctx, "missing.csv")
	require.ErrorIs(t, err, ErrNotFound)

	keys, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)

	assert.Error(t, s.Ping(ctx))
}

func TestJoinAndContentType(t *testing.T) {
	assert.Equal(t, "anomalies/fordo/a.csv", Join("/anomalies/", "", "fordo/", "a.csv"))
	assert.Equal(t, ContentTypeJSON, ContentTypeFor("x/threshold_99p.json"))
	assert.Equal(t, ContentTypeXLSX, ContentTypeFor("x/a.XLSX"))
	assert.Equal(t, ContentTypeCSV, ContentTypeFor("x/a.csv"))
}

// fakeS3 answers the handful of S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string
	puts    []string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucketOnly := !strings.Contains(p, "/")
	switch {
	case r.Method == http.MethodHead && bucketOnly:
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && !bucketOnly:
		f.puts = append(f.puts, p)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead || r.Method == http.MethodGet:
		if _, ok := f.objects[p]; !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`))
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testMinio(t *testing.T, h http.Handler) *MinioStore {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := NewMinioStore(MinioOptions{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "test",
		SecretKey: "testsecret",
		Bucket:    "thermal",
		Region:    "eu-west-2",
	}, observability.DiscardLogger())
	require.NoError(t, err)
	return s
}

func TestMinioStore_GetMissingIsNotFound(t *testing.T) {
	s := testMinio(t, &fakeS3{objects: map[string]string{}})

	_, err := s.Get(context.Background(), "lst/fordo/missing.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMinioStore_PutAndPing(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	s := testMinio(t, fake)

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Put(context.Background(), "anomalies/anomaly_eval.csv", []byte("obs_date\n"), ContentTypeCSV))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"thermal/anomalies/anomaly_eval.csv"}, fake.puts)
	assert.Equal(t, "s3://thermal/anomalies/anomaly_eval.csv", s.URI("anomalies/anomaly_eval.csv"))
}
