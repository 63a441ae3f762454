package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const testBucketName = "ledger-reports"

func newFakeGCS(t *testing.T, handler http.Handler) *storage.Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithEndpoint(server.URL),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return client
}

func TestCloseNilSafe(t *testing.T) {
	g := &GCSClient{BucketName: testBucketName}
	assert.NotPanics(t, func() { _ = g.Close() })
}

func TestUploadSuccess(t *testing.T) {
	var mu sync.Mutex
	var body string
	var query string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		b, _ := io.ReadAll(r.Body)
		body += string(b)
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"sweeps/report.json","bucket":"ledger-reports"}`))
	})

	g := &GCSClient{Client: newFakeGCS(t, handler), BucketName: testBucketName, FolderName: "sweeps"}
	err := g.Upload(context.Background(), "report.json", []byte(`{"processed":3}`))

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, body, `{"processed":3}`)
	assert.Contains(t, query, "ifGenerationMatch=0")
	assert.True(t, strings.Contains(body, "sweeps/report.json") || strings.Contains(query, "sweeps"))
}

func TestUploadServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
		_, _ = w.Write([]byte(`{"error":{"code":412,"message":"exists"}}`))
	})

	g := &GCSClient{Client: newFakeGCS(t, handler), BucketName: testBucketName}
	assert.Error(t, g.Upload(context.Background(), "report.json", []byte("{}")))
}
