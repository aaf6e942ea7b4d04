package ragflow

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/ragflow-setup/internal/adapter"
)

// fakeRagflow 按路径返回预设响应，记录收到的请求
type fakeRagflow struct {
	mu       sync.Mutex
	requests []string
	handlers map[string]http.HandlerFunc
}

func newFakeRagflow() *fakeRagflow {
	return &fakeRagflow{handlers: make(map[string]http.HandlerFunc)}
}

func (f *fakeRagflow) handle(method, path string, h http.HandlerFunc) {
	f.handlers[method+" "+path] = h
}

func (f *fakeRagflow) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	f.mu.Lock()
	f.requests = append(f.requests, key)
	f.mu.Unlock()

	if h, ok := f.handlers[key]; ok {
		h(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(`{"message":"not found"}`))
}

func (f *fakeRagflow) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	a, err := adapter.New(adapter.Config{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
	}, adapter.WithSleeper(func(ctx context.Context, d time.Duration) error { return ctx.Err() }))
	require.NoError(t, err)
	return NewClient(a)
}

func TestCreateDataset(t *testing.T) {
	fake := newFakeRagflow()
	var got CreateDatasetRequest
	fake.handle(http.MethodPost, "/api/v1/datasets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		writeJSON(w, map[string]interface{}{"code": 0, "data": map[string]interface{}{"id": "ds-1", "name": got.Name}})
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	dataset, err := client.CreateDataset(context.Background(), &CreateDatasetRequest{
		Name:         "financial-reports",
		ChunkMethod:  "paper",
		ParserConfig: &ParserConfig{Raptor: &RaptorConfig{UseRaptor: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ds-1", dataset.ID)
	assert.Equal(t, "financial-reports", got.Name)
	require.NotNil(t, got.ParserConfig)
	assert.True(t, got.ParserConfig.Raptor.UseRaptor)
}

func TestCreateDatasetFallsBackToLegacyPath(t *testing.T) {
	fake := newFakeRagflow()
	fake.handle(http.MethodPost, "/datasets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"success": true, "data": map[string]interface{}{"id": "ds-legacy"}})
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	dataset, err := client.CreateDataset(context.Background(), &CreateDatasetRequest{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ds-legacy", dataset.ID)
	assert.Equal(t, []string{
		"POST /api/v1/datasets",
		"POST /api/v1/dataset",
		"POST /datasets",
	}, fake.seen())
}

func TestCreateDatasetAllCandidatesFail(t *testing.T) {
	server := httptest.NewServer(newFakeRagflow())
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.CreateDataset(context.Background(), &CreateDatasetRequest{Name: "x"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, adapter.StatusCode(err))
}

func TestBusinessErrorIsTerminal(t *testing.T) {
	fake := newFakeRagflow()
	calls := 0
	fake.handle(http.MethodPost, "/api/v1/chats", func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeJSON(w, map[string]interface{}{"code": 102, "message": "dataset not found"})
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	_, err := client.CreateChatAssistant(context.Background(), &CreateChatAssistantRequest{Name: "a"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 102, apiErr.Code)
	assert.Equal(t, "dataset not found", apiErr.Message)
	assert.Equal(t, 1, calls)
	assert.False(t, adapter.IsRetryable(err))
}

func TestUploadDocumentsRetriesOnServerError(t *testing.T) {
	fake := newFakeRagflow()
	calls := 0
	var fileNames []string
	fake.handle(http.MethodPost, "/api/v1/datasets/ds-1/documents", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		fileNames = nil
		for _, fh := range r.MultipartForm.File["file"] {
			fileNames = append(fileNames, fh.Filename)
		}
		writeJSON(w, map[string]interface{}{"code": 0, "data": []map[string]interface{}{
			{"id": "doc-1", "name": "q1.pdf"},
			{"id": "doc-2", "name": "q2.pdf"},
		}})
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	docs, err := client.UploadDocuments(context.Background(), "ds-1", []UploadFile{
		{Name: "q1.pdf", Content: []byte("%PDF-1")},
		{Name: "q2.pdf", Content: []byte("%PDF-2")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-1", docs[0].ID)
	assert.Equal(t, 2, calls)
	assert.Equal(t, []string{"q1.pdf", "q2.pdf"}, fileNames)
}

func TestParseDocuments(t *testing.T) {
	fake := newFakeRagflow()
	var got ParseRequest
	fake.handle(http.MethodPost, "/api/v1/datasets/ds-1/chunks", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &got)
		writeJSON(w, map[string]interface{}{"code": 0})
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	require.NoError(t, client.ParseDocuments(context.Background(), "ds-1", []string{"doc-1", "doc-2"}))
	assert.Equal(t, []string{"doc-1", "doc-2"}, got.DocumentIDs)

	assert.ErrorIs(t, client.ParseDocuments(context.Background(), "", nil), ErrEmptyDatasetID)
}

func TestListDocumentsFormats(t *testing.T) {
	fake := newFakeRagflow()
	fake.handle(http.MethodGet, "/api/v1/datasets/ds-1/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"code": 0, "data": map[string]interface{}{
			"docs":  []map[string]interface{}{{"id": "doc-1", "name": "a.pdf"}},
			"total": 1,
		}})
	})
	fake.handle(http.MethodGet, "/api/v1/datasets/ds-2/documents", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"code": 0, "data": []map[string]interface{}{
			{"id": "doc-3"}, {"id": "doc-4"},
		}})
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	list, err := client.ListDocuments(context.Background(), "ds-1")
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "doc-1", list.Docs[0].ID)

	list, err = client.ListDocuments(context.Background(), "ds-2")
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "doc-4", list.Docs[1].ID)
}

func TestListDatasets(t *testing.T) {
	fake := newFakeRagflow()
	fake.handle(http.MethodGet, "/api/v1/datasets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"code": 0, "data": []map[string]interface{}{
			{"id": "ds-1", "name": "reports", "document_count": 3},
		}})
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	datasets, err := client.ListDatasets(context.Background())
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, 3, datasets[0].DocumentCount)
}

func TestClientHealthCheck(t *testing.T) {
	fake := newFakeRagflow()
	fake.handle(http.MethodGet, "/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := httptest.NewServer(fake)
	defer server.Close()

	client := newTestClient(t, server)
	assert.True(t, client.HealthCheck(context.Background()))
	assert.Equal(t, []string{"GET /health", "GET /api/health"}, fake.seen())
}
