package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// fakeService is a small in-memory imitation of the search REST API.
type fakeService struct {
	t *testing.T

	mu       sync.Mutex
	docs     map[string]map[string]any
	schema   map[string]any
	dropped  bool
	searches []map[string]any
	reject   map[string]string
	auth     string
}

func newFakeService(t *testing.T) (*fakeService, *httptest.Server) {
	t.Helper()
	f := &fakeService{t: t, docs: make(map[string]map[string]any), reject: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Query().Get("api-version") != "2023-11-01" {
		http.Error(w, `{"error":{"message":"missing api-version"}}`, http.StatusBadRequest)
		return
	}
	if key := r.Header.Get("api-key"); key != "" {
		f.auth = "key:" + key
	} else {
		f.auth = r.Header.Get("Authorization")
	}

	switch {
	case r.Method == http.MethodPut && r.URL.Path == "/indexes/wiki":
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&f.schema))
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodDelete && r.URL.Path == "/indexes/wiki":
		if f.dropped {
			http.Error(w, `{"error":{"message":"index not found"}}`, http.StatusNotFound)
			return
		}
		f.dropped = true
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodPost && r.URL.Path == "/indexes/wiki/docs/index":
		f.index(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/indexes/wiki/docs/search":
		f.search(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/indexes/wiki/docs/"):
		doc, ok := f.docs[strings.TrimPrefix(r.URL.Path, "/indexes/wiki/docs/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(doc)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
	}
}

func (f *fakeService) index(w http.ResponseWriter, r *http.Request) {
	var batch struct {
		Value []map[string]any `json:"value"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&batch))

	var results []map[string]any
	for _, doc := range batch.Value {
		key := doc["id"].(string)
		if msg, ok := f.reject[key]; ok {
			results = append(results, map[string]any{"key": key, "status": false, "errorMessage": msg, "statusCode": 400})
			continue
		}
		switch doc["@search.action"] {
		case "delete":
			delete(f.docs, key)
		default:
			delete(doc, "@search.action")
			f.docs[key] = doc
		}
		results = append(results, map[string]any{"key": key, "status": true, "statusCode": 200})
	}
	status := http.StatusOK
	if len(f.reject) > 0 {
		status = http.StatusMultiStatus
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"value": results})
}

// search honours "space eq" and "document_id eq" filters plus top/skip.
func (f *fakeService) search(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	f.searches = append(f.searches, req)

	filter, _ := req["filter"].(string)
	keys := make([]string, 0, len(f.docs))
	for key, doc := range f.docs {
		if matches(doc, filter) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	skip, _ := req["skip"].(float64)
	top, _ := req["top"].(float64)
	start := min(int(skip), len(keys))
	end := min(start+int(top), len(keys))

	var value []map[string]any
	for i, key := range keys[start:end] {
		hit := map[string]any{"@search.score": 1.0 / float64(i+1)}
		for k, v := range f.docs[key] {
			if k != "chunkVector" && k != "titleVector" {
				hit[k] = v
			}
		}
		value = append(value, hit)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"value": value})
}

func matches(doc map[string]any, filter string) bool {
	if filter == "" {
		return true
	}
	for _, clause := range strings.Split(filter, " and ") {
		field, value, ok := strings.Cut(clause, " eq ")
		if !ok {
			continue
		}
		if doc[field] != strings.Trim(value, "'") {
			return false
		}
	}
	return true
}

func newTestIndex(t *testing.T, srv *httptest.Server) *Index {
	t.Helper()
	x, err := New(context.Background(), Config{
		Endpoint:   srv.URL,
		Name:       "wiki",
		APIVersion: "2023-11-01",
		Key:        "secret",
		Dimensions: 3,
	})
	require.NoError(t, err)
	return x
}

func testRecord(id, documentID, space string) domain.IndexRecord {
	return domain.IndexRecord{
		ID:               id,
		DocumentID:       documentID,
		Space:            space,
		ItemType:         domain.ItemTypePage,
		Title:            "Title " + documentID,
		TitleVector:      []float32{1, 0, 0},
		Chunk:            "chunk of " + id,
		ChunkVector:      []float32{0, 1, 0},
		LastModifiedDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		LastIndexedDate:  time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC),
		URL:              "https://wiki.example.com/display/" + space + "/" + documentID,
	}
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "https://x.search.windows.net", Name: "wiki"})
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	_, err = New(context.Background(), Config{Name: "wiki", Key: "k"})
	assert.ErrorIs(t, err, domain.ErrConfigInvalid)

	_, err = New(context.Background(), Config{
		Endpoint: "https://x.search.windows.net", Name: "wiki", ClientID: "id", ClientSecret: "s",
	})
	assert.ErrorIs(t, err, domain.ErrConfigInvalid, "tenant is required without a token URL")
}

func TestCreateOrUpdateSchema(t *testing.T) {
	f, srv := newFakeService(t)
	x := newTestIndex(t, srv)

	require.NoError(t, x.CreateOrUpdateSchema(context.Background()))

	assert.Equal(t, "key:secret", f.auth)
	assert.Equal(t, "wiki", f.schema["name"])

	fields := make(map[string]map[string]any)
	for _, raw := range f.schema["fields"].([]any) {
		fd := raw.(map[string]any)
		fields[fd["name"].(string)] = fd
	}
	assert.Len(t, fields, 13)
	assert.Equal(t, true, fields["id"]["key"])
	assert.Equal(t, "Collection(Edm.Single)", fields["chunkVector"]["type"])
	assert.Equal(t, float64(3), fields["chunkVector"]["dimensions"])
	assert.Equal(t, vectorProfile, fields["titleVector"]["vectorSearchProfile"])
	assert.Equal(t, "Edm.DateTimeOffset", fields["last_indexed_date"]["type"])
	assert.Equal(t, true, fields["attachment_page_id"]["filterable"])

	semantic := f.schema["semantic"].(map[string]any)["configurations"].([]any)[0].(map[string]any)
	assert.Equal(t, semanticConfig, semantic["name"])
}

func TestUpsertAndGetMetadata(t *testing.T) {
	_, srv := newFakeService(t)
	x := newTestIndex(t, srv)
	ctx := context.Background()

	rec := testRecord("101_0", "101", "ENG")
	require.NoError(t, x.Upsert(ctx, rec))

	meta, err := x.GetMetadata(ctx, "101_0")
	require.NoError(t, err)
	assert.True(t, meta.LastModifiedDate.Equal(rec.LastModifiedDate))
	assert.True(t, meta.LastIndexedDate.Equal(rec.LastIndexedDate))

	_, err = x.GetMetadata(ctx, "999_0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsert_RejectedItem(t *testing.T) {
	f, srv := newFakeService(t)
	x := newTestIndex(t, srv)
	f.reject["bad_0"] = "vector dimensions mismatch"

	err := x.Upsert(context.Background(), testRecord("bad_0", "bad", "ENG"))

	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, "vector dimensions mismatch", itemErr.Failed["bad_0"])
	assert.Contains(t, err.Error(), "bad_0")
}

func TestSearch_FilterAndPaging(t *testing.T) {
	f, srv := newFakeService(t)
	x := newTestIndex(t, srv)
	ctx := context.Background()

	total := BatchSize + 5
	for i := range total {
		f.docs[fmt.Sprintf("p%04d_0", i)] = map[string]any{
			"id": fmt.Sprintf("p%04d_0", i), "document_id": fmt.Sprintf("p%04d", i), "space": "ENG",
		}
	}
	f.docs["other_0"] = map[string]any{"id": "other_0", "document_id": "other", "space": "OPS"}

	records, err := x.Search(ctx, domain.RecordFilter{Space: "ENG"})
	require.NoError(t, err)
	assert.Len(t, records, total)
	require.Len(t, f.searches, 2)
	assert.Equal(t, "space eq 'ENG'", f.searches[0]["filter"])
	assert.Equal(t, float64(BatchSize), f.searches[1]["skip"])

	records, err = x.Search(ctx, domain.RecordFilter{DocumentID: "other"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "OPS", records[0].Space)
}

func TestDelete_Batches(t *testing.T) {
	f, srv := newFakeService(t)
	x := newTestIndex(t, srv)
	ctx := context.Background()

	ids := make([]string, 0, BatchSize+1)
	for i := range BatchSize + 1 {
		id := fmt.Sprintf("d%04d_0", i)
		f.docs[id] = map[string]any{"id": id}
		ids = append(ids, id)
	}
	f.docs["keep_0"] = map[string]any{"id": "keep_0"}

	require.NoError(t, x.Delete(ctx, ids))
	assert.Len(t, f.docs, 1)
	assert.Contains(t, f.docs, "keep_0")

	assert.NoError(t, x.Delete(ctx, nil))
}

func TestDrop_MissingIndexIsNotAnError(t *testing.T) {
	f, srv := newFakeService(t)
	x := newTestIndex(t, srv)

	require.NoError(t, x.Drop(context.Background()))
	assert.True(t, f.dropped)
	assert.NoError(t, x.Drop(context.Background()))
}

func TestQuery_Hybrid(t *testing.T) {
	f, srv := newFakeService(t)
	x := newTestIndex(t, srv)
	ctx := context.Background()
	require.NoError(t, x.Upsert(ctx, testRecord("101_0", "101", "ENG")))
	require.NoError(t, x.Upsert(ctx, testRecord("202_0", "202", "OPS")))

	hits, err := x.Query(ctx, domain.Query{Text: "deploy", Vector: []float32{0, 1, 0}, Space: "ENG", Limit: 5})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "101_0", hits[0].Record.ID)
	assert.Equal(t, 1.0, hits[0].Score)

	req := f.searches[0]
	assert.Equal(t, "deploy", req["search"])
	assert.Equal(t, "space eq 'ENG'", req["filter"])
	vq := req["vectorQueries"].([]any)[0].(map[string]any)
	assert.Equal(t, "chunkVector", vq["fields"])
	assert.Equal(t, float64(5), vq["k"])
}

func TestQuery_KeywordOnly(t *testing.T) {
	f, srv := newFakeService(t)
	x := newTestIndex(t, srv)

	_, err := x.Query(context.Background(), domain.Query{Text: "deploy"})
	require.NoError(t, err)

	req := f.searches[0]
	assert.NotContains(t, req, "vectorQueries")
	assert.NotContains(t, req, "filter")
	assert.Equal(t, float64(10), req["top"])
}

func TestAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":"Forbidden","message":"Authorization failed."}}`))
	}))
	defer srv.Close()
	x := newTestIndex(t, srv)

	err := x.CreateOrUpdateSchema(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, "Authorization failed.", apiErr.Message)
	assert.False(t, IsNotFound(err))
}

func TestClientCredentials(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, Scope, r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokens.Close()

	f, srv := newFakeService(t)
	x, err := New(context.Background(), Config{
		Endpoint:     srv.URL,
		Name:         "wiki",
		APIVersion:   "2023-11-01",
		ClientID:     "app",
		ClientSecret: "shh",
		TokenURL:     tokens.URL,
	})
	require.NoError(t, err)

	require.NoError(t, x.CreateOrUpdateSchema(context.Background()))
	assert.Equal(t, "Bearer tok-123", f.auth)
}

func TestODataFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter domain.RecordFilter
		want   string
	}{
		{"empty", domain.RecordFilter{}, ""},
		{"document", domain.RecordFilter{DocumentID: "42"}, "document_id eq '42'"},
		{
			"attachments of space",
			domain.RecordFilter{Space: "ENG", ExcludeItemType: domain.ItemTypePage},
			"space eq 'ENG' and item_type ne 'page'",
		},
		{"quoted", domain.RecordFilter{Space: "O'Brien"}, "space eq 'O''Brien'"},
		{"page attachments", domain.RecordFilter{AttachmentPageID: "7"}, "attachment_page_id eq '7'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, odataFilter(tt.filter))
		})
	}
}

func TestDateTime_RoundTripsMilliseconds(t *testing.T) {
	b, err := json.Marshal(newDateTime(time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("CET", 3600))))
	require.NoError(t, err)
	assert.Equal(t, `"2024-05-01T11:00:00.123Z"`, string(b))

	var d dateTime
	require.NoError(t, json.Unmarshal([]byte(`"2024-05-01T11:00:00Z"`), &d))
	assert.Equal(t, time.UTC, d.Location())
}
