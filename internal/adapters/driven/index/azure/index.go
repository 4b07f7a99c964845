package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/custodia-labs/wikisync/internal/core/domain"
	"github.com/custodia-labs/wikisync/internal/core/ports/driven"
	"github.com/custodia-labs/wikisync/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// BatchSize is the maximum number of actions sent in one index request.
	BatchSize = 1000

	// Scope is the OAuth2 scope of the search data plane.
	Scope = "https://search.azure.com/.default"
)

// Verify interface compliance at compile time.
var _ driven.SearchIndex = (*Index)(nil)

// Config describes the target index.
type Config struct {
	Endpoint   string
	Name       string
	APIVersion string
	Dimensions int

	// Key is the admin api-key. When empty, a client-credentials token is used.
	Key string

	TenantID     string
	ClientID     string
	ClientSecret string

	// TokenURL overrides the Azure AD token endpoint derived from TenantID.
	TokenURL string

	Timeout time.Duration
}

// Index is a driven.SearchIndex backed by Azure AI Search.
type Index struct {
	endpoint   string
	name       string
	apiVersion string
	apiKey     string
	dimensions int
	httpClient *http.Client
}

// Option configures the Index.
type Option func(*Index)

// WithHTTPClient sets a custom HTTP client. It replaces the token transport,
// so it should only be combined with an api-key.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(x *Index) {
		x.httpClient = httpClient
	}
}

// New creates an index client. Without an api-key the client credentials are
// exchanged for bearer tokens, which are cached and refreshed by the transport.
func New(ctx context.Context, cfg Config, opts ...Option) (*Index, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: search endpoint is required", domain.ErrConfigInvalid)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("%w: index name is required", domain.ErrConfigInvalid)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = domain.DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	x := &Index{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		name:       cfg.Name,
		apiVersion: cfg.APIVersion,
		apiKey:     cfg.Key,
		dimensions: cfg.Dimensions,
	}

	if cfg.Key == "" {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("%w: search key or client credentials are required", domain.ErrConfigInvalid)
		}
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			if cfg.TenantID == "" {
				return nil, fmt.Errorf("%w: tenant id is required for client credentials", domain.ErrConfigInvalid)
			}
			tokenURL = "https://login.microsoftonline.com/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token"
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{Scope},
		}
		x.httpClient = cc.Client(ctx)
		x.httpClient.Timeout = cfg.Timeout
	} else {
		x.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// document is the wire shape of a record.
type document struct {
	Action            string    `json:"@search.action,omitempty"`
	ID                string    `json:"id"`
	DocumentID        string    `json:"document_id,omitempty"`
	Space             string    `json:"space,omitempty"`
	ItemType          string    `json:"item_type,omitempty"`
	AttachmentPageID  string    `json:"attachment_page_id,omitempty"`
	AttachmentPageURL string    `json:"attachment_page_url,omitempty"`
	Title             string    `json:"title,omitempty"`
	TitleVector       []float32 `json:"titleVector,omitempty"`
	Chunk             string    `json:"chunk,omitempty"`
	ChunkVector       []float32 `json:"chunkVector,omitempty"`
	LastModifiedDate  *dateTime `json:"last_modified_date,omitempty"`
	LastIndexedDate   *dateTime `json:"last_indexed_date,omitempty"`
	URL               string    `json:"url,omitempty"`
}

// dateTime is an Edm.DateTimeOffset. The service stores UTC with millisecond precision.
type dateTime struct {
	time.Time
}

func newDateTime(t time.Time) *dateTime {
	if t.IsZero() {
		return nil
	}
	return &dateTime{t.UTC()}
}

func (d dateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.UTC().Format("2006-01-02T15:04:05.000Z"))
}

func (d *dateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return err
	}
	d.Time = t.UTC()
	return nil
}

func (d *dateTime) value() time.Time {
	if d == nil {
		return time.Time{}
	}
	return d.Time
}

func toDocument(r domain.IndexRecord, action string) document {
	return document{
		Action:            action,
		ID:                r.ID,
		DocumentID:        r.DocumentID,
		Space:             r.Space,
		ItemType:          r.ItemType,
		AttachmentPageID:  r.AttachmentPageID,
		AttachmentPageURL: r.AttachmentPageURL,
		Title:             r.Title,
		TitleVector:       r.TitleVector,
		Chunk:             r.Chunk,
		ChunkVector:       r.ChunkVector,
		LastModifiedDate:  newDateTime(r.LastModifiedDate),
		LastIndexedDate:   newDateTime(r.LastIndexedDate),
		URL:               r.URL,
	}
}

func (d document) record() domain.IndexRecord {
	return domain.IndexRecord{
		ID:                d.ID,
		DocumentID:        d.DocumentID,
		Space:             d.Space,
		ItemType:          d.ItemType,
		AttachmentPageID:  d.AttachmentPageID,
		AttachmentPageURL: d.AttachmentPageURL,
		Title:             d.Title,
		TitleVector:       d.TitleVector,
		Chunk:             d.Chunk,
		ChunkVector:       d.ChunkVector,
		LastModifiedDate:  d.LastModifiedDate.value(),
		LastIndexedDate:   d.LastIndexedDate.value(),
		URL:               d.URL,
	}
}

// GetMetadata looks up one record by key.
func (x *Index) GetMetadata(ctx context.Context, recordID string) (*domain.IndexMetadata, error) {
	var doc document
	params := url.Values{"$select": {"id,last_indexed_date,last_modified_date"}}
	err := x.do(ctx, http.MethodGet, x.docsPath()+"/"+url.PathEscape(recordID), params, nil, &doc)
	if IsNotFound(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &domain.IndexMetadata{
		LastIndexedDate:  doc.LastIndexedDate.value(),
		LastModifiedDate: doc.LastModifiedDate.value(),
	}, nil
}

type searchRequest struct {
	Search        string        `json:"search"`
	Filter        string        `json:"filter,omitempty"`
	Select        string        `json:"select,omitempty"`
	Top           int           `json:"top,omitempty"`
	Skip          int           `json:"skip,omitempty"`
	OrderBy       string        `json:"orderby,omitempty"`
	VectorQueries []vectorQuery `json:"vectorQueries,omitempty"`
}

type vectorQuery struct {
	Kind   string    `json:"kind"`
	Vector []float32 `json:"vector"`
	Fields string    `json:"fields"`
	K      int       `json:"k"`
}

type searchResult struct {
	document
	Score float64 `json:"@search.score"`
}

type searchResponse struct {
	Value []searchResult `json:"value"`
}

// Search pages through every record matching the filter.
func (x *Index) Search(ctx context.Context, filter domain.RecordFilter) ([]domain.IndexRecord, error) {
	req := searchRequest{
		Search:  "*",
		Filter:  odataFilter(filter),
		Select:  selectFields,
		Top:     BatchSize,
		OrderBy: "id asc",
	}

	var records []domain.IndexRecord
	for {
		var resp searchResponse
		if err := x.do(ctx, http.MethodPost, x.docsPath()+"/search", nil, req, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Value {
			records = append(records, r.record())
		}
		if len(resp.Value) < req.Top {
			return records, nil
		}
		req.Skip += len(resp.Value)
	}
}

type indexBatch struct {
	Value []document `json:"value"`
}

type indexResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
	StatusCode   int    `json:"statusCode"`
}

type indexResponse struct {
	Value []indexResult `json:"value"`
}

// Upsert writes one record with mergeOrUpload.
func (x *Index) Upsert(ctx context.Context, record domain.IndexRecord) error {
	return x.index(ctx, []document{toDocument(record, "mergeOrUpload")})
}

// Delete removes records in batches.
func (x *Index) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += BatchSize {
		end := min(start+BatchSize, len(ids))
		docs := make([]document, 0, end-start)
		for _, id := range ids[start:end] {
			docs = append(docs, document{Action: "delete", ID: id})
		}
		if err := x.index(ctx, docs); err != nil {
			return err
		}
	}
	return nil
}

func (x *Index) index(ctx context.Context, docs []document) error {
	var resp indexResponse
	if err := x.do(ctx, http.MethodPost, x.docsPath()+"/index", nil, indexBatch{Value: docs}, &resp); err != nil {
		return err
	}
	failed := make(map[string]string)
	for _, r := range resp.Value {
		if !r.Status {
			failed[r.Key] = r.ErrorMessage
		}
	}
	if len(failed) > 0 {
		return &ItemError{Failed: failed}
	}
	return nil
}

// CreateOrUpdateSchema creates the index or updates its definition.
func (x *Index) CreateOrUpdateSchema(ctx context.Context) error {
	def := newIndexDefinition(x.name, x.dimensions)
	if err := x.do(ctx, http.MethodPut, x.indexPath(), nil, def, nil); err != nil {
		return err
	}
	logger.Debug("Index %s created or updated", x.name)
	return nil
}

// Drop deletes the index. A missing index is not an error.
func (x *Index) Drop(ctx context.Context) error {
	err := x.do(ctx, http.MethodDelete, x.indexPath(), nil, nil, nil)
	if err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}

// Query runs a hybrid query: full-text over the searchable fields combined
// with a vector query on the chunk vectors.
func (x *Index) Query(ctx context.Context, query domain.Query) ([]domain.SearchHit, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 10
	}
	req := searchRequest{
		Search: query.Text,
		Select: selectFields,
		Top:    limit,
	}
	if req.Search == "" {
		req.Search = "*"
	}
	if query.Space != "" {
		req.Filter = odataFilter(domain.RecordFilter{Space: query.Space})
	}
	if len(query.Vector) > 0 {
		req.VectorQueries = []vectorQuery{{
			Kind:   "vector",
			Vector: query.Vector,
			Fields: "chunkVector",
			K:      limit,
		}}
	}

	var resp searchResponse
	if err := x.do(ctx, http.MethodPost, x.docsPath()+"/search", nil, req, &resp); err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, 0, len(resp.Value))
	for _, r := range resp.Value {
		hits = append(hits, domain.SearchHit{Record: r.record(), Score: r.Score})
	}
	return hits, nil
}

// Close releases idle connections.
func (x *Index) Close() error {
	x.httpClient.CloseIdleConnections()
	return nil
}

func (x *Index) indexPath() string {
	return "/indexes/" + url.PathEscape(x.name)
}

func (x *Index) docsPath() string {
	return x.indexPath() + "/docs"
}

// do sends a JSON request and decodes the JSON response into out.
func (x *Index) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api-version", x.apiVersion)

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.endpoint+path+"?"+params.Encode(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	logger.Debug("%s %s", method, path)
	resp, err := x.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(msg),
			Path:       path,
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// errorMessage extracts error.message from a service error body.
func errorMessage(body []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return strings.TrimSpace(string(body))
}

// odataFilter renders the filter as an OData $filter expression.
func odataFilter(f domain.RecordFilter) string {
	if f.IsEmpty() {
		return ""
	}
	var clauses []string
	if f.DocumentID != "" {
		clauses = append(clauses, "document_id eq "+quote(f.DocumentID))
	}
	if f.AttachmentPageID != "" {
		clauses = append(clauses, "attachment_page_id eq "+quote(f.AttachmentPageID))
	}
	if f.Space != "" {
		clauses = append(clauses, "space eq "+quote(f.Space))
	}
	if f.ExcludeItemType != "" {
		clauses = append(clauses, "item_type ne "+quote(f.ExcludeItemType))
	}
	return strings.Join(clauses, " and ")
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
