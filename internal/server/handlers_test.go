package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/precedex/precedex/internal/config"
	"github.com/precedex/precedex/internal/extract"
	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/normalize"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/internal/search"
	"github.com/precedex/precedex/internal/vectorize"
)

var trainingTexts = []string{
	"The landlord filed an eviction notice against the tenant for unpaid rent on the lease.",
	"The tenant disputed the eviction claiming the lease permitted late rent payment.",
	"The supplier sued for breach of contract after the buyer refused to pay the invoice.",
	"The buyer alleged the contract was void and the invoice overstated the damages.",
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	normalizer := normalize.NewNormalizer()
	corpus := make([][]string, len(trainingTexts))
	for i, text := range trainingTexts {
		corpus[i] = normalizer.Normalize(text)
	}
	weights := vectorize.PrepareDomainWeights(normalizer, []vectorize.DomainTerm{
		{Term: "eviction", Weight: 2.5},
		{Term: "breach of contract", Weight: 2.5},
	})
	model, err := vectorize.Fit(corpus, weights, vectorize.FitOptions{MinDocFreq: 1, MaxDocRatio: 1})
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	vectorizer := vectorize.NewVectorizer()
	vectorizer.Load(model)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DatabasePath = filepath.Join(dir, "cases.db")
	cfg.Storage.VectorLogPath = filepath.Join(dir, "vectors.bin")
	cfg.Storage.FilesDir = filepath.Join(dir, "files")
	cfg.Storage.ModelPath = filepath.Join(dir, "model.json")

	repo, err := repository.New(cfg.Storage.DatabasePath, cfg.Storage.VectorLogPath,
		cfg.Storage.FilesDir, model.Fingerprint, model.Dimension())
	if err != nil {
		t.Fatalf("repository.New: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	svc := search.NewService(extract.NewExtractor(), normalizer, vectorizer, repo)
	return NewServer(svc, repo, cfg, zap.NewNop()).Router()
}

func multipartBody(t *testing.T, fileName, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("document", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if metadata != "" {
		if err := mw.WriteField("metadata", metadata); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func doRequest(h http.Handler, method, target, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func ingestCase(t *testing.T, h http.Handler, fileName, content, metadata string) models.CaseDocument {
	t.Helper()
	body, ct := multipartBody(t, fileName, content, metadata)
	rec := doRequest(h, http.MethodPost, "/api/v1/cases", ct, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest returned %d: %s", rec.Code, rec.Body)
	}
	var doc models.CaseDocument
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	return doc
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec := doRequest(h, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestIngestSearchDeleteFlow(t *testing.T) {
	h := newTestServer(t)
	text := "Landlord served an eviction notice over unpaid rent under the lease."
	doc := ingestCase(t, h, "eviction.txt", text, `{"id":"ev-1","title":"Eviction dispute"}`)
	if doc.ID != "ev-1" || doc.Title != "Eviction dispute" {
		t.Fatalf("doc = %+v", doc)
	}
	ingestCase(t, h, "contract.txt",
		"The supplier claims breach of contract over an unpaid invoice.", `{"id":"ct-1"}`)

	// Search with the same document should rank it first with score 1.0.
	body, ct := multipartBody(t, "query.txt", text, "")
	rec := doRequest(h, http.MethodPost, "/api/v1/search?top_k=5", ct, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("search returned %d: %s", rec.Code, rec.Body)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 2 || resp.Results[0].CaseID != "ev-1" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Score < 0.999 {
		t.Errorf("self score = %v", resp.Results[0].Score)
	}

	// Metadata fetch.
	rec = doRequest(h, http.MethodGet, "/api/v1/cases/ev-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get returned %d", rec.Code)
	}

	// Payload download round trip.
	rec = doRequest(h, http.MethodGet, "/api/v1/cases/ev-1/file", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != text {
		t.Fatalf("file download: %d %q", rec.Code, rec.Body)
	}

	// Delete, then every lookup 404s.
	rec = doRequest(h, http.MethodDelete, "/api/v1/cases/ev-1", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete returned %d", rec.Code)
	}
	if rec := doRequest(h, http.MethodGet, "/api/v1/cases/ev-1", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
	if rec := doRequest(h, http.MethodDelete, "/api/v1/cases/ev-1", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestIngestDuplicateConflict(t *testing.T) {
	h := newTestServer(t)
	ingestCase(t, h, "a.txt", "Eviction case over rent.", `{"id":"dup"}`)
	body, ct := multipartBody(t, "b.txt", "Another eviction case.", `{"id":"dup"}`)
	rec := doRequest(h, http.MethodPost, "/api/v1/cases", ct, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestIngestEmptyDocument(t *testing.T) {
	h := newTestServer(t)
	body, ct := multipartBody(t, "empty.txt", "", "")
	rec := doRequest(h, http.MethodPost, "/api/v1/cases", ct, body)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	// An extraction failure must not leave a case behind.
	rec = doRequest(h, http.MethodGet, "/api/v1/status", "", nil)
	var status struct {
		Cases map[string]int `json:"cases"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	if status.Cases["corpus"] != 0 || status.Cases["helper"] != 0 {
		t.Errorf("cases = %v, want none", status.Cases)
	}
}

func TestIngestBadRequests(t *testing.T) {
	h := newTestServer(t)

	// No multipart body at all.
	rec := doRequest(h, http.MethodPost, "/api/v1/cases", "application/json", bytes.NewBufferString("{}"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart: %d, want 400", rec.Code)
	}

	// Malformed metadata.
	body, ct := multipartBody(t, "a.txt", "Eviction case.", "{not json")
	if rec := doRequest(h, http.MethodPost, "/api/v1/cases", ct, body); rec.Code != http.StatusBadRequest {
		t.Errorf("bad metadata: %d, want 400", rec.Code)
	}

	// Helper source without helper fields.
	body, ct = multipartBody(t, "a.txt", "Eviction case.", `{"source":"helper"}`)
	if rec := doRequest(h, http.MethodPost, "/api/v1/cases", ct, body); rec.Code != http.StatusBadRequest {
		t.Errorf("helper without extras: %d, want 400", rec.Code)
	}
}

func TestSearchParamValidation(t *testing.T) {
	h := newTestServer(t)
	body, ct := multipartBody(t, "q.txt", "eviction", "")
	if rec := doRequest(h, http.MethodPost, "/api/v1/search?top_k=abc", ct, body); rec.Code != http.StatusBadRequest {
		t.Errorf("top_k=abc: %d, want 400", rec.Code)
	}
	body, ct = multipartBody(t, "q.txt", "eviction", "")
	if rec := doRequest(h, http.MethodPost, "/api/v1/search?sources=bogus", ct, body); rec.Code != http.StatusBadRequest {
		t.Errorf("sources=bogus: %d, want 400", rec.Code)
	}
	body, ct = multipartBody(t, "q.txt", "eviction", "")
	if rec := doRequest(h, http.MethodPost, "/api/v1/search?min_score=1.5", ct, body); rec.Code != http.StatusBadRequest {
		t.Errorf("min_score=1.5: %d, want 400", rec.Code)
	}
	body, ct = multipartBody(t, "q.txt", "eviction", "")
	if rec := doRequest(h, http.MethodPost, "/api/v1/search?min_score=-0.1", ct, body); rec.Code != http.StatusBadRequest {
		t.Errorf("min_score=-0.1: %d, want 400", rec.Code)
	}
}

func TestSearchSourceFilterAndHelperExtras(t *testing.T) {
	h := newTestServer(t)
	ingestCase(t, h, "c.txt", "Eviction dispute over the lease and unpaid rent.", `{"id":"c-1"}`)
	ingestCase(t, h, "h.txt", "My landlord started an eviction over late rent.",
		`{"id":"h-1","source":"helper","helper":{"user_id":"u-9","outcome":"settled","total_cost":450,"advice":"reply to the notice"}}`)

	body, ct := multipartBody(t, "q.txt", "eviction notice for unpaid rent", "")
	rec := doRequest(h, http.MethodPost, "/api/v1/search?sources=helper", ct, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("search returned %d: %s", rec.Code, rec.Body)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].CaseID != "h-1" {
		t.Fatalf("results = %+v", resp.Results)
	}
	if resp.Results[0].Helper == nil || resp.Results[0].Helper.UserID != "u-9" {
		t.Errorf("helper extras = %+v", resp.Results[0].Helper)
	}
}

func TestVisibilityToggle(t *testing.T) {
	h := newTestServer(t)
	ingestCase(t, h, "h.txt", "Eviction over unpaid rent.",
		`{"id":"h-1","source":"helper","helper":{"user_id":"u-1"}}`)

	rec := doRequest(h, http.MethodPatch, "/api/v1/cases/h-1/visibility", "application/json",
		bytes.NewBufferString(`{"visible":false}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch returned %d: %s", rec.Code, rec.Body)
	}

	body, ct := multipartBody(t, "q.txt", "eviction rent", "")
	searchRec := doRequest(h, http.MethodPost, "/api/v1/search", ct, body)
	var resp models.SearchResponse
	if err := json.Unmarshal(searchRec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("hidden case still returned: %+v", resp.Results)
	}

	rec = doRequest(h, http.MethodPatch, "/api/v1/cases/missing/visibility", "application/json",
		bytes.NewBufferString(`{"visible":true}`))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing case patch = %d, want 404", rec.Code)
	}
	rec = doRequest(h, http.MethodPatch, "/api/v1/cases/h-1/visibility", "application/json",
		bytes.NewBufferString(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty body patch = %d, want 400", rec.Code)
	}
}

func TestPayloadTooLarge(t *testing.T) {
	h := newTestServer(t)
	big := strings.Repeat("a", extract.MaxPayloadSize+multipartSlack+1)
	body, ct := multipartBody(t, "big.txt", big, "")
	rec := doRequest(h, http.MethodPost, "/api/v1/cases", ct, body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestStatus(t *testing.T) {
	h := newTestServer(t)
	ingestCase(t, h, "c.txt", "Eviction dispute over rent.", `{"id":"c-1"}`)

	rec := doRequest(h, http.MethodGet, "/api/v1/status", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint returned %d", rec.Code)
	}
	var resp struct {
		Cases          map[string]int `json:"cases"`
		Dimension      int            `json:"vector_dimension"`
		Fingerprint    string         `json:"vocabulary_fingerprint"`
		DiskUsageBytes int64          `json:"disk_usage_bytes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Cases["corpus"] != 1 {
		t.Errorf("corpus count = %d", resp.Cases["corpus"])
	}
	if resp.Dimension == 0 || resp.Fingerprint == "" {
		t.Errorf("model info missing: %+v", resp)
	}
	if resp.DiskUsageBytes == 0 {
		t.Errorf("disk usage not reported")
	}
}
