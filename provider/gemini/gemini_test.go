package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	loreforge "github.com/loreforge/loreforge"
)

func testGemini() *Gemini {
	return New("test-key", "test-model")
}

func TestBuildBodySystemInstruction(t *testing.T) {
	g := testGemini()
	body := g.buildBody(loreforge.GenerateRequest{
		Parts: []loreforge.PromptPart{
			loreforge.SystemPart("You are a lorekeeper."),
			loreforge.SystemPart("Answer in markdown."),
			loreforge.UserPart("Who rules Thornhold?"),
		},
	})

	si, ok := body["systemInstruction"].(map[string]any)
	if !ok {
		t.Fatal("expected systemInstruction in body")
	}
	parts := si["parts"].([]map[string]any)
	if text := parts[0]["text"].(string); text != "You are a lorekeeper.\n\nAnswer in markdown." {
		t.Errorf("unexpected system text: %q", text)
	}

	contents := body["contents"].([]map[string]any)
	if len(contents) != 1 {
		t.Fatalf("expected 1 content entry, got %d", len(contents))
	}
	if contents[0]["role"] != "user" {
		t.Errorf("expected role user, got %q", contents[0]["role"])
	}
}

func TestBuildBodyCacheHandleSuppressesSystemInstruction(t *testing.T) {
	g := testGemini()
	body := g.buildBody(loreforge.GenerateRequest{
		Parts: []loreforge.PromptPart{
			loreforge.SystemPart("cached already"),
			loreforge.UserPart("hello"),
		},
		CacheHandle: "cachedContents/abc123",
	})

	if body["cachedContent"] != "cachedContents/abc123" {
		t.Errorf("cachedContent = %v", body["cachedContent"])
	}
	if _, ok := body["systemInstruction"]; ok {
		t.Error("systemInstruction must be omitted when a cache handle is set")
	}
}

func TestGenerate(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"text": "The Iron "},
					{"text": "Duke."},
				}}},
			},
			"usageMetadata": map[string]any{
				"promptTokenCount":     12,
				"candidatesTokenCount": 4,
			},
		})
	}))
	defer srv.Close()

	old := baseURL
	baseURL = srv.URL
	defer func() { baseURL = old }()

	resp, err := testGemini().Generate(context.Background(), loreforge.GenerateRequest{
		Parts: []loreforge.PromptPart{loreforge.UserPart("Who rules Thornhold?")},
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if resp.Content != "The Iron Duke." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if gotBody["contents"] == nil {
		t.Error("request body missing contents")
	}
}

func TestGenerateHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota"}}`))
	}))
	defer srv.Close()

	old := baseURL
	baseURL = srv.URL
	defer func() { baseURL = old }()

	_, err := testGemini().Generate(context.Background(), loreforge.GenerateRequest{
		Parts: []loreforge.PromptPart{loreforge.UserPart("hi")},
	})
	var httpErr *loreforge.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected ErrHTTP, got %v", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d", httpErr.Status)
	}
	if httpErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v", httpErr.RetryAfter)
	}
}

func TestParseRetryInfo(t *testing.T) {
	body := `{"error":{"details":[
		{"@type":"type.googleapis.com/google.rpc.ErrorInfo"},
		{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"21s"}
	]}}`
	if d := parseRetryInfo(body); d != 21*time.Second {
		t.Errorf("parseRetryInfo = %v, want 21s", d)
	}
	if d := parseRetryInfo("not json"); d != 0 {
		t.Errorf("parseRetryInfo on garbage = %v, want 0", d)
	}
}

func TestEmbed(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["outputDimensionality"] != float64(3) {
			t.Errorf("outputDimensionality = %v", body["outputDimensionality"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding": map[string]any{"values": []float64{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	old := baseURL
	baseURL = srv.URL
	defer func() { baseURL = old }()

	vecs, err := NewEmbedding("k", "embed-model", 3).Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != 2 || calls != 2 {
		t.Fatalf("got %d vectors from %d calls", len(vecs), calls)
	}
	if len(vecs[0]) != 3 {
		t.Errorf("vector length = %d", len(vecs[0]))
	}
}

func TestCacheCreateAndDelete(t *testing.T) {
	var created cachedContent
	var deletedPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			json.NewDecoder(r.Body).Decode(&created)
			json.NewEncoder(w).Encode(map[string]any{"name": "cachedContents/xyz"})
		case http.MethodDelete:
			deletedPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	old := baseURL
	baseURL = srv.URL
	defer func() { baseURL = old }()

	c := NewCache("k", "test-model")
	name, err := c.CreateCachedContent(context.Background(),
		[]string{"files/a", "files/b"}, "You are the lorekeeper.", time.Hour)
	if err != nil {
		t.Fatalf("CreateCachedContent: %v", err)
	}
	if name != "cachedContents/xyz" {
		t.Errorf("name = %q", name)
	}
	if created.Model != "models/test-model" {
		t.Errorf("model = %q", created.Model)
	}
	if created.TTL != "3600s" {
		t.Errorf("ttl = %q", created.TTL)
	}
	if len(created.Contents) != 1 || len(created.Contents[0].Parts) != 2 {
		t.Errorf("contents = %+v", created.Contents)
	}
	if created.SystemInstruction == nil ||
		len(created.SystemInstruction.Parts) != 1 ||
		created.SystemInstruction.Parts[0]["text"] != "You are the lorekeeper." {
		t.Errorf("systemInstruction = %+v", created.SystemInstruction)
	}

	if err := c.DeleteCachedContent(context.Background(), name); err != nil {
		t.Fatalf("DeleteCachedContent: %v", err)
	}
	if deletedPath != "/cachedContents/xyz" {
		t.Errorf("deleted path = %q", deletedPath)
	}
}

func TestFilesUpload(t *testing.T) {
	var sessionHit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Goog-Upload-Command") == "start" {
			w.Header().Set("X-Goog-Upload-URL", "http://"+r.Host+"/session")
			w.WriteHeader(http.StatusOK)
			return
		}
		sessionHit = true
		json.NewEncoder(w).Encode(map[string]any{
			"file": map[string]any{"name": "files/abc", "uri": "https://example.com/files/abc"},
		})
	}))
	defer srv.Close()

	old := uploadBaseURL
	uploadBaseURL = srv.URL
	defer func() { uploadBaseURL = old }()

	uri, err := NewFiles("k").Upload(context.Background(), []byte("pdf bytes"), "tome.pdf", "application/pdf")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if uri != "https://example.com/files/abc" {
		t.Errorf("uri = %q", uri)
	}
	if !sessionHit {
		t.Error("data request never hit the session URL")
	}
}
