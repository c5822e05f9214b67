package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	loreforge "github.com/loreforge/loreforge"
)

// Cache implements loreforge.CacheService over the cachedContents API. A
// cached content resource pre-loads a campaign's source files server-side
// so chat turns reference them by handle instead of resending them.
type Cache struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewCache creates a cache service bound to a model. Cached content can
// only be used with the model it was created for, so the model here must
// match the generation provider's.
func NewCache(apiKey, model string) *Cache {
	return &Cache{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}
}

// cachedContent is the wire representation of a cachedContents resource.
type cachedContent struct {
	Name              string          `json:"name,omitempty"`
	Model             string          `json:"model"`
	Contents          []cachedMessage `json:"contents,omitempty"`
	SystemInstruction *cachedMessage  `json:"systemInstruction,omitempty"`
	TTL               string          `json:"ttl,omitempty"`

	// ExpireTime is output only on creation.
	ExpireTime string `json:"expireTime,omitempty"`
}

type cachedMessage struct {
	Role  string           `json:"role,omitempty"`
	Parts []map[string]any `json:"parts"`
}

// CreateCachedContent creates a cached content resource referencing the
// uploaded source files and returns its resource name
// (e.g. "cachedContents/abc123"). The system instruction is stored with the
// cache because generateContent rejects a per-request systemInstruction when
// cachedContent is set. The content is immutable after creation; only the
// expiration can change server-side.
func (c *Cache) CreateCachedContent(ctx context.Context, sourceHandles []string, systemInstruction string, ttl time.Duration) (string, error) {
	parts := make([]map[string]any, 0, len(sourceHandles))
	for _, h := range sourceHandles {
		parts = append(parts, map[string]any{
			"fileData": map[string]any{
				"fileUri": h,
			},
		})
	}

	cc := cachedContent{
		Model:    "models/" + c.model,
		Contents: []cachedMessage{{Role: "user", Parts: parts}},
	}
	if systemInstruction != "" {
		cc.SystemInstruction = &cachedMessage{
			Parts: []map[string]any{{"text": systemInstruction}},
		}
	}
	if ttl > 0 {
		cc.TTL = fmt.Sprintf("%ds", int(ttl.Seconds()))
	}

	url := fmt.Sprintf("%s/cachedContents?key=%s", baseURL, c.apiKey)
	created, err := cacheRequest[cachedContent](ctx, c.httpClient, http.MethodPost, url, &cc)
	if err != nil {
		return "", err
	}
	if created.Name == "" {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "cache created without a resource name"}
	}
	return created.Name, nil
}

// DeleteCachedContent deletes a cached content resource by name. Deleting
// an already-expired resource returns the server's 403/404, which callers
// treat as best-effort.
func (c *Cache) DeleteCachedContent(ctx context.Context, name string) error {
	url := fmt.Sprintf("%s/%s?key=%s", baseURL, name, c.apiKey)
	_, err := cacheRequest[json.RawMessage](ctx, c.httpClient, http.MethodDelete, url, nil)
	return err
}

// cacheRequest is a generic helper for cachedContents API requests.
func cacheRequest[T any](ctx context.Context, client *http.Client, method, url string, body any) (T, error) {
	var zero T
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return zero, &loreforge.ErrLLM{Provider: "gemini", Message: "marshal cache request: " + err.Error()}
		}
		reqBody = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return zero, &loreforge.ErrLLM{Provider: "gemini", Message: "create cache request: " + err.Error()}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return zero, &loreforge.ErrLLM{Provider: "gemini", Message: "cache request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, &loreforge.ErrLLM{Provider: "gemini", Message: "read cache response: " + err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return zero, httpErr(resp, string(respBody))
	}

	// DELETE returns an empty body.
	if len(respBody) == 0 {
		return zero, nil
	}

	var result T
	if err := json.Unmarshal(respBody, &result); err != nil {
		return zero, &loreforge.ErrLLM{Provider: "gemini", Message: "parse cache response: " + err.Error()}
	}
	return result, nil
}

var _ loreforge.CacheService = (*Cache)(nil)
