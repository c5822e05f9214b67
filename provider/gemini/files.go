package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	loreforge "github.com/loreforge/loreforge"
)

var uploadBaseURL = "https://generativelanguage.googleapis.com/upload/v1beta"

// Files uploads media to the Gemini files API. Uploaded files get a
// provider-side URI (the source handle) that cached content and prompts
// reference instead of the raw bytes.
type Files struct {
	apiKey     string
	httpClient *http.Client
}

// NewFiles creates a file-upload client.
func NewFiles(apiKey string) *Files {
	return &Files{apiKey: apiKey, httpClient: &http.Client{}}
}

type fileResource struct {
	File struct {
		Name     string `json:"name"`
		URI      string `json:"uri"`
		MimeType string `json:"mimeType"`
		State    string `json:"state"`
	} `json:"file"`
}

// Upload pushes content to the files API using the raw upload protocol and
// returns the file URI. The URI is valid for roughly 48 hours server-side;
// callers persist it as the source handle.
func (f *Files) Upload(ctx context.Context, content []byte, displayName, mimeType string) (string, error) {
	url := fmt.Sprintf("%s/files?key=%s", uploadBaseURL, f.apiKey)

	meta, err := json.Marshal(map[string]any{
		"file": map[string]any{"display_name": displayName},
	})
	if err != nil {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "marshal upload metadata: " + err.Error()}
	}

	// Start a resumable upload session.
	startReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(meta))
	if err != nil {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "create upload request: " + err.Error()}
	}
	startReq.Header.Set("Content-Type", "application/json")
	startReq.Header.Set("X-Goog-Upload-Protocol", "resumable")
	startReq.Header.Set("X-Goog-Upload-Command", "start")
	startReq.Header.Set("X-Goog-Upload-Header-Content-Length", strconv.Itoa(len(content)))
	startReq.Header.Set("X-Goog-Upload-Header-Content-Type", mimeType)

	startResp, err := f.httpClient.Do(startReq)
	if err != nil {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "upload start failed: " + err.Error()}
	}
	startBody, _ := io.ReadAll(startResp.Body)
	startResp.Body.Close()
	if startResp.StatusCode < 200 || startResp.StatusCode >= 300 {
		return "", httpErr(startResp, string(startBody))
	}
	sessionURL := startResp.Header.Get("X-Goog-Upload-URL")
	if sessionURL == "" {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "upload start returned no session URL"}
	}

	// Send the bytes and finalize in one shot.
	dataReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, bytes.NewReader(content))
	if err != nil {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "create data request: " + err.Error()}
	}
	dataReq.Header.Set("X-Goog-Upload-Command", "upload, finalize")
	dataReq.Header.Set("X-Goog-Upload-Offset", "0")
	dataReq.Header.Set("Content-Length", strconv.Itoa(len(content)))

	dataResp, err := f.httpClient.Do(dataReq)
	if err != nil {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "upload failed: " + err.Error()}
	}
	defer dataResp.Body.Close()

	respBody, err := io.ReadAll(dataResp.Body)
	if err != nil {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "read upload response: " + err.Error()}
	}
	if dataResp.StatusCode < 200 || dataResp.StatusCode >= 300 {
		return "", httpErr(dataResp, string(respBody))
	}

	var parsed fileResource
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "parse upload response: " + err.Error()}
	}
	if parsed.File.URI == "" {
		return "", &loreforge.ErrLLM{Provider: "gemini", Message: "upload response missing file uri"}
	}
	return parsed.File.URI, nil
}
