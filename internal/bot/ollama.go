package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sara-platform/sara-hub/pkg/config"
	pkgerrors "github.com/sara-platform/sara-hub/pkg/errors"
)

// OllamaResponder calls a local Ollama server to generate chat replies. The
// call is synchronous: the routing path waits for the reply or the configured
// timeout, whichever comes first.
type OllamaResponder struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaResponder builds a responder from bot configuration.
func NewOllamaResponder(cfg config.BotConfig) *OllamaResponder {
	return &OllamaResponder{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Generate asks the model for a single non-streamed completion.
func (o *OllamaResponder) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode generate request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build generate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call model server")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read model response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("model server returned %d", resp.StatusCode))
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode model response")
	}
	if decoded.Error != "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "model error: "+decoded.Error)
	}

	reply := strings.TrimSpace(decoded.Response)
	if reply == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "model returned empty reply")
	}
	return reply, nil
}
