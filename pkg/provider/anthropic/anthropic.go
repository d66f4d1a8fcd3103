package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/umleitung/pkg/api"
	"github.com/rhuss/umleitung/pkg/debug"
	"github.com/rhuss/umleitung/pkg/provider"
)

// Provider implements provider.Provider for Anthropic Messages backends.
type Provider struct {
	cfg    Config
	client *http.Client
}

// Ensure Provider implements provider.Provider at compile time.
var _ provider.Provider = (*Provider)(nil)

// New creates a new Provider with the given configuration.
// Returns an error if the configuration is invalid.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("anthropic: BaseURL is required")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return "anthropic"
}

// Complete performs non-streaming inference against the Messages endpoint.
func (p *Provider) Complete(ctx context.Context, req *api.ChatRequest) (*api.ChatResponse, error) {
	reqCopy := *req
	reqCopy.Stream = false

	mreq := translateRequest(&reqCopy)
	debug.Log(debug.Translate, "request translated",
		"model", mreq.Model,
		"messages", len(mreq.Messages),
		"tools", len(mreq.Tools),
		"system", mreq.System != "")

	httpResp, err := p.post(ctx, mreq, false)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var mr messagesResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&mr); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse upstream response: %s", err.Error()))
	}

	return translateResponse(&mr, req.Model), nil
}

// Stream performs streaming inference against the Messages endpoint. It
// returns a channel of Events carrying consumer chunks in upstream arrival
// order. The channel is closed when the stream completes, errors, or the
// context is cancelled.
//
// The HTTP client timeout is not applied for streaming requests because a
// stream can legitimately last longer than any fixed timeout. Lifecycle
// control relies on context cancellation instead.
func (p *Provider) Stream(ctx context.Context, req *api.ChatRequest) (<-chan provider.Event, error) {
	reqCopy := *req
	reqCopy.Stream = true

	httpResp, err := p.post(ctx, translateRequest(&reqCopy), true)
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer httpResp.Body.Close()
		return nil, mapHTTPError(httpResp)
	}

	ch := make(chan provider.Event, 16)

	go func() {
		defer close(ch)
		defer httpResp.Body.Close()
		parseSSEStream(ctx, httpResp.Body, req.Model, ch)
	}()

	return ch, nil
}

// ListModels returns available models from the upstream, reshaped into the
// consumer listing format.
func (p *Provider) ListModels(ctx context.Context) ([]api.Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	p.setHeaders(httpReq, false)

	httpResp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, mapHTTPError(httpResp)
	}

	var mr modelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&mr); err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to parse upstream models: %s", err.Error()))
	}

	models := make([]api.Model, 0, len(mr.Data))
	for _, m := range mr.Data {
		models = append(models, api.Model{
			ID:      m.ID,
			Object:  api.ObjectModel,
			Created: parseCreatedAt(m.CreatedAt),
			OwnedBy: "anthropic",
		})
	}
	return models, nil
}

// Close releases provider resources.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// post sends a Messages request. For streaming requests a client without
// a timeout is used; the context bounds the request lifetime instead.
func (p *Provider) post(ctx context.Context, mr *messagesRequest, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(mr)
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to marshal request: %s", err.Error()))
	}

	debug.Log(debug.Upstream, "posting messages request",
		"model", mr.Model, "stream", streaming, "bytes", len(body))
	debug.Wire(debug.Upstream, body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewServerError(fmt.Sprintf("failed to create HTTP request: %s", err.Error()))
	}
	p.setHeaders(httpReq, streaming)

	client := p.client
	if streaming {
		client = &http.Client{Transport: p.client.Transport}
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, mapNetworkError(err)
	}
	debug.Log(debug.Upstream, "upstream responded", "status", httpResp.StatusCode)
	return httpResp, nil
}

func (p *Provider) setHeaders(req *http.Request, streaming bool) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", p.cfg.APIVersion)
	if p.cfg.APIKey != "" {
		req.Header.Set("x-api-key", p.cfg.APIKey)
	}
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	}
}

// parseCreatedAt converts an upstream RFC 3339 creation timestamp to epoch
// seconds, returning 0 for absent or unparseable values.
func parseCreatedAt(ts string) int64 {
	if ts == "" {
		return 0
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return 0
	}
	return t.Unix()
}
