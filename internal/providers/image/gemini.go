package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-2.5-flash-image"
)

// GeminiOptions controls how the Gemini generator is configured.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// GeminiGenerator calls the Gemini generateContent endpoint with the prompt and
// reference images inline and returns the inline images of the first candidate.
type GeminiGenerator struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     zerolog.Logger
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	ResponseID string `json:"responseId,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewGeminiGenerator constructs a generator with sane defaults. Callers may
// provide a nil HTTP client; one with a 60s timeout is created.
func NewGeminiGenerator(opts GeminiOptions) *GeminiGenerator {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &GeminiGenerator{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}
}

// Model returns the configured model identifier.
func (g *GeminiGenerator) Model() string {
	return g.model
}

// Generate invokes Gemini once. Blocked prompts and safety stops map to
// ErrBlocked, HTTP 429 to ErrRateLimited and any other failure status to *Error.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	model := g.model
	if req.Model != "" {
		model = req.Model
	}
	parts := []geminiPart{{Text: buildPrompt(req)}}
	for _, ref := range req.References {
		if len(ref.Data) == 0 {
			continue
		}
		mime := ref.MIME
		if mime == "" {
			mime = http.DetectContentType(ref.Data)
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(ref.Data),
		}})
	}
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
		},
	}
	if req.AspectRatio != "" {
		payload.GenerationConfig.ImageConfig = &geminiImageConfig{AspectRatio: req.AspectRatio}
	}

	var response geminiResponse
	requestID, err := g.invoke(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(model)), payload, &response)
	if err != nil {
		return nil, err
	}
	if response.ResponseID != "" {
		requestID = response.ResponseID
	}
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return nil, &requestError{err: ErrBlocked, requestID: requestID, detail: response.PromptFeedback.BlockReason}
	}

	result := &Result{ProviderRequestID: requestID}
	for _, candidate := range response.Candidates {
		switch candidate.FinishReason {
		case "SAFETY", "PROHIBITED_CONTENT", "IMAGE_SAFETY", "BLOCKLIST":
			return nil, &requestError{err: ErrBlocked, requestID: requestID, detail: candidate.FinishReason}
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, &Error{StatusCode: http.StatusBadGateway, Message: "decode inline data: " + err.Error(), RequestID: requestID}
			}
			result.Images = append(result.Images, Asset{Format: part.InlineData.MimeType, Data: data})
		}
	}
	if len(result.Images) == 0 {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "no image content returned", RequestID: requestID}
	}

	g.logger.Debug().
		Str("request_id", req.RequestID).
		Str("provider_request_id", requestID).
		Str("model", model).
		Int("images", len(result.Images)).
		Msg("gemini: generated images")
	return result, nil
}

func (g *GeminiGenerator) invoke(ctx context.Context, path string, payload any, out any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("x-goog-api-key", g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()
	requestID := resp.Header.Get("X-Request-Id")

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		message := strings.TrimSpace(string(data))
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return requestID, &requestError{err: ErrRateLimited, requestID: requestID, detail: message}
		}
		return requestID, &Error{StatusCode: resp.StatusCode, Message: message, RequestID: requestID}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return requestID, &Error{StatusCode: http.StatusBadGateway, Message: "decode gemini response: " + err.Error(), RequestID: requestID}
	}
	return requestID, nil
}

func buildPrompt(req GenerateRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	if q := strings.TrimSpace(req.Quality); q != "" {
		b.WriteString("\nQuality: ")
		b.WriteString(q)
	}
	if neg := strings.TrimSpace(req.NegativePrompt); neg != "" {
		b.WriteString("\nAvoid: ")
		b.WriteString(neg)
	}
	return b.String()
}

var _ Generator = (*GeminiGenerator)(nil)
