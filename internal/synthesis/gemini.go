package synthesis

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

	"fanai-server/internal/infra"
)

// GeminiOptions controls how the Gemini client is configured.
type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// GeminiClient is a lightweight facade over the Gemini generateContent
// endpoint. Both of its operations are advisory to the pipeline: analysis
// fails open and the composite description is log-only, so an outage here
// never blocks a paying user's generation.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     infra.Logger
}

// Analysis is the validity verdict for an uploaded photo.
type Analysis struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

// analysisUnavailableReason is returned whenever the analysis call cannot
// produce a verdict.
const analysisUnavailableReason = "Could not analyze image quality"

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
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewGeminiClient constructs a Gemini client with sane defaults. A nil HTTP
// client gets a reusable one with a sensible timeout.
func NewGeminiClient(opts GeminiOptions) (*GeminiClient, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}

	var logger infra.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	} else {
		logger = zerolog.New(io.Discard)
	}

	return &GeminiClient{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *GeminiClient) Model() string {
	return c.model
}

// AnalyzeImage asks the model whether the uploaded photo is suitable for
// generation: one clearly visible person, unobscured face, adequate quality.
// Any failure of the call, from a missing key to a malformed response, fails
// open: the user is never blocked because the analysis service is down.
func (c *GeminiClient) AnalyzeImage(ctx context.Context, image []byte) Analysis {
	failOpen := Analysis{IsValid: true, Reason: analysisUnavailableReason}
	if c == nil || c.apiKey == "" {
		return failOpen
	}

	req := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: "Analyze this image and determine if it's suitable for AI photo generation. " +
					"Check for: single person clearly visible, face not obscured, good lighting, adequate quality. " +
					`Respond with JSON: {"is_valid": boolean, "reason": string}`},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"is_valid": map[string]any{"type": "boolean"},
					"reason":   map[string]any{"type": "string"},
				},
				"required": []string{"is_valid", "reason"},
			},
		},
	}

	text, err := c.generateContent(ctx, req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("synthesis: image analysis failed, failing open")
		return failOpen
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(text), &analysis); err != nil {
		c.logger.Warn().Err(err).Msg("synthesis: image analysis returned malformed verdict, failing open")
		return failOpen
	}
	if analysis.Reason == "" {
		analysis.Reason = analysisUnavailableReason
	}
	return analysis
}

// DescribeComposite asks the model to describe what the combined photo would
// look like. Purely advisory; callers log the description and swallow the
// error.
func (c *GeminiClient) DescribeComposite(ctx context.Context, userImage, celebImage []byte, prompt string) (string, error) {
	if c == nil || c.apiKey == "" {
		return "", fmt.Errorf("synthesis: gemini api key not configured")
	}

	req := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(userImage)}},
				{InlineData: &geminiInlineData{MimeType: "image/jpeg", Data: base64.StdEncoding.EncodeToString(celebImage)}},
				{Text: "Analyze these two images. The first is the user, the second is a celebrity. " +
					"Describe what a realistic combined photo would look like based on this prompt: " + prompt},
			},
		}},
	}
	return c.generateContent(ctx, req)
}

func (c *GeminiClient) generateContent(ctx context.Context, payload geminiGenerateContentRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr geminiErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("gemini %d: %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var parsed geminiGenerateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text, nil
			}
		}
	}
	return "", fmt.Errorf("gemini response carried no text")
}
