package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	DefaultGeminiModel = "gemini-2.0-flash"
)

// GeminiClient talks to the generateContent endpoint of the Gemini API.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    geminiBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) endpoint() string {
	return fmt.Sprintf("%s/%s:generateContent?key=%s",
		strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.model), url.QueryEscape(c.apiKey))
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	in := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}}
	in.GenerationConfig.Temperature = completionTemperature

	var res geminiResponse
	if err := postJSON(ctx, c.httpClient, ProviderGemini, c.endpoint(), nil, in, &res); err != nil {
		return "", err
	}
	if res.Error != nil {
		return "", fmt.Errorf("gemini API error: %s", res.Error.Message)
	}
	if len(res.Candidates) == 0 {
		return "", errors.New("gemini API returned no candidates")
	}

	var sb strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini API returned empty content (finish reason %q)", res.Candidates[0].FinishReason)
	}
	return text, nil
}
