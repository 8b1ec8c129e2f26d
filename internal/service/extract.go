package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const extractionSystemPrompt = "You extract the complete readable text from uploaded documents. " +
	"Return only the extracted text, preserving paragraph structure. Do not summarize, " +
	"translate, or add commentary."

// ExtractionService turns uploaded document bytes into plain text. Plain-text
// formats are decoded locally; binary documents go through an OpenAI-compatible
// chat completion call with the file attached.
type ExtractionService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// ExtractionConfig holds configuration for the extraction service.
type ExtractionConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewExtractionService creates a new extraction service.
// Parameters:
//   - cfg: extraction configuration including provider, model, and API key.
//
// Returns:
//   - *ExtractionService: initialized extraction client wrapper.
func NewExtractionService(cfg *ExtractionConfig) *ExtractionService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	// Set timeout to prevent hanging requests
	client.SetTimeout(120 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	endpoint := strings.TrimSuffix(baseURL, "/") + "/chat/completions"

	return &ExtractionService{
		client:   client,
		model:    cfg.Model,
		endpoint: endpoint,
	}
}

// GetModel returns the model name being used.
func (s *ExtractionService) GetModel() string {
	return s.model
}

// OpenAI-compatible Chat Completion API request/response structures
type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with attachments
}

type openAITextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type openAIFileContent struct {
	Type string     `json:"type"`
	File openAIFile `json:"file"`
}

type openAIFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// ExtractText extracts plain text from document bytes.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - data: raw document bytes.
//   - mimeType: document MIME type (e.g. application/pdf, text/plain).
//   - fileName: original file name, used as an attachment hint.
//
// Returns:
//   - string: extracted text.
//   - error: non-nil if extraction fails.
func (s *ExtractionService) ExtractText(ctx context.Context, data []byte, mimeType, fileName string) (string, error) {
	if isPlainTextMIME(mimeType) {
		return string(data), nil
	}

	base64Doc := base64.StdEncoding.EncodeToString(data)
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64Doc)

	req := openAIRequest{
		Model: s.model,
		Messages: []openAIMessage{
			{
				Role:    "system",
				Content: extractionSystemPrompt,
			},
			{
				Role: "user",
				Content: []interface{}{
					openAITextContent{
						Type: "text",
						Text: "Extract the full text of the attached document.",
					},
					openAIFileContent{
						Type: "file",
						File: openAIFile{
							Filename: fileName,
							FileData: dataURL,
						},
					},
				},
			},
		},
		MaxTokens: 4096,
	}

	var resp openAIResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)

	if err != nil {
		return "", fmt.Errorf("failed to call extraction API: %w", err)
	}

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		errorMsg := fmt.Sprintf("HTTP %d", httpResp.StatusCode())
		if resp.Error != nil {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), resp.Error.Message)
		} else {
			errorMsg = fmt.Sprintf("HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
		}
		return "", fmt.Errorf("extraction API returned error: %s", errorMsg)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("extraction API error: %s", resp.Error.Message)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from extraction API (status: %d)", httpResp.StatusCode())
	}

	return resp.Choices[0].Message.Content, nil
}

// isPlainTextMIME reports whether the document can be decoded locally
// without an extraction call.
func isPlainTextMIME(mimeType string) bool {
	mimeType = strings.ToLower(mimeType)
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if strings.HasPrefix(mimeType, "text/") {
		return true
	}
	switch mimeType {
	case "application/json", "application/xml", "application/x-yaml", "application/yaml":
		return true
	}
	return false
}
