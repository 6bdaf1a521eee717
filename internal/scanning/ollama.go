package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/cfd-invoice/internal/bill"
)

// Ollama implements the Scanner interface using a local Ollama server.
// Vision models only read images, so PDFs are sent as a render of their first page.
type Ollama struct {
	baseURL     string
	model       string
	prompt      string
	temperature float32
	schema      map[string]any
	parser      *responseParser
	client      *http.Client
	logger      *slog.Logger
}

// OllamaOption configures an Ollama scanner
type OllamaOption func(*Ollama)

// WithOllamaLogger sets the logger used by the scanner
func WithOllamaLogger(logger *slog.Logger) OllamaOption {
	return func(o *Ollama) {
		o.logger = logger
	}
}

// NewOllama creates a new Ollama Scanner instance
func NewOllama(baseURL string, modelName string, contract Contract, opts ...OllamaOption) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}
	contract = contract.withDefaults()

	parser, err := newResponseParser(contract.Schema)
	if err != nil {
		return nil, fmt.Errorf("building response parser: %w", err)
	}

	o := &Ollama{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       modelName,
		prompt:      contract.Prompt,
		temperature: contract.Temperature,
		schema:      contract.Schema,
		parser:      parser,
		client: &http.Client{
			Timeout: 120 * time.Second, // vision models are slow on local hardware
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   map[string]any  `json:"format,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}

// Extract analyzes a billing document and extracts its data
func (o *Ollama) Extract(ctx context.Context, data []byte, mimeType string) (*bill.Record, error) {
	imageData, err := prepareImageData(data, mimeType)
	if err != nil {
		return nil, err
	}

	reqBody := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: o.schema,
		Options: ollamaOptions{
			Temperature: o.temperature,
		},
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading billing documents and transcribing them into structured data.",
			},
			{
				Role:    "user",
				Content: o.prompt,
				Images:  []string{base64.StdEncoding.EncodeToString(imageData)},
			},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", o.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.Error("Ollama request failed", "url", url, "model", o.model, "error", err)
		return nil, newProviderError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newProviderError(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var errResp ollamaErrorResponse
		if json.Unmarshal(body, &errResp) == nil && strings.TrimSpace(errResp.Error) != "" {
			return nil, &ProviderError{
				Message: strings.TrimSpace(errResp.Error),
				Err:     fmt.Errorf("ollama API error (status %d)", resp.StatusCode),
			}
		}
		return nil, &ProviderError{Err: fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyResponse
	}

	var chatResp ollamaChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w: %v", ErrMalformedResponse, err)
	}

	record, err := o.parser.parseBillJSON(chatResp.Message.Content)
	if err != nil {
		o.logger.Error("Failed to parse ollama response", "model", o.model, "error", err)
		return nil, fmt.Errorf("parsing bill data: %w", err)
	}

	return record, nil
}

// Close closes the Ollama client (no-op for HTTP client)
func (o *Ollama) Close() error {
	return nil
}
