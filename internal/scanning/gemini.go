package scanning

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/zombor/cfd-invoice/internal/bill"
)

// DefaultGeminiModel is used when no model name is configured
const DefaultGeminiModel = "gemini-2.5-flash"

// contentGenerator is the part of genai.GenerativeModel the scanner needs
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// dialFunc builds a configured model for an API key
type dialFunc func(ctx context.Context, apiKey string) (contentGenerator, io.Closer, error)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	credential func() string
	dial       dialFunc
	parser     *responseParser
	modelName  string
	logger     *slog.Logger

	mu     sync.Mutex
	apiKey string
	model  contentGenerator
	closer io.Closer
}

// GeminiOption configures a Gemini scanner
type GeminiOption func(*Gemini)

// WithGeminiLogger sets the logger used by the scanner
func WithGeminiLogger(logger *slog.Logger) GeminiOption {
	return func(g *Gemini) {
		g.logger = logger
	}
}

// withDialer replaces the client constructor, used by tests
func withDialer(dial dialFunc) GeminiOption {
	return func(g *Gemini) {
		g.dial = dial
	}
}

// NewGemini creates a new Gemini Scanner. The credential is read on every call to
// Extract so a missing key is reported per attempt instead of at startup.
func NewGemini(credential func() string, modelName string, contract Contract, opts ...GeminiOption) (*Gemini, error) {
	if credential == nil {
		return nil, fmt.Errorf("gemini credential source is required")
	}
	if modelName == "" {
		modelName = DefaultGeminiModel
	}
	contract = contract.withDefaults()

	parser, err := newResponseParser(contract.Schema)
	if err != nil {
		return nil, fmt.Errorf("building response parser: %w", err)
	}

	g := &Gemini{
		credential: credential,
		parser:     parser,
		modelName:  modelName,
		logger:     slog.Default(),
	}
	g.dial = g.defaultDial(contract)
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// defaultDial creates a genai client and configures the model with the contract
func (g *Gemini) defaultDial(contract Contract) dialFunc {
	return func(ctx context.Context, apiKey string) (contentGenerator, io.Closer, error) {
		client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
		if err != nil {
			return nil, nil, fmt.Errorf("creating gemini client: %w", err)
		}

		model := client.GenerativeModel(g.modelName)
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text("You are an expert at reading billing documents and transcribing them into structured data.")},
		}
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = geminiSchema(contract.Schema)
		model.SetTemperature(contract.Temperature)

		return &promptedModel{model: model, prompt: contract.Prompt}, client, nil
	}
}

// promptedModel appends the contract prompt after the document parts
type promptedModel struct {
	model  contentGenerator
	prompt string
}

func (p *promptedModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	return p.model.GenerateContent(ctx, append(parts, genai.Text(p.prompt))...)
}

// generator returns a model for the current credential, redialing when the key changed
func (g *Gemini) generator(ctx context.Context) (contentGenerator, error) {
	apiKey := strings.TrimSpace(g.credential())
	if apiKey == "" {
		return nil, ErrMissingCredential
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.model != nil && g.apiKey == apiKey {
		return g.model, nil
	}
	if g.closer != nil {
		if err := g.closer.Close(); err != nil {
			g.logger.Warn("Failed to close previous gemini client", "error", err)
		}
		g.model, g.closer = nil, nil
	}

	model, closer, err := g.dial(ctx, apiKey)
	if err != nil {
		return nil, newProviderError(err)
	}
	g.apiKey, g.model, g.closer = apiKey, model, closer

	return model, nil
}

// Extract analyzes a billing document and extracts its data
func (g *Gemini) Extract(ctx context.Context, data []byte, mimeType string) (*bill.Record, error) {
	model, err := g.generator(ctx)
	if err != nil {
		return nil, err
	}

	payload, payloadMime, err := prepareForGemini(data, mimeType)
	if err != nil {
		return nil, err
	}

	resp, err := model.GenerateContent(ctx, genai.Blob{MIMEType: payloadMime, Data: payload})
	if err != nil {
		g.logger.Error("Gemini request failed", "model", g.modelName, "mime_type", payloadMime, "error", err)
		return nil, newProviderError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	record, err := g.parser.parseBillJSON(responseText.String())
	if err != nil {
		g.logger.Error("Failed to parse gemini response", "model", g.modelName, "error", err)
		return nil, fmt.Errorf("parsing bill data: %w", err)
	}

	return record, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closer == nil {
		return nil
	}
	err := g.closer.Close()
	g.model, g.closer = nil, nil
	return err
}
