package scanning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/zombor/cfd-invoice/internal/bill"
)

const schemaResource = "bill.schema.json"

// responseParser validates provider output against the contract schema
type responseParser struct {
	schema *jsonschema.Schema
}

// newResponseParser compiles the contract schema
func newResponseParser(schemaMap map[string]any) (*responseParser, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshaling schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResource, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("adding schema: %w", err)
	}
	schema, err := compiler.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	return &responseParser{schema: schema}, nil
}

// parseBillJSON parses the provider's response text strictly as a bill record
func (p *responseParser) parseBillJSON(text string) (*bill.Record, error) {
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, ErrEmptyResponse
	}

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("%w: unterminated JSON object", ErrMalformedResponse)
	}
	text = text[startIdx : endIdx+1]

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("%w: unmarshaling json: %v", ErrMalformedResponse, err)
	}
	if err := p.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	var record bill.Record
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, fmt.Errorf("%w: decoding record: %v", ErrMalformedResponse, err)
	}
	if record.Items == nil {
		record.Items = []bill.LineItem{}
	}

	return &record, nil
}
