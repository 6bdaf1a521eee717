package scanning

import (
	"github.com/google/generative-ai-go/genai"
)

// DefaultPrompt is the instruction sent alongside every document
const DefaultPrompt = `Analyze this billing document (invoice, lorry receipt, e-way bill or similar) and extract its data into structured JSON matching the provided schema.

1. Identify the document type, e.g. "Invoice", "Lorry Receipt", "E-Way Bill".
2. Extract the primary reference number (Invoice No, LR No, E-Way Bill No) and the document date exactly as printed.
3. Extract the sender/consignor and receiver/consignee: name, address and tax id (GSTIN or PAN) when printed.
4. Extract every row of the items table with description, quantity, rate and amount.
5. Extract subtotal, tax amount, total amount and the currency symbol or code.
6. Put any remarks or payment terms into notes.

Rules:
- Transcribe values literally; do not compute, round or reformat numbers or dates.
- Use an empty string for any field that is missing from the document.
- Return only JSON.`

// DefaultTemperature favors literal transcription over paraphrase
const DefaultTemperature float32 = 0.1

// Contract is the fixed combination of instruction, schema and decoding setting
// sent to the extraction provider
type Contract struct {
	Prompt      string
	Temperature float32
	Schema      map[string]any
}

// DefaultContract returns the contract with the default prompt and temperature
func DefaultContract() Contract {
	return Contract{
		Prompt:      DefaultPrompt,
		Temperature: DefaultTemperature,
		Schema:      BillSchema(),
	}
}

// withDefaults fills zero fields from DefaultContract. A zero temperature is kept.
func (c Contract) withDefaults() Contract {
	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.Schema == nil {
		c.Schema = BillSchema()
	}
	return c
}

// BillSchema returns the JSON Schema of a bill record. It is sent to the provider as a
// structured output constraint and used locally to validate the response.
func BillSchema() map[string]any {
	str := func(description string) map[string]any {
		s := map[string]any{"type": "string"}
		if description != "" {
			s["description"] = description
		}
		return s
	}
	party := func() map[string]any {
		return map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":    str(""),
				"address": str(""),
				"taxId":   str("GSTIN or PAN"),
			},
		}
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"documentType":   str("Type of document (e.g., Invoice, Lorry Receipt, E-Way Bill)"),
			"documentNumber": str("The primary reference number (Invoice No, LR No)"),
			"date":           str("Date of the document"),
			"sender":         party(),
			"receiver":       party(),
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"description": str(""),
						"quantity":    str(""),
						"rate":        str(""),
						"amount":      str(""),
					},
				},
			},
			"subtotal":    str(""),
			"taxAmount":   str(""),
			"totalAmount": str(""),
			"currency":    str("Currency symbol or code (e.g., ₹, INR)"),
			"notes":       str("Any extra remarks or payment terms"),
		},
		"required": []string{"documentType", "totalAmount", "items"},
	}
}

// geminiSchema converts a JSON Schema map into the genai schema type
func geminiSchema(s map[string]any) *genai.Schema {
	out := &genai.Schema{}

	switch s["type"] {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	}

	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				out.Properties[name] = geminiSchema(pm)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = geminiSchema(items)
	}
	if required, ok := s["required"].([]string); ok {
		out.Required = append([]string(nil), required...)
	}

	return out
}
