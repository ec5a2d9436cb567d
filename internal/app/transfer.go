package app

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

// Export file conventions.
const (
	ExportFileName    = "quotes.json"
	ExportContentType = "application/json"
)

// importSchema only constrains the top-level shape; elements are decoded permissively.
const importSchema = `{"type":"array"}`

var compiledImportSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(importSchema))
})

// ExportPayload renders c as indented JSON.
func ExportPayload(c domain.Collection) ([]byte, error) {
	raw, err := json.MarshalIndent(c.Clone(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding export: %w", err)
	}

	return raw, nil
}

// ImportPayload parses an exported file.
// A payload that is not a JSON array fails with domain.FormatError.
// Elements that are not objects, and fields that are missing or not strings,
// decode as empty strings.
func ImportPayload(payload []byte) (domain.Collection, error) {
	schema, err := compiledImportSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling import schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, domain.NewFormatError("import", "payload is not valid JSON")
	}

	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			reasons = append(reasons, desc.Description())
		}

		return nil, domain.NewFormatError("import", strings.Join(reasons, "; "))
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		return nil, domain.NewFormatError("import", err.Error())
	}

	quotes := make(domain.Collection, 0, len(elements))
	for _, el := range elements {
		quotes = append(quotes, decodeLooseQuote(el))
	}

	return quotes, nil
}

func decodeLooseQuote(raw json.RawMessage) domain.Quote {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Quote{}
	}

	text, _ := fields["text"].(string)
	category, _ := fields["category"].(string)

	return domain.Quote{Text: text, Category: category}
}
