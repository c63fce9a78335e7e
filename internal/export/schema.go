package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const decimalPattern = `^-?[0-9]+(\.[0-9]+)?$`

// BundleSchema describes the JSON form of an entity.ExtractionBundle.
// Decimals travel as strings.
var BundleSchema = map[string]any{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type":    "object",
	"required": []any{"header", "lines", "vendor"},
	"properties": map[string]any{
		"header": map[string]any{
			"type":     "object",
			"required": []any{"vendor_name", "grand_total", "tax_buckets", "needs_review", "review_reasons"},
			"properties": map[string]any{
				"vendor_name":        map[string]any{"type": "string"},
				"tax_id":             map[string]any{"type": "string", "pattern": `^[0-9]{2}[A-Z0-9]{13}$`},
				"invoice_number":     map[string]any{"type": "string"},
				"invoice_date":       map[string]any{"type": "string", "format": "date-time"},
				"grand_total":        decimalSchema(),
				"grand_total_source": map[string]any{"enum": []any{"stated", "sum_of_lines"}},
				"tax_buckets": map[string]any{
					"type":     "object",
					"required": []any{"cgst", "sgst", "igst"},
					"properties": map[string]any{
						"cgst": decimalSchema(),
						"sgst": decimalSchema(),
						"igst": decimalSchema(),
					},
				},
				"needs_review": map[string]any{"type": "boolean"},
				"review_reasons": map[string]any{
					"type": "array",
					"items": map[string]any{"enum": []any{
						"line_flagged", "totals_mismatch", "strategy_divergence",
						"vendor_low_confidence", "invoice_number_is_filename", "no_usable_lines",
					}},
					"uniqueItems": true,
				},
			},
		},
		"lines": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"required": []any{
					"description", "quantity", "unit_price", "line_total", "confidence",
					"flagged", "source", "candidate_product_ids", "resolved_product_id", "match_score",
				},
				"properties": map[string]any{
					"description":             map[string]any{"type": "string", "minLength": 1, "maxLength": entity.MaxDescriptionRunes},
					"quantity":                decimalSchema(),
					"unit_price":              decimalSchema(),
					"line_total":              decimalSchema(),
					"tax_classification_code": map[string]any{"type": "string", "pattern": `^[0-9]{4,8}$`},
					"unit_of_measure":         map[string]any{"type": "string"},
					"confidence":              unitInterval(),
					"flagged":                 map[string]any{"type": "boolean"},
					"source":                  map[string]any{"enum": []any{"pattern_a", "pattern_b", "table"}},
					"candidate_product_ids": map[string]any{
						"type":     "array",
						"items":    map[string]any{"type": "string"},
						"maxItems": 3,
					},
					"resolved_product_id": map[string]any{"type": []any{"string", "null"}},
					"match_score":         unitInterval(),
				},
			},
		},
		"vendor": map[string]any{
			"type":     []any{"object", "null"},
			"required": []any{"canonical_name", "score"},
			"properties": map[string]any{
				"canonical_name": map[string]any{"type": "string"},
				"tax_id":         map[string]any{"type": "string"},
				"state_code":     map[string]any{"type": "string", "pattern": `^[0-9]{2}$`},
				"score":          map[string]any{"type": "number"},
			},
		},
		"text_method": map[string]any{"type": "string"},
		"pages":       map[string]any{"type": "integer", "minimum": 0},
	},
}

func decimalSchema() map[string]any {
	return map[string]any{"type": "string", "pattern": decimalPattern}
}

func unitInterval() map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 1}
}

var compiledBundleSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	b, err := json.Marshal(BundleSchema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("bundle.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("bundle.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// ValidateBundleJSON validates serialized bundle JSON against BundleSchema.
func ValidateBundleJSON(data []byte) error {
	schema, err := compiledBundleSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// MarshalBundle encodes b as indented JSON and validates the result.
func MarshalBundle(b *entity.ExtractionBundle) ([]byte, error) {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal bundle: %w", err)
	}
	if err := ValidateBundleJSON(data); err != nil {
		return nil, err
	}
	return data, nil
}
