package registryhttp

import (
	"fmt"
	"sort"

	"github.com/quasarhq/quasar/internal/model"
)

// FieldSpec describes one CONFIGURABLE preference field (§4.H).
type FieldSpec struct {
	Type        string  `json:"type"`
	Default     any     `json:"default"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Description string  `json:"description"`
}

// Schema maps category -> field -> FieldSpec.
type Schema map[string]map[string]FieldSpec

func floatPtr(f float64) *float64 { return &f }

var baseSchema = Schema{
	"crypto": {
		"preferred_quote_currency": FieldSpec{
			Type:        "string",
			Default:     "USD",
			Description: "Quote currency used when a provider reports crypto pairs ambiguously.",
		},
	},
}

var historicalSchema = Schema{
	"scheduling": {
		"delay_hours": FieldSpec{
			Type:        "integer",
			Default:     0,
			Min:         floatPtr(0),
			Max:         floatPtr(24),
			Description: "Hours after the UTC daily close before the historical job fires.",
		},
	},
	"data": {
		"lookback_days": FieldSpec{
			Type:        "integer",
			Default:     8000,
			Min:         floatPtr(1),
			Max:         floatPtr(8000),
			Description: "How far back to backfill when no watermark exists.",
		},
	},
}

var liveSchema = Schema{
	"scheduling": {
		"pre_close_seconds": FieldSpec{
			Type:        "integer",
			Default:     30,
			Min:         floatPtr(0),
			Max:         floatPtr(300),
			Description: "Seconds before the interval boundary the live job wakes to start listening.",
		},
		"post_close_seconds": FieldSpec{
			Type:        "integer",
			Default:     5,
			Min:         floatPtr(0),
			Max:         floatPtr(60),
			Description: "Grace seconds after the interval boundary before the listen window closes.",
		},
	},
}

// SchemaFor returns the additive CONFIGURABLE schema for a subtype: the
// base DataProvider fields plus whatever the subtype's base class adds.
// IndexProvider adds nothing beyond the base (§4.H).
func SchemaFor(subtype model.ClassSubtype) Schema {
	out := mergeSchema(baseSchema)
	switch subtype {
	case model.SubtypeHistorical:
		out = mergeSchema(out, historicalSchema)
	case model.SubtypeLive:
		out = mergeSchema(out, liveSchema)
	}
	return out
}

func mergeSchema(schemas ...Schema) Schema {
	out := Schema{}
	for _, s := range schemas {
		for category, fields := range s {
			if out[category] == nil {
				out[category] = map[string]FieldSpec{}
			}
			for field, spec := range fields {
				out[category][field] = spec
			}
		}
	}
	return out
}

// ValidationError collects every field-level failure found while
// validating a preference patch, rather than stopping at the first
// (§4.H: "accumulating all errors before reporting").
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registryhttp: %d validation error(s): %v", len(e.Errors), e.Errors)
}

func (e *ValidationError) add(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// ValidatePatch checks patch (category -> field -> value) against
// schema, rejecting unknown categories/fields, type mismatches, and
// bound violations. Returns nil if patch is entirely valid.
func ValidatePatch(schema Schema, patch map[string]map[string]any) error {
	verr := &ValidationError{}

	categories := make([]string, 0, len(patch))
	for c := range patch {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		fields, ok := schema[category]
		if !ok {
			verr.add("unknown category %q", category)
			continue
		}

		fieldNames := make([]string, 0, len(patch[category]))
		for f := range patch[category] {
			fieldNames = append(fieldNames, f)
		}
		sort.Strings(fieldNames)

		for _, field := range fieldNames {
			spec, ok := fields[field]
			if !ok {
				verr.add("unknown field %q in category %q", field, category)
				continue
			}
			validateValue(verr, category, field, spec, patch[category][field])
		}
	}

	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

func validateValue(verr *ValidationError, category, field string, spec FieldSpec, value any) {
	switch spec.Type {
	case "integer":
		n, ok := asNumber(value)
		if !ok {
			verr.add("%s.%s: expected integer, got %T", category, field, value)
			return
		}
		if spec.Min != nil && n < *spec.Min {
			verr.add("%s.%s: %v below minimum %v", category, field, n, *spec.Min)
		}
		if spec.Max != nil && n > *spec.Max {
			verr.add("%s.%s: %v above maximum %v", category, field, n, *spec.Max)
		}
	case "string":
		if _, ok := value.(string); !ok {
			verr.add("%s.%s: expected string, got %T", category, field, value)
		}
	default:
		verr.add("%s.%s: unsupported schema type %q", category, field, spec.Type)
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// FlattenPatch converts a category->field->value patch into the flat
// field-name-keyed map the preferences column stores (field names are
// unique across categories in the current schema set).
func FlattenPatch(patch map[string]map[string]any) map[string]any {
	out := map[string]any{}
	for _, fields := range patch {
		for field, value := range fields {
			out[field] = value
		}
	}
	return out
}

// EffectiveConfig merges stored preferences (flat, field-name-keyed)
// over the schema's defaults, returning a fully populated
// category->field->value view (§4.H supplemented behavior: "provider
// preference defaults are applied on read").
func EffectiveConfig(schema Schema, stored map[string]any) map[string]map[string]any {
	out := map[string]map[string]any{}
	for category, fields := range schema {
		out[category] = map[string]any{}
		for field, spec := range fields {
			if v, ok := stored[field]; ok {
				out[category][field] = v
			} else {
				out[category][field] = spec.Default
			}
		}
	}
	return out
}
