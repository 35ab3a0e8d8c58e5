package core

import "encoding/json"

// Field types understood by the output schema
const (
	FieldString = "string"
	FieldNumber = "number"
	FieldArray  = "array"
)

// SchemaField describes one property of the classification payload
type SchemaField struct {
	Name        string
	Type        string
	Description string
	Enum        []string
	Items       string
	Nullable    bool
}

// OutputSchema is the JSON structure the completion service must return
type OutputSchema struct {
	Name   string
	Fields []SchemaField
}

// NewClassificationSchema returns the schema of the classification payload.
// Every field is required and no additional property is allowed.
func NewClassificationSchema() *OutputSchema {
	enum := make([]string, len(Categories))
	for i, c := range Categories {
		enum[i] = string(c)
	}
	return &OutputSchema{
		Name: "email_classification",
		Fields: []SchemaField{
			{Name: "category", Type: FieldString, Enum: enum, Description: "Categoria do email"},
			{Name: "confidence", Type: FieldNumber, Description: "Confiança entre 0 e 1"},
			{Name: "suggested_response", Type: FieldString, Description: "Resposta sugerida em português"},
			{Name: "justification", Type: FieldString, Nullable: true, Description: "Justificativa da classificação"},
			{Name: "highlights", Type: FieldArray, Items: FieldString, Nullable: true, Description: "Até 3 trechos relevantes"},
			{Name: "raw_labels", Type: FieldArray, Items: FieldString, Nullable: true, Description: "Rótulos auxiliares"},
		},
	}
}

// Required returns the names of every field in declaration order
func (s *OutputSchema) Required() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field returns the named field
func (s *OutputSchema) Field(name string) (SchemaField, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return SchemaField{}, false
}

// MarshalJSON renders the schema as a strict JSON Schema object
func (s *OutputSchema) MarshalJSON() ([]byte, error) {
	properties := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		prop := map[string]any{}
		if f.Nullable {
			prop["type"] = []string{f.Type, "null"}
		} else {
			prop["type"] = f.Type
		}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		if f.Type == FieldArray {
			prop["items"] = map[string]any{"type": f.Items}
		}
		properties[f.Name] = prop
	}
	return json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             s.Required(),
		"additionalProperties": false,
	})
}
