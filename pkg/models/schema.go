package models

// SchemaRule holds per-field constraints. Rules are used for validation
// only and never change how a document is stored.
type SchemaRule struct {
	Required  bool          `json:"required,omitempty" yaml:"required,omitempty"`
	Type      string        `json:"type,omitempty" yaml:"type,omitempty"`
	MinLength int           `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength int           `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Pattern   string        `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Enum      []interface{} `json:"enum,omitempty" yaml:"enum,omitempty"`
	Min       *float64      `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64      `json:"max,omitempty" yaml:"max,omitempty"`
}

// Schema maps field names to their rules.
type Schema map[string]SchemaRule

// RequiredFields returns the names of fields marked required.
func (s Schema) RequiredFields() []string {
	var fields []string
	for name, rule := range s {
		if rule.Required {
			fields = append(fields, name)
		}
	}
	return fields
}
