package model

// RuleType tags a slice membership rule.
type RuleType string

const (
	RuleFieldEquals       RuleType = "field_equals"
	RuleFieldIn           RuleType = "field_in"
	RuleNumericRange      RuleType = "numeric_range"
	RuleExplicitAnchorIDs RuleType = "explicit_anchor_ids"
)

// MembershipRule decides whether an anchor belongs to a slice. Only the
// fields of the rule's type are used.
type MembershipRule struct {
	Type      RuleType `yaml:"type" json:"type" validate:"oneof=field_equals field_in numeric_range explicit_anchor_ids"`
	Field     string   `yaml:"field,omitempty" json:"field,omitempty"`
	Value     any      `yaml:"value,omitempty" json:"value,omitempty"`
	Values    []any    `yaml:"values,omitempty" json:"values,omitempty"`
	MinValue  *float64 `yaml:"min_value,omitempty" json:"min_value,omitempty"`
	MaxValue  *float64 `yaml:"max_value,omitempty" json:"max_value,omitempty"`
	AnchorIDs []string `yaml:"anchor_ids,omitempty" json:"anchor_ids,omitempty"`
}

// SliceDefinition names a subset of anchors.
type SliceDefinition struct {
	SliceID        string         `yaml:"slice_id" json:"slice_id" validate:"required"`
	Description    string         `yaml:"description" json:"description" validate:"required"`
	Priority       int            `yaml:"priority" json:"priority" validate:"gte=1"`
	MinSampleSize  int            `yaml:"min_sample_size" json:"min_sample_size" validate:"gte=1"`
	MembershipRule MembershipRule `yaml:"membership_rule" json:"membership_rule"`
}

// SliceConfig is the slice definition file of a scenario.
type SliceConfig struct {
	Slices []SliceDefinition `yaml:"slices" json:"slices" validate:"dive"`
}
