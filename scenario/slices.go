package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/valery-judah/semantic-shelf/model"
	"gopkg.in/yaml.v3"
)

// SlicesPath returns the slice definition file of scenarioID below dir.
func SlicesPath(dir, scenarioID string) string {
	return filepath.Join(dir, "slices", scenarioID+".yaml")
}

// ParseSlices decodes and validates a slice definition document.
// min_sample_size defaults to 1.
func ParseSlices(data []byte, source string) (*model.SliceConfig, error) {
	var cfg model.SliceConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ValidationError{Source: source, Problems: []string{err.Error()}}
	}
	for i := range cfg.Slices {
		if cfg.Slices[i].MinSampleSize == 0 {
			cfg.Slices[i].MinSampleSize = 1
		}
	}

	var problems []string
	if err := validate.Struct(&cfg); err != nil {
		problems = append(problems, validationProblems(err)...)
	}
	seen := make(map[string]bool)
	for _, s := range cfg.Slices {
		if seen[s.SliceID] {
			problems = append(problems, fmt.Sprintf("duplicate slice_id %q", s.SliceID))
		}
		seen[s.SliceID] = true
		if err := checkRule(s.MembershipRule); err != nil {
			problems = append(problems, fmt.Sprintf("slice %q: %v", s.SliceID, err))
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Source: source, Problems: problems}
	}
	return &cfg, nil
}

func checkRule(r model.MembershipRule) error {
	switch r.Type {
	case model.RuleFieldEquals:
		if r.Field == "" || r.Value == nil {
			return errors.New("field_equals requires field and value")
		}
	case model.RuleFieldIn:
		if r.Field == "" || len(r.Values) == 0 {
			return errors.New("field_in requires field and values")
		}
	case model.RuleNumericRange:
		if r.Field == "" {
			return errors.New("numeric_range requires field")
		}
		if r.MinValue != nil && r.MaxValue != nil && *r.MinValue > *r.MaxValue {
			return errors.New("numeric_range min_value exceeds max_value")
		}
	case model.RuleExplicitAnchorIDs:
		if len(r.AnchorIDs) == 0 {
			return errors.New("explicit_anchor_ids requires anchor_ids")
		}
	default:
		return fmt.Errorf("unknown rule type %q", r.Type)
	}
	return nil
}

// LoadSlicesOptional loads the slice file of scenarioID, returning nil when
// it does not exist.
func LoadSlicesOptional(dir, scenarioID string) (*model.SliceConfig, error) {
	path := SlicesPath(dir, scenarioID)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read slices %s: %w", path, err)
	}
	return ParseSlices(data, path)
}
