package loadgen

// This file contains per-response validation.

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmespath/go-jmespath"
	"github.com/valery-judah/semantic-shelf/model"
	"github.com/valery-judah/semantic-shelf/scenario"
)

// maxBodyBytes bounds the response body kept on failing records.
const maxBodyBytes = 1000

// outcome is the result of validating one response.
type outcome struct {
	kind        model.FailureKind
	detail      string
	ids         []string
	algoID      string
	recsVersion string
}

func (o outcome) passed() bool {
	return o.kind == ""
}

type responseValidator struct {
	cfg     scenario.Validations
	results *jmespath.JMESPath
}

func newResponseValidator(cfg scenario.Validations) (*responseValidator, error) {
	path := cfg.ResultsPath
	if path == "" {
		path = scenario.DefaultResultsKey
	}
	compiled, err := jmespath.Compile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile results_path %q: %w", path, err)
	}
	cfg.ResultsPath = path
	return &responseValidator{cfg: cfg, results: compiled}, nil
}

// check applies the validations in order and reports the first violation.
func (v *responseValidator) check(anchorID string, status int, body []byte) outcome {
	if status != v.cfg.StatusCode {
		return outcome{
			kind:   model.FailureStatusCodeMismatch,
			detail: fmt.Sprintf("Expected %d, got %d", v.cfg.StatusCode, status),
		}
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return outcome{kind: model.FailureInvalidJSON, detail: "Response body is not valid JSON"}
	}
	obj, _ := data.(map[string]any)
	for _, key := range v.cfg.ResponseHasKeys {
		if _, ok := obj[key]; !ok {
			return outcome{kind: model.FailureMissingKey, detail: "Missing key: " + key}
		}
	}

	o := outcome{ids: v.resultIDs(data)}
	o.algoID, _ = obj["algo_id"].(string)
	o.recsVersion, _ = obj["recs_version"].(string)

	if v.cfg.NoDuplicates && hasDuplicates(o.ids) {
		o.kind = model.FailureDuplicateIDs
		o.detail = "Duplicate IDs found in " + v.cfg.ResultsPath
		return o
	}
	if v.cfg.AnchorNotInResults {
		for _, id := range o.ids {
			if id == anchorID {
				o.kind = model.FailureAnchorInResults
				o.detail = "Anchor ID found in " + v.cfg.ResultsPath
				return o
			}
		}
	}
	return o
}

// resultIDs extracts the result list as strings. Anything that is not a
// list yields no ids.
func (v *responseValidator) resultIDs(data any) []string {
	found, err := v.results.Search(data)
	if err != nil {
		return nil
	}
	list, ok := found.([]any)
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(list))
	for _, item := range list {
		ids = append(ids, idString(item))
	}
	return ids
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// truncateBody keeps at most maxBodyBytes without splitting a rune.
func truncateBody(body []byte) string {
	if len(body) <= maxBodyBytes {
		return strings.ToValidUTF8(string(body), "�")
	}
	cut := maxBodyBytes
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return strings.ToValidUTF8(string(body[:cut]), "�")
}
