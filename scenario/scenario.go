package scenario

// This file contains the scenario configuration model and its loader.

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/valery-judah/semantic-shelf/model"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is the only accepted scenario file version.
const SchemaVersion = "1.0.0"

// DefaultResultsKey is the response field holding similar ids.
const DefaultResultsKey = "similar_book_ids"

// Telemetry modes and click models.
const (
	TelemetryModeSynthetic = "synthetic"
	TelemetryModeNone      = "none"

	ClickModelNone        = "none"
	ClickModelFirstResult = "first_result"
	ClickModelFixedCTR    = "fixed_ctr"
)

// Config is a traffic scenario (scenarios/<scenario_id>.yaml).
type Config struct {
	SchemaVersion   string      `yaml:"schema_version"`
	ScenarioID      string      `yaml:"scenario_id" validate:"required"`
	ScenarioVersion string      `yaml:"scenario_version"`
	Traffic         Traffic     `yaml:"traffic"`
	Anchors         Anchors     `yaml:"anchors"`
	Request         Request     `yaml:"request"`
	Validations     Validations `yaml:"validations"`
	Telemetry       Telemetry   `yaml:"telemetry"`
	PairedArms      bool        `yaml:"paired_arms"`
}

// Traffic is the traffic shape. Exactly one of DurationSeconds and
// RequestCount is set; at most one of the warmup bounds is set.
type Traffic struct {
	Concurrency           int      `yaml:"concurrency" validate:"gt=0"`
	DurationSeconds       *float64 `yaml:"duration_seconds" validate:"omitempty,gt=0"`
	RequestCount          *int     `yaml:"request_count" validate:"omitempty,gt=0"`
	RampUpSeconds         float64  `yaml:"ramp_up_seconds" validate:"gte=0"`
	WarmupSeconds         *float64 `yaml:"warmup_seconds" validate:"omitempty,gt=0"`
	WarmupRequestCount    *int     `yaml:"warmup_request_count" validate:"omitempty,gt=0"`
	RequestTimeoutSeconds float64  `yaml:"request_timeout_seconds" validate:"gt=0"`
	MaxRPS                float64  `yaml:"max_rps" validate:"gte=0"`
}

// Anchors configures anchor selection.
type Anchors struct {
	AnchorCount int `yaml:"anchor_count" validate:"gt=0"`
}

// Request configures the outgoing similar-items call.
type Request struct {
	Limit int `yaml:"limit" validate:"gt=0"`
}

// Validations are the per-response checks.
type Validations struct {
	StatusCode         int      `yaml:"status_code" validate:"gte=100,lte=599"`
	ResponseHasKeys    []string `yaml:"response_has_keys"`
	NoDuplicates       bool     `yaml:"no_duplicates"`
	AnchorNotInResults bool     `yaml:"anchor_not_in_results"`
	// ResultsPath is a JMESPath expression selecting the result id list.
	ResultsPath string `yaml:"results_path" validate:"required"`
}

// Telemetry configures synthetic telemetry emission.
type Telemetry struct {
	EmitTelemetry bool     `yaml:"emit_telemetry"`
	TelemetryMode string   `yaml:"telemetry_mode" validate:"oneof=synthetic none"`
	ClickModel    string   `yaml:"click_model" validate:"oneof=none first_result fixed_ctr"`
	FixedCTR      *float64 `yaml:"fixed_ctr" validate:"omitempty,gte=0,lte=1"`
}

// Enabled reports whether synthetic events should be emitted.
func (t Telemetry) Enabled() bool {
	return t.EmitTelemetry && t.TelemetryMode == TelemetryModeSynthetic
}

// Default returns a scenario with every default applied.
func Default(scenarioID string) Config {
	return Config{
		SchemaVersion:   SchemaVersion,
		ScenarioID:      scenarioID,
		ScenarioVersion: "1.0",
		Traffic: Traffic{
			Concurrency:           1,
			RequestTimeoutSeconds: 5,
		},
		Anchors: Anchors{AnchorCount: 6},
		Request: Request{Limit: 10},
		Validations: Validations{
			StatusCode:         200,
			ResponseHasKeys:    []string{DefaultResultsKey},
			NoDuplicates:       true,
			AnchorNotInResults: true,
			ResultsPath:        DefaultResultsKey,
		},
		Telemetry: Telemetry{
			TelemetryMode: TelemetryModeSynthetic,
			ClickModel:    ClickModelNone,
		},
	}
}

// ValidationError lists every violated configuration rule.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid scenario %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validationProblems(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			problems = append(problems, fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag()))
		}
	}
	return problems
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		problems = append(problems, validationProblems(err)...)
	}
	if c.SchemaVersion != SchemaVersion {
		problems = append(problems, fmt.Sprintf("schema_version %q is not supported (expected %q)", c.SchemaVersion, SchemaVersion))
	}
	t := c.Traffic
	if (t.DurationSeconds == nil) == (t.RequestCount == nil) {
		problems = append(problems, "exactly one of traffic.duration_seconds or traffic.request_count must be set")
	}
	if t.WarmupSeconds != nil && t.WarmupRequestCount != nil {
		problems = append(problems, "only one of traffic.warmup_seconds or traffic.warmup_request_count may be set")
	}
	if c.Telemetry.ClickModel == ClickModelFixedCTR && c.Telemetry.FixedCTR == nil {
		problems = append(problems, "telemetry.fixed_ctr is required when click_model is fixed_ctr")
	}
	if len(problems) > 0 {
		return &ValidationError{Source: c.ScenarioID, Problems: problems}
	}
	return nil
}

// Parse decodes and validates a scenario document. Unknown keys are
// rejected.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default("")
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ValidationError{Source: source, Problems: []string{err.Error()}}
	}
	if err := cfg.Validate(); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Source = source
		}
		return nil, err
	}
	return &cfg, nil
}

// Path returns the scenario file of scenarioID below dir.
func Path(dir, scenarioID string) string {
	return filepath.Join(dir, scenarioID+".yaml")
}

// Load reads and validates the scenario file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	return Parse(data, path)
}

// LoadOptional loads the scenario of scenarioID from dir, returning nil
// when no file exists.
func LoadOptional(dir, scenarioID string) (*Config, error) {
	path := Path(dir, scenarioID)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return Load(path)
}

// PhasePlan bounds one traffic phase by duration or by request count.
type PhasePlan struct {
	Phase        model.Phase
	Duration     time.Duration
	RequestCount int
}

// Phases returns the phases to execute in order.
func (c *Config) Phases() []PhasePlan {
	var plans []PhasePlan
	t := c.Traffic
	switch {
	case t.WarmupRequestCount != nil:
		plans = append(plans, PhasePlan{Phase: model.PhaseWarmup, RequestCount: *t.WarmupRequestCount})
	case t.WarmupSeconds != nil:
		plans = append(plans, PhasePlan{Phase: model.PhaseWarmup, Duration: seconds(*t.WarmupSeconds)})
	}
	steady := PhasePlan{Phase: model.PhaseSteadyState}
	if t.RequestCount != nil {
		steady.RequestCount = *t.RequestCount
	} else if t.DurationSeconds != nil {
		steady.Duration = seconds(*t.DurationSeconds)
	}
	return append(plans, steady)
}

// RampUp returns the ramp-up window.
func (t Traffic) RampUp() time.Duration {
	return seconds(t.RampUpSeconds)
}

// RequestTimeout returns the per-call timeout.
func (t Traffic) RequestTimeout() time.Duration {
	return seconds(t.RequestTimeoutSeconds)
}

// Mode describes the steady-state bound, e.g. "request_count=100".
func (c *Config) Mode() string {
	if c.Traffic.RequestCount != nil {
		return fmt.Sprintf("request_count=%d", *c.Traffic.RequestCount)
	}
	if c.Traffic.DurationSeconds != nil {
		return "duration_seconds=" + strconv.FormatFloat(*c.Traffic.DurationSeconds, 'f', -1, 64)
	}
	return "N/A"
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
