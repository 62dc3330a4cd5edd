package artifacts

import (
	"errors"
	"fmt"
)

// ErrArtifactMissing is matched by errors.Is for artifacts that do not exist.
var ErrArtifactMissing = errors.New("artifact missing")

// ArtifactError reports a missing or malformed artifact.
type ArtifactError struct {
	Path string
	// Line is 1-based for JSONL artifacts, 0 otherwise.
	Line int
	Err  error
}

func (e *ArtifactError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("artifact %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// SchemaVersionError reports a version field that does not equal the
// expected constant.
type SchemaVersionError struct {
	Path  string
	Line  int
	Field string
	Got   string
	Want  string
}

func (e *SchemaVersionError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s line %d", e.Path, e.Line)
	}
	return fmt.Sprintf("artifact %s: unsupported %s %q (expected %q)", loc, e.Field, e.Got, e.Want)
}

func checkVersion(path string, line int, field, got, want string) error {
	if got != want {
		return &SchemaVersionError{Path: path, Line: line, Field: field, Got: got, Want: want}
	}
	return nil
}
