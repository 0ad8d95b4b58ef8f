// internal/failure/failure.go
package failure

import (
	"errors"
	"fmt"
)

// ConfigError reports input that cannot be turned into a configuration.
type ConfigError struct {
	Stage string // window | config | cli
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError for stage with a formatted message.
func Configf(stage, format string, a ...any) error {
	return &ConfigError{Stage: stage, Msg: fmt.Sprintf(format, a...)}
}

// ReferenceDataError reports a lookup key missing from the lineage tables.
type ReferenceDataError struct {
	Lineage string
	Key     string // empty when the lineage itself is unknown
}

func (e *ReferenceDataError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("reference data: unknown lineage %q", e.Lineage)
	}
	return fmt.Sprintf("reference data: lineage %q has no entry for %q", e.Lineage, e.Key)
}

// CollaboratorFailure wraps an error returned by an external collaborator.
type CollaboratorFailure struct {
	Stage string
	Err   error
}

func (e *CollaboratorFailure) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *CollaboratorFailure) Unwrap() error { return e.Err }

// Collaborator wraps err as a CollaboratorFailure for stage. A nil err stays nil,
// and an error that already carries a kind is returned unchanged.
func Collaborator(stage string, err error) error {
	if err == nil {
		return nil
	}
	if IsConfig(err) || IsReferenceData(err) || IsCollaborator(err) {
		return err
	}
	return &CollaboratorFailure{Stage: stage, Err: err}
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func IsReferenceData(err error) bool {
	var re *ReferenceDataError
	return errors.As(err, &re)
}

func IsCollaborator(err error) bool {
	var cf *CollaboratorFailure
	return errors.As(err, &cf)
}

// Stage returns the stage recorded on the first classified error in err's chain.
func Stage(err error) string {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce.Stage
	}
	var cf *CollaboratorFailure
	if errors.As(err, &cf) {
		return cf.Stage
	}
	if IsReferenceData(err) {
		return "reference data"
	}
	return ""
}
