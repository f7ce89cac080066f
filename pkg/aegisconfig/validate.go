package aegisconfig

import (
	"fmt"
	"strings"
)

// ValidationError names the specific config field that failed and why, per
// spec §6.2 ("Missing required keys or wrong types must be reported with
// the specific field name").
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors aggregates every ValidationError found in one pass, the
// way pkg/config/validate.go in the teacher repo reports every problem in a
// stack file at once rather than failing on the first.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return "config validation errors:\n  - " + strings.Join(msgs, "\n  - ")
}

// Validate checks a loaded ServerConfig for required fields and obviously
// wrong types/values.
func Validate(c *ServerConfig) error {
	var errs ValidationErrors

	if c.Name == "" {
		errs = append(errs, ValidationError{"name", "is required"})
	}
	if c.Command == "" {
		errs = append(errs, ValidationError{"command", "is required"})
	}
	if c.Args == nil {
		errs = append(errs, ValidationError{"args", "is required (use [] for no arguments)"})
	}
	if c.StartupTimeout < 0 {
		errs = append(errs, ValidationError{"startupTimeout", "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
