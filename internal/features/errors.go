package features

import (
	"fmt"
	"strings"
)

// ValidationError rejects a record before encoding. Its Reason is safe to show to the user.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", strings.Join(e.Fields, ", "), e.Reason)
}

// EncodingError reports a field that cannot be mapped onto the schema.
type EncodingError struct {
	Field  string
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %s", e.Field, e.Reason)
}
