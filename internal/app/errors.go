package service

import "fmt"

// ValidationError reports an unusable submit payload. The API maps it to a
// 400, everything else to a 500.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
