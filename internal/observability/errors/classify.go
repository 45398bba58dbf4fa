package errors

import (
	goerrors "errors"
	"fmt"
	"strings"
)

// Classify returns a normalized error type name suitable for tagging metrics
// and logs. The chain is unwrapped to its root cause first, so a repo error
// wrapped several times still tags as the underlying concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}

	name := fmt.Sprintf("%T", err)
	name = strings.TrimLeft(name, "*")
	name = strings.ToLower(strings.ReplaceAll(name, ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
