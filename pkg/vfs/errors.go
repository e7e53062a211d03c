package vfs

import "fmt"

// NameSyntaxError is returned when a name or URI is malformed or has a
// component which is not allowed where it is used.
type NameSyntaxError struct {
	Name   string
	Reason string
}

func (e *NameSyntaxError) Error() string {
	return fmt.Sprintf("illegal name %q: %s", e.Name, e.Reason)
}

func syntaxError(name, format string, args ...interface{}) error {
	return &NameSyntaxError{Name: name, Reason: fmt.Sprintf(format, args...)}
}
