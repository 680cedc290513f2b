package diagnostics

import "fmt"

// Severity classifies an Entry.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeverityTrace   Severity = "trace"
)

// Entry is a single recorded event. Its core fields are immutable once
// created; only the optional Detail field can be attached afterward via
// WithDetail, for chaining at the call site.
type Entry struct {
	severity  Severity
	component string
	message   string
	detail    string
}

func (e *Entry) Severity() Severity { return e.severity }
func (e *Entry) Component() string  { return e.component }
func (e *Entry) Message() string    { return e.message }
func (e *Entry) Detail() string     { return e.detail }

// WithDetail attaches free-form extra context (a CodeUnit filename, a probe
// key, a byte offset) and returns the same Entry for chaining.
func (e *Entry) WithDetail(detail string) *Entry {
	e.detail = detail
	return e
}

// String renders a single-line representation: "severity [component]: message (detail)".
func (e *Entry) String() string {
	if e.detail == "" {
		return fmt.Sprintf("%s [%s]: %s", e.severity, e.component, e.message)
	}
	return fmt.Sprintf("%s [%s]: %s (%s)", e.severity, e.component, e.message, e.detail)
}
