package sparql

import (
	"fmt"
	"strings"
)

const maxStatementInError = 200

// StoreError wraps a failure reported by, or while talking to, the store.
// Graph and Statement are set on write paths so an operator can see what
// may have been partially applied.
type StoreError struct {
	Op        string
	Graph     string
	Statement string
	Err       error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString("store ")
	b.WriteString(e.Op)
	if e.Graph != "" {
		b.WriteString(" <")
		b.WriteString(e.Graph)
		b.WriteString(">")
	}
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("failed")
	}
	if e.Statement != "" {
		stmt := e.Statement
		if len(stmt) > maxStatementInError {
			stmt = stmt[:maxStatementInError] + "..."
		}
		b.WriteString(" (statement: ")
		b.WriteString(strings.Join(strings.Fields(stmt), " "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *StoreError) Unwrap() error { return e.Err }

// StatusError is returned when the store answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// ValidationError rejects a query or update before any store I/O.
type ValidationError struct {
	Kind   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid sparql %s: %s", e.Kind, e.Reason)
}
