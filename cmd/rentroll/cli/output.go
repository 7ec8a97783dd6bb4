package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // tenants failed in an otherwise complete run
	ExitCommandError = 2 // bad input, unreachable store, aborted run
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter prints command results as JSON or aligned text.
type OutputFormatter struct {
	JSON   bool
	Writer io.Writer
}

// Response is the JSON envelope for command output.
type Response struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result writes data. In text mode render draws the human form.
func (f *OutputFormatter) Result(data any, render func(w *tabwriter.Writer)) error {
	if f.JSON {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	render(tw)
	return tw.Flush()
}

// Failure writes data together with the error that ended the command.
func (f *OutputFormatter) Failure(data any, err error, render func(w *tabwriter.Writer)) error {
	if f.JSON {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "error", Data: data, Error: err.Error()})
	}
	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	if render != nil {
		render(tw)
	}
	fmt.Fprintf(tw, "error:\t%v\n", err)
	return tw.Flush()
}
