package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OneLine returns the one-line error message stored in the workspace
// manifest and carried on failure events (spec §7: "failure events carry
// one-line error messages; detailed context is written to logs").
func OneLine(err error) string {
	if err == nil {
		return ""
	}
	ge, ok := err.(*GraphError)
	if !ok {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %s", ge.Code, ge.Message)
}

// FormatForCLI formats an error for CLI output with full detail context.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ge, ok := err.(*GraphError)
	if !ok {
		ge = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ge.Message))
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ge.Code))
	for k, v := range ge.Details {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
	}
	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Category  string            `json:"category"`
	Severity  string            `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
	Cause     string            `json:"cause,omitempty"`
	Retryable bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error, for the HTTP
// surface's structured error responses.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ge, ok := err.(*GraphError)
	if !ok {
		ge = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:      ge.Code,
		Message:   ge.Message,
		Category:  string(ge.Category),
		Severity:  string(ge.Severity),
		Details:   ge.Details,
		Retryable: ge.Retryable,
	}
	if ge.Cause != nil {
		je.Cause = ge.Cause.Error()
	}
	return json.Marshal(je)
}

// FormatForLog formats an error as key-value pairs suitable for slog
// attributes via slog.Any / slog.Group.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ge, ok := err.(*GraphError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": ge.Code,
		"message":    ge.Message,
		"category":   string(ge.Category),
		"severity":   string(ge.Severity),
		"retryable":  ge.Retryable,
	}
	if ge.Cause != nil {
		result["cause"] = ge.Cause.Error()
	}
	for k, v := range ge.Details {
		result["detail_"+k] = v
	}
	return result
}
