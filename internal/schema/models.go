package schema

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// IssueType represents the kind of problem found in a configuration
type IssueType string

const (
	UnknownRecordType IssueType = "UNKNOWN_RECORD_TYPE"
	MissingField      IssueType = "MISSING_FIELD"
	NotATable         IssueType = "NOT_A_TABLE"
	MissingChildField IssueType = "MISSING_CHILD_FIELD"
	SameRecordType    IssueType = "SAME_RECORD_TYPE"
	CircularSync      IssueType = "CIRCULAR_SYNC"
)

const (
	StatusValid   = "valid"
	StatusInvalid = "invalid"
)

// Issue represents a single problem with a configuration
type Issue struct {
	Type        IssueType `json:"type"`
	Field       string    `json:"field"`       // Field or table the issue is about
	Side        string    `json:"side"`        // "source" or "target"
	Description string    `json:"description"` // Human-readable description
}

// Report is the result of checking one configuration against metadata
type Report struct {
	ConfigName string  `json:"config"`
	SourceType string  `json:"source_type"`
	TargetType string  `json:"target_type"`
	Issues     []Issue `json:"issues"`
	Status     string  `json:"status"`
}

func (r *Report) add(t IssueType, side, field, format string, args ...any) {
	r.Issues = append(r.Issues, Issue{
		Type:        t,
		Field:       field,
		Side:        side,
		Description: fmt.Sprintf(format, args...),
	})
}

// Valid reports whether no issues were found
func (r *Report) Valid() bool {
	return len(r.Issues) == 0
}

// Err returns a *ValidationError when the report has issues
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Report: r}
}

// SaveJSON writes the report to a JSON file
func (r *Report) SaveJSON(filename string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal check report: %w", err)
	}

	return os.WriteFile(filename, data, 0644)
}

// WriteText writes a human-readable summary of the report
func (r *Report) WriteText(w io.Writer) error {
	var builder strings.Builder

	builder.WriteString(fmt.Sprintf("-- Live Sync check for '%s' (%s -> %s)\n", r.ConfigName, r.SourceType, r.TargetType))

	if len(r.Issues) == 0 {
		builder.WriteString("-- No issues found, configuration is valid\n")
	} else {
		builder.WriteString(fmt.Sprintf("-- Found %d issues\n\n", len(r.Issues)))
		for i, issue := range r.Issues {
			builder.WriteString(fmt.Sprintf("%d. [%s] %s: %s\n", i+1, issue.Type, issue.Side, issue.Description))
		}
	}

	_, err := io.WriteString(w, builder.String())
	return err
}

// ValidationError carries a report with at least one issue
type ValidationError struct {
	Report *Report
}

func (e *ValidationError) Error() string {
	issues := e.Report.Issues
	if len(issues) == 1 {
		return fmt.Sprintf("configuration %s: %s", e.Report.ConfigName, issues[0].Description)
	}
	return fmt.Sprintf("configuration %s: %s (and %d more issues)", e.Report.ConfigName, issues[0].Description, len(issues)-1)
}
