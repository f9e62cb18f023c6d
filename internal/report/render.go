package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Outcome is the rendered state of one table.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
)

// TableReport is one line of a rendered report.
type TableReport struct {
	Table    string  `json:"table"`
	Status   Outcome `json:"status"`
	ExitCode int     `json:"exit_code,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// RenderedReport is the operator-facing view of a BatchSummary.
type RenderedReport struct {
	RunID        string        `json:"run_id,omitempty"`
	AllSucceeded bool          `json:"all_succeeded"`
	Tables       []TableReport `json:"tables"`
}

// Render builds the report for s in request order. s is not modified.
func Render(s *BatchSummary) RenderedReport {
	r := RenderedReport{
		RunID:        s.RunID,
		AllSucceeded: s.AllSucceeded(),
		Tables:       make([]TableReport, 0, len(s.Entries)),
	}
	for _, e := range s.Entries {
		tr := TableReport{Table: e.Table, Status: Succeeded}
		if !e.Succeeded() {
			tr.Status = Failed
			tr.ExitCode = e.ExitCode
			tr.Error = e.ErrorMessage
		}
		r.Tables = append(r.Tables, tr)
	}
	return r
}

// Counts returns how many tables succeeded and failed.
func (r RenderedReport) Counts() (succeeded, failed int) {
	for _, t := range r.Tables {
		if t.Status == Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// JSON returns the indented JSON form.
func (r RenderedReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Text line prefixes. Parse depends on them.
const (
	tableIndent    = "  "
	detailIndent   = "    "
	continuation   = "    |"
	statusPrefix   = "Status: "
	runPrefix      = "Run: "
	tablesPrefix   = "Tables: "
	exitCodePrefix = detailIndent + "exit_code: "
	errorPrefix    = detailIndent + "error: "
)

// Text returns the plain-text form. Multi-line errors continue on lines
// starting with "    |".
func (r RenderedReport) Text() string {
	var b strings.Builder
	if r.AllSucceeded {
		b.WriteString(statusPrefix + "PASS\n")
	} else {
		b.WriteString(statusPrefix + "FAIL\n")
	}
	if r.RunID != "" {
		b.WriteString(runPrefix + r.RunID + "\n")
	}
	ok, failed := r.Counts()
	fmt.Fprintf(&b, "%s%d (%d succeeded, %d failed)\n", tablesPrefix, len(r.Tables), ok, failed)

	for _, t := range r.Tables {
		fmt.Fprintf(&b, "%s%s: %s\n", tableIndent, t.Table, t.Status)
		if t.Status != Failed {
			continue
		}
		fmt.Fprintf(&b, "%s%d\n", exitCodePrefix, t.ExitCode)
		if t.Error == "" {
			continue
		}
		lines := strings.Split(t.Error, "\n")
		b.WriteString(errorPrefix + lines[0] + "\n")
		for _, l := range lines[1:] {
			b.WriteString(continuation)
			if l != "" {
				b.WriteString(" " + l)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Parse reads the output of Text back into a RenderedReport.
func Parse(text string) (RenderedReport, error) {
	var (
		r         RenderedReport
		sawStatus bool
		current   *TableReport
		inError   bool
	)
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, statusPrefix):
			switch strings.TrimPrefix(line, statusPrefix) {
			case "PASS":
				r.AllSucceeded = true
			case "FAIL":
				r.AllSucceeded = false
			default:
				return r, fmt.Errorf("line %d: unknown status %q", lineNo, line)
			}
			sawStatus = true
		case strings.HasPrefix(line, runPrefix):
			r.RunID = strings.TrimPrefix(line, runPrefix)
		case strings.HasPrefix(line, tablesPrefix):
			// Derived from the table lines.
		case strings.HasPrefix(line, continuation):
			if current == nil || !inError {
				return r, fmt.Errorf("line %d: continuation outside an error", lineNo)
			}
			rest := strings.TrimPrefix(strings.TrimPrefix(line, continuation), " ")
			current.Error += "\n" + rest
		case strings.HasPrefix(line, exitCodePrefix):
			if current == nil {
				return r, fmt.Errorf("line %d: exit code outside a table", lineNo)
			}
			code, err := strconv.Atoi(strings.TrimPrefix(line, exitCodePrefix))
			if err != nil {
				return r, fmt.Errorf("line %d: %w", lineNo, err)
			}
			current.ExitCode = code
		case strings.HasPrefix(line, errorPrefix):
			if current == nil {
				return r, fmt.Errorf("line %d: error outside a table", lineNo)
			}
			current.Error = strings.TrimPrefix(line, errorPrefix)
			inError = true
		case strings.HasPrefix(line, tableIndent):
			t, err := parseTableLine(strings.TrimPrefix(line, tableIndent))
			if err != nil {
				return r, fmt.Errorf("line %d: %w", lineNo, err)
			}
			r.Tables = append(r.Tables, t)
			current = &r.Tables[len(r.Tables)-1]
			inError = false
		default:
			return r, fmt.Errorf("line %d: unexpected %q", lineNo, line)
		}
	}
	if err := sc.Err(); err != nil {
		return r, err
	}
	if !sawStatus {
		return r, fmt.Errorf("missing %q line", strings.TrimSpace(statusPrefix))
	}
	return r, nil
}

func parseTableLine(s string) (TableReport, error) {
	i := strings.LastIndex(s, ": ")
	if i < 0 {
		return TableReport{}, fmt.Errorf("malformed table line %q", s)
	}
	t := TableReport{Table: s[:i], Status: Outcome(s[i+2:])}
	if t.Status != Succeeded && t.Status != Failed {
		return TableReport{}, fmt.Errorf("unknown table status %q", t.Status)
	}
	return t, nil
}
