package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/falconctl/internal/invoke"
)

type inspectParams struct {
	RunID      string `json:"run_id" jsonschema:"the run ID from a falcon_extract report"`
	Table      string `json:"table" jsonschema:"table name as listed in the report"`
	Occurrence int    `json:"occurrence,omitempty" jsonschema:"which run of a table requested more than once (1-based). Default: the last one."`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Table == "" {
		return errorResult("table is required")
	}
	if h.opts.Store == nil {
		return errorResult("run inspection is not enabled on this server")
	}

	summary, err := h.opts.Store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	entry, err := summary.Entry(params.Table, params.Occurrence)
	if err != nil {
		return errorResult(err.Error())
	}
	return textResult(formatInspectOutput(params.RunID, entry))
}

func formatInspectOutput(runID string, e invoke.InvocationResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", runID)
	if e.Succeeded() {
		fmt.Fprintf(&b, "Table: %s (succeeded in %s)\n", e.Table, e.Duration.Round(time.Millisecond))
	} else {
		fmt.Fprintf(&b, "Table: %s (failed, exit code %d)\n", e.Table, e.ExitCode)
		if e.ErrorMessage != "" {
			fmt.Fprintf(&b, "Error: %s\n", firstLine(e.ErrorMessage))
		}
	}
	if e.Truncated {
		fmt.Fprintln(&b, "Note: output was truncated at the capture limit.")
	}

	writeStream(&b, "Stdout", e.Stdout)
	writeStream(&b, "Stderr", e.Stderr)
	return b.String()
}

func writeStream(b *strings.Builder, name, text string) {
	fmt.Fprintln(b)
	text = strings.TrimRight(text, "\n")
	if text == "" {
		fmt.Fprintf(b, "%s: (empty)\n", name)
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
