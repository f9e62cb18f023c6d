// Package mcp exposes extraction runs to workflow hosts over the Model
// Context Protocol and publishes model instructions.
package mcp

import (
	"context"
	_ "embed"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pterm/pterm"

	"github.com/deixis/falconctl"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/logging"
	"github.com/deixis/falconctl/internal/metrics"
	"github.com/deixis/falconctl/internal/report"
	"github.com/deixis/falconctl/internal/workflow"
)

//go:embed instructions.md
var Instructions string

// Options configures the server.
type Options struct {
	Workspace string
	Platform  config.Platform
	Env       config.LookupEnv
	Keychain  workflow.PasswordSource // optional
	Store     report.Store
	Metrics   metrics.Backend // optional
	Log       *pterm.Logger   // optional
}

// handler holds shared dependencies for all tool handlers.
type handler struct {
	opts Options
	log  *pterm.Logger

	mu      sync.Mutex
	project *workflow.Project
}

// NewServer loads the project containing opts.Workspace and returns an MCP
// server with the falcon tools registered.
func NewServer(opts Options) (*mcp.Server, error) {
	if opts.Env == nil {
		opts.Env = config.NoEnv
	}
	h := &handler{opts: opts, log: logging.OrDiscard(opts.Log)}

	project, err := workflow.LoadProject(opts.Workspace, opts.Platform, opts.Keychain, h.log)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	h.project = project

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateProjectFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "falconctl", Version: falconctl.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name: "falcon_extract",
		Description: `Extract one or more Firebird tables to the output directory.

Tables run one after another. A failing table does not stop the others; the
report lists every requested table with its outcome. Omitted inputs fall back
to FIREBIRD_DATABASE, FIREBIRD_OUT_DIR and FIREBIRD_PASSWORD, then to the
project defaults. Results are stored for drill-down via falcon_inspect.`,
	}, h.extractHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "falcon_inspect",
		Description: `Show the captured output of one table from a falcon_extract run.

Use the run_id from the falcon_extract report and the table name.`,
	}, h.inspectHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "falcon_status",
		Description: "Show the resolved configuration (password redacted) and whether the extractor is present. Never builds.",
	}, h.statusHandler)

	return s, nil
}

func (h *handler) currentProject() *workflow.Project {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.project
}

// projectFor returns the project at root, or the current project when
// root is empty.
func (h *handler) projectFor(root string) (*workflow.Project, error) {
	if root == "" {
		return h.currentProject(), nil
	}
	return workflow.LoadProject(root, h.opts.Platform, h.opts.Keychain, h.log)
}

// updateProjectFromRoots reloads the project from the client's first file
// root, if any. Called once per session before any tool call.
func (h *handler) updateProjectFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}
	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	project, err := workflow.LoadProject(u.Path, h.opts.Platform, h.opts.Keychain, h.log)
	if err != nil {
		h.log.Warn("ignoring client root", h.log.Args("root", u.Path, "error", err.Error()))
		return
	}
	h.mu.Lock()
	h.project = project
	h.mu.Unlock()
	h.log.Debug("project root from client", h.log.Args("root", project.Root))
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
