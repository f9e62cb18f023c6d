package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
	"github.com/deixis/falconctl/internal/report"
)

type extractParams struct {
	Database       *string  `json:"database,omitempty" jsonschema:"Firebird database path or DSN. Default: FIREBIRD_DATABASE, then the project default."`
	OutDir         *string  `json:"out_dir,omitempty" jsonschema:"Output directory. Default: FIREBIRD_OUT_DIR, then the project default."`
	Table          string   `json:"table,omitempty" jsonschema:"A single table to extract. Combined with tables when both are given."`
	Tables         []string `json:"tables,omitempty" jsonschema:"Tables to extract, in order. Duplicates run twice."`
	Parallelism    *int     `json:"parallelism,omitempty" jsonschema:"Worker count passed to the extractor. Must be at least 1."`
	PoolSize       *int     `json:"pool_size,omitempty" jsonschema:"Connection pool size passed to the extractor. Must be at least 1."`
	User           *string  `json:"user,omitempty" jsonschema:"Database user."`
	Password       *string  `json:"password,omitempty" jsonschema:"Database password. Default: FIREBIRD_PASSWORD, then the keychain or project default."`
	UseCompression *bool    `json:"use_compression,omitempty" jsonschema:"Ask the extractor to compress its output."`
	AutoBuild      *bool    `json:"auto_build,omitempty" jsonschema:"Build the extractor when it is missing. Default: true."`
	ProjectRoot    string   `json:"project_root,omitempty" jsonschema:"Extraction project directory. Default: the client root or server working directory."`
}

func (p extractParams) toParams() config.Params {
	out := config.Params{
		Database:       p.Database,
		OutDir:         p.OutDir,
		Parallelism:    p.Parallelism,
		PoolSize:       p.PoolSize,
		User:           p.User,
		Password:       p.Password,
		UseCompression: p.UseCompression,
		AutoBuild:      p.AutoBuild,
	}
	if p.Table != "" || p.Tables != nil {
		out.Tables = append([]string{}, p.Tables...)
		if p.Table != "" {
			out.Tables = append([]string{p.Table}, out.Tables...)
		}
	}
	return out
}

func (h *handler) extractHandler(ctx context.Context, req *mcp.CallToolRequest, params extractParams) (*mcp.CallToolResult, any, error) {
	project, err := h.projectFor(params.ProjectRoot)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load project: %v", err))
	}

	cfg, err := project.Resolve(params.toParams(), h.opts.Env)
	if err != nil {
		return errorResult(err.Error())
	}

	engine, err := project.NewEngine(cfg, h.log, h.opts.Metrics)
	if err != nil {
		return errorResult(err.Error())
	}

	summary, err := engine.Extract(ctx, cfg)
	if err != nil {
		return errorResult(formatFatal(err))
	}

	if h.opts.Store != nil {
		if err := h.opts.Store.Save(summary); err != nil {
			h.log.Warn("run not stored for inspection", h.log.Args("run_id", summary.RunID, "error", err.Error()))
		}
	}

	var b strings.Builder
	b.WriteString(report.Render(summary).Text())
	if !summary.AllSucceeded() {
		fmt.Fprintf(&b, "\nUse falcon_inspect with run_id %s to see a table's captured output.\n", summary.RunID)
	}
	return textResult(b.String())
}

// formatFatal explains an error that stopped the run before any table.
func formatFatal(err error) string {
	var (
		notFound *artifact.ExecutableNotFoundError
		build    *artifact.BuildError
		verify   *artifact.BuildVerificationError
	)
	switch {
	case errors.As(err, &notFound):
		return fmt.Sprintf("Extractor unavailable, no table was run.\n\n%v\n\nSet auto_build=true or build it with `falconctl build`.", err)
	case errors.As(err, &build), errors.As(err, &verify):
		return fmt.Sprintf("Building the extractor failed, no table was run.\n\n%v", err)
	}
	return err.Error()
}
