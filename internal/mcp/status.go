package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/falconctl/internal/artifact"
	"github.com/deixis/falconctl/internal/config"
)

type statusParams struct{}

func (h *handler) statusHandler(ctx context.Context, req *mcp.CallToolRequest, _ statusParams) (*mcp.CallToolResult, any, error) {
	project := h.currentProject()
	var b strings.Builder

	fmt.Fprintf(&b, "Project: %s\n", project.Root)
	fmt.Fprintf(&b, "Platform: %s\n", project.Platform)

	cfg := config.Merge(config.Params{}, h.opts.Env, project.Defaults())

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Configuration:")
	fmt.Fprintf(&b, "  database:        %s\n", cfg.DatabasePath)
	fmt.Fprintf(&b, "  out_dir:         %s\n", cfg.OutputDir)
	fmt.Fprintf(&b, "  tables:          %s\n", strings.Join(cfg.Tables, ", "))
	fmt.Fprintf(&b, "  parallelism:     %d\n", cfg.Parallelism)
	fmt.Fprintf(&b, "  pool_size:       %d\n", cfg.PoolSize)
	fmt.Fprintf(&b, "  user:            %s\n", cfg.User)
	fmt.Fprintf(&b, "  password:        %s\n", cfg.Password)
	fmt.Fprintf(&b, "  use_compression: %t\n", cfg.UseCompression)
	fmt.Fprintf(&b, "  auto_build:      %t\n", cfg.AutoBuild)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(&b, "  (%v; supply the missing values to falcon_extract)\n", err)
	}

	loc, err := project.Locator(cfg, h.log)
	if err != nil {
		fmt.Fprintf(&b, "\nExtractor: %v\n", err)
		return textResult(b.String())
	}

	// autoBuild=false: look only, never spawn a build.
	desc, err := loc.LocateOrBuild(ctx, false)
	fmt.Fprintln(&b)
	var notFound *artifact.ExecutableNotFoundError
	switch {
	case err == nil:
		fmt.Fprintf(&b, "Extractor: present (%s)\n  %s\n", desc.Kind, desc.Path)
	case errors.As(err, &notFound):
		fmt.Fprintf(&b, "Extractor: missing (%s)\n  %s\n", notFound.Kind, notFound.Path)
		if notFound.Kind == artifact.Binary && cfg.AutoBuild {
			fmt.Fprintf(&b, "  will be built with %q on the next falcon_extract\n", strings.Join(project.Config.BuildCommand(), " "))
		}
	default:
		fmt.Fprintf(&b, "Extractor: %v\n", err)
	}

	if recent, ok := h.opts.Store.(interface{ Recent(n int) []string }); ok {
		if ids := recent.Recent(5); len(ids) > 0 {
			fmt.Fprintln(&b)
			fmt.Fprintln(&b, "Recent runs (newest first):")
			for _, id := range ids {
				fmt.Fprintf(&b, "  %s\n", id)
			}
		}
	}
	return textResult(b.String())
}
