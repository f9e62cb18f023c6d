package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/deixis/falconctl/internal/config"
	falconmcp "github.com/deixis/falconctl/internal/mcp"
	"github.com/deixis/falconctl/internal/report"
)

var mcpFlags struct {
	http         string
	instructions bool
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start a Model Context Protocol server exposing falcon_extract, falcon_inspect
and falcon_status. The server speaks over stdio unless --http is given. Logs
go to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if mcpFlags.instructions {
			fmt.Fprint(cmd.OutOrStdout(), falconmcp.Instructions)
			return nil
		}
		if err := serve(cmd.Context(), mcpFlags.http); err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		return nil
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpFlags.http, "http", "", "start HTTP server on address (e.g. :9090)")
	mcpCmd.Flags().BoolVar(&mcpFlags.instructions, "instructions", false, "print model instructions and exit")
	rootCmd.AddCommand(mcpCmd)
}

func serve(ctx context.Context, httpAddr string) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	// Metrics follow the project the server starts in.
	project, err := loadProject(workspace)
	if err != nil {
		return err
	}
	m, err := newMetrics(context.WithoutCancel(ctx), project)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("flushing metrics failed", log.Args("error", err.Error()))
		}
	}()

	store := report.NewLRUStore(5, report.NewDiskStore(""))

	server, err := falconmcp.NewServer(falconmcp.Options{
		Workspace: workspace,
		Platform:  config.CurrentPlatform(),
		Env:       os.LookupEnv,
		Keychain:  keychain,
		Store:     store,
		Metrics:   m,
		Log:       log,
	})
	if err != nil {
		return err
	}

	if httpAddr != "" {
		return serveHTTP(ctx, server, httpAddr)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, addr string) error {
	handler := mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Info("listening", log.Args("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
