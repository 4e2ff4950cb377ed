package cli

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	kmcp "github.com/kindfund/kindfund/internal/mcp"
	"github.com/kindfund/kindfund/internal/policy"
)

func newMCPCmd(a *app) *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server exposing the public content
catalogue (causes, events, blog posts) as read-only tools and resources.
Collections that require an admin session are never exposed.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC.
In HTTP mode, it serves the streamable HTTP transport at /mcp.`,
		Example: `  kindfund mcp                             # stdio mode
  kindfund mcp --transport http --port 3001  # streamable HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd, a, transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(cmd *cobra.Command, a *app, transport string, port int) error {
	if transport != "stdio" && transport != "http" {
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	// stdout carries the protocol in stdio mode, so logs go to stderr only.
	logger, logCloser, err := newLogger(cfg.Log, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer logCloser.Close()

	store, err := a.openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mcpSrv := kmcp.NewMCPServer(store, policy.Default(), versionString(a.version), logger)

	if transport == "stdio" {
		return mcpSrv.ServeStdio()
	}

	mux := http.NewServeMux()
	mux.Handle("/mcp", mcpSrv.HTTPHandler())
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("starting MCP HTTP server", "addr", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
