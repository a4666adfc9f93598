package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/server"
	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/melkeydev/mcp-tablegen/logging"
	"github.com/melkeydev/mcp-tablegen/mcp"
	"github.com/melkeydev/mcp-tablegen/session"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(context.Background(), *configPath, server.ServeStdio); err != nil {
		slog.Error("server error", "error", err.Error())
		os.Exit(1)
	}
}

// run opens the session described by configPath and hands the MCP server to
// serve. Any setup failure is returned before serve is called.
func run(ctx context.Context, configPath string, serve func(*server.MCPServer, ...server.StdioOption) error) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return errors.Wrap(err, "config error")
		}
	}

	// stdout carries the MCP protocol
	logger, closeLog := logging.Setup(cfg.Logging, os.Stderr)
	defer closeLog()
	slog.SetDefault(logger)

	sess, closeDB, err := session.Open(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to open session")
	}
	defer func() {
		if err := closeDB(); err != nil {
			slog.Error("failed to close database", "error", err.Error())
		}
	}()

	// Create a new MCP server
	s := server.NewMCPServer(
		"mcp-tablegen",
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	mcp.RegisterTools(s, sess, cfg.Generation, sess.Database())
	slog.Info("server ready", "sources", sess.Registry().Len(), "database", sess.Database() != nil)

	// Start the stdio server
	return serve(s)
}
