package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	lmcp "github.com/claude/liftlog/internal/mcp"
	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	_ = godotenv.Load()

	defaultURL := os.Getenv("LIFTLOG_URL")
	if defaultURL == "" {
		defaultURL = "http://liftlog"
	}
	serverURL := flag.String("url", defaultURL, "LiftLog server base URL (env LIFTLOG_URL)")
	flag.Parse()

	// stdout carries the MCP stream; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("LiftLog MCP bridge starting", "version", Version, "url", *serverURL)

	s := lmcp.New(lmcp.NewHTTPClient(*serverURL), Version, log)
	if err := mcpserver.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "mcp stdio: %v\n", err)
		os.Exit(1)
	}
}
