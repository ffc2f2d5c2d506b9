package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/ringbuffer/internal/engine"
	"github.com/tinytelemetry/ringbuffer/internal/export"
	"github.com/tinytelemetry/ringbuffer/internal/httpserver"
	"github.com/tinytelemetry/ringbuffer/internal/logparse"
	"github.com/tinytelemetry/ringbuffer/internal/logsource"
	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/socketrpc"
)

// runServer starts the kernel log engine with the HTTP API and the
// control socket.
func runServer(cfg appConfig) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	parser := logparse.NewParser(logparse.DetectBootTime())

	eng := engine.New(engine.Config{
		BufferSize: cfg.BufferSize,
		Parser:     parser,
		NewSource: func(name string) (logsource.Source, error) {
			return logsource.ByName(name, parser, cfg.SnapshotLimit)
		},
	})

	// Set up context and signal handling before errgroup.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Source != "" {
		src, err := logsource.ByName(cfg.Source, parser, cfg.SnapshotLimit)
		if err != nil {
			return fmt.Errorf("failed to build source %q: %w", cfg.Source, err)
		}
		eng.AttachSource(src)
	} else if err := eng.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to find a kernel log source: %w", err)
	}

	if _, err := eng.LoadSnapshot(ctx); err != nil {
		// A failed snapshot is not fatal, live streaming may still work.
		log.Printf("server: snapshot load failed: %v", err)
	}

	mgr, err := setupPlugins(ctx, eng, cfg.PluginManifest)
	if err != nil {
		return fmt.Errorf("failed to set up plugins: %w", err)
	}
	defer mgr.Shutdown(context.Background())

	g, gctx := errgroup.WithContext(ctx)

	eng.Subscribe(func(ev *model.Event) {
		mgr.ProcessEvent(gctx, ev)
	})

	if cfg.ExportEnabled {
		exporter := export.NewExporter(cfg.ExportEndpoint)
		eng.Subscribe(exporter.Enqueue)
		g.Go(func() error {
			exporter.Run(gctx)
			return nil
		})
	}

	if err := eng.StartStreaming(ctx); err != nil {
		return fmt.Errorf("failed to start streaming: %w", err)
	}
	defer eng.StopStreaming()

	// Start HTTP API server if enabled.
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, eng, mgr)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Start socket RPC server for control IPC.
	ctrl := newController(eng, mgr, cfg.SnapshotLimit)
	sockServer := socketrpc.NewServer(cfg.SocketPath, ctrl)
	if err := sockServer.Start(); err != nil {
		log.Printf("Warning: failed to start socket server: %v", err)
	} else {
		defer sockServer.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now — not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		cleanupSocket(cfg.SocketPath)
		os.Exit(1)
	}()

	printStartupBanner(cfg, eng.SourceName())

	// Wait for context cancellation (from signal handler) in the errgroup.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	signal.Stop(sigCh)

	return nil
}

func cleanupSocket(path string) {
	if path != "" {
		os.Remove(path)
	}
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "ringbuffer")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "ringbuffer.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, sourceName string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦═╗╦╔╗╔╔═╗╔╗ ╦ ╦╔═╗╔═╗╔═╗╦═╗
    ╠╦╝║║║║║ ╦╠╩╗║ ║╠╣ ╠╣ ║╣ ╠╦╝
    ╩╚═╩╝╚╝╚═╝╚═╝╚═╝╚  ╚  ╚═╝╩╚═`)

	ver := dim.Render("v" + version)

	var lines []string
	lines = append(lines, "")
	lines = append(lines, logo)
	lines = append(lines, "    "+ver)
	lines = append(lines, "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator)
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Gateway"))
	lines = append(lines, "")

	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Unix Socket    %s", check, cyan.Render(shortenPath(cfg.SocketPath))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Ingestion"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  Source         %s", check, dim.Render(sourceName)))
	lines = append(lines, fmt.Sprintf("    %s  Buffer         %s", check, dim.Render(fmt.Sprintf("%d events", cfg.BufferSize))))
	if cfg.ExportEnabled {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Export    %s", check, cyan.Render(cfg.ExportEndpoint)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  OTLP Export    %s", dot, dim.Render("disabled")))
	}

	lines = append(lines, "")
	lines = append(lines, bold.Render("    Config"))
	lines = append(lines, "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "")
	lines = append(lines, separator)
	lines = append(lines, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
