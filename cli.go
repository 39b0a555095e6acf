package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anatolykoptev/go-mcpserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_transcribai/internal/apiserver"
	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

func newRootCmd() *cobra.Command {
	var cfg engine.Config
	root := &cobra.Command{
		Use:   serviceName,
		Short: "Video transcript to insights to PDF/PNG exports",
		Long: `Fetches a video's captions, extracts titled excerpts with an LLM,
and renders each excerpt as a PDF or PNG.

Without a subcommand the API server starts (same as "serve").`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = loadConfig()
			setupLogging(cfg.LogLevel)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API (and the MCP server when MCP_PORT is set)",
		Long: `Endpoints:
  GET  /               - Service descriptor
  GET  /api/health     - Health check
  GET  /api/metrics    - Counters (text)
  POST /api/transcript - {url} -> {transcript, video_id, ...}
  POST /api/generate   - {transcript} -> {insights}
  POST /api/download   - {title, content, format} -> {data, filename, content_type}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	transcriptCmd := &cobra.Command{
		Use:   "transcript <video-url>",
		Short: "Fetch and print the transcript of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := newService(cfg)
			out, err := svc.FetchTranscript(cmd.Context(), apiserver.TranscriptRequest{URL: args[0]})
			if err != nil {
				return cliError(err)
			}
			slog.Info("transcript fetched",
				slog.String("video_id", out.VideoID),
				slog.String("source", out.Source),
				slog.String("language", out.Language),
			)
			_, err = fmt.Fprintln(cmd.OutOrStdout(), out.Transcript)
			return err
		},
	}

	insightsCmd := &cobra.Command{
		Use:   "insights [transcript-file]",
		Short: "Extract excerpts from a transcript file (or stdin) and print them as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			out, err := newService(cfg).GenerateInsights(cmd.Context(), apiserver.GenerateRequest{Transcript: text})
			if err != nil {
				return cliError(err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	var title, format, outPath string
	renderCmd := &cobra.Command{
		Use:   "render [content-file]",
		Short: "Render one excerpt (content from file or stdin) to a PDF or PNG file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			out, err := newService(cfg).RenderExport(cmd.Context(), apiserver.RenderRequest{Title: title, Content: content, Format: format})
			if err != nil {
				return cliError(err)
			}
			data, err := base64.StdEncoding.DecodeString(out.Data)
			if err != nil {
				return err
			}
			if outPath == "" {
				outPath = out.Filename
			}
			if err := os.WriteFile(outPath, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	renderCmd.Flags().StringVar(&title, "title", "", "Excerpt title")
	renderCmd.Flags().StringVar(&format, "format", "pdf", "Output format: pdf or image")
	renderCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output path (default: derived from the title)")

	root.AddCommand(serveCmd, transcriptCmd, insightsCmd, renderCmd)
	return root
}

func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(b), nil
}

// cliError prints the client-facing message and keeps the cause in the log.
func cliError(err error) error {
	apiErr := apiserver.ToAPIError(err)
	slog.Debug("operation failed", slog.Any("error", err))
	return apiErr
}

// runServe runs the REST server and, if configured, the MCP server until
// SIGINT/SIGTERM or the first server failure.
func runServe(parent context.Context, cfg engine.Config) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := newService(cfg)
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.APIPort),
		Handler:           apiserver.NewHandler(svc, apiserver.OptionsFromConfig(serviceName, cfg)),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      3 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting "+serviceName,
			slog.String("version", cfg.Version),
			slog.String("port", cfg.APIPort),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MCPPort != "" {
		server := mcp.NewServer(&mcp.Implementation{
			Name:    serviceName,
			Version: cfg.Version,
		}, nil)
		apiserver.RegisterTools(server, svc)
		slog.Info("tools registered", slog.Int("count", 3), slog.String("mcp_port", cfg.MCPPort))

		// mcpserver.Run owns its listener and signal handling; it returns on SIGTERM.
		go func() {
			if err := mcpserver.Run(server, mcpserver.Config{
				Name:         serviceName,
				Version:      cfg.Version,
				Port:         cfg.MCPPort,
				WriteTimeout: 600 * time.Second,
				Metrics:      engine.FormatMetrics,
			}); err != nil {
				slog.Error("mcp server failed", slog.Any("error", err))
			}
		}()
	}

	return g.Wait()
}
