package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"docchat-cli/internal/api"
	"docchat-cli/internal/chat"
	"docchat-cli/internal/config"
	"docchat-cli/internal/display"
	"docchat-cli/internal/logging"
	"docchat-cli/internal/metrics"
	"docchat-cli/internal/present"
	"docchat-cli/internal/render"
	"docchat-cli/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app holds what every command shares. It is filled in by the root
// command's pre-run hook.
type app struct {
	profile     string
	logLevel    string
	metricsAddr string

	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	pipeline *render.Pipeline
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	a.close()
	if err != nil {
		display.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "docchat",
		Short:         "Chat with your document knowledge base",
		Long:          "docchat asks questions of a document service and renders the streamed answers with their sources.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			display.Stdout = cmd.OutOrStdout()
			display.Stderr = cmd.ErrOrStderr()
			return a.init()
		},
		RunE: a.runChat,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVar(&a.profile, "profile", "", "config profile to use")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error (overrides the config)")
	root.Flags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while chatting")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat (default)",
		Args:  cobra.NoArgs,
		RunE:  a.runChat,
	}
	chatCmd.Flags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while chatting")

	root.AddCommand(
		chatCmd,
		a.askCmd(),
		a.cleanCmd(),
		a.renderCmd(),
		a.configCmd(),
		a.setCmd(),
		a.profilesCmd(),
		versionCmd(),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.profile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := a.logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	logger, err := logging.New(level, filepath.Join(dir, logging.FileName))
	if err != nil {
		return err
	}
	a.logger = logger.With(zap.String("profile", config.ProfileName(a.profile)))
	a.metrics = metrics.NewCollector("docchat", a.logger)
	a.pipeline = render.NewPipeline(render.WithLogger(a.logger), render.WithMetrics(a.metrics))
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newSession wires the HTTP client into a chat session for cfg.
func (a *app) newSession(cfg *config.Config) (*chat.Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := api.NewClient(cfg, api.WithLogger(a.logger))
	return chat.NewSession(client,
		chat.WithThrottle(time.Duration(cfg.ThrottleMS)*time.Millisecond),
		chat.WithLogger(a.logger),
		chat.WithMetrics(a.metrics),
	), nil
}

func (a *app) printer() *present.Printer {
	return present.NewPrinter(present.ThemeFor(a.cfg.Theme), a.cfg.Width)
}

// ─── chat ───────────────────────────────────────────────────────────────────

func (a *app) runChat(cmd *cobra.Command, _ []string) error {
	if a.metricsAddr != "" {
		srv := &http.Server{
			Addr:              a.metricsAddr,
			Handler:           metricsMux(a.metrics),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		a.logger.Info("serving metrics", zap.String("addr", a.metricsAddr))
	}

	a.logger.Info("chat started", zap.String("version", version))
	return tui.Run(tui.Options{
		Context:    cmd.Context(),
		Version:    version,
		Config:     a.cfg,
		NewSession: a.newSession,
		Pipeline:   a.pipeline,
		Logger:     a.logger,
	})
}

func metricsMux(m *metrics.Collector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}

// ─── version ────────────────────────────────────────────────────────────────

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func versionString() string {
	s := "docchat " + version
	if commit != "none" {
		s += fmt.Sprintf("\n  commit: %s\n  built:  %s", commit, date)
	}
	return s
}
