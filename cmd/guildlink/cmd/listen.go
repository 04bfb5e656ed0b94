package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tsarna/guildlink/pkg/guildlink/commands"
	"github.com/tsarna/guildlink/pkg/guildlink/config"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/gateway"
	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"github.com/tsarna/guildlink/pkg/guildlink/otel"
	"github.com/tsarna/guildlink/pkg/guildlink/subutils"
	"github.com/tsarna/guildlink/pkg/guildlink/transform"
	"go.uber.org/zap"
)

var listenCmd = &cobra.Command{
	Use:   "listen [config-files-or-directories...]",
	Short: "Connect to the gateway and print events",
	Long: `Connect to the gateway with the specified configuration files or
directories and print every event as "<topic>\t<json>" on stdout.

Examples:
  guildlink listen bot.hcl
  guildlink listen ./configs/
  guildlink listen bot.hcl secrets.hcl`,
	Args: cobra.MinimumNArgs(1),
	RunE: runListen,
}

var (
	queueSize   int
	useOtel     bool
	withPayload bool
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().IntVar(&queueSize, "queue-size", 256, "events buffered between the gateway and the output")
	listenCmd.Flags().BoolVar(&useOtel, "otel", false, "report through the global OpenTelemetry providers")
	listenCmd.Flags().BoolVar(&withPayload, "log-payloads", false, "include event payloads in debug logs")
}

func runListen(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	cfg, diags := config.NewConfig().
		WithLogger(logger).
		WithBaseDir(baseDir(args[0])).
		WithSources(stringSliceToAnySlice(args)...).
		Build()
	if diags.HasErrors() {
		logger.Error("Failed to build config", zap.Any("diags", diags))
		return diags
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	observability, shutdownMetrics, err := setupObservability(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownMetrics()

	builder := cfg.Gateway.Apply(gateway.NewClient()).
		WithLogger(logger).
		WithObservability(observability)

	if cfg.Checkpoint != nil && cfg.Gateway.LastMessageID == "" {
		cursor, err := config.LoadCursor(cfg.Checkpoint.File)
		if err != nil {
			return err
		}
		if cursor != "" {
			logger.Info("Resuming from checkpoint", zap.String("lastMessageId", cursor))
			builder = builder.WithLastMessageID(cursor)
		}
	}

	client, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to create gateway client: %w", err)
	}
	defer client.Close()

	out := &lineWriter{w: cmd.OutOrStdout()}

	transforms, err := cfg.Output.Transforms(logger)
	if err != nil {
		return err
	}
	printer := subutils.NewAsyncHandler(subutils.NewTransformingHandler(out.print, transforms...), queueSize, logger).Start()
	defer printer.Close()
	client.Events().All.Subscribe(printer.Handle)

	if verbose || debug {
		client.Events().All.Subscribe(
			subutils.NewNamedLoggingHandler(nil, logger, zap.DebugLevel, "events").WithPayload(withPayload).Handle)
	}

	if cfg.Commands != nil {
		table, err := cfg.Commands.Apply(commands.NewTable()).
			WithLogger(logger).
			WithMetrics(observability.MetricsProvider).
			WithCommands(commands.Command{
				Name:    "*",
				Match:   func(string) bool { return true },
				Handler: out.command,
			}).
			Build()
		if err != nil {
			return fmt.Errorf("failed to create command table: %w", err)
		}
		defer table.Attach(client).Unsubscribe()
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}

	if cfg.Checkpoint != nil {
		checkpointer, err := cfg.Checkpoint.Start(client.LastMessageID, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := checkpointer.Stop(); err != nil {
				logger.Warn("Failed to save final checkpoint", zap.Error(err))
			}
		}()
	}

	logger.Info("Listening for events... (Press Ctrl+C to exit)")
	<-ctx.Done()
	logger.Debug("Signal received, exiting")

	// close the client before the deferred checkpoint so the final cursor is
	// the last one published
	if err := client.Close(); err != nil {
		logger.Warn("Error during client close", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

// setupObservability picks the metrics and tracing providers and returns a
// function that stops periodic reporting.
func setupObservability(cfg *config.Config, logger *zap.Logger) (o11y.ObservabilityConfig, func(), error) {
	if useOtel {
		provider := otel.NewProvider("guildlink", Version)
		return o11y.ObservabilityConfig{
			MetricsProvider: provider,
			TracingProvider: provider,
			ServiceName:     "guildlink",
			ServiceVersion:  Version,
		}, func() {}, nil
	}

	if cfg.Metrics == nil {
		return o11y.ObservabilityConfig{}, func() {}, nil
	}

	provider := o11y.NewStandaloneMetricsProvider(&o11y.StandaloneMetricsConfig{
		Interval:    cfg.Metrics.Interval,
		ServiceName: cfg.Metrics.ServiceName,
		OnSnapshot: func(ctx context.Context, snapshot o11y.MetricsSnapshot) {
			logger.Info("Metrics",
				zap.Any("counters", snapshot.Counters),
				zap.Any("gauges", snapshot.Gauges))
		},
	})
	if err := provider.Start(); err != nil {
		return o11y.ObservabilityConfig{}, nil, fmt.Errorf("failed to start metrics: %w", err)
	}

	return o11y.ObservabilityConfig{
			MetricsProvider: provider,
			ServiceName:     cfg.Metrics.ServiceName,
			ServiceVersion:  Version,
		}, func() {
			if err := provider.Stop(); err != nil {
				logger.Warn("Failed to stop metrics", zap.Error(err))
			}
		}, nil
}

// lineWriter serializes output lines from the printer and command handlers.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) print(ctx context.Context, msg *transform.Message) error {
	return l.writeLine(msg.Topic, msg.Payload)
}

func (l *lineWriter) command(ctx context.Context, client commands.Client, ev events.MessageCreated, name string, args []string) error {
	return l.writeLine("commands/"+name, map[string]any{
		"command":   name,
		"args":      args,
		"serverId":  ev.ServerID,
		"channelId": ev.Message.ChannelID,
		"messageId": ev.Message.ID,
		"createdBy": ev.Message.CreatedBy,
	})
}

func (l *lineWriter) writeLine(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = fmt.Fprintf(l.w, "%s\t%s\n", topic, data)
	return err
}

// baseDir is where file() in the configuration resolves relative paths.
func baseDir(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return path
	}
	return filepath.Dir(path)
}

// Helper to convert []string to []any
func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
