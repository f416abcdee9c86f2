package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slack-thread-summarizer/Config"
	"slack-thread-summarizer/FetchRemoteContent"
	"slack-thread-summarizer/HandleEvents"
	"slack-thread-summarizer/KeepAlive"
	"slack-thread-summarizer/Logger"
	"slack-thread-summarizer/Pipeline"
	"slack-thread-summarizer/SummarizeConversations"
	"slack-thread-summarizer/Telemetry"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()

	cmd := &cobra.Command{
		Use:          "slack-thread-summarizer",
		Short:        "Slack bot that summarizes threads and answers questions",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}

	cmd.AddCommand(serve)
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the bot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Config.VersionFromEnv())
		},
	})

	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Slack and handle mentions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := Config.Load()
	if err != nil {
		slog.ErrorContext(ctx, "main:serve#Failed to load config", "error", err)
		return err
	}

	// telemetry comes first so the logger can export through its provider
	telemetry, err := Telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize otel: "+err.Error())
		return err
	}
	Logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "main:serve#OTel initialized", "endpoint", cfg.OTel.Endpoint)
	}

	slackOptions := []slack.Option{slack.OptionDebug(cfg.Slack.Debug)}
	if cfg.Slack.SocketMode() {
		slackOptions = append(slackOptions, slack.OptionAppLevelToken(cfg.Slack.AppToken))
	}
	slackApi := slack.New(cfg.Slack.BotToken, slackOptions...)

	auth, err := slackApi.AuthTestContext(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "main:serve#Slack auth test failed", "error", err)
		return err
	}
	self := Pipeline.Identity{UserId: auth.UserID, BotId: auth.BotID, Name: auth.User}
	slog.InfoContext(ctx, "main:serve#Authenticated with Slack",
		"user_id", self.UserId,
		"bot_id", self.BotId,
		"team", auth.Team)

	completer, err := SummarizeConversations.NewCompleter(ctx, cfg.LLM)
	if err != nil {
		slog.ErrorContext(ctx, "main:serve#Failed to create completion client", "error", err)
		return err
	}

	fetcher := FetchRemoteContent.NewHTTPFetcher(
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second,
		cfg.Remote.MaxBytes,
	)
	pipeline := Pipeline.New(slackApi, SummarizeConversations.NewInvoker(completer), fetcher, self, &cfg)

	dedup, closeDedup := newDeduper(ctx, cfg.RedisURL)
	defer closeDedup()

	dispatcher := HandleEvents.NewDispatcher(pipeline, dedup, self.UserId, cfg.Summary.TriggerLiteral)

	if cfg.KeepAlive.Enabled() {
		pinger, err := KeepAlive.New(cfg.KeepAlive)
		if err != nil {
			slog.ErrorContext(ctx, "main:serve#Failed to schedule keep-alive", "error", err)
			return err
		}
		pinger.Start()
		defer pinger.Stop(context.Background())
	}

	slog.InfoContext(ctx, "main:serve#Summarizer starting",
		"env", cfg.Env,
		"version", cfg.Version,
		"provider", cfg.LLM.Provider,
		"model", completer.Model(),
		"socket_mode", cfg.Slack.SocketMode())

	if cfg.Slack.SocketMode() {
		err = runSocketMode(ctx, slackApi, cfg, dispatcher)
	} else {
		err = runHTTP(ctx, cfg, dispatcher)
	}

	slog.InfoContext(ctx, "main:serve#Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	waitForPipelines(shutdownCtx, dispatcher)

	if telemetry != nil {
		if shutdownErr := telemetry.Shutdown(shutdownCtx); shutdownErr != nil {
			slog.ErrorContext(shutdownCtx, "main:serve#OTel shutdown error", "error", shutdownErr)
		}
	}

	return err
}

func newDeduper(ctx context.Context, redisURL string) (HandleEvents.Deduper, func()) {
	if redisURL == "" {
		return HandleEvents.NoopDeduper{}, func() {}
	}

	client, err := HandleEvents.NewRedisClient(redisURL)
	if err != nil {
		slog.WarnContext(ctx, "main:newDeduper#Invalid REDIS_URL, redelivered events will not be suppressed", "error", err)
		return HandleEvents.NoopDeduper{}, func() {}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		slog.WarnContext(ctx, "main:newDeduper#Redis unreachable, continuing", "error", err)
	} else {
		slog.InfoContext(ctx, "main:newDeduper#Redis connected")
	}

	return HandleEvents.NewRedisDeduper(client, HandleEvents.DefaultDedupTTL), func() { _ = client.Close() }
}

func runSocketMode(ctx context.Context, slackApi *slack.Client, cfg Config.Config, dispatcher *HandleEvents.Dispatcher) error {
	client := socketmode.New(slackApi, socketmode.OptionDebug(cfg.Slack.Debug))

	err := HandleEvents.RunSocketMode(ctx, client, dispatcher)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.ErrorContext(ctx, "main:runSocketMode#Socket Mode connection ended", "error", err)
		return err
	}
	return nil
}

func runHTTP(ctx context.Context, cfg Config.Config, dispatcher *HandleEvents.Dispatcher) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := HandleEvents.RouterConfig{SigningSecret: cfg.Slack.SigningSecret}
	if cfg.OTel.Enabled() {
		routerCfg.OTelServiceName = cfg.OTel.ServiceName
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           HandleEvents.NewRouter(dispatcher, routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "main:runHTTP#HTTP server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			slog.ErrorContext(ctx, "main:runHTTP#HTTP server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "main:runHTTP#HTTP server shutdown error", "error", err)
		return err
	}
	return nil
}

// waitForPipelines lets in-flight replies post before the process exits.
func waitForPipelines(ctx context.Context, dispatcher *HandleEvents.Dispatcher) {
	done := make(chan struct{})
	go func() {
		dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.WarnContext(ctx, "main:waitForPipelines#Timed out waiting for in-flight pipelines")
	}
}
