package KeepAlive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"slack-thread-summarizer/Config"

	"github.com/robfig/cron/v3"
)

const pingTimeout = 30 * time.Second

// Pinger requests the service's own health route on a schedule so hosts that idle out
// quiet instances keep it running.
type Pinger struct {
	url    string
	client *http.Client
	cron   *cron.Cron
}

func New(cfg Config.KeepAliveConfig) (*Pinger, error) {
	p := &Pinger{
		url:    cfg.URL,
		client: &http.Client{Timeout: pingTimeout},
		cron:   cron.New(),
	}

	if _, err := p.cron.AddFunc(cfg.Schedule, func() { p.Ping(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid keep-alive schedule %q: %w", cfg.Schedule, err)
	}
	return p, nil
}

// Start pings once and then on every scheduled tick.
func (p *Pinger) Start() {
	go p.Ping(context.Background())
	p.cron.Start()
}

// Stop halts the schedule and waits for a running ping to finish or ctx to end.
func (p *Pinger) Stop(ctx context.Context) {
	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Ping reports whether the health route answered with a 2xx status.
func (p *Pinger) Ping(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		slog.WarnContext(ctx, "KeepAlive:Ping#Health check failed", "url", p.url, "error", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "KeepAlive:Ping#Health check failed", "url", p.url, "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.WarnContext(ctx, "KeepAlive:Ping#Health check failed", "url", p.url, "status", resp.StatusCode)
		return false
	}

	slog.DebugContext(ctx, "KeepAlive:Ping#Health check successful", "url", p.url)
	return true
}
