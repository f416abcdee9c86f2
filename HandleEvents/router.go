package HandleEvents

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const EventsPath = "/slack/events"

type RouterConfig struct {
	SigningSecret string
	// empty disables the otelgin middleware
	OTelServiceName string
}

func NewRouter(dispatcher *Dispatcher, cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// OTel creates the span before Recovery and the request logger see the request
	if cfg.OTelServiceName != "" {
		router.Use(otelgin.Middleware(cfg.OTelServiceName))
	}
	router.Use(recovery())
	router.Use(requestLogger())

	// Health endpoint
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Service running")
	})

	handler := &eventsHandler{dispatcher: dispatcher, signingSecret: cfg.SigningSecret}
	router.POST(EventsPath, handler.HandleEvent)

	return router
}

type eventsHandler struct {
	dispatcher    *Dispatcher
	signingSecret string
}

// HandleEvent verifies the request signature, answers the url_verification handshake and
// acknowledges callbacks before the pipeline runs.
func (h *eventsHandler) HandleEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	verifier, err := slack.NewSecretsVerifier(c.Request.Header, h.signingSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
		return
	}
	if _, err := verifier.Write(body); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify signature"})
		return
	}
	if err := verifier.Ensure(); err != nil {
		slog.WarnContext(ctx, "HandleEvents:HandleEvent#Rejected request with an invalid signature", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		slog.WarnContext(ctx, "HandleEvents:HandleEvent#Error parsing the event", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	switch event.Type {
	case slackevents.URLVerification:
		challenge, ok := event.Data.(*slackevents.EventsAPIURLVerificationEvent)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid challenge"})
			return
		}
		c.String(http.StatusOK, challenge.Challenge)

	case slackevents.CallbackEvent:
		dispatched := h.dispatcher.Dispatch(ctx, event)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "dispatched": dispatched})

	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "event type not supported"})
	}
}

func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.ErrorContext(c.Request.Context(), "HandleEvents:recovery#Panic recovered",
					"error", err,
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
		}

		switch {
		case status >= 500:
			slog.ErrorContext(c.Request.Context(), "HandleEvents:requestLogger#Request failed", attrs...)
		case status >= 400:
			slog.WarnContext(c.Request.Context(), "HandleEvents:requestLogger#Request error", attrs...)
		default:
			slog.DebugContext(c.Request.Context(), "HandleEvents:requestLogger#Request", attrs...)
		}
	}
}
