package HandleEvents_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"slack-thread-summarizer/HandleEvents"
)

const signingSecret = "8f742231b10e8888abcd99yyyzzz85a5"

func signedRequest(body string, secret string, at time.Time) *http.Request {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "v0:%s:%s", timestamp, body)

	req := httptest.NewRequest(http.MethodPost, HandleEvents.EventsPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", "v0="+hex.EncodeToString(mac.Sum(nil)))
	return req
}

var _ = Describe("Router", func() {
	var (
		handler    *recordingHandler
		dispatcher *HandleEvents.Dispatcher
		router     *gin.Engine
	)

	BeforeEach(func() {
		handler = &recordingHandler{}
		dispatcher = HandleEvents.NewDispatcher(handler, nil, "UBOT", "!summarize")
		router = HandleEvents.NewRouter(dispatcher, HandleEvents.RouterConfig{SigningSecret: signingSecret})
	})

	It("serves the health route", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("Service running"))
	})

	It("answers the url verification handshake", func() {
		body := `{"token":"t","challenge":"3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P","type":"url_verification"}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(body, signingSecret, time.Now()))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("3eZbrw1aBm2rZgRNFdxV2595E9CY3gmdALWMmHkvFXO7tYXAYM8P"))
	})

	It("acknowledges a mention and runs the pipeline", func() {
		body := `{
			"token": "t",
			"team_id": "T1",
			"type": "event_callback",
			"event_id": "Ev123",
			"event": {
				"type": "app_mention",
				"user": "U1",
				"text": "<@UBOT> summarize",
				"ts": "1700000000.000200",
				"thread_ts": "1700000000.000100",
				"channel": "C1"
			}
		}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(body, signingSecret, time.Now()))
		dispatcher.Wait()

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(handler.mentions).To(HaveLen(1))
		Expect(handler.mentions[0].EventId).To(Equal("Ev123"))
		Expect(handler.mentions[0].ThreadId).To(Equal("1700000000.000100"))
	})

	It("rejects requests signed with another secret", func() {
		body := `{"type":"url_verification","challenge":"x"}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(body, "wrong-secret", time.Now()))

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects stale requests", func() {
		body := `{"type":"url_verification","challenge":"x"}`

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(body, signingSecret, time.Now().Add(-10*time.Minute)))

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects unsigned requests", func() {
		req := httptest.NewRequest(http.MethodPost, HandleEvents.EventsPath, strings.NewReader(`{}`))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("rejects malformed payloads", func() {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, signedRequest(`not json`, signingSecret, time.Now()))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})
})
