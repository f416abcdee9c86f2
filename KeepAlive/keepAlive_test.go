package KeepAlive_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"slack-thread-summarizer/Config"
	"slack-thread-summarizer/KeepAlive"
)

var _ = Describe("Pinger", func() {
	var (
		ctx    context.Context
		hits   atomic.Int32
		status int
		server *httptest.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		hits.Store(0)
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(status)
		}))
		DeferCleanup(server.Close)
	})

	It("rejects an invalid schedule", func() {
		_, err := KeepAlive.New(Config.KeepAliveConfig{URL: server.URL, Schedule: "every now and then"})
		Expect(err).To(HaveOccurred())
	})

	It("reports a healthy service", func() {
		pinger, err := KeepAlive.New(Config.KeepAliveConfig{URL: server.URL, Schedule: "@every 1h"})
		Expect(err).NotTo(HaveOccurred())

		Expect(pinger.Ping(ctx)).To(BeTrue())
		Expect(hits.Load()).To(BeEquivalentTo(1))
	})

	It("reports an error status", func() {
		status = http.StatusServiceUnavailable
		pinger, err := KeepAlive.New(Config.KeepAliveConfig{URL: server.URL, Schedule: "@every 1h"})
		Expect(err).NotTo(HaveOccurred())

		Expect(pinger.Ping(ctx)).To(BeFalse())
	})

	It("reports an unreachable service", func() {
		pinger, err := KeepAlive.New(Config.KeepAliveConfig{URL: "http://127.0.0.1:1", Schedule: "@every 1h"})
		Expect(err).NotTo(HaveOccurred())

		Expect(pinger.Ping(ctx)).To(BeFalse())
	})

	It("pings on start and on schedule", func() {
		pinger, err := KeepAlive.New(Config.KeepAliveConfig{URL: server.URL, Schedule: "@every 1s"})
		Expect(err).NotTo(HaveOccurred())

		pinger.Start()
		DeferCleanup(func() {
			stopCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			pinger.Stop(stopCtx)
		})

		Eventually(hits.Load).WithTimeout(3 * time.Second).Should(BeNumerically(">=", 2))
	})
})
