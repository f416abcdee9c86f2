package FetchRemoteContent_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"slack-thread-summarizer/FetchRemoteContent"
)

var _ = Describe("HTTPFetcher", func() {
	var (
		ctx     context.Context
		fetcher *FetchRemoteContent.HTTPFetcher
	)

	BeforeEach(func() {
		ctx = context.Background()
		// test servers listen on loopback
		fetcher = FetchRemoteContent.NewHTTPFetcher(2*time.Second, 200, FetchRemoteContent.WithPrivateNetworks())
	})

	It("returns the page text without markup", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><head><title>t</title><script>alert("x")</script></head>
<body><h1>Release notes</h1>

<p>Fish &amp; chips <b>shipped</b></p></body></html>`))
		}))
		DeferCleanup(server.Close)

		content, err := fetcher.Fetch(ctx, server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(ContainSubstring("Release notes"))
		Expect(content).To(ContainSubstring("Fish & chips shipped"))
		Expect(content).NotTo(ContainSubstring("<"))
		Expect(content).NotTo(ContainSubstring("alert"))
	})

	It("sends a user agent", func() {
		var seen string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.Header.Get("User-Agent")
		}))
		DeferCleanup(server.Close)

		_, err := fetcher.Fetch(ctx, server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(Equal(fetcher.UserAgent))
	})

	It("caps long pages", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("a", 1000)))
		}))
		DeferCleanup(server.Close)

		content, err := fetcher.Fetch(ctx, server.URL)
		Expect(err).NotTo(HaveOccurred())
		Expect(content).To(Equal(strings.Repeat("a", 200) + "\n[truncated]"))
	})

	It("fails on non-2xx responses", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		DeferCleanup(server.Close)

		_, err := fetcher.Fetch(ctx, server.URL)
		Expect(err).To(MatchError(ContainSubstring("404")))
	})

	It("rejects non-http schemes", func() {
		_, err := fetcher.Fetch(ctx, "ftp://example.com/file")
		Expect(err).To(MatchError(ContainSubstring("unsupported url scheme")))
	})

	It("fails when the host is unreachable", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		_, err := fetcher.Fetch(ctx, url)
		Expect(err).To(HaveOccurred())
	})

	Describe("destination policy", func() {
		var (
			hits   int
			server *httptest.Server
		)

		BeforeEach(func() {
			hits = 0
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits++
				_, _ = w.Write([]byte("AWS_SECRET=abc"))
			}))
			DeferCleanup(server.Close)
		})

		It("refuses loopback hosts by default", func() {
			public := FetchRemoteContent.NewHTTPFetcher(time.Second, 200)

			content, err := public.Fetch(ctx, server.URL+"/latest/meta-data")
			Expect(err).To(MatchError(FetchRemoteContent.ErrBlockedAddress))
			Expect(content).To(BeEmpty())
			Expect(hits).To(Equal(0))
		})

		It("refuses localhost by name", func() {
			public := FetchRemoteContent.NewHTTPFetcher(time.Second, 200)
			_, port, err := net.SplitHostPort(server.Listener.Addr().String())
			Expect(err).NotTo(HaveOccurred())

			_, err = public.Fetch(ctx, "http://localhost:"+port+"/")
			Expect(err).To(MatchError(FetchRemoteContent.ErrBlockedAddress))
			Expect(hits).To(Equal(0))
		})

		DescribeTable("IsPublicIP",
			func(address string, public bool) {
				Expect(FetchRemoteContent.IsPublicIP(net.ParseIP(address))).To(Equal(public))
			},
			Entry("cloud metadata", "169.254.169.254", false),
			Entry("loopback", "127.0.0.1", false),
			Entry("ipv6 loopback", "::1", false),
			Entry("unspecified", "0.0.0.0", false),
			Entry("rfc1918 10/8", "10.1.2.3", false),
			Entry("rfc1918 172.16/12", "172.20.0.1", false),
			Entry("rfc1918 192.168/16", "192.168.1.10", false),
			Entry("shared address space", "100.64.0.1", false),
			Entry("ipv6 unique local", "fd00::1", false),
			Entry("ipv6 link local", "fe80::1", false),
			Entry("public ipv4", "93.184.216.34", true),
			Entry("public ipv6", "2606:4700:4700::1111", true),
			Entry("unparsable", "not-an-ip", false),
		)
	})

	Describe("Clean", func() {
		It("never splits a multi-byte character", func() {
			small := FetchRemoteContent.NewHTTPFetcher(time.Second, 4)
			Expect(small.Clean("가나다")).To(Equal("가\n[truncated]"))
		})

		It("drops blank lines", func() {
			Expect(fetcher.Clean("<p>one</p>\n\n   \n<p>two</p>")).To(Equal("one\ntwo"))
		})
	})
})
