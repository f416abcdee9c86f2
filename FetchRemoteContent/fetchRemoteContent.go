package FetchRemoteContent

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	DefaultMaxBytes = 20000
	DefaultTimeout  = 10 * time.Second

	// raw bodies are read up to this size before markup is stripped
	maxRawBytes = 2 << 20

	truncatedMarker = "\n[truncated]"
	userAgent       = "slack-thread-summarizer/1.0"
)

// ErrBlockedAddress is returned when a link resolves to a loopback, private, link-local or
// otherwise non-public address.
var ErrBlockedAddress = errors.New("destination address is not public")

// carrier-grade NAT space, not covered by net.IP.IsPrivate
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// Fetcher returns the readable text behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher downloads a page, strips all markup and caps the remaining text at MaxBytes.
type HTTPFetcher struct {
	Client    *http.Client
	MaxBytes  int
	UserAgent string

	sanitizer *bluemonday.Policy
}

type Option func(*fetcherOptions)

type fetcherOptions struct {
	allowPrivate bool
}

// WithPrivateNetworks lets the fetcher reach loopback and private addresses.
func WithPrivateNetworks() Option {
	return func(o *fetcherOptions) { o.allowPrivate = true }
}

// NewHTTPFetcher builds a fetcher whose client only connects to public addresses. The check runs
// on every dial, after DNS resolution, so redirects to internal hosts are refused as well.
func NewHTTPFetcher(timeout time.Duration, maxBytes int, opts ...Option) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	var options fetcherOptions
	for _, opt := range opts {
		opt(&options)
	}

	return &HTTPFetcher{
		Client:    newClient(timeout, options.allowPrivate),
		MaxBytes:  maxBytes,
		UserAgent: userAgent,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func newClient(timeout time.Duration, allowPrivate bool) *http.Client {
	dialer := &net.Dialer{Timeout: timeout}
	if !allowPrivate {
		dialer.Control = publicOnly
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			// no proxy: the dialed address must be the destination itself
			Proxy:               nil,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func publicOnly(_ string, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	if !IsPublicIP(net.ParseIP(host)) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

// IsPublicIP reports whether ip is a routable unicast address outside private, loopback,
// link-local and shared ranges.
func IsPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return false
	}
	return !sharedAddressSpace.Contains(ip)
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme: %s", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.UserAgent)

	client := f.Client
	if client == nil {
		client = newClient(DefaultTimeout, false)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: non-2xx status: %d", u.Redacted(), resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRawBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", u.Redacted(), err)
	}

	return f.Clean(string(body)), nil
}

// Clean strips markup from a document, drops blank lines and caps the result at MaxBytes.
func (f *HTTPFetcher) Clean(document string) string {
	sanitizer := f.sanitizer
	if sanitizer == nil {
		sanitizer = bluemonday.StrictPolicy()
	}
	// the strict policy escapes entities in the text it keeps
	text := html.UnescapeString(sanitizer.Sanitize(document))
	text = strings.ToValidUTF8(text, "")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}

	return capBytes(strings.Join(kept, "\n"), f.MaxBytes)
}

func capBytes(text string, maxBytes int) string {
	if maxBytes <= 0 || len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncatedMarker
}
