package security

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ErrResponseTooLarge は取り込み元のレスポンスが上限サイズを超えたことを表す。
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

// SSRFGuard はニュース取り込み元へのアクセスを制限するインターフェース。
type SSRFGuard interface {
	// NewSafeClient は内部ネットワークへの接続を拒否するHTTPクライアントを返す。
	// レスポンスボディはmaxBodySizeバイトを超えるとErrResponseTooLargeになる。
	NewSafeClient(timeout time.Duration, maxBodySize int64) *http.Client

	// ValidateSourceURL はDNS解決を伴わない静的な検証を行う。
	ValidateSourceURL(rawURL string) error
}

type ssrfGuard struct{}

// NewSSRFGuard はSSRFGuardを生成する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{}
}

// NewSafeClient はsafeurlのクライアントを返す。
// 接続先IPの検証はダイアラーで行われるため、DNS再バインディングも拒否される。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration, maxBodySize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	client := safeurl.Client(config).Client
	if maxBodySize > 0 {
		base := client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		client.Transport = &limitedTransport{base: base, limit: maxBodySize}
	}
	return client
}

// ValidateSourceURL は取り込み元URLのスキームとホストを検証する。
func (g *ssrfGuard) ValidateSourceURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("empty source URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid source URL %q: %w", rawURL, err)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("source URL %q: scheme %q is not allowed", rawURL, parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("source URL %q has no host", rawURL)
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("source URL %q: host %q is not allowed", rawURL, host)
	}

	if ip := net.ParseIP(host); ip != nil && isInternalIP(ip) {
		return fmt.Errorf("source URL %q: address %s is not allowed", rawURL, ip)
	}
	return nil
}

// ValidateSources は複数の取り込み元URLを検証し、全ての問題をまとめて返す。
func ValidateSources(guard SSRFGuard, urls []string) error {
	var errs []error
	for _, u := range urls {
		if err := guard.ValidateSourceURL(u); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isInternalIP はプライベート、ループバック、リンクローカル（メタデータIPを含む）、
// 未指定アドレスのいずれかであればtrueを返す。
func isInternalIP(ip net.IP) bool {
	return ip.IsPrivate() ||
		ip.IsLoopback() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.Equal(net.IPv4bcast) ||
		(ip.To4() != nil && ip.To4()[0] == 0)
}

// limitedTransport はレスポンスボディの読み取りサイズを制限する。
type limitedTransport struct {
	base  http.RoundTripper
	limit int64
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.ContentLength > t.limit {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", req.URL.Redacted(), ErrResponseTooLarge)
	}
	resp.Body = &limitedBody{ReadCloser: resp.Body, remaining: t.limit}
	return resp, nil
}

// limitedBody は上限を1バイトでも超えて読まれた時点でErrResponseTooLargeを返す。
type limitedBody struct {
	io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if b.remaining < 0 {
		return 0, ErrResponseTooLarge
	}
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n + int(b.remaining), ErrResponseTooLarge
	}
	return n, err
}
