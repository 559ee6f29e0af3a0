// Package httpx 固化会话抓取的网络策略：UA 池、代理、cookie jar、有界重试与字符集解码。
package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2
)

// Options 描述一个会话 client 的网络策略。
type Options struct {
	ProxyURL string
	Timeout  time.Duration
	// RetryMax 是最大重试次数（不含首次尝试）；<0 表示不重试，0 使用默认值。
	RetryMax int
}

// Transport 把“UA 池 + 代理 + keep-alive 策略 + 有界重试”固化为统一策略。
//
// 约束：
// - 只对可重放的请求重试（GET/HEAD 且无 body）；登录/搜索表单 POST 只发一次
// - 重试条件：网络错误，或 502/503/504
// - ctx 取消后立即停止
type Transport struct {
	Base *http.Transport

	ua *uaPool

	RetryMax int

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	DisableKeepAlives bool

	// NewBackOff 构造每次请求的退避策略；nil 使用指数退避。
	NewBackOff func() backoff.BackOff
}

type retryableStatusError struct{ code int }

func (e *retryableStatusError) Error() string { return fmt.Sprintf("HTTP %d（可重试）", e.code) }

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) &&
		(req.Body == nil || req.Body == http.NoBody)
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var (
		resp    *http.Response
		attempt int
	)
	op := func() error {
		attempt++
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		res, err := t.Base.RoundTrip(r)
		if err != nil {
			if req.Context().Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		// 最后一次尝试的 5xx 原样交给调用方映射为 HTTPStatusError。
		if attempt <= max && retryable(res.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
			_ = res.Body.Close()
			return &retryableStatusError{code: res.StatusCode}
		}
		resp = res
		return nil
	}

	var b backoff.BackOff
	if t.NewBackOff != nil {
		b = t.NewBackOff()
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 300 * time.Millisecond
		eb.MaxElapsedTime = 15 * time.Second
		b = eb
	}
	b = backoff.WithContext(backoff.WithMaxRetries(b, uint64(max)), req.Context())

	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return resp, nil
}

func retryable(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// NewClient 构造带 cookie jar 的会话 client。
//
// 规则：
// - ProxyURL 非空：必须走代理，且禁用 keep-alive（每请求新连接）
// - 内置 UA 池：每个请求随机 UA
// - 有界重试 + 总超时
func NewClient(opts Options) (*http.Client, error) {
	proxyURL := strings.TrimSpace(opts.ProxyURL)
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
	}
	disableKeepAlives := false
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	retryMax := opts.RetryMax
	if retryMax == 0 {
		retryMax = defaultRetryMax
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &http.Client{
		Transport: &Transport{
			Base:              base,
			ua:                globalUA,
			RetryMax:          retryMax,
			DisableKeepAlives: disableKeepAlives,
		},
		Jar:     jar,
		Timeout: timeout,
	}, nil
}

// ReadText 读取文本响应体并按 Content-Type/meta 声明的字符集转为 UTF-8。
// limit<=0 表示不限制。
func ReadText(resp *http.Response, limit int64) ([]byte, error) {
	var r io.Reader = resp.Body
	if limit > 0 {
		r = io.LimitReader(r, limit)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	dec, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		// 未知字符集：按原字节返回。
		return raw, nil
	}
	return io.ReadAll(dec)
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	if p == nil {
		return globalUA.random()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:123.0) Gecko/20100101 Firefox/123.0",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
