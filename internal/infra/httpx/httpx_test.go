package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
)

func TestNewClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil || !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式下必须启用代理并禁用 keep-alive")
	}
	if c.Jar == nil {
		t.Fatalf("期望有 cookie jar")
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func testClient(t *testing.T) *http.Client {
	t.Helper()
	c, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient 失败：%v", err)
	}
	c.Transport.(*Transport).NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestTransport_RetriesGetOn503(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("期望注入 User-Agent")
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 || atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("期望第 3 次成功，实际 status=%d hits=%d", resp.StatusCode, hits)
	}
}

func TestTransport_LastAttemptReturnsStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway || atomic.LoadInt32(&hits) != 1+defaultRetryMax {
		t.Fatalf("期望 %d 次尝试后返回 502，实际 status=%d hits=%d", 1+defaultRetryMax, resp.StatusCode, hits)
	}
}

func TestTransport_PostIsNeverRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := testClient(t).Post(srv.URL, "application/x-www-form-urlencoded", strings.NewReader("a=b"))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("POST 不应重试，实际 hits=%d", hits)
	}
}

func TestClient_KeepsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sess", Value: "42", Path: "/"})
			return
		}
		c, err := r.Cookie("sess")
		if err != nil || c.Value != "42" {
			w.WriteHeader(http.StatusForbidden)
		}
	}))
	defer srv.Close()

	c := testClient(t)
	resp, err := c.Get(srv.URL + "/login")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	resp, err = c.Get(srv.URL + "/x")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("期望会话 cookie 被带上，实际 status=%d", resp.StatusCode)
	}
}

func TestReadText_DecodesLatin1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte{'T', 0xED, 't', 'u', 'l', 'o'}) // "Título"
	}))
	defer srv.Close()

	resp, err := testClient(t).Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := ReadText(resp, 0)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if string(b) != "Título" {
		t.Fatalf("期望 Título，实际 %q", string(b))
	}
}
