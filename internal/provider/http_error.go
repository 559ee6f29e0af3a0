package provider

import (
	"errors"
	"fmt"
	"strings"
)

// HTTPStatusError 表示站点返回了非 2xx 的 HTTP 状态码。
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Location   string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	loc := strings.TrimSpace(e.Location)
	if loc == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d location=%s", e.StatusCode, loc)
}

// TransportError 表示网络或 HTTP 层失败：对当前 run 是致命的，由调用方决定如何上报。
// 本层不做额外重试（有界重试在 httpx 传输层）。
type TransportError struct {
	Op  string // "fetch" / "download" / "cache" / "login"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s：%v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError 表示登录被站点拒绝（凭据错误或登录表单仍然存在）。
type AuthError struct {
	Login  string
	Reason string
}

func (e *AuthError) Error() string {
	if strings.TrimSpace(e.Reason) == "" {
		return fmt.Sprintf("登录失败：%s", e.Login)
	}
	return fmt.Sprintf("登录失败：%s：%s", e.Login, e.Reason)
}

func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// ErrCacheDisabled 表示未配置内容缓存却调用了 CacheAsset。
var ErrCacheDisabled = errors.New("内容缓存未启用")
