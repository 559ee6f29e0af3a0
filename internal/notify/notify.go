// Package notify 把工作流的进度消息投递给用户（桌面、日志、ntfy 等）。
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/infra/logx"
)

// Notifier 投递一条消息。
//
// 约束：
// - message 是正文；summary 是可选标题；icon 是可选的本地图片路径
// - 投递失败只返回 error，调用方决定是否忽略（工作流不会因此失败）
type Notifier interface {
	Notify(ctx context.Context, message, summary, icon string) error
}

// Nop 丢弃所有消息。
type Nop struct{}

func (Nop) Notify(context.Context, string, string, string) error { return nil }

// Log 把消息写入 logger（info 级别）。
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Notify(_ context.Context, message, summary, icon string) error {
	e := logx.OrDiscard(l.Logger).WithField("notify", true)
	if icon != "" {
		e = e.WithField("icon", icon)
	}
	if summary != "" {
		e.Infof("%s - %s", summary, message)
		return nil
	}
	e.Info(message)
	return nil
}

// Multi 依次投递给多个 Notifier，返回合并后的错误。
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, message, summary, icon string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, message, summary, icon); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const userAgent = "legendastv-go"

// Ntfy 通过 HTTP 推送到 ntfy 主题地址。
//
// 有图标时以附件方式 PUT 图片、正文放在 Message 头；否则 POST 纯文本。
type Ntfy struct {
	Endpoint string
	Client   *http.Client
	Tags     []string
}

// NewNtfy 在 endpoint 为空时返回 Nop。
func NewNtfy(endpoint string, timeout time.Duration) Notifier {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return Nop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: timeout},
		Tags:     []string{"legendastv", "subtitles"},
	}
}

func (n *Ntfy) Notify(ctx context.Context, message, summary, icon string) error {
	if n == nil || n.Client == nil {
		return nil
	}

	method := http.MethodPost
	var body io.Reader = strings.NewReader(message)
	attach := ""
	if icon != "" {
		if b, err := os.ReadFile(icon); err == nil {
			method, body, attach = http.MethodPut, bytes.NewReader(b), filepath.Base(icon)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, n.Endpoint, body)
	if err != nil {
		return fmt.Errorf("构造 ntfy 请求失败：%w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if attach != "" {
		req.Header.Set("Filename", attach)
		req.Header.Set("Message", message)
	} else {
		req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	}
	if summary != "" {
		req.Header.Set("Title", summary)
	}
	if len(n.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(n.Tags, ","))
	}

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 ntfy 通知失败：%w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy 返回 %d：%s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
