package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/legendastv/internal/app/run"
	"github.com/John-Robertt/legendastv/internal/config"
	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/notify"
)

var (
	_ run.Observer    = (*progressUI)(nil)
	_ notify.Notifier = (*progressUI)(nil)
)

// progressUI 是交互终端的进度输出，同时充当工作流的通知接收端。
//
// 约束：
// - 所有输出写到 stderr，不污染 stdout 的 JSON 报告
// - keepalive：长时间无输出时定期打印一行进度
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total    int
	done     int
	ok       int
	fail     int
	skip     int
	notFound int
	current  string

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 15 * time.Second,
		tickerInterval:     5 * time.Second,
	}
}

func (p *progressUI) OnStart(cfg config.Config, total int) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}
	p.total = total

	fmt.Fprintf(p.w, "[%s] legendastv get\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  config: %s\n", cfg.Path)
	fmt.Fprintf(p.w, "  login: %s\n", formatLogin(cfg.Login))
	fmt.Fprintf(p.w, "  language: %s\n", languageLabel(cfg.Language))
	fmt.Fprintf(p.w, "  similarity: %g\n", cfg.Similarity)
	if cfg.Cache {
		fmt.Fprintf(p.w, "  cache: on (%s)\n", cfg.CacheDir)
	} else {
		fmt.Fprintln(p.w, "  cache: off")
	}
	fmt.Fprintf(p.w, "  proxy: %s\n", formatProxy(cfg.ProxyURL))
	fmt.Fprintf(p.w, "  notifications: %s\n", onOff(cfg.Notifications))
	fmt.Fprintf(p.w, "视频: %d\n\n", total)

	p.lastPrinted = time.Now()
	if total > 0 && !p.tickerStarted {
		p.startTickerLocked()
	}
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total
	p.current = ""

	name := filepath.Base(res.Video)
	if res.Video == "" {
		name = "<run>"
	}

	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s OK %s score=%.2f -> %s (%s)\n",
			idx, total, name, formatMovie(res), res.Score, filepath.Base(res.Output), formatShortDuration(dur),
		)
	case domain.StatusSkipped:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s SKIP (已有字幕) (%s)\n", idx, total, name, formatShortDuration(dur))
	case domain.StatusNotFound:
		p.notFound++
		fmt.Fprintf(p.w, "[%d/%d] %s MISS %s: %s (%s)\n",
			idx, total, name, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, name, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()

	// 最后一条完成：停止 ticker，避免结束后又冒出 keepalive。
	if p.tickerStarted && p.done >= p.total {
		p.stopTickerLocked()
	}
}

// Notify 把工作流的进度叙述逐行打印；icon 只在桌面通知里有意义，这里忽略。
func (p *progressUI) Notify(_ context.Context, message, _, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.w, "  %s\n", message)
	p.current = message
	p.lastPrinted = time.Now()
	return nil
}

// Stop 停止 keepalive；可重复调用。
func (p *progressUI) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tickerStarted {
		p.stopTickerLocked()
	}
}

func (p *progressUI) stopTickerLocked() {
	close(p.stopCh)
	p.tickerStarted = false
}

func (p *progressUI) startTickerLocked() {
	p.stopCh = make(chan struct{})
	p.tickerStarted = true
	stop := p.stopCh

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 15 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d miss=%d elapsed=%s%s\n",
						p.done, p.total, p.ok, p.fail, p.skip, p.notFound,
						formatElapsed(time.Since(p.startedAt)), formatCurrent(p.current),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func formatLogin(login string) string {
	if strings.TrimSpace(login) == "" {
		return "(匿名)"
	}
	return login
}

func formatMovie(res domain.ItemResult) string {
	if res.MovieID == 0 {
		return "release=" + truncate(res.Release, 80)
	}
	return fmt.Sprintf("movie=%q(%d) release=%s", res.MovieTitle, res.MovieID, truncate(res.Release, 80))
}

func formatCurrent(msg string) string {
	if msg == "" {
		return ""
	}
	return " 当前: " + truncate(msg, 80)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}
