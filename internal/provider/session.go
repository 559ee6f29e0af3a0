// Package provider 实现带会话状态的站点抓取客户端。
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/infra/cache"
	"github.com/John-Robertt/legendastv/internal/infra/fsx"
	"github.com/John-Robertt/legendastv/internal/infra/httpx"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
)

// 单页文本响应上限，避免异常页面占满内存。
const maxPageBytes = 8 << 20

// Response 是一次页面请求的原始结果（文本已解码为 UTF-8）。
type Response struct {
	URL    *url.URL // 跟随重定向后的最终地址
	Status int
	Header http.Header
	Body   []byte
	// Page 是 FetchAllPages 中的页序号（从 1 开始）；单次 Fetch 为 0。
	Page int
}

// NextFunc 从响应中取出“下一页”链接；没有下一页时返回 false。
type NextFunc func(*Response) (string, bool)

// LoginForm 描述站点的登录表单。
type LoginForm struct {
	Path   string
	Login  string
	Fields url.Values
	// Rejected 判断响应是否表示登录失败（例如仍然停留在登录表单）。
	Rejected func(*Response) bool
}

// Options 是 Session 的构造参数。
type Options struct {
	BaseURL string
	// Client 为 nil 时使用 httpx.NewClient 的默认策略；必须带 cookie jar 才能保持会话。
	Client *http.Client
	// Cache 为 nil 表示不启用内容缓存。
	Cache *cache.Store
	Log   logrus.FieldLogger
	// MaxPages 限制 FetchAllPages 的页数；<=0 表示不限制（仍有防循环保护）。
	MaxPages int
}

// Session 持有一个站点会话（cookie）。
//
// 约束：
// - 一个 Session 只属于一个工作流；不同 Session 之间不共享 cookie
// - 方法都是阻塞的；ctx 只用于整体取消
type Session struct {
	base     *url.URL
	client   *http.Client
	cache    *cache.Store
	log      logrus.FieldLogger
	maxPages int
}

func NewSession(opts Options) (*Session, error) {
	base, err := url.Parse(strings.TrimSpace(opts.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("base_url 无效：%w", err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("base_url 必须是 http(s) 绝对地址：%q", opts.BaseURL)
	}
	c := opts.Client
	if c == nil {
		c, err = httpx.NewClient(httpx.Options{})
		if err != nil {
			return nil, err
		}
	}
	return &Session{
		base:     base,
		client:   c,
		cache:    opts.Cache,
		log:      logx.OrDiscard(opts.Log),
		maxPages: opts.MaxPages,
	}, nil
}

// Resolve 把相对路径解析为站点上的绝对 URL。
func (s *Session) Resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return s.base.ResolveReference(u).String(), nil
}

// Authenticate 提交登录表单；成功后会话 cookie 保存在 client 的 jar 中。
func (s *Session) Authenticate(ctx context.Context, form LoginForm) error {
	s.log.WithField("login", form.Login).Info("登录站点")
	resp, err := s.Fetch(ctx, form.Path, form.Fields)
	if err != nil {
		var se *HTTPStatusError
		if errors.As(err, &se) {
			return &AuthError{Login: form.Login, Reason: se.Error()}
		}
		return err
	}
	if form.Rejected != nil && form.Rejected(resp) {
		return &AuthError{Login: form.Login, Reason: "站点拒绝了用户名或密码"}
	}
	return nil
}

// Fetch 请求一个页面：form 为 nil 时 GET，否则以表单 POST。
func (s *Session) Fetch(ctx context.Context, ref string, form url.Values) (*Response, error) {
	target, err := s.Resolve(ref)
	if err != nil {
		return nil, &TransportError{Op: "fetch", URL: ref, Err: err}
	}

	var req *http.Request
	if form == nil {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, &TransportError{Op: "fetch", URL: target, Err: err}
	}

	s.log.WithFields(logrus.Fields{"url": target, "method": req.Method}).Debug("请求页面")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "fetch", URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &TransportError{Op: "fetch", URL: target, Err: &HTTPStatusError{
			URL: target, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location"),
		}}
	}
	body, err := httpx.ReadText(resp, maxPageBytes)
	if err != nil {
		return nil, &TransportError{Op: "fetch", URL: target, Err: err}
	}

	final := resp.Request.URL
	if final == nil {
		final, _ = url.Parse(target)
	}
	return &Response{URL: final, Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// FetchAllPages 顺序遍历分页结果：惰性、有限、不可重启，每个元素消耗一次网络往返。
//
// 约束：
// - form 只随第一页提交（POST）；后续页只按 URL GET（站点在会话中保存搜索状态）
// - next 指向已访问过的页面时（站点的已知缺陷），改写为第 N+1 页；无法改写则结束
// - 出错时产出一次 (nil, err) 后结束
func (s *Session) FetchAllPages(ctx context.Context, ref string, form url.Values, next NextFunc) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		visited := map[string]bool{}
		cur, curForm := ref, form
		for page := 1; ; page++ {
			if s.maxPages > 0 && page > s.maxPages {
				s.log.WithField("page", page).Debug("达到页数上限，停止翻页")
				return
			}
			resp, err := s.Fetch(ctx, cur, curForm)
			if err != nil {
				yield(nil, err)
				return
			}
			resp.Page = page
			if abs, err := s.Resolve(cur); err == nil {
				visited[abs] = true
			}
			visited[resp.URL.String()] = true

			if !yield(resp, nil) {
				return
			}

			href, ok := next(resp)
			if !ok {
				return
			}
			abs, err := s.Resolve(href)
			if err != nil {
				s.log.WithError(err).WithField("url", href).Warn("下一页链接无效，停止翻页")
				return
			}
			if visited[abs] {
				fixed, ok := RenumberPage(abs, page+1)
				if !ok || visited[fixed] {
					s.log.WithFields(logrus.Fields{"url": abs, "page": page}).Warn("下一页指回已访问页面且无法修正，停止翻页")
					return
				}
				s.log.WithFields(logrus.Fields{"url": abs, "fixed": fixed, "page": page}).Debug("修正指回当前页的下一页链接")
				abs = fixed
			}
			cur, curForm = abs, nil
		}
	}
}

var pageMarkerRE = regexp.MustCompile(`(?i)((?:^|[/?&])(?:page|pagina)[:=/])(\d+)`)

// RenumberPage 把 URL 中最后一个页码标记（page:N、pagina=N、/page/N 等）改为 n。
func RenumberPage(rawURL string, n int) (string, bool) {
	locs := pageMarkerRE.FindAllStringSubmatchIndex(rawURL, -1)
	if len(locs) == 0 {
		return "", false
	}
	loc := locs[len(locs)-1]
	// loc[4]:loc[5] 是数字部分
	return rawURL[:loc[4]] + strconv.Itoa(n) + rawURL[loc[5]:], true
}

// Download 下载二进制内容到 destDir，返回本地路径。
//
// 约束：
// - destDir 不存在时自动创建
// - filename 为空时取最终 URL 的 basename
// - 不覆盖已存在的文件：同名时改用 "name (n).ext"
func (s *Session) Download(ctx context.Context, ref, destDir, filename string) (string, error) {
	target, err := s.Resolve(ref)
	if err != nil {
		return "", &TransportError{Op: "download", URL: ref, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &TransportError{Op: "download", URL: target, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", &TransportError{Op: "download", URL: target, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{Op: "download", URL: target, Err: &HTTPStatusError{URL: target, StatusCode: resp.StatusCode}}
	}

	if strings.TrimSpace(filename) == "" {
		filename = nameFromURL(resp.Request.URL)
	}
	filename = filepath.Base(filepath.Clean(filename))

	name, err := fsx.UniqueName(destDir, filename)
	if err != nil {
		return "", err
	}
	n, err := fsx.WriteAtomic(destDir, name, resp.Body, fsx.NoOverwrite)
	if err != nil {
		return "", &TransportError{Op: "download", URL: target, Err: err}
	}
	out := filepath.Join(destDir, name)
	s.log.WithFields(logrus.Fields{"url": target, "path": out, "bytes": n}).Info("下载完成")
	return out, nil
}

// CacheAsset 把 ref 指向的资源存入内容缓存；已缓存时不发请求，already=true。
func (s *Session) CacheAsset(ctx context.Context, ref string) (string, bool, error) {
	if s.cache == nil {
		return "", false, ErrCacheDisabled
	}
	target, err := s.Resolve(ref)
	if err != nil {
		return "", false, &TransportError{Op: "cache", URL: ref, Err: err}
	}
	if p, ok, err := s.cache.Lookup(target); err != nil {
		return "", false, err
	} else if ok {
		return p, true, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", false, &TransportError{Op: "cache", URL: target, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", false, &TransportError{Op: "cache", URL: target, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", false, &TransportError{Op: "cache", URL: target, Err: &HTTPStatusError{URL: target, StatusCode: resp.StatusCode}}
	}
	p, err := s.cache.Put(target, resp.Body)
	if err != nil {
		return "", false, err
	}
	s.log.WithFields(logrus.Fields{"url": target, "path": p}).Debug("资源已缓存")
	return p, false, nil
}

func nameFromURL(u *url.URL) string {
	if u == nil {
		return "download"
	}
	base := path.Base(u.Path)
	if base == "" || base == "." || base == "/" {
		return "download"
	}
	if un, err := url.PathUnescape(base); err == nil {
		base = un
	}
	return base
}
