package legendastv

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
	"github.com/John-Robertt/legendastv/internal/provider"
)

// Client 把 Session（会话与传输）和 Extractor（页面解析）组合为站点操作。
//
// 约束：
// - 影片搜索与影片详情在一次运行内缓存（永不过期），同一标题不重复请求
// - 字幕列表不缓存：它依赖会话内的搜索状态
type Client struct {
	s      *provider.Session
	x      Extractor
	log    logrus.FieldLogger
	movies *gocache.Cache
}

func NewClient(s *provider.Session, log logrus.FieldLogger) *Client {
	log = logx.OrDiscard(log)
	return &Client{
		s:      s,
		x:      Extractor{Log: log},
		log:    log,
		movies: gocache.New(gocache.NoExpiration, 0),
	}
}

// Login 登录站点；失败时返回 *provider.AuthError。
func (c *Client) Login(ctx context.Context, login, password string) error {
	return c.s.Authenticate(ctx, provider.LoginForm{
		Path:   loginPath,
		Login:  login,
		Fields: loginForm(login, password),
		Rejected: func(r *provider.Response) bool {
			return bytes.Contains(r.Body, []byte("data[User][password]"))
		},
	})
}

// SearchMovies 按标题搜索影片。
func (c *Client) SearchMovies(ctx context.Context, text string) ([]domain.Movie, error) {
	text = strings.TrimSpace(text)
	key := "search:" + strings.ToLower(text)
	if v, ok := c.movies.Get(key); ok {
		return v.([]domain.Movie), nil
	}
	resp, err := c.s.Fetch(ctx, movieSearchPath(text), nil)
	if err != nil {
		return nil, err
	}
	movies, err := c.x.ParseMovieList(resp)
	if err != nil {
		return nil, fmt.Errorf("解析影片搜索结果失败：%w", err)
	}
	c.log.WithFields(logrus.Fields{"text": text, "count": len(movies)}).Debug("影片搜索完成")
	c.movies.Set(key, movies, gocache.NoExpiration)
	return movies, nil
}

// MovieDetail 读取影片详情页。站点要求随请求提交一次搜索表单。
func (c *Client) MovieDetail(ctx context.Context, id int) (domain.Movie, error) {
	key := "movie:" + strconv.Itoa(id)
	if v, ok := c.movies.Get(key); ok {
		return v.(domain.Movie), nil
	}
	resp, err := c.s.Fetch(ctx, movieDetailPath(id), searchForm("..", domain.KindRelease, domain.DefaultLanguage))
	if err != nil {
		return domain.Movie{}, err
	}
	m, err := c.x.ParseMovieDetail(resp, id)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("解析影片详情失败（id=%d）：%w", id, err)
	}
	c.movies.Set(key, m, gocache.NoExpiration)
	return m, nil
}

// Subtitles 惰性遍历字幕列表的全部页面，逐条产出记录。
//
// 约束：
// - 第一页随请求 POST 搜索表单，后续页只 GET
// - 无效条目已在解析时丢弃；遇到传输错误时产出一次 (zero, err) 后结束
func (c *Client) Subtitles(ctx context.Context, q domain.SearchQuery) iter.Seq2[domain.Subtitle, error] {
	return func(yield func(domain.Subtitle, error) bool) {
		if err := q.Validate(); err != nil {
			yield(domain.Subtitle{}, err)
			return
		}
		text := q.Text
		if q.MovieID > 0 {
			// 按影片搜索时搜索词无意义，但站点要求至少 2 个字符。
			text = ".."
		}
		form := searchForm(text, q.Kind, q.Language)
		for resp, err := range c.s.FetchAllPages(ctx, listingURL(q), form, c.x.NextPage) {
			if err != nil {
				yield(domain.Subtitle{}, err)
				return
			}
			subs, err := c.x.ParseSubtitleList(resp)
			if err != nil {
				yield(domain.Subtitle{}, fmt.Errorf("解析字幕列表第 %d 页失败：%w", resp.Page, err))
				return
			}
			for _, s := range subs {
				if !yield(s, nil) {
					return
				}
			}
		}
	}
}

// AllSubtitles 收集 Subtitles 的全部结果。
func (c *Client) AllSubtitles(ctx context.Context, q domain.SearchQuery) ([]domain.Subtitle, error) {
	var out []domain.Subtitle
	for s, err := range c.Subtitles(ctx, q) {
		if err != nil {
			return out, err
		}
		out = append(out, s)
	}
	return out, nil
}

// SubtitleDetail 读取字幕详情页。
func (c *Client) SubtitleDetail(ctx context.Context, hash string) (domain.Subtitle, error) {
	resp, err := c.s.Fetch(ctx, subtitleDetailPath(hash), nil)
	if err != nil {
		return domain.Subtitle{}, err
	}
	return c.x.ParseSubtitleDetail(resp, hash)
}

// Download 把字幕压缩包下载到 destDir，返回本地路径（文件名取自站点）。
func (c *Client) Download(ctx context.Context, hash, destDir string) (string, error) {
	return c.s.Download(ctx, subtitleDownloadPath(hash), destDir, "")
}

// CachePoster 把影片海报存入内容缓存；没有海报时返回空路径。
func (c *Client) CachePoster(ctx context.Context, m domain.Movie) (string, error) {
	if m.Thumb == "" {
		return "", nil
	}
	p, _, err := c.s.CacheAsset(ctx, m.Thumb)
	return p, err
}
