package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/archive"
	"github.com/John-Robertt/legendastv/internal/config"
	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/guess"
	"github.com/John-Robertt/legendastv/internal/identify"
	"github.com/John-Robertt/legendastv/internal/infra/fsx"
	"github.com/John-Robertt/legendastv/internal/infra/imgx"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
	"github.com/John-Robertt/legendastv/internal/match"
	"github.com/John-Robertt/legendastv/internal/notify"
	"github.com/John-Robertt/legendastv/internal/provider"
	"github.com/John-Robertt/legendastv/internal/rank"
	"github.com/John-Robertt/legendastv/internal/scan"
)

// Site 是工作流需要的站点操作（*legendastv.Client 实现它）。
type Site interface {
	Login(ctx context.Context, login, password string) error
	SearchMovies(ctx context.Context, text string) ([]domain.Movie, error)
	AllSubtitles(ctx context.Context, q domain.SearchQuery) ([]domain.Subtitle, error)
	Download(ctx context.Context, hash, destDir string) (string, error)
	CachePoster(ctx context.Context, m domain.Movie) (string, error)
}

// Deps 是工作流的协作者；除 Site 外都可以为 nil。
type Deps struct {
	Site       Site
	Identifier identify.Identifier
	Notifier   notify.Notifier
	Log        logrus.FieldLogger
}

const (
	notifySummary  = "Legendas.TV"
	iconSize       = 128
	workDirPattern = ".legendastv-"
)

// Workflow 为单个视频完成“推断 → 搜索 → 排序 → 下载 → 解压 → 选择 → 改名”。
//
// 约束：
// - 同一个 Workflow 串行使用（站点在会话中保存搜索状态）
// - 登录只在第一次需要时进行一次
// - 通知失败只记日志
type Workflow struct {
	cfg      config.Config
	site     Site
	id       identify.Identifier
	notifier notify.Notifier
	log      logrus.FieldLogger

	loggedIn bool
}

func NewWorkflow(cfg config.Config, deps Deps) *Workflow {
	w := &Workflow{
		cfg:      cfg,
		site:     deps.Site,
		id:       deps.Identifier,
		notifier: deps.Notifier,
		log:      logx.OrDiscard(deps.Log),
	}
	if w.id == nil {
		w.id = identify.Nop{}
	}
	if w.notifier == nil || !cfg.Notifications {
		w.notifier = notify.Nop{}
	}
	return w
}

// RetrieveSubtitle 为视频 v 获取字幕，输出到 <v.Dir>/<v.Base>.srt。
func (w *Workflow) RetrieveSubtitle(ctx context.Context, v domain.VideoFile) domain.ItemResult {
	log := w.log.WithField("path", v.AbsPath)
	item := domain.ItemResult{Video: v.AbsPath, Status: domain.StatusProcessed}

	if err := w.login(ctx); err != nil {
		return failed(item, domain.ErrCodeAuthFailed, err)
	}

	info := guess.Video(v, w.cfg.Similarity)
	info = identify.Refine(ctx, w.id, v.AbsPath, info, log)
	search := guess.SearchTitle(info)
	item.Search = search
	log = log.WithFields(logrus.Fields{"search": search, "kind": info.Kind})

	if info.Kind == domain.MediaEpisode {
		w.notify(ctx, fmt.Sprintf("Searching for '%s - Episode %d'", search, info.Episode), "")
	} else {
		w.notify(ctx, fmt.Sprintf("Searching for '%s'", search), "")
	}

	movies, err := w.site.SearchMovies(ctx, search)
	if err != nil {
		return failed(item, errorCode(err), err)
	}

	target := rank.Target{Title: search, Release: info.Release}
	var q domain.SearchQuery
	if len(movies) > 0 {
		w.notify(ctx, fmt.Sprintf("%d titles found", len(movies)), "")
		res, err := match.BestMatchByField(match.Clean(search), movies, func(m domain.Movie) string { return match.Clean(m.Title) })
		if err != nil {
			return failed(item, domain.ErrCodeParseFailed, err)
		}
		item.Similarity = res.Similarity
		if res.Similarity > w.cfg.Similarity {
			m := res.Best
			item.MovieID, item.MovieTitle = m.ID, m.Title
			target.Title = m.Title
			log.WithFields(logrus.Fields{"movie_id": m.ID, "similarity": res.Similarity}).Info("匹配到影片")
			icon := w.icon(ctx, m, log)
			if info.Kind == domain.MediaEpisode {
				w.notify(ctx, fmt.Sprintf("Searching '%s' (%s) - Episode %d", m.Title, yearText(m.Year), info.Episode), icon)
			} else {
				w.notify(ctx, fmt.Sprintf("Searching title '%s'", m.Title), icon)
			}
			q = domain.ByMovie(m.ID, w.cfg.Language)
		} else {
			w.notify(ctx, "None was similar enough. Trying release...", "")
			text := search
			if y, ok := info.Year.Get(); ok {
				text += " " + strconv.Itoa(y)
			}
			q = domain.ByText(text, domain.KindRelease, w.cfg.Language)
		}
	} else {
		w.notify(ctx, "No titles found. Trying release...", "")
		q = domain.ByText(info.Release, domain.KindRelease, w.cfg.Language)
	}

	subs, err := w.site.AllSubtitles(ctx, q)
	if err != nil {
		if provider.IsTransport(err) {
			return failed(item, domain.ErrCodeFetchFailed, err)
		}
		return notFound(item, fmt.Errorf("字幕搜索无法进行：%w", err))
	}
	if len(subs) == 0 {
		w.notify(ctx, "No subtitles found", "")
		return notFound(item, errors.New("没有找到字幕"))
	}
	w.notify(ctx, fmt.Sprintf("%d subtitles found", len(subs)), "")

	if info.Kind == domain.MediaEpisode {
		subs = filterEpisode(subs, info.Episode)
		if len(subs) == 0 {
			w.notify(ctx, "No subtitles found", "")
			return notFound(item, fmt.Errorf("没有第 %d 集的字幕", info.Episode))
		}
	}

	ranked, err := (&rank.Ranker{Log: log}).Rank(target, subs)
	if err != nil {
		return notFound(item, err)
	}
	item.Candidates = len(ranked)
	best := ranked[0]
	item.SubtitleHash, item.Release = best.Hash, best.Release
	item.Score = best.Score.Or(0)

	// 下载与解压都在视频目录下的临时子目录中进行：不会碰到已有文件，改名也不跨设备。
	work, err := os.MkdirTemp(v.Dir, workDirPattern)
	if err != nil {
		return failed(item, domain.ErrCodeIOFailed, err)
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			log.WithError(err).WithField("dir", work).Warn("清理临时目录失败")
		}
	}()

	w.notify(ctx, downloadMessage(best), "")
	archivePath, err := w.site.Download(ctx, best.Hash, work)
	if err != nil {
		return failed(item, domain.ErrCodeDownloadFailed, err)
	}

	files, err := (&archive.Extractor{Log: log}).Extract(archivePath, work, []string{scan.SubtitleExt}, false)
	if err != nil {
		return failed(item, domain.ErrCodeArchiveFailed, err)
	}
	if len(files) > 1 {
		w.notify(ctx, fmt.Sprintf("%d subtitles in archive", len(files)), "")
	}
	chosen, err := archive.Resolve(files, filepath.Base(v.Dir), v.Base, log)
	if err != nil {
		return failed(item, domain.ErrCodeArchiveFailed, fmt.Errorf("压缩包中没有字幕：%w", err))
	}

	out := scan.SubtitlePath(v)
	if err := fsx.MoveNoOverwrite(chosen, out); err != nil {
		return failed(item, domain.ErrCodeIOFailed, err)
	}
	item.Output = out
	log.WithFields(logrus.Fields{"output": out, "release": best.Release}).Info("字幕已保存")
	w.notify(ctx, fmt.Sprintf("Subtitle saved as '%s'", filepath.Base(out)), "")
	return item
}

func (w *Workflow) login(ctx context.Context) error {
	if w.loggedIn {
		return nil
	}
	if w.cfg.Login == "" || w.cfg.Password == "" {
		w.log.Debug("未配置账号，匿名访问")
		w.loggedIn = true
		return nil
	}
	w.notify(ctx, "Logging in Legendas.TV", "")
	if err := w.site.Login(ctx, w.cfg.Login, w.cfg.Password); err != nil {
		return err
	}
	w.loggedIn = true
	return nil
}

func (w *Workflow) notify(ctx context.Context, message, icon string) {
	if err := w.notifier.Notify(ctx, message, notifySummary, icon); err != nil {
		w.log.WithError(err).Debug("通知投递失败")
	}
}

// icon 缓存影片海报并生成正方形图标；任何一步失败都返回空串。
func (w *Workflow) icon(ctx context.Context, m domain.Movie, log logrus.FieldLogger) string {
	if !w.cfg.Cache || m.Thumb == "" {
		return ""
	}
	poster, err := w.site.CachePoster(ctx, m)
	if err != nil || poster == "" {
		if err != nil {
			log.WithError(err).Debug("缓存海报失败")
		}
		return ""
	}
	dir, name := filepath.Dir(poster), strings.TrimSuffix(filepath.Base(poster), filepath.Ext(poster))+".icon.jpg"
	iconPath := filepath.Join(dir, name)
	if fi, err := os.Stat(iconPath); err == nil && fi.Size() > 0 {
		return iconPath
	}
	b, err := os.ReadFile(poster)
	if err != nil {
		log.WithError(err).Debug("读取海报失败")
		return ""
	}
	ico, err := imgx.SquareIconJPEG(b, iconSize)
	if err != nil {
		log.WithError(err).Debug("海报无法生成图标")
		return ""
	}
	if err := fsx.WriteFileAtomic(dir, name, ico); err != nil {
		log.WithError(err).Debug("写入图标失败")
		return ""
	}
	return iconPath
}

func filterEpisode(subs []domain.Subtitle, episode int) []domain.Subtitle {
	out := subs[:0:0]
	for _, s := range subs {
		if guess.SameEpisode(s.Release, episode) {
			out = append(out, s)
		}
	}
	return out
}

func downloadMessage(s domain.Subtitle) string {
	msg := fmt.Sprintf("Downloading '%s' from '%s'", s.Release, s.UserName)
	if d, ok := s.Date.Get(); ok {
		msg += ", " + humanize.Time(d)
	}
	return msg
}

func yearText(y domain.Opt[int]) string {
	if v, ok := y.Get(); ok {
		return strconv.Itoa(v)
	}
	return "?"
}

func errorCode(err error) string {
	switch {
	case provider.IsAuth(err):
		return domain.ErrCodeAuthFailed
	case provider.IsTransport(err):
		return domain.ErrCodeFetchFailed
	default:
		return domain.ErrCodeParseFailed
	}
}

func failed(item domain.ItemResult, code string, err error) domain.ItemResult {
	item.Status = domain.StatusFailed
	item.ErrorCode = code
	item.ErrorMsg = err.Error()
	return item
}

func notFound(item domain.ItemResult, err error) domain.ItemResult {
	item.Status = domain.StatusNotFound
	item.ErrorCode = domain.ErrCodeNoSubtitles
	item.ErrorMsg = err.Error()
	return item
}
