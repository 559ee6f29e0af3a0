// Package identify 定义外部视频识别服务的接口，以及把识别结果合并进推断信息的规则。
package identify

import (
	"context"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
	"github.com/John-Robertt/legendastv/internal/match"
)

// 识别服务返回的媒体类型。
const (
	KindMovie    = "movie"
	KindEpisode  = "episode"
	KindTVSeries = "tv series"
)

// Candidate 是识别服务对一个视频文件给出的候选。
type Candidate struct {
	Name    string
	Year    int
	Kind    string
	Season  int
	Episode int
}

// Identifier 根据视频文件内容识别媒体（例如按文件 hash 查询）。
type Identifier interface {
	Identify(ctx context.Context, path string) ([]Candidate, error)
}

// Nop 不做任何识别。
type Nop struct{}

func (Nop) Identify(context.Context, string) ([]Candidate, error) { return nil, nil }

// Func 把函数适配为 Identifier。
type Func func(ctx context.Context, path string) ([]Candidate, error)

func (f Func) Identify(ctx context.Context, path string) ([]Candidate, error) { return f(ctx, path) }

// Refine 调用识别服务并把最佳候选合并进 info。
//
// 约束：
// - 识别失败不会中断流程：记录日志后原样返回 info
// - "tv series" 候选总是被过滤；已知是剧集时只保留剧集候选
// - 以 "标题 年份" 为参照选最相似的候选
// - 已从文件名识别出的剧集类型、季、集优先于候选
func Refine(ctx context.Context, id Identifier, path string, info domain.VideoInfo, log logrus.FieldLogger) domain.VideoInfo {
	log = logx.OrDiscard(log).WithField("path", path)
	if id == nil {
		return info
	}
	cands, err := id.Identify(ctx, path)
	if err != nil {
		log.WithError(err).Warn("视频识别失败，继续使用文件名推断")
		return info
	}
	cands = Filter(cands, info.Kind == domain.MediaEpisode)
	if len(cands) == 0 {
		return info
	}

	ref := label(info.Title, info.Year.Or(0))
	best, err := match.BestMatchByField(ref, cands, func(c Candidate) string { return label(c.Name, c.Year) })
	if err != nil {
		return info
	}
	c := best.Best
	if c.Kind == KindEpisode {
		c.Name = seriesName(c.Name)
	}
	log.WithFields(logrus.Fields{"name": c.Name, "year": c.Year, "kind": c.Kind, "similarity": best.Similarity}).Debug("采用识别结果")

	info.Title = c.Name
	if c.Year > 0 {
		info.Year = domain.Some(c.Year)
	} else {
		info.Year = domain.Opt[int]{}
	}
	if info.Kind != domain.MediaEpisode && c.Kind == KindEpisode {
		info.Kind = domain.MediaEpisode
	}
	if info.Season == 0 {
		info.Season = c.Season
	}
	if info.Episode == 0 {
		info.Episode = c.Episode
	}
	return info
}

// Filter 去掉 "tv series" 候选；episodeOnly 时只保留剧集。
func Filter(cands []Candidate, episodeOnly bool) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		kind := strings.ToLower(strings.TrimSpace(c.Kind))
		if kind == KindTVSeries {
			continue
		}
		if episodeOnly && kind != KindEpisode {
			continue
		}
		c.Kind = kind
		out = append(out, c)
	}
	return out
}

func label(name string, year int) string {
	if year <= 0 {
		return strings.TrimSpace(name)
	}
	return strings.TrimSpace(name + " " + strconv.Itoa(year))
}

// seriesName 把 `"Series" Episode Title` 还原为 Series。
func seriesName(name string) string {
	if !strings.HasPrefix(name, `"`) {
		return name
	}
	parts := strings.Split(name, `"`)
	if len(parts) < 2 || parts[1] == "" {
		return name
	}
	return parts[1]
}
