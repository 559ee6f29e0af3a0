// Package rank 对同一目标影片的字幕候选打分并排序。
package rank

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
	"github.com/John-Robertt/legendastv/internal/match"
)

// 权重是契约的一部分，不是可调默认值。
const (
	weightTitle     = 10.0
	weightHighlight = 3.0
	weightRelease   = 5.0
	weightRating    = 1.0
	weightRecency   = 1.0

	// 未评分时的 rating 信号。
	defaultRating = 0.8
	// 总权重为 20，最终分数缩放到 [0, 10]。
	scaleNum = 10.0
	scaleDen = 20.0
)

// Target 是被匹配的影片：标题来自站点，release 来自视频文件名推断。
type Target struct {
	Title   string
	Release string
}

// Ranker 是带 logger 的排序器；零值可用（日志丢弃）。
type Ranker struct {
	Log logrus.FieldLogger
}

// Rank 是 (&Ranker{}).Rank 的简写。
func Rank(target Target, subs []domain.Subtitle) ([]domain.Subtitle, error) {
	return (&Ranker{}).Rank(target, subs)
}

// Rank 返回按分数降序排列的新切片（原切片不修改）。
//
// 约束：
// - 输入为空返回 domain.ErrEmptyCandidates；language/date 缺失的记录被剔除并记日志
// - 稳定排序：同分保持输入顺序
// - 所有候选日期相同（含只有一个候选）时 recency 贡献为 0
func (r *Ranker) Rank(target Target, subs []domain.Subtitle) ([]domain.Subtitle, error) {
	log := logx.OrDiscard(r.Log)
	if len(subs) == 0 {
		return nil, domain.ErrEmptyCandidates
	}

	valid := make([]domain.Subtitle, 0, len(subs))
	for _, s := range subs {
		if err := s.Rankable(); err != nil {
			log.WithFields(logrus.Fields{"hash": s.Hash, "release": s.Release}).Warnf("剔除无法评分的字幕：%v", err)
			continue
		}
		valid = append(valid, s)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: %d 条记录均无法评分", domain.ErrEmptyCandidates, len(subs))
	}

	oldest, newest := dateBounds(valid)
	title := match.Clean(target.Title)
	for i := range valid {
		s := &valid[i]
		score := weightTitle * match.Similarity(title, match.Clean(s.RankTitle()), true)
		if s.Highlight {
			score += weightHighlight
		}
		score += weightRelease * match.Similarity(target.Release, match.Clean(s.Release), true)
		score += weightRating * ratingSignal(s.Rating)
		score += weightRecency * recency(s.Date.V, oldest, newest)
		s.Score = domain.Some(score * scaleNum / scaleDen)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Score.V > valid[j].Score.V
	})
	return valid, nil
}

func ratingSignal(r domain.Opt[int]) float64 {
	if !r.Valid {
		return defaultRating
	}
	// nota 的站点范围是 0..10；越界值截断，保证分数不超出 [0, 10]。
	v := min(max(r.V, 0), 10)
	return float64(v) / 10.0
}

func dateBounds(subs []domain.Subtitle) (time.Time, time.Time) {
	oldest, newest := subs[0].Date.V, subs[0].Date.V
	for _, s := range subs[1:] {
		if s.Date.V.Before(oldest) {
			oldest = s.Date.V
		}
		if s.Date.V.After(newest) {
			newest = s.Date.V
		}
	}
	return oldest, newest
}

func recency(d, oldest, newest time.Time) float64 {
	span := newest.Sub(oldest)
	if span <= 0 {
		return 0
	}
	return float64(d.Sub(oldest)) / float64(span)
}
