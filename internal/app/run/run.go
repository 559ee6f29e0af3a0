// Package run 把单个视频的字幕工作流组织成一次完整的运行，并产出 RunReport。
package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/John-Robertt/legendastv/internal/config"
	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/cache"
	"github.com/John-Robertt/legendastv/internal/scan"
)

// Target 是一个待处理的视频及其来源。
type Target struct {
	Video domain.VideoFile
	// FromDir 表示由目录扫描得到（已有字幕时跳过，而不是报错）。
	FromDir bool
}

// Execute 对 paths 中的每个视频执行工作流，并返回对外稳定的 RunReport。
// 该函数尽量把错误“降级”为 item 级失败（单条失败不影响其他）。
//
// 约束：
// - store 非 nil 时在整个运行期间独占缓存目录；已被占用则只产出一条 locked 失败
// - 目录展开为其下所有视频；目录中已有字幕的视频记为 skipped
// - 视频按顺序串行处理
func Execute(ctx context.Context, cfg config.Config, paths []string, w *Workflow, store *cache.Store, obs Observer) domain.RunReport {
	rr := domain.RunReport{
		Path:      strings.Join(paths, ","),
		Language:  cfg.Language,
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.ItemResult, 0, len(paths)),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	if store != nil {
		unlock, err := store.Lock()
		if err != nil {
			code := domain.ErrCodeIOFailed
			if errors.Is(err, cache.ErrLocked) {
				code = domain.ErrCodeLocked
			}
			rr.Items = append(rr.Items, syntheticFailed(code, fmt.Sprintf("无法锁定缓存目录 %s：%v", store.Root, err)))
			return finish()
		}
		defer func() {
			if err := unlock(); err != nil {
				w.log.WithError(err).Warn("释放缓存目录锁失败")
			}
		}()
	}

	targets, bad := Expand(paths)
	rr.Items = append(rr.Items, bad...)

	if obs != nil {
		obs.OnStart(cfg, len(targets))
	}

	for i, t := range targets {
		started := time.Now()
		var res domain.ItemResult
		switch {
		case ctx.Err() != nil:
			res = domain.ItemResult{Video: t.Video.AbsPath, Status: domain.StatusFailed, ErrorCode: domain.ErrCodeFetchFailed, ErrorMsg: ctx.Err().Error()}
		case t.FromDir && scan.HasSubtitle(t.Video):
			res = domain.ItemResult{Video: t.Video.AbsPath, Status: domain.StatusSkipped, Output: scan.SubtitlePath(t.Video)}
		default:
			res = w.RetrieveSubtitle(ctx, t.Video)
		}
		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnItemDone(i+1, len(targets), res, time.Since(started))
		}
	}
	return finish()
}

// Expand 把命令行给出的路径展开为视频列表；无法访问的路径变成失败条目。
func Expand(paths []string) ([]Target, []domain.ItemResult) {
	var (
		out  []Target
		bad  []domain.ItemResult
		seen = map[string]bool{}
	)
	add := func(v domain.VideoFile, fromDir bool) {
		if seen[v.AbsPath] {
			return
		}
		seen[v.AbsPath] = true
		out = append(out, Target{Video: v, FromDir: fromDir})
	}

	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			bad = append(bad, domain.ItemResult{Video: p, Status: domain.StatusFailed, ErrorCode: domain.ErrCodeIOFailed, ErrorMsg: err.Error()})
			continue
		}
		if !fi.IsDir() {
			v, err := scan.Stat(p)
			if err != nil {
				bad = append(bad, domain.ItemResult{Video: p, Status: domain.StatusFailed, ErrorCode: domain.ErrCodeIOFailed, ErrorMsg: err.Error()})
				continue
			}
			add(v, false)
			continue
		}
		videos, err := scan.ScanVideos(p, nil)
		if err != nil {
			bad = append(bad, domain.ItemResult{Video: p, Status: domain.StatusFailed, ErrorCode: domain.ErrCodeIOFailed, ErrorMsg: fmt.Sprintf("扫描失败：%v", err)})
			continue
		}
		for _, v := range videos {
			add(v, true)
		}
	}
	return out, bad
}

func syntheticFailed(code, msg string) domain.ItemResult {
	return domain.ItemResult{
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}
