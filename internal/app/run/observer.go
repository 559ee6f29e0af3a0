package run

import (
	"time"

	"github.com/John-Robertt/legendastv/internal/config"
	"github.com/John-Robertt/legendastv/internal/domain"
)

// Observer 用于把“运行进度/条目结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件按顺序在调用 Execute 的 goroutine 上发出。
type Observer interface {
	// OnStart 在 Execute 展开目标、开始处理之前调用。
	OnStart(cfg config.Config, total int)
	// OnItemDone 在一个视频处理完成（含跳过）时调用。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}
