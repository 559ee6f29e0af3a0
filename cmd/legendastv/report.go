package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/John-Robertt/legendastv/internal/domain"
)

// emitReport 输出运行报告。
//
// 约束：
// - stdout 是 TTY：一行摘要到 stdout，失败明细到 stderr
// - stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON，摘要走 stderr
func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTerminal(stdout) {
		fmt.Fprintln(stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed && it.Status != domain.StatusNotFound {
				continue
			}
			key := it.Video
			if key == "" {
				key = "<run>"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	enc := json.NewEncoder(stdout)
	_ = enc.Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：processed=%d skipped=%d failed=%d not_found=%d",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.NotFound,
	)
}
