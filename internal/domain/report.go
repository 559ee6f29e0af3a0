package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
	StatusNotFound  = "not_found"
)

const (
	ErrCodeAuthFailed     = "auth_failed"
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeParseFailed    = "parse_failed"
	ErrCodeNoSubtitles    = "no_subtitles"
	ErrCodeDownloadFailed = "download_failed"
	ErrCodeArchiveFailed  = "archive_failed"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeConfigNotFound = "config_not_found"
	ErrCodeConfigInvalid  = "config_invalid"
	ErrCodeLocked         = "locked"
)

// RunReport 是对外稳定输出（stdout JSON）的结构：一次 run 处理的每个视频一条。
type RunReport struct {
	Path     string `json:"path"`
	Language int    `json:"language"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	NotFound  int `json:"not_found"`
}

type ItemResult struct {
	Video  string `json:"video"`
	Search string `json:"search"`

	Status    string `json:"status"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	MovieID    int     `json:"movie_id"`
	MovieTitle string  `json:"movie_title"`
	Similarity float64 `json:"similarity"`

	Candidates   int     `json:"candidates"`
	SubtitleHash string  `json:"subtitle_hash"`
	Release      string  `json:"release"`
	Score        float64 `json:"score"`

	Output string `json:"output"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 video 字典序；video=="" 的合成项排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Video
		b := r.Items[j].Video
		if a == "" {
			return false
		}
		if b == "" {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusProcessed:
			s.Processed++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusNotFound:
			s.NotFound++
		}
	}
	r.Summary = s
}

// HasFailures 判断是否有需要以非零码退出的条目。
func (r RunReport) HasFailures() bool {
	return r.Summary.Failed > 0
}

func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	if r.Items == nil {
		r.Items = []ItemResult{}
	}
	return json.Marshal(Alias(r))
}
