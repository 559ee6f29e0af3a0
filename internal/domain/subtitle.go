package domain

import (
	"fmt"
	"time"
)

// DateLayout 是站点上传时间的固定文本格式（dd/mm/yyyy - HH:MM）。
const DateLayout = "02/01/2006 - 15:04"

// Subtitle 是一条字幕记录（列表页或详情页解析所得）。
//
// 约束：
// - Hash 与 Release 是身份字段：缺失则整条记录无效（不会构造出 Subtitle）
// - Language/Date 解析失败时记录仍可返回给调用方，但不参与排序评分
// - Score 只由 rank 包写入，范围 [0, 10]
type Subtitle struct {
	Hash      string         `json:"hash"`
	Release   string         `json:"release"`
	Title     string         `json:"title"`
	UserName  string         `json:"user_name"`
	Language  Opt[string]    `json:"language"`
	Date      Opt[time.Time] `json:"date"`
	Rating    Opt[int]       `json:"rating"`
	Downloads Opt[int]       `json:"downloads"`
	Pack      bool           `json:"pack"`
	Highlight bool           `json:"highlight"`
	Flag      string         `json:"flag"`
	Score     Opt[float64]   `json:"score"`

	// Extra 仅由详情页填充；列表页为 nil。
	Extra *SubtitleExtra `json:"extra,omitempty"`
}

// SubtitleExtra 是详情页才有的附加信息。
type SubtitleExtra struct {
	SiteID      Opt[int]    `json:"site_id"`
	TitleBR     string      `json:"title_br"`
	Year        Opt[int]    `json:"year"`
	IMDbURL     string      `json:"imdb_url"`
	Synopsis    string      `json:"synopsis"`
	Description string      `json:"description"`
	FPS         Opt[int]    `json:"fps"`
	CDs         Opt[int]    `json:"cds"`
	SizeMB      Opt[int]    `json:"size_mb"`
	Comments    Opt[int]    `json:"comments"`
	Votes       Opt[int]    `json:"votes"`
	LanguageRaw Opt[string] `json:"language_raw"`
}

// Rankable 判断记录能否参与评分：language 与 date 都必须已解析。
func (s Subtitle) Rankable() error {
	if !s.Language.Valid {
		return fmt.Errorf("%w: hash=%s language 未知", ErrRecordInvalid, s.Hash)
	}
	if !s.Date.Valid {
		return fmt.Errorf("%w: hash=%s date 未知", ErrRecordInvalid, s.Hash)
	}
	return nil
}

// RankTitle 返回用于标题相似度的文本：优先影片标题，缺失时回退 release。
func (s Subtitle) RankTitle() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Release
}
