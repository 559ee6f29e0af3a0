package domain

import (
	"errors"
	"strings"
)

// SearchKind 对应站点搜索表单的 selTipo。
type SearchKind int

const (
	KindRelease  SearchKind = 1
	KindTitle    SearchKind = 2
	KindUploader SearchKind = 3
)

func (k SearchKind) String() string {
	switch k {
	case KindRelease:
		return "release"
	case KindTitle:
		return "title"
	case KindUploader:
		return "uploader"
	default:
		return "unknown"
	}
}

// SearchFilter 对应列表接口的 sel_tipo 段。
type SearchFilter string

const (
	FilterAll       SearchFilter = ""
	FilterHighlight SearchFilter = "d"
	FilterPack      SearchFilter = "p"
)

// SearchQuery 描述一次字幕搜索。
//
// 约束：要么按任意文本搜索，要么按影片 ID 搜索；MovieID>0 时 Text/Kind 被忽略。
type SearchQuery struct {
	Text     string
	Kind     SearchKind
	Language int
	MovieID  int
	Filter   SearchFilter
}

// ByMovie 构造按影片 ID 的查询。
func ByMovie(id, lang int) SearchQuery {
	return SearchQuery{MovieID: id, Language: lang}
}

// ByText 构造按文本的查询。
func ByText(text string, kind SearchKind, lang int) SearchQuery {
	return SearchQuery{Text: text, Kind: kind, Language: lang}
}

func (q SearchQuery) Validate() error {
	if q.MovieID > 0 {
		return nil
	}
	if q.MovieID < 0 {
		return errors.New("movie id 不能为负数")
	}
	// 站点要求搜索词至少 2 个字符。
	if len([]rune(strings.TrimSpace(q.Text))) < 2 {
		return errors.New("搜索词至少需要 2 个字符")
	}
	if q.Language != 0 {
		if _, ok := LanguageByID(q.Language); !ok {
			return errors.New("未知的语言 id")
		}
	}
	return nil
}
