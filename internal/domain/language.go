package domain

import "strings"

// Language 是站点支持的字幕语言（ID 与旗帜代码均来自站点）。
type Language struct {
	ID   int
	Code string // 旗帜图片名中的代码，例如 "brazil"
	Name string
}

// DefaultLanguage 是巴西葡萄牙语。
const DefaultLanguage = 1

var languages = []Language{
	{1, "brazil", "Português-BR"},
	{2, "usa", "Inglês"},
	{3, "es", "Espanhol"},
	{4, "fr", "Francês"},
	{5, "de", "Alemão"},
	{6, "japao", "Japonês"},
	{7, "denmark", "Dinamarquês"},
	{8, "norway", "Norueguês"},
	{9, "sweden", "Sueco"},
	{10, "pt", "Português-PT"},
	{11, "arabian", "Árabe"},
	{12, "czech", "Checo"},
	{13, "china", "Chinês"},
	{14, "korean", "Coreano"},
	{15, "be", "Búlgaro"},
	{16, "it", "Italiano"},
	{17, "poland", "Polonês"},
}

// Languages 返回语言表副本。
func Languages() []Language { return append([]Language(nil), languages...) }

func LanguageByID(id int) (Language, bool) {
	for _, l := range languages {
		if l.ID == id {
			return l, true
		}
	}
	return Language{}, false
}

func LanguageByCode(code string) (Language, bool) {
	for _, l := range languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// LanguageByName 按站点显示名查找（不区分大小写）。
func LanguageByName(name string) (Language, bool) {
	name = strings.TrimSpace(name)
	for _, l := range languages {
		if strings.EqualFold(l.Name, name) {
			return l, true
		}
	}
	return Language{}, false
}
