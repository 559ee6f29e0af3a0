// Package legendastv 封装 legendas.tv 的 URL 语法与页面解析。
//
// 站点页面形状的全部知识都在本包内；上层只依赖 domain.Movie / domain.Subtitle。
package legendastv

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/John-Robertt/legendastv/internal/domain"
)

const DefaultBaseURL = "http://legendas.tv/"

const (
	loginPath       = "/login"
	titleSearchPath = "/util/busca_titulo/"
	listingPath     = "/util/carrega_legendas_busca"
	downloadPath    = "/downloadarquivo/"
	posterPath      = "/img/poster/"
)

// quote 等价于 quote_plus(safe="")：空格变 '+'，'/' 也转义。
func quote(text string) string { return url.QueryEscape(strings.TrimSpace(text)) }

func loginForm(login, password string) url.Values {
	return url.Values{
		"data[User][username]": {login},
		"data[User][password]": {password},
	}
}

// searchForm 是站点搜索表单；列表第一页随请求提交。
func searchForm(text string, kind domain.SearchKind, lang int) url.Values {
	if kind == 0 {
		kind = domain.KindRelease
	}
	if lang == 0 {
		lang = domain.DefaultLanguage
	}
	return url.Values{
		"txtLegenda":   {text},
		"selTipo":      {strconv.Itoa(int(kind))},
		"int_idioma":   {strconv.Itoa(lang)},
		"btn_buscar.x": {"0"},
		"btn_buscar.y": {"0"},
	}
}

func movieSearchPath(text string) string { return titleSearchPath + quote(text) }

func movieDetailPath(id int) string {
	return "index.php?opcao=buscarlegenda&filme=" + strconv.Itoa(id)
}

// listingURL 生成字幕列表第一页的路径。
func listingURL(q domain.SearchQuery) string {
	var b strings.Builder
	b.WriteString(listingPath)
	if q.MovieID > 0 {
		b.WriteString("/id_filme:" + strconv.Itoa(q.MovieID))
	} else {
		b.WriteString("/termo:" + quote(q.Text))
	}
	if q.Filter != domain.FilterAll {
		b.WriteString("/sel_tipo:" + string(q.Filter))
	}
	if q.Language > 0 {
		b.WriteString("/id_idioma:" + strconv.Itoa(q.Language))
	}
	return b.String()
}

func subtitleDetailPath(hash string) string { return "info.php?d=" + url.QueryEscape(hash) }

func subtitleDownloadPath(hash string) string { return downloadPath + url.PathEscape(hash) }
