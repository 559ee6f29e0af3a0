package legendastv

import (
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/provider"
)

func fixture(t *testing.T, name, rawURL string) *provider.Response {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("读取 fixture 失败：%v", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("url 无效：%v", err)
	}
	return &provider.Response{URL: u, Status: 200, Body: b, Page: 1}
}

func TestParseMovieList(t *testing.T) {
	resp := fixture(t, "busca_titulo.json", "http://legendas.tv/util/busca_titulo/predators")
	movies, err := Extractor{}.ParseMovieList(resp)
	if err != nil {
		t.Fatalf("ParseMovieList: %v", err)
	}
	// id 无效的条目被丢弃
	if len(movies) != 2 {
		t.Fatalf("期望 2 部影片，实际 %d：%+v", len(movies), movies)
	}

	m := movies[0]
	if m.ID != 28008 || m.Title != "Predators" || m.TitleBR != "Predadores" {
		t.Fatalf("第一部影片不符合预期：%+v", m)
	}
	if y, ok := m.Year.Get(); !ok || y != 2010 {
		t.Fatalf("期望年份 2010，实际 %+v", m.Year)
	}
	if m.Thumb != "http://legendas.tv/img/poster/predators.jpg" {
		t.Fatalf("thumb 不符合预期：%q", m.Thumb)
	}

	m = movies[1]
	if m.ID != 1234 || m.Title != "Predator" || m.TitleBR != "O Predador" {
		t.Fatalf("第二部影片不符合预期：%+v", m)
	}
	if m.Year.Valid || m.Thumb != "" {
		t.Fatalf("期望年份未知且无 thumb，实际 %+v", m)
	}
}

func TestParseMovieList_EmptyBody(t *testing.T) {
	u, _ := url.Parse("http://legendas.tv/util/busca_titulo/zz")
	for _, body := range []string{"", "null", "  "} {
		movies, err := Extractor{}.ParseMovieList(&provider.Response{URL: u, Body: []byte(body)})
		if err != nil || len(movies) != 0 {
			t.Fatalf("body=%q：期望空结果，实际 %v / %v", body, movies, err)
		}
	}
	if _, err := (Extractor{}).ParseMovieList(&provider.Response{URL: u, Body: []byte("<html>")}); err == nil {
		t.Fatalf("期望非 JSON 返回错误")
	}
}

func TestMovieJSONRoundTripKeepsUnknown(t *testing.T) {
	resp := fixture(t, "busca_titulo.json", "http://legendas.tv/util/busca_titulo/predators")
	movies, err := Extractor{}.ParseMovieList(resp)
	if err != nil {
		t.Fatalf("ParseMovieList: %v", err)
	}
	b, err := json.Marshal(movies)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back []domain.Movie
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back) != 2 || back[0].Year != movies[0].Year || back[1].Year.Valid {
		t.Fatalf("往返后不一致：%+v", back)
	}
}

func TestParseMovieDetail(t *testing.T) {
	resp := fixture(t, "movie_detail.html", "http://legendas.tv/index.php?opcao=buscarlegenda&filme=1802")
	m, err := Extractor{}.ParseMovieDetail(resp, 1802)
	if err != nil {
		t.Fatalf("ParseMovieDetail: %v", err)
	}
	if m.ID != 1802 || m.Title != "CSI: Miami - 1st Season" {
		t.Fatalf("标题不符合预期：%+v", m)
	}
	if y, ok := m.Year.Get(); !ok || y != 2002 {
		t.Fatalf("期望年份 2002，实际 %+v", m.Year)
	}
	if m.TitleBR != "CSI: Miami - 1ª Temporada" {
		t.Fatalf("TitleBR 不符合预期：%q", m.TitleBR)
	}
	if g, _ := m.Genre.Get(); g != "Seriado" {
		t.Fatalf("Genre 不符合预期：%+v", m.Genre)
	}
	if s, _ := m.Synopsis.Get(); s != "Mostra o trabalho da equipe de investigadores do sul da Flórida." {
		t.Fatalf("Synopsis 不符合预期：%q", s)
	}
	if m.Thumb != "http://legendas.tv/thumbs/1802-87eb3781511594f8ea4123201df05f36.jpg" {
		t.Fatalf("Thumb 不符合预期：%q", m.Thumb)
	}
}

func TestParseMovieDetail_LayoutChanged(t *testing.T) {
	u, _ := url.Parse("http://legendas.tv/")
	_, err := Extractor{}.ParseMovieDetail(&provider.Response{URL: u, Body: []byte("<html><p>manutenção</p></html>")}, 1)
	if err == nil {
		t.Fatalf("期望页面结构变化时返回错误")
	}
}

func TestParseSubtitleList(t *testing.T) {
	resp := fixture(t, "listing.html", "http://legendas.tv/util/carrega_legendas_busca/id_filme:28008/id_idioma:1")
	subs, err := Extractor{}.ParseSubtitleList(resp)
	if err != nil {
		t.Fatalf("ParseSubtitleList: %v", err)
	}
	// 缺少 hash 的条目被丢弃
	if len(subs) != 3 {
		t.Fatalf("期望 3 条字幕，实际 %d：%+v", len(subs), subs)
	}

	s := subs[0]
	if s.Hash != "9563521bbb4041f77223e04c1dc47d02" || s.Release != "Predators.2010.R5.LiNE.XviD-Noir" || s.Title != "Predators" {
		t.Fatalf("第一条身份字段不符合预期：%+v", s)
	}
	if !s.Highlight || s.Pack {
		t.Fatalf("期望 highlight 且非 pack：%+v", s)
	}
	if r, _ := s.Rating.Get(); r != 10 {
		t.Fatalf("期望评分 10，实际 %+v", s.Rating)
	}
	if d, _ := s.Downloads.Get(); d != 30655 {
		t.Fatalf("期望下载数 30655，实际 %+v", s.Downloads)
	}
	if s.UserName != "inSanos" {
		t.Fatalf("期望上传者 inSanos，实际 %q", s.UserName)
	}
	if l, _ := s.Language.Get(); l != "brazil" {
		t.Fatalf("期望语言 brazil，实际 %+v", s.Language)
	}
	want := time.Date(2010, 9, 26, 12, 2, 0, 0, time.UTC)
	if d, ok := s.Date.Get(); !ok || !d.Equal(want) {
		t.Fatalf("期望日期 %v，实际 %+v", want, s.Date)
	}
	if s.Flag != "http://legendas.tv/img/idioma/icon_brazil.png" {
		t.Fatalf("flag 不符合预期：%q", s.Flag)
	}

	s = subs[1]
	if !s.Pack || s.Release != "Predators.2010.DVDRip.XviD-Pack" {
		t.Fatalf("期望 (p) 前缀被去掉并标记 pack：%+v", s)
	}
	if s.Rating.Valid {
		t.Fatalf("期望评分未知，实际 %+v", s.Rating)
	}
	if l, _ := s.Language.Get(); l != "usa" {
		t.Fatalf("期望语言 usa，实际 %+v", s.Language)
	}

	// 非身份字段解析失败时记录保留，字段为 unknown
	s = subs[2]
	if s.Hash != "d00d" || s.Language.Valid || s.Date.Valid {
		t.Fatalf("期望语言与日期未知但记录保留：%+v", s)
	}
	if err := s.Rankable(); !errors.Is(err, domain.ErrRecordInvalid) {
		t.Fatalf("期望记录保留但无法参与排序，实际 %v", err)
	}
}

func TestNextPage(t *testing.T) {
	resp := fixture(t, "listing.html", "http://legendas.tv/util/carrega_legendas_busca/id_filme:28008")
	href, ok := Extractor{}.NextPage(resp)
	if !ok || href != "/util/carrega_legendas_busca/id_filme:28008/id_idioma:1/page:2" {
		t.Fatalf("下一页不符合预期：%q %v", href, ok)
	}

	u, _ := url.Parse("http://legendas.tv/")
	if _, ok := (Extractor{}).NextPage(&provider.Response{URL: u, Body: []byte(`<a class="load_more" href="#">x</a>`)}); ok {
		t.Fatalf("期望 # 不算下一页")
	}
}

func TestParseSubtitleDetail(t *testing.T) {
	resp := fixture(t, "subtitle_detail.html", "http://legendas.tv/info.php?d=9563521bbb4041f77223e04c1dc47d02")
	s, err := Extractor{}.ParseSubtitleDetail(resp, "9563521bbb4041f77223e04c1dc47d02")
	if err != nil {
		t.Fatalf("ParseSubtitleDetail: %v", err)
	}
	if s.Release != "Predators.2010.R5.LiNE.XviD-Noir" || s.Title != "Predators" || s.UserName != "inSanos" {
		t.Fatalf("基础字段不符合预期：%+v", s)
	}
	if l, _ := s.Language.Get(); l != "brazil" {
		t.Fatalf("期望语言 brazil，实际 %+v", s.Language)
	}
	if r, _ := s.Rating.Get(); r != 10 {
		t.Fatalf("期望评分 10，实际 %+v", s.Rating)
	}
	if d, _ := s.Downloads.Get(); d != 30655 {
		t.Fatalf("期望下载数 30655，实际 %+v", s.Downloads)
	}
	if d, ok := s.Date.Get(); !ok || !d.Equal(time.Date(2010, 9, 26, 12, 2, 0, 0, time.UTC)) {
		t.Fatalf("日期不符合预期：%+v", s.Date)
	}

	x := s.Extra
	if x == nil {
		t.Fatalf("期望 Extra 非空")
	}
	checks := map[string][2]int{
		"fps":      {optInt(x.FPS), 23},
		"cds":      {optInt(x.CDs), 1},
		"size":     {optInt(x.SizeMB), 1370},
		"comments": {optInt(x.Comments), 160},
		"votes":    {optInt(x.Votes), 42},
		"site_id":  {optInt(x.SiteID), 123456},
		"year":     {optInt(x.Year), 2010},
	}
	for name, c := range checks {
		if c[0] != c[1] {
			t.Fatalf("%s：期望 %d，实际 %d", name, c[1], c[0])
		}
	}
	if x.TitleBR != "Predadores" || x.IMDbURL != "http://www.imdb.com/title/tt1424381/" {
		t.Fatalf("Extra 文本字段不符合预期：%+v", x)
	}
	if !strings.Contains(x.Synopsis, "planeta alienígena") {
		t.Fatalf("Synopsis 不符合预期：%q", x.Synopsis)
	}
	if !strings.Contains(x.Description, "<b>R5</b>") {
		t.Fatalf("Description 应保留 HTML：%q", x.Description)
	}
}

func TestParseSubtitleDetail_MissingReleaseIsInvalid(t *testing.T) {
	u, _ := url.Parse("http://legendas.tv/info.php?d=abc")
	body := `<table><tr><td>Predators (2010)</td></tr><tr><td><strong>Idioma:</strong></td><td>Inglês</td></tr></table>`
	_, err := Extractor{}.ParseSubtitleDetail(&provider.Response{URL: u, Body: []byte(body)}, "abc")
	if !errors.Is(err, domain.ErrRecordInvalid) {
		t.Fatalf("期望 ErrRecordInvalid，实际 %v", err)
	}
}

func optInt(o domain.Opt[int]) int { return o.Or(-1) }
