package legendastv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
	"github.com/John-Robertt/legendastv/internal/provider"
)

// Extractor 把一次响应解析为结构化记录，自身不访问网络。
//
// 约束：
// - 找不到的非身份字段置为 unknown 并记录 anomaly，不让整条记录失败
// - 身份字段（影片 id、字幕 hash/release）缺失时整条记录丢弃并记日志
// - 数值字段强制转 int；转换失败只让该字段 unknown
type Extractor struct {
	Log logrus.FieldLogger
}

var (
	titleYearRE  = regexp.MustCompile(`^(.+?)\s*\(\s*(\d{4})\s*\)$`)
	dataLineRE   = regexp.MustCompile(`(?i)(\d+)\s+downloads?,\s*nota\s*(\d*)`)
	dateRE       = regexp.MustCompile(`\d{2}/\d{2}/\d{4} - \d{2}:\d{2}`)
	flagLangRE   = regexp.MustCompile(`idioma/\w+_(\w+)\.`)
	moreSuffixRE = regexp.MustCompile(`\s*\(mais\)\s*$`)
)

type titleHit struct {
	Filme struct {
		ID     flexString `json:"id_filme"`
		Nome   string     `json:"dsc_nome"`
		NomeBR string     `json:"dsc_nome_br"`
		Imagem string     `json:"dsc_imagen"`
	} `json:"Filme"`
}

// flexString 同时接受 JSON 字符串与数字。
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

// ParseMovieList 解析标题搜索接口的 JSON 数组。
func (x Extractor) ParseMovieList(resp *provider.Response) ([]domain.Movie, error) {
	log := logx.OrDiscard(x.Log)
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	var hits []titleHit
	if err := json.Unmarshal(body, &hits); err != nil {
		return nil, fmt.Errorf("标题搜索结果不是预期的 JSON：%w", err)
	}

	out := make([]domain.Movie, 0, len(hits))
	for i, h := range hits {
		id, err := strconv.Atoi(strings.TrimSpace(string(h.Filme.ID)))
		if err != nil || id <= 0 {
			log.WithFields(logrus.Fields{"index": i, "field": "id_filme", "raw": h.Filme.ID}).
				Warn(domain.ErrRecordInvalid.Error() + "：影片 id 无效，已丢弃")
			continue
		}
		m := domain.Movie{ID: id, TitleBR: clean(h.Filme.NomeBR)}
		m.Title, m.Year = splitTitleYear(clean(h.Filme.Nome))
		if img := strings.TrimSpace(h.Filme.Imagem); img != "" {
			m.Thumb = resolveURL(resp.URL, posterPath+img)
		}
		out = append(out, m)
	}
	return out, nil
}

// ParseMovieDetail 解析影片详情页（取最后一个 table.filmresult）。
func (x Extractor) ParseMovieDetail(resp *provider.Response, id int) (domain.Movie, error) {
	log := logx.OrDiscard(x.Log).WithField("movie_id", id)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return domain.Movie{}, err
	}
	tables := doc.Find("table.filmresult")
	if tables.Length() == 0 {
		return domain.Movie{}, errors.New("未找到影片详情表（疑似页面结构变化）")
	}
	t := tables.Last()

	m := domain.Movie{ID: id}
	t.Find("td").Each(func(_ int, td *goquery.Selection) {
		label := clean(td.Find("strong").First().Text())
		if label == "" {
			return
		}
		value := strings.TrimSpace(strings.TrimPrefix(clean(td.Text()), label))
		switch label {
		case "Título:":
			title, year := splitTitleYear(value)
			m.Title, m.Year = title, year
		case "Nacional:":
			m.TitleBR = value
		case "Gênero:":
			if value != "" {
				m.Genre = domain.Some(value)
			}
		case "Sinopse:":
			if v := moreSuffixRE.ReplaceAllString(value, ""); v != "" {
				m.Synopsis = domain.Some(v)
			}
		}
	})
	if src, ok := t.Find("img").First().Attr("src"); ok {
		m.Thumb = resolveURL(resp.URL, src)
	}

	if m.Title == "" {
		log.WithField("field", "title").Warn("影片详情缺少标题")
	}
	if !m.Year.Valid {
		log.WithField("field", "year").Debug("影片详情缺少年份")
	}
	return m, nil
}

// ParseSubtitleList 解析字幕列表片段中的每个条目（article > div）。
func (x Extractor) ParseSubtitleList(resp *provider.Response) ([]domain.Subtitle, error) {
	log := logx.OrDiscard(x.Log).WithField("page", resp.Page)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, err
	}

	var out []domain.Subtitle
	doc.Find("article > div").Each(func(i int, e *goquery.Selection) {
		sub, err := x.parseListEntry(resp.URL, e, log)
		if err != nil {
			log.WithField("index", i).Warnf("丢弃字幕条目：%v", err)
			return
		}
		out = append(out, sub)
	})
	return out, nil
}

func (x Extractor) parseListEntry(base *url.URL, e *goquery.Selection, log logrus.FieldLogger) (domain.Subtitle, error) {
	a := e.Find("a").First()
	href, _ := a.Attr("href")
	parts := strings.Split(strings.Trim(pathOf(href), "/"), "/")
	if len(parts) < 2 || parts[0] != "download" || parts[1] == "" {
		return domain.Subtitle{}, fmt.Errorf("%w：缺少 hash（href=%q）", domain.ErrRecordInvalid, href)
	}
	sub := domain.Subtitle{Hash: parts[1], Release: clean(a.Text())}
	if sub.Release == "" {
		return domain.Subtitle{}, fmt.Errorf("%w：hash=%s 缺少 release", domain.ErrRecordInvalid, sub.Hash)
	}
	log = log.WithField("hash", sub.Hash)
	if len(parts) >= 3 {
		if t, err := url.PathUnescape(parts[2]); err == nil {
			sub.Title = t
		} else {
			sub.Title = parts[2]
		}
	}

	classes := strings.Fields(e.AttrOr("class", ""))
	for _, c := range classes {
		switch c {
		case "pack":
			sub.Pack = true
		case "destaque":
			sub.Highlight = true
		}
	}
	if strings.HasPrefix(sub.Release, "(p)") {
		sub.Release = strings.TrimSpace(sub.Release[len("(p)"):])
		sub.Pack = true
	}

	data := e.Find("p.data").First()
	line := clean(data.Text())
	if m := dataLineRE.FindStringSubmatch(line); m != nil {
		sub.Downloads = intField(m[1], "downloads", log)
		if m[2] != "" {
			sub.Rating = intField(m[2], "rating", log)
		}
	} else {
		log.WithFields(logrus.Fields{"field": "downloads", "raw": line}).Warn("无法解析下载数/评分")
	}
	sub.UserName = clean(data.Find("a").First().Text())
	sub.Date = dateField(dateRE.FindString(line), log)

	img := e.ChildrenFiltered("img").First()
	if img.Length() == 0 {
		img = e.Find("img").First()
	}
	if src, ok := img.Attr("src"); ok {
		sub.Flag = resolveURL(base, src)
		sub.Language = languageFromFlag(src, log)
	} else {
		log.WithField("field", "language").Warn("缺少语言旗帜")
	}
	return sub, nil
}

// ParseSubtitleDetail 解析字幕详情页（info.php?d=<hash>）。
func (x Extractor) ParseSubtitleDetail(resp *provider.Response, hash string) (domain.Subtitle, error) {
	log := logx.OrDiscard(x.Log).WithField("hash", hash)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return domain.Subtitle{}, err
	}

	extra := &domain.SubtitleExtra{}
	sub := domain.Subtitle{Hash: hash, Extra: extra}

	if href, ok := doc.Find("a.titulofilme").First().Attr("href"); ok {
		extra.IMDbURL = strings.TrimSpace(href)
	}
	var syn []string
	doc.Find("span.sinopse").Each(func(_ int, s *goquery.Selection) {
		if t := clean(s.Text()); t != "" {
			syn = append(syn, t)
		}
	})
	extra.Synopsis = strings.Join(syn, " ")
	if d := doc.Find("div#descricao").First(); d.Length() > 0 {
		if h, err := d.Html(); err == nil {
			extra.Description = strings.TrimSpace(h)
		}
	}

	var data []string
	doc.Find("table").Not("table table").Each(func(_ int, t *goquery.Selection) {
		for _, n := range t.Nodes {
			data = appendTexts(data, n)
		}
	})
	if len(data) == 0 {
		return domain.Subtitle{}, errors.New("未找到字幕详情表（疑似页面结构变化）")
	}

	title, year := splitTitleYear(data[0])
	extra.Year = year
	sub.Title = title
	if v := after(data, "Título Original:"); v != "" {
		sub.Title = v
	}
	extra.TitleBR = after(data, "Título Nacional:")
	sub.Release = after(data, "Rls:")
	if sub.Release == "" {
		return domain.Subtitle{}, fmt.Errorf("%w：hash=%s 缺少 release", domain.ErrRecordInvalid, hash)
	}

	if raw := after(data, "Idioma:"); raw != "" {
		extra.LanguageRaw = domain.Some(raw)
		if l, ok := domain.LanguageByName(raw); ok {
			sub.Language = domain.Some(l.Code)
		} else {
			log.WithFields(logrus.Fields{"field": "language", "raw": raw}).Warn("未知语言")
		}
	}
	extra.FPS = optIntField(after(data, "FPS:"), "fps", log)
	extra.CDs = optIntField(after(data, "CDs:"), "cds", log)
	extra.SizeMB = optIntField(strings.TrimSuffix(after(data, "Tamanho:"), "MB"), "size", log)
	sub.Downloads = optIntField(after(data, "Downloads:"), "downloads", log)
	extra.Comments = optIntField(after(data, "Comentários:"), "comments", log)
	rating, _, _ := strings.Cut(infoFromList(data, "Nota:"), "/")
	sub.Rating = optIntField(rating, "rating", log)
	extra.Votes = optIntField(infoFromList(data, "Votos:"), "votes", log)
	sub.UserName = infoFromList(data, "Enviada por:")
	sub.Date = dateField(infoFromList(data, "Em:"), log)
	extra.SiteID = optIntField(strings.TrimRight(infoFromList(data, "idl ="), ";"), "id", log)
	return sub, nil
}

// NextPage 返回 “load more” 链接。
func (x Extractor) NextPage(resp *provider.Response) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return "", false
	}
	href, ok := doc.Find("a.load_more").First().Attr("href")
	href = strings.TrimSpace(href)
	return href, ok && href != "" && href != "#"
}

func appendTexts(dst []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		if t := clean(n.Data); t != "" {
			dst = append(dst, t)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		dst = appendTexts(dst, c)
	}
	return dst
}

// after 返回紧跟在 label 之后的文本节点。
func after(data []string, label string) string {
	for i, d := range data {
		if d == label && i+1 < len(data) {
			return data[i+1]
		}
	}
	return ""
}

// infoFromList 处理 “label 值” 同在一个文本节点的情况。
func infoFromList(data []string, label string) string {
	var b strings.Builder
	for _, d := range data {
		if strings.HasPrefix(d, label) {
			b.WriteString(d)
		}
	}
	parts := strings.Split(b.String(), label)
	return strings.TrimSpace(parts[len(parts)-1])
}

func splitTitleYear(s string) (string, domain.Opt[int]) {
	m := titleYearRE.FindStringSubmatch(s)
	if m == nil {
		return s, domain.Opt[int]{}
	}
	y, err := strconv.Atoi(m[2])
	if err != nil {
		return s, domain.Opt[int]{}
	}
	return strings.TrimSpace(m[1]), domain.Some(y)
}

func languageFromFlag(src string, log logrus.FieldLogger) domain.Opt[string] {
	m := flagLangRE.FindStringSubmatch(src)
	if m == nil {
		log.WithFields(logrus.Fields{"field": "language", "raw": src}).Warn("无法从旗帜解析语言")
		return domain.Opt[string]{}
	}
	if _, ok := domain.LanguageByCode(m[1]); !ok {
		log.WithFields(logrus.Fields{"field": "language", "raw": m[1]}).Warn("未知语言代码")
		return domain.Opt[string]{}
	}
	return domain.Some(m[1])
}

func dateField(raw string, log logrus.FieldLogger) domain.Opt[time.Time] {
	raw = strings.TrimSpace(raw)
	t, err := time.ParseInLocation(domain.DateLayout, raw, time.UTC)
	if err != nil {
		log.WithFields(logrus.Fields{"field": "date", "raw": raw}).Warn("无法解析上传时间")
		return domain.Opt[time.Time]{}
	}
	return domain.Some(t)
}

func intField(raw, field string, log logrus.FieldLogger) domain.Opt[int] {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		log.WithFields(logrus.Fields{"field": field, "raw": raw}).Warn("数值字段无法解析")
		return domain.Opt[int]{}
	}
	return domain.Some(n)
}

// optIntField 取开头的连续数字（如 "23.976" -> 23）；空串视为缺失。
func optIntField(raw, field string, log logrus.FieldLogger) domain.Opt[int] {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Opt[int]{}
	}
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	return intField(raw[:end], field, log)
}

func clean(s string) string { return norm.NFC.String(strings.Join(strings.Fields(s), " ")) }

func pathOf(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return u.EscapedPath()
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "http:" + href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil || ru.IsAbs() {
		return ru.String()
	}
	return base.ResolveReference(ru).String()
}
