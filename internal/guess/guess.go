// Package guess 从视频文件名/目录名推断搜索用的标题、年份与 release。
package guess

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/match"
)

// 常见编码/来源标签；按子串、不区分大小写移除。
var tagREs = func() []*regexp.Regexp {
	tags := []string{
		"1080p", "720p", "480p", "hdtv", "h264", "x264", "h265", "x265", "dts", "aac", "ac3",
		"bluray", "bdrip", "brrip", "dvdrip", "dvd", "xvid", "mp4", "itunes",
		"web dl", "blu ray",
	}
	out := make([]*regexp.Regexp, 0, len(tags))
	for _, t := range tags {
		out = append(out, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(t)))
	}
	return out
}()

var (
	episodeRE = regexp.MustCompile(`(?i)S(\d\d?)E(\d\d?)`)
	spacesRE  = regexp.MustCompile(` +`)
)

// Years 返回 text 中所有独立的 19xx/20xx 年份（前后都不是数字）。
func Years(text string) []string {
	var out []string
	rs := []rune(text)
	for i := 0; i < len(rs); {
		if !unicode.IsDigit(rs[i]) || rs[i] > unicode.MaxASCII {
			i++
			continue
		}
		j := i
		for j < len(rs) && rs[j] <= unicode.MaxASCII && unicode.IsDigit(rs[j]) {
			j++
		}
		if run := string(rs[i:j]); len(run) == 4 && (strings.HasPrefix(run, "19") || strings.HasPrefix(run, "20")) {
			out = append(out, run)
		}
		i = j
	}
	return out
}

// Info 从一段文本推断 title/year/release。
//
// 约束：
// - 多个年份时取最后一个
// - release 是 Clean 后的整段文本
// - title 取年份之前的部分；文本以年份开头时取年份之后的部分
func Info(text string) domain.VideoInfo {
	text = strings.TrimSpace(text)
	release := match.Clean(text)

	info := domain.VideoInfo{Release: release, Kind: domain.MediaMovie}
	title := release
	if ys := Years(text); len(ys) > 0 {
		year := ys[len(ys)-1]
		if n, err := strconv.Atoi(year); err == nil {
			info.Year = domain.Some(n)
		}
		parts := strings.SplitN(release, year, 2)
		if strings.HasPrefix(release, year) && len(parts) == 2 {
			title = parts[1]
		} else {
			title = parts[0]
		}
	}
	for _, re := range tagREs {
		title = re.ReplaceAllString(title, "")
	}
	info.Title = strings.TrimSpace(spacesRE.ReplaceAllString(title, " "))
	return info
}

// Episode 在 name 中查找 SxxEyy。
func Episode(name string) (season, episode int, ok bool) {
	m := episodeRE.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, false
	}
	season, _ = strconv.Atoi(m[1])
	episode, _ = strconv.Atoi(m[2])
	return season, episode, true
}

// SearchSource 决定用目录名还是文件名作为推断来源：
// 两者足够相似（> threshold）或目录名更长时用目录名。
func SearchSource(dirName, fileName string, threshold float64) string {
	if match.Similarity(dirName, fileName, true) > threshold ||
		len([]rune(dirName)) > len([]rune(fileName)) {
		return dirName
	}
	return fileName
}

// Video 对一个视频文件做完整推断：选来源、推断信息、识别剧集。
// 剧集编号总是从文件名识别。
func Video(v domain.VideoFile, threshold float64) domain.VideoInfo {
	dirName := filepath.Base(filepath.Dir(v.AbsPath))
	info := Info(SearchSource(dirName, v.Base, threshold))

	if s, e, ok := Episode(v.Base); ok {
		info.Kind = domain.MediaEpisode
		info.Season, info.Episode = s, e
		if loc := episodeRE.FindStringIndex(info.Title); loc != nil {
			info.Title = strings.TrimSpace(info.Title[:loc[0]])
		}
	}
	return info
}

// SearchTitle 返回提交给站点的标题：去掉撇号；剧集追加 "<序数> Season"。
func SearchTitle(info domain.VideoInfo) string {
	title := strings.ReplaceAll(info.Title, "'", "")
	if info.Kind == domain.MediaEpisode {
		title = fmt.Sprintf("%s %s Season", title, Ordinal(info.Season))
	}
	return title
}

// Ordinal 返回英文序数："1st"、"2nd"、"3rd"、"4th"。
func Ordinal(n int) string {
	switch n {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	}
	return strconv.Itoa(n) + "th"
}

// SameEpisode 判断字幕 release 是否包含给定的剧集编号。
func SameEpisode(release string, episode int) bool {
	_, e, ok := Episode(release)
	return ok && e == episode
}
