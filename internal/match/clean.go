package match

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	leadingTagRE = regexp.MustCompile(`^\[.+?\]`)
	punctRE      = regexp.MustCompile(`[\]\[}{)(.,:_-]`)
	spacesRE     = regexp.MustCompile(`\s+`)
)

// Clean 去掉开头的 [标签]，把括号与标点替换为空格，并合并空白。
//
//	"[HD] Predators.(2010)_R5" -> "Predators 2010 R5"
func Clean(s string) string {
	s = leadingTagRE.ReplaceAllString(s, "")
	s = punctRE.ReplaceAllString(s, " ")
	return strings.TrimSpace(spacesRE.ReplaceAllString(s, " "))
}

// Key 是名称的比较键：Clean 后转小写。
func Key(name string) string {
	return strings.ToLower(Clean(name))
}

// FileKey 是文件的比较键：去掉目录与扩展名后再取 Key。
func FileKey(path string) string {
	base := filepath.Base(path)
	return Key(strings.TrimSuffix(base, filepath.Ext(base)))
}
