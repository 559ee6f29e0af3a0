// Package scan 找出需要字幕的视频文件。
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/legendastv/internal/domain"
)

// SubtitleExt 是输出字幕的扩展名。
const SubtitleExt = ".srt"

var videoExts = map[string]bool{
	".avi": true, ".m4v": true, ".mkv": true, ".mp4": true, ".mpg": true, ".mpeg": true,
	".ogv": true, ".rmvb": true, ".wmv": true, ".ts": true, ".divx": true, ".m2ts": true,
	".mpv": true, ".ogm": true, ".wm": true, ".wx": true, ".xvid": true,
}

// IsVideo 按扩展名（不区分大小写）判断是否视频文件。
func IsVideo(name string) bool { return videoExts[strings.ToLower(filepath.Ext(name))] }

// ScanVideos 扫描 root 下的视频文件，并应用目录排除规则。
//
// 规则（硬约束）：
// - 隐藏目录（以 . 开头）不进入
// - excludeDirs 均视为相对 root 的路径（若是绝对路径，则按绝对路径处理）
// - 结果按 RelPath 排序
//
// 注意：扫描阶段只做 stat（DirEntry.Info），不读文件内容。
func ScanVideos(root string, excludeDirs []string) ([]domain.VideoFile, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	excluded := buildExcluded(root, excludeDirs)

	files := make([]domain.VideoFile, 0, 64)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && (strings.HasPrefix(d.Name(), ".") || isExcluded(path, excluded)) {
				return filepath.SkipDir
			}
			return nil
		}
		if isExcluded(path, excluded) || !IsVideo(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, newVideoFile(path, rel, info))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Stat 把单个路径描述为 VideoFile（用于显式指定文件的场景）。
func Stat(path string) (domain.VideoFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.VideoFile{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return domain.VideoFile{}, err
	}
	if info.IsDir() {
		return domain.VideoFile{}, fmt.Errorf("%s 是目录", abs)
	}
	return newVideoFile(abs, filepath.Base(abs), info), nil
}

func newVideoFile(abs, rel string, info fs.FileInfo) domain.VideoFile {
	name := filepath.Base(abs)
	ext := filepath.Ext(name)
	return domain.VideoFile{
		AbsPath: abs,
		RelPath: rel,
		Dir:     filepath.Dir(abs),
		Base:    strings.TrimSuffix(name, ext),
		Ext:     strings.ToLower(ext),
		Size:    info.Size(),
		ModUnix: info.ModTime().Unix(),
	}
}

// SubtitlePath 返回视频对应的字幕路径：<dir>/<base>.srt。
func SubtitlePath(v domain.VideoFile) string {
	return filepath.Join(v.Dir, v.Base+SubtitleExt)
}

// HasSubtitle 判断视频旁是否已有字幕。
func HasSubtitle(v domain.VideoFile) bool {
	_, err := os.Lstat(SubtitlePath(v))
	return err == nil
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, len(excludeDirs))
	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}
	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
