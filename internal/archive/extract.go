package archive

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/infra/fsx"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
)

// Extractor 解压字幕包；零值可用（日志丢弃）。
type Extractor struct {
	Log logrus.FieldLogger
}

// Extract 把 archivePath 中扩展名在 exts 内的条目平铺解压到 destDir，返回解压出的路径（按包内顺序）。
//
// 约束：
// - 格式由内容嗅探决定，无法识别返回 ErrUnsupported
// - exts 比较不区分大小写，可带或不带 '.'；为空表示全部
// - 目录条目与零长度条目跳过
// - 只保留 basename；同名条目后者覆盖前者（记 warn）
// - keep=false 时删除压缩包；删除失败只记日志
func (x *Extractor) Extract(archivePath, destDir string, exts []string, keep bool) ([]string, error) {
	log := logx.OrDiscard(x.Log).WithField("path", archivePath)

	a, err := Open(archivePath)
	if err != nil {
		return nil, err
	}
	entries, err := a.Entries()
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("读取压缩包目录失败：%w", err)
	}
	log.WithField("format", a.Format()).Debugf("压缩包内 %d 个条目", len(entries))

	want := normalizeExts(exts)
	var (
		out  []string
		seen = map[string]string{}
	)
	for _, e := range entries {
		if e.Dir || e.Size == 0 {
			continue
		}
		base := path.Base(e.Name)
		if base == "." || base == "/" || base == "" {
			continue
		}
		if len(want) > 0 {
			if _, ok := want[strings.ToLower(filepath.Ext(base))]; !ok {
				continue
			}
		}

		dst := filepath.Join(destDir, base)
		if prev, dup := seen[base]; dup {
			log.WithFields(logrus.Fields{"entry": e.Name, "previous": prev}).Warn("条目 basename 冲突，后者覆盖前者")
		}
		if err := x.writeEntry(a, e.Name, destDir, base); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("解压 %q 失败：%w", e.Name, err)
		}
		if _, dup := seen[base]; !dup {
			out = append(out, dst)
		}
		seen[base] = e.Name
	}
	if err := a.Close(); err != nil {
		log.WithError(err).Warn("关闭压缩包失败")
	}

	if !keep {
		if err := os.Remove(archivePath); err != nil {
			log.WithError(err).Error("删除压缩包失败")
		}
	}
	log.Infof("解压出 %d 个文件到 %s", len(out), destDir)
	return out, nil
}

func (x *Extractor) writeEntry(a Archive, name, dir, base string) error {
	rc, err := a.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = fsx.WriteAtomic(dir, base, rc, fsx.Replace)
	return err
}

func normalizeExts(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out[e] = struct{}{}
	}
	return out
}
