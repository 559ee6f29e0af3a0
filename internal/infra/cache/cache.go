// Package cache 是会话下载资源（海报等）的本地内容缓存。
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gofrs/flock"

	"github.com/John-Robertt/legendastv/internal/infra/fsx"
)

// ErrLocked 表示缓存目录正被另一个 run 占用。
var ErrLocked = errors.New("cache: 另一个实例正在运行")

// Store 提供 <root>/assets/ 下的文件缓存读写。
//
// 约束：
// - 文件名由 URL 唯一决定：同一 URL 多次写入落在同一路径（幂等）
// - 写入使用 fsx.WriteAtomic（临时文件 + rename），并发读不会看到半写文件
type Store struct {
	Root string
}

func New(root string) Store {
	return Store{Root: filepath.Clean(strings.TrimSpace(root))}
}

var unsafeNameRE = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// AssetPath 返回 rawURL 对应的缓存文件绝对路径：<root>/assets/<sha1 前 10 位>-<basename>。
func (s Store) AssetPath(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("缓存 URL 必须是绝对地址：%q", rawURL)
	}
	sum := sha1.Sum([]byte(u.String()))
	base := unsafeNameRE.ReplaceAllString(path.Base(u.Path), "_")
	if base == "" || base == "." || base == "_" {
		base = "asset"
	}
	return filepath.Join(s.Root, "assets", hex.EncodeToString(sum[:])[:10]+"-"+base), nil
}

// Lookup 判断 rawURL 是否已缓存。
func (s Store) Lookup(rawURL string) (string, bool, error) {
	p, err := s.AssetPath(rawURL)
	if err != nil {
		return "", false, err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return p, false, nil
		}
		return "", false, err
	}
	// 空文件视为未命中（上次写入异常中断）。
	return p, fi.Mode().IsRegular() && fi.Size() > 0, nil
}

// Put 把 r 写入 rawURL 对应的缓存文件（覆盖）。
func (s Store) Put(rawURL string, r io.Reader) (string, error) {
	p, err := s.AssetPath(rawURL)
	if err != nil {
		return "", err
	}
	if _, err := fsx.WriteAtomic(filepath.Dir(p), filepath.Base(p), r, fsx.Replace); err != nil {
		return "", err
	}
	return p, nil
}

// Lock 以非阻塞方式独占缓存目录；已被占用时返回 ErrLocked。
// 返回的 unlock 必须调用。
func (s Store) Lock() (func() error, error) {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(s.Root, ".lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return fl.Unlock, nil
}
