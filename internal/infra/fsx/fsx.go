// Package fsx 提供下载、解压与字幕落盘所需的文件系统原语。
package fsx

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// 通过可替换的函数指针，让测试能稳定模拟 EXDEV 等错误。
var renameFunc = os.Rename

// PathTypeConflictError 表示目标路径类型冲突（例如期望文件但实际是目录）。
type PathTypeConflictError struct {
	Path string
	Want string
	Got  string
}

func (e *PathTypeConflictError) Error() string {
	return fmt.Sprintf("目标路径类型冲突：%q（期望 %s，实际 %s）", e.Path, e.Want, e.Got)
}

func IsPathTypeConflict(err error) bool {
	var e *PathTypeConflictError
	return errors.As(err, &e)
}

// CrossDeviceError 表示跨盘（EXDEV）导致的 rename 失败。
// 字幕总是解压到视频所在目录，因此不做 copy+delete。
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("跨盘移动失败（EXDEV）：%q -> %q：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// Rename 封装 os.Rename，并把 EXDEV 显式标记为 CrossDeviceError。
func Rename(src, dst string) error {
	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

// Mode 决定目标已存在时的行为。
type Mode int

const (
	// Replace 覆盖同名文件（缓存、解压条目）。
	Replace Mode = iota
	// NoOverwrite 目标已存在时返回 os.ErrExist（用户目录下的字幕）。
	NoOverwrite
)

// WriteAtomic 把 r 的全部内容原子写入 dir/name（同目录临时文件 + rename），返回写入字节数。
//
// 约束：
// - dir 不存在时自动创建
// - 失败时不留下临时文件，也不留下半写的目标文件
func WriteAtomic(dir, name string, r io.Reader, mode Mode) (int64, error) {
	dst := filepath.Join(filepath.Clean(dir), name)
	if mode == NoOverwrite {
		if err := checkFree(dst); err != nil {
			return 0, err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, err
	}

	// 前缀带 '.'，避免在视频目录里显眼。
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		return n, err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return n, err
	}
	if err := tmp.Sync(); err != nil {
		return n, err
	}
	if err := tmp.Close(); err != nil {
		return n, err
	}

	// NoOverwrite 下再检查一次，缩小与其它进程的竞争窗口。
	if mode == NoOverwrite {
		if err := checkFree(dst); err != nil {
			return n, err
		}
	}
	if err := Rename(tmpName, dst); err != nil {
		return n, err
	}
	_ = syncDirBestEffort(dir)
	return n, nil
}

// WriteFileAtomic 是 WriteAtomic(Replace) 的字节切片版本。
func WriteFileAtomic(dir, name string, data []byte) error {
	_, err := WriteAtomic(dir, name, bytes.NewReader(data), Replace)
	return err
}

// MoveNoOverwrite 把 src 移动到 dst；dst 已存在时返回 os.ErrExist 且 src 保持不变。
func MoveNoOverwrite(src, dst string) error {
	if err := checkFree(dst); err != nil {
		return err
	}
	return Rename(src, dst)
}

// UniqueName 返回 dir 下一个尚未存在的文件名：name 本身，或 "base (n).ext"。
func UniqueName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	cand := name
	for i := 1; ; i++ {
		_, err := os.Lstat(filepath.Join(dir, cand))
		if os.IsNotExist(err) {
			return cand, nil
		}
		if err != nil {
			return "", err
		}
		if i > 9999 {
			return "", fmt.Errorf("无法在 %q 下为 %q 找到可用文件名", dir, name)
		}
		cand = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}
}

func checkFree(dst string) error {
	fi, err := os.Lstat(dst)
	if err == nil {
		if fi.IsDir() {
			return &PathTypeConflictError{Path: dst, Want: "file", Got: "dir"}
		}
		return os.ErrExist
	}
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func syncDirBestEffort(dir string) error {
	// Windows 上目录 Sync 的语义不稳定，直接跳过。
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
