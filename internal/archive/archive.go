// Package archive 解压下载的字幕包，并在多文件时选出唯一的字幕。
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrUnsupported 表示内容嗅探既不是 ZIP 也不是 RAR。
var ErrUnsupported = errors.New("不支持的压缩包格式")

// Entry 是压缩包中的一个条目。
type Entry struct {
	Name string // 包内路径，分隔符统一为 '/'
	Size int64  // 解压后大小；未知时为 -1
	Dir  bool
}

// Archive 是两种容器格式共同的能力接口。
type Archive interface {
	Format() string
	Entries() ([]Entry, error)
	// Open 打开名为 name 的条目；调用方负责 Close。
	Open(name string) (io.ReadCloser, error)
	Close() error
}

var (
	rar4Magic = []byte("Rar!\x1a\x07\x00")
	rar5Magic = []byte("Rar!\x1a\x07\x01\x00")
)

// Open 按内容嗅探选择后端，与文件扩展名无关。
func Open(path string) (Archive, error) {
	head, err := readHead(path, len(rar5Magic))
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(head, rar4Magic) || bytes.HasPrefix(head, rar5Magic) {
		return openRAR(path)
	}
	zr, err := zip.OpenReader(path)
	if err == nil {
		return &zipArchive{r: zr}, nil
	}
	if errors.Is(err, zip.ErrFormat) {
		return nil, fmt.Errorf("%w：%s", ErrUnsupported, path)
	}
	return nil, err
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:m], nil
}
