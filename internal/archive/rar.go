package archive

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/nwaples/rardecode/v2"
)

// rarArchive 是流式格式：Entries 与 Open 各自重新打开文件并顺序扫描。
type rarArchive struct {
	path string
}

func openRAR(path string) (Archive, error) {
	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, err
	}
	_ = rc.Close()
	return &rarArchive{path: path}, nil
}

func (a *rarArchive) Format() string { return "rar" }

func (a *rarArchive) Entries() ([]Entry, error) {
	rc, err := rardecode.OpenReader(a.path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var out []Entry
	for {
		h, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		size := h.UnPackedSize
		if h.UnKnownSize {
			size = -1
		}
		out = append(out, Entry{Name: strings.ReplaceAll(h.Name, `\`, "/"), Size: size, Dir: h.IsDir})
	}
}

func (a *rarArchive) Open(name string) (io.ReadCloser, error) {
	rc, err := rardecode.OpenReader(a.path)
	if err != nil {
		return nil, err
	}
	for {
		h, err := rc.Next()
		if err != nil {
			_ = rc.Close()
			if errors.Is(err, io.EOF) {
				return nil, os.ErrNotExist
			}
			return nil, err
		}
		if strings.ReplaceAll(h.Name, `\`, "/") == name {
			return rc, nil
		}
	}
}

func (a *rarArchive) Close() error { return nil }
