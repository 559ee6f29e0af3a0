package archive

import (
	"archive/zip"
	"io"
	"os"
	"strings"
)

type zipArchive struct {
	r *zip.ReadCloser
}

func (a *zipArchive) Format() string { return "zip" }

func (a *zipArchive) Entries() ([]Entry, error) {
	out := make([]Entry, 0, len(a.r.File))
	for _, f := range a.r.File {
		out = append(out, Entry{
			Name: strings.ReplaceAll(f.Name, `\`, "/"),
			Size: int64(f.UncompressedSize64),
			Dir:  f.FileInfo().IsDir(),
		})
	}
	return out, nil
}

func (a *zipArchive) Open(name string) (io.ReadCloser, error) {
	for _, f := range a.r.File {
		if strings.ReplaceAll(f.Name, `\`, "/") == name {
			return f.Open()
		}
	}
	return nil, os.ErrNotExist
}

func (a *zipArchive) Close() error { return a.r.Close() }
