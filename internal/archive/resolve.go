package archive

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/legendastv/internal/domain"
	"github.com/John-Robertt/legendastv/internal/infra/logx"
	"github.com/John-Robertt/legendastv/internal/match"
)

// Resolve 在解压出的多个文件中选出唯一一个，并删除其余文件。
//
// 约束：
// - 零个文件返回 domain.ErrEmptyCandidates；一个文件直接返回，不做比较
// - 参照串：dirName 与 fileName 中与第一个候选更相似者（相等时取 fileName），之后用同一参照比较所有候选
// - 删除失败只记日志
func Resolve(paths []string, dirName, fileName string, log logrus.FieldLogger) (string, error) {
	log = logx.OrDiscard(log)
	switch len(paths) {
	case 0:
		return "", domain.ErrEmptyCandidates
	case 1:
		return paths[0], nil
	}

	entries := make([]domain.ArchiveEntry, len(paths))
	for i, p := range paths {
		entries[i] = domain.ArchiveEntry{Path: p, Key: match.FileKey(p)}
	}

	dirRef, fileRef := match.Key(dirName), match.Key(fileName)
	ref := fileRef
	if match.Similarity(dirRef, entries[0].Key, true) > match.Similarity(fileRef, entries[0].Key, true) {
		ref = dirRef
	}

	res, err := match.BestMatchByField(ref, entries, func(e domain.ArchiveEntry) string { return e.Key })
	if err != nil {
		return "", err
	}
	log.WithFields(logrus.Fields{"reference": ref, "chosen": res.Best.Path, "similarity": res.Similarity}).
		Infof("压缩包内 %d 个字幕，已选出一个", len(entries))

	for i, e := range entries {
		if i == res.Index {
			continue
		}
		if err := os.Remove(e.Path); err != nil {
			log.WithError(err).WithField("path", e.Path).Warn("删除落选字幕失败")
		}
	}
	return res.Best.Path, nil
}
