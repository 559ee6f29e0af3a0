package domain

// VideoFile 描述一次扫描得到的视频文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat，不读文件内容
type VideoFile struct {
	AbsPath string
	RelPath string
	Dir     string // AbsPath 所在目录
	Base    string // filename without ext
	Ext     string // ".mkv"
	Size    int64
	ModUnix int64
}

// MediaKind 区分电影与剧集。
type MediaKind string

const (
	MediaMovie   MediaKind = "movie"
	MediaEpisode MediaKind = "episode"
)

// VideoInfo 是从文件名/目录名推断出的媒体信息。
//
// 约束：
// - Title 已去掉 release 标签与标点，可直接作为搜索词
// - Release 保留原始名称（排序时与字幕 release 比较）
// - Season/Episode 仅在 Kind==MediaEpisode 时有意义
type VideoInfo struct {
	Title   string    `json:"title"`
	Year    Opt[int]  `json:"year"`
	Release string    `json:"release"`
	Kind    MediaKind `json:"kind"`
	Season  int       `json:"season"`
	Episode int       `json:"episode"`
}
