package domain

// ArchiveEntry 是解压得到的一个候选文件，仅用于多文件消歧。
type ArchiveEntry struct {
	Path string // 解压后的绝对路径
	Key  string // 规范化比较键（小写、去标点的 basename）
}
