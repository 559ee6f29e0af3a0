package domain

// MatchResult 是一次“选最佳候选”的结果（只在匹配过程中临时存在）。
type MatchResult[T any] struct {
	Best       T
	Index      int
	Similarity float64
}
