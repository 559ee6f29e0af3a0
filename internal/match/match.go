// Package match 实现字符串相似度与“从候选中选最佳”。
package match

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/John-Robertt/legendastv/internal/domain"
)

// Similarity 返回 a 与 b 的相似度，范围 [0, 1]。
// caseInsensitive=true 时先把两边转为小写。
func Similarity(a, b string, caseInsensitive bool) float64 {
	a, b = norm.NFC.String(a), norm.NFC.String(b)
	if caseInsensitive {
		a, b = strings.ToLower(a), strings.ToLower(b)
	}
	return ratio(a, b)
}

// BestMatch 在 candidates 中选出与 reference 最相似的一项（大小写不敏感）。
//
// 约束：
// - 候选为空时返回 domain.ErrEmptyCandidates
// - 相似度并列时取输入顺序中最靠前的
// - 选择在小写文本上进行；返回的 Similarity 则按原始大小写的 reference 与被选中候选计算
func BestMatch(reference string, candidates []string) (domain.MatchResult[string], error) {
	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(c)
	}
	idx, err := bestIndex(strings.ToLower(reference), lowered)
	if err != nil {
		return domain.MatchResult[string]{}, err
	}
	return domain.MatchResult[string]{
		Best:       candidates[idx],
		Index:      idx,
		Similarity: Similarity(reference, candidates[idx], false),
	}, nil
}

// BestMatchByField 与 BestMatch 相同，但候选是记录，比较文本由 field 取出。
// reference 与字段值都先转小写，因此返回的 Similarity 基于小写文本。
func BestMatchByField[T any](reference string, records []T, field func(T) string) (domain.MatchResult[T], error) {
	ref := strings.ToLower(reference)
	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = strings.ToLower(field(r))
	}
	idx, err := bestIndex(ref, texts)
	if err != nil {
		return domain.MatchResult[T]{}, err
	}
	return domain.MatchResult[T]{
		Best:       records[idx],
		Index:      idx,
		Similarity: Similarity(ref, texts[idx], false),
	}, nil
}

// bestIndex 以 candidate 为第一个序列、reference 为第二个序列打分。
func bestIndex(reference string, candidates []string) (int, error) {
	if len(candidates) == 0 {
		return -1, domain.ErrEmptyCandidates
	}
	ref := norm.NFC.String(reference)
	best, bestScore := 0, -1.0
	for i, c := range candidates {
		if s := ratio(norm.NFC.String(c), ref); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, nil
}
