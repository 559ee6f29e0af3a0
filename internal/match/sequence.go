package match

import "github.com/pmezard/go-difflib/difflib"

// ratio 计算 Ratcliff/Obershelp 相似度（difflib 的 ratio）。
//
// 约束：
// - 以 rune 为比较单位
// - b 长度 >= 200 时启用 autojunk：出现次数超过 len(b)/100+1 的元素不作为匹配起点
// - 与参数顺序有关：ratio(a, b) 不保证等于 ratio(b, a)
func ratio(a, b string) float64 {
	return difflib.NewMatcher(runesAsStrings(a), runesAsStrings(b)).Ratio()
}

func runesAsStrings(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
