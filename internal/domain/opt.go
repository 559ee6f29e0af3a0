package domain

import "encoding/json"

// Opt 表示一个“可能未知”的字段值。
//
// 约束：
// - Valid=false 即 unknown，与零值严格区分（评分 0 ≠ 未评分）
// - JSON 中 unknown 编码为 null
type Opt[T any] struct {
	V     T
	Valid bool
}

// Some 构造一个已知值。
func Some[T any](v T) Opt[T] { return Opt[T]{V: v, Valid: true} }

// Get 返回值与是否已知。
func (o Opt[T]) Get() (T, bool) { return o.V, o.Valid }

// Or 在 unknown 时返回 def。
func (o Opt[T]) Or(def T) T {
	if !o.Valid {
		return def
	}
	return o.V
}

func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.V)
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
