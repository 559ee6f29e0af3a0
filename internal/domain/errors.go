package domain

import "errors"

var (
	// ErrEmptyCandidates 表示匹配/排序在零候选上被调用：必须显式失败，不返回“默认最佳”。
	ErrEmptyCandidates = errors.New("候选列表为空")
	// ErrRecordInvalid 表示身份字段（或评分必需字段）缺失，记录被剔除。
	ErrRecordInvalid = errors.New("记录无效")
)
