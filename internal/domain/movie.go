package domain

// Movie 是站点上的一个影片/剧集条目。
//
// 约束：
// - ID 是站点主键，同一会话内唯一且不可变
// - 抓取后视为只读；同一次 run 内可缓存复用
// - 列表接口只给出 ID/Title/TitleBR/Thumb，其余字段由详情页补全，缺失即 unknown
type Movie struct {
	ID       int         `json:"id"`
	Title    string      `json:"title"`
	TitleBR  string      `json:"title_br"`
	Year     Opt[int]    `json:"year"`
	Thumb    string      `json:"thumb"`
	Genre    Opt[string] `json:"genre"`
	Synopsis Opt[string] `json:"synopsis"`
}
