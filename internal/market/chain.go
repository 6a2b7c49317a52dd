package market

import "time"

// 中文说明：
// 期权链原始快照。字段尽量贴近券商接口返回的内容，
// 过滤/打分在 options 包完成，这里只承载数据。

type Greeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}

// OptionQuote 单个合约（某一行权价的 Call 或 Put）的行情。
type OptionQuote struct {
	InstrumentKey string  `json:"instrument_key"`
	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	Last          float64 `json:"last"`
	Volume        float64 `json:"volume"`
	OpenInterest  float64 `json:"oi"`
	PrevOI        float64 `json:"prev_oi"`
	IV            float64 `json:"iv"`
	PrevIV        float64 `json:"prev_iv"`
	Greeks        Greeks  `json:"greeks"`
}

// StrikeRow 期权链中一个行权价对应的 Call/Put 对。
type StrikeRow struct {
	Strike float64     `json:"strike"`
	Call   OptionQuote `json:"call"`
	Put    OptionQuote `json:"put"`
}

type OptionChain struct {
	Symbol    string      `json:"symbol"`
	Spot      float64     `json:"spot"`
	Expiry    string      `json:"expiry"`
	Strikes   []StrikeRow `json:"strikes"`
	FetchedAt time.Time   `json:"fetched_at"`
}
