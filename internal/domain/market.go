package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketTick 最新行情快照，每次更新整体替换，不做增量合并
type MarketTick struct {
	Symbol     string          `json:"symbol"`
	LastPrice  decimal.Decimal `json:"last_price"`
	High24h    decimal.Decimal `json:"high_24h"`
	Low24h     decimal.Decimal `json:"low_24h"`
	Volume24h  decimal.Decimal `json:"volume_24h"`
	BestBid    decimal.Decimal `json:"best_bid"`
	BestAsk    decimal.Decimal `json:"best_ask"`
	Timestamp  time.Time       `json:"timestamp"`
}

// IsZero 判断行情是否为空快照
func (t *MarketTick) IsZero() bool {
	return t.Symbol == "" && t.LastPrice.IsZero() && t.Timestamp.IsZero()
}

// PriceDirection 相邻两次行情之间的价格方向，用于涨跌着色
type PriceDirection string

const (
	PriceUp   PriceDirection = "up"
	PriceDown PriceDirection = "down"
	PriceFlat PriceDirection = "flat"
)

// DirectionOf 比较前后两个最新价，得到价格方向
func DirectionOf(prev, cur decimal.Decimal) PriceDirection {
	switch cur.Cmp(prev) {
	case 1:
		return PriceUp
	case -1:
		return PriceDown
	default:
		return PriceFlat
	}
}

// KlineBar 单根 K 线，按时间戳（毫秒）唯一
type KlineBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// IsZero 判断是否为全零行（全零行不参与图表边界计算）
func (b KlineBar) IsZero() bool {
	return b.Open == 0 && b.High == 0 && b.Low == 0 && b.Close == 0 && b.Volume == 0
}

// Bullish 收盘价不低于开盘价即视为阳线
func (b KlineBar) Bullish() bool {
	return b.Close >= b.Open
}

// Time 返回 K 线开始时间
func (b KlineBar) Time() time.Time {
	return time.UnixMilli(b.Timestamp)
}
