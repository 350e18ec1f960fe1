package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceDetail 单个币种的余额明细
type BalanceDetail struct {
	Total     decimal.Decimal `json:"total"`
	Available decimal.Decimal `json:"available"`
	Frozen    decimal.Decimal `json:"frozen"`
}

// AccountBalance 账户余额：币种 -> 余额明细
// 每次轮询整体替换，客户端不做增量合并
type AccountBalance map[string]BalanceDetail

// TradeSide 成交方向
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// TradeRecord 单笔成交记录（后端追加写入，客户端整体拉取）
type TradeRecord struct {
	TradeID      string          `json:"trade_id"`
	Symbol       string          `json:"symbol"`
	Side         TradeSide       `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	Commission   decimal.Decimal `json:"commission"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	TradeTime    time.Time       `json:"trade_time"`
	StrategyName string          `json:"strategy_name,omitempty"`
}
