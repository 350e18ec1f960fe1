package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyStatus 策略运行状态（由后端唯一决定，客户端只读）
type StrategyStatus string

const (
	StrategyRunning StrategyStatus = "running"
	StrategyStopped StrategyStatus = "stopped"
	StrategyPaused  StrategyStatus = "paused"
	StrategyError   StrategyStatus = "error"
)

// Valid 判断是否为已知状态
func (s StrategyStatus) Valid() bool {
	switch s {
	case StrategyRunning, StrategyStopped, StrategyPaused, StrategyError:
		return true
	}
	return false
}

// PositionInfo 策略持仓信息
type PositionInfo struct {
	Position        decimal.Decimal `json:"position"`
	AvgEntryPrice   decimal.Decimal `json:"avg_entry_price"`
	UnrealizedPnL   decimal.Decimal `json:"unrealized_pnl"`
	TotalPnL        decimal.Decimal `json:"total_pnl"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// StrategyState 策略状态快照，整体替换，客户端不保留历史
type StrategyState struct {
	StrategyName string         `json:"strategy_name,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	Status       StrategyStatus `json:"status"`
	Position     PositionInfo   `json:"position_info"`
	LastError    string         `json:"last_error,omitempty"`
	LastRunTime  time.Time      `json:"last_run_time"`
}

// Analysis 后端 AI 分析结果（策略推理面板数据源）
type Analysis struct {
	Trend      string    `json:"trend"`
	Confidence float64   `json:"confidence"`
	Support    float64   `json:"support"`
	Resistance float64   `json:"resistance"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}
