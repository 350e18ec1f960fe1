// Package view 维护仪表盘的本地视图模型
// Apply 是纯 reducer：(当前状态, 消息) -> 新状态，WebSocket 与轮询结果
// 都归一化成 Message 后从这里进入，UI 只读快照
package view

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/moneymaster/tradedash/internal/domain"
)

var log = logrus.WithField("component", "view")

// DefaultWindowSize 默认 K 线显示窗口
const DefaultWindowSize = 120

// maxNotices 模型里保留的通知条数
const maxNotices = 5

// Message 视图模型消息
type Message interface {
	messageTag()
}

// TickerMessage 行情更新：整体替换 MarketTick
type TickerMessage struct {
	Tick domain.MarketTick
}

// KlineMessage 单根 K 线增量：按时间戳 upsert
type KlineMessage struct {
	Bar domain.KlineBar
}

// KlineSnapshotMessage K 线快照：整体替换 bar 列表（REST 拉取结果）
type KlineSnapshotMessage struct {
	Bars []domain.KlineBar
}

// StrategyMessage 策略状态更新：整体替换
type StrategyMessage struct {
	State domain.StrategyState
}

// TradesMessage 成交记录轮询结果：整体替换
type TradesMessage struct {
	Trades []domain.TradeRecord
}

// BalanceMessage 账户余额轮询结果：整体替换
type BalanceMessage struct {
	Balance domain.AccountBalance
}

// AnalysisMessage AI 分析轮询结果：整体替换
type AnalysisMessage struct {
	Analysis domain.Analysis
}

// NoticeMessage 用户可见的一次性提示（轮询失败、连接中断等）
type NoticeMessage struct {
	Notice Notice
}

func (TickerMessage) messageTag()        {}
func (KlineMessage) messageTag()         {}
func (KlineSnapshotMessage) messageTag() {}
func (StrategyMessage) messageTag()      {}
func (TradesMessage) messageTag()        {}
func (BalanceMessage) messageTag()       {}
func (AnalysisMessage) messageTag()      {}
func (NoticeMessage) messageTag()        {}

// NoticeLevel 提示级别
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeWarn  NoticeLevel = "warn"
	NoticeError NoticeLevel = "error"
)

// Notice 一次性用户提示
type Notice struct {
	Level NoticeLevel
	Text  string
	Time  time.Time
}

// Model 视图模型：后端交易状态在客户端的全部投影
// 所有字段都是瞬态的，完全由服务端响应重建
type Model struct {
	Tick      domain.MarketTick
	PrevPrice decimal.Decimal
	Direction domain.PriceDirection

	Bars       []domain.KlineBar
	WindowSize int

	Strategy    domain.StrategyState
	HasStrategy bool

	Trades   []domain.TradeRecord
	Balance  domain.AccountBalance
	Analysis domain.Analysis

	Notices []Notice
}

// NewModel 创建空视图模型
func NewModel(windowSize int) Model {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return Model{
		WindowSize: windowSize,
		Direction:  domain.PriceFlat,
	}
}

// Apply 纯 reducer：对同一消息重放是幂等的
func Apply(m Model, msg Message) Model {
	switch v := msg.(type) {
	case TickerMessage:
		return applyTicker(m, v.Tick)
	case KlineMessage:
		m.Bars = upsertBar(m.Bars, v.Bar, m.WindowSize)
		return m
	case KlineSnapshotMessage:
		m.Bars = snapshotBars(v.Bars, m.WindowSize)
		return m
	case StrategyMessage:
		return applyStrategy(m, v.State)
	case TradesMessage:
		m.Trades = v.Trades
		return m
	case BalanceMessage:
		m.Balance = v.Balance
		return m
	case AnalysisMessage:
		m.Analysis = v.Analysis
		return m
	case NoticeMessage:
		m.Notices = appendNotice(m.Notices, v.Notice)
		return m
	default:
		// 未知消息只记录，绝不向上抛
		log.Warnf("丢弃未知视图消息: %T", msg)
		return m
	}
}

// applyTicker 整体替换行情，并根据前一个最新价计算涨跌方向
func applyTicker(m Model, tick domain.MarketTick) Model {
	if !m.Tick.IsZero() {
		m.PrevPrice = m.Tick.LastPrice
		m.Direction = domain.DirectionOf(m.PrevPrice, tick.LastPrice)
	}
	m.Tick = tick
	return m
}

// applyStrategy 整体替换策略状态；状态跳变产生一次性通知
func applyStrategy(m Model, state domain.StrategyState) Model {
	if !state.Status.Valid() {
		log.Warnf("丢弃未知策略状态: %q", state.Status)
		return m
	}

	if m.HasStrategy && m.Strategy.Status != state.Status {
		notice := Notice{
			Level: NoticeInfo,
			Text:  fmt.Sprintf("策略状态: %s -> %s", m.Strategy.Status, state.Status),
			Time:  time.Now(),
		}
		if state.Status == domain.StrategyError {
			notice.Level = NoticeError
			if state.LastError != "" {
				notice.Text = fmt.Sprintf("策略出错: %s", state.LastError)
			}
		}
		m.Notices = appendNotice(m.Notices, notice)
	}

	m.Strategy = state
	m.HasStrategy = true
	return m
}

// upsertBar 按时间戳 upsert 一根 K 线并保持升序，超出窗口时丢弃最旧的
func upsertBar(bars []domain.KlineBar, bar domain.KlineBar, window int) []domain.KlineBar {
	if window <= 0 {
		window = DefaultWindowSize
	}

	out := make([]domain.KlineBar, len(bars))
	copy(out, bars)

	idx := sort.Search(len(out), func(i int) bool { return out[i].Timestamp >= bar.Timestamp })
	if idx < len(out) && out[idx].Timestamp == bar.Timestamp {
		out[idx] = bar
	} else {
		out = append(out, domain.KlineBar{})
		copy(out[idx+1:], out[idx:])
		out[idx] = bar
	}

	if len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// snapshotBars 快照替换：排序去重后截断到窗口大小
func snapshotBars(bars []domain.KlineBar, window int) []domain.KlineBar {
	if window <= 0 {
		window = DefaultWindowSize
	}

	sorted := make([]domain.KlineBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	// 同一时间戳保留最后一条
	out := sorted[:0]
	for _, b := range sorted {
		if len(out) > 0 && out[len(out)-1].Timestamp == b.Timestamp {
			out[len(out)-1] = b
			continue
		}
		out = append(out, b)
	}

	if len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// warnNotice 构造警告提示
func warnNotice(text string) Notice {
	return Notice{Level: NoticeWarn, Text: text, Time: time.Now()}
}

func appendNotice(notices []Notice, n Notice) []Notice {
	out := append(notices, n)
	if len(out) > maxNotices {
		out = out[len(out)-maxNotices:]
	}
	return out
}
