package api

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/moneymaster/tradedash/internal/domain"
)

// rawTicker 行情原始报文
// 同时声明归一化字段名（last_price）和 OKX 透传字段名（last/bidPx），
// 两代后端的响应都能落到同一个结构上
type rawTicker struct {
	Symbol    string          `json:"symbol"`
	LastPrice decimal.Decimal `json:"last_price"`
	Last      decimal.Decimal `json:"last"`
	High24h   decimal.Decimal `json:"high_24h"`
	High      decimal.Decimal `json:"high24h"`
	Low24h    decimal.Decimal `json:"low_24h"`
	Low       decimal.Decimal `json:"low24h"`
	Volume24h decimal.Decimal `json:"volume_24h"`
	Vol       decimal.Decimal `json:"vol24h"`
	BestBid   decimal.Decimal `json:"best_bid"`
	BidPx     decimal.Decimal `json:"bidPx"`
	BestAsk   decimal.Decimal `json:"best_ask"`
	AskPx     decimal.Decimal `json:"askPx"`
	Timestamp json.RawMessage `json:"timestamp"`
	Ts        json.RawMessage `json:"ts"`
}

// ParseTicker 解析行情响应（data 段可能是单元素数组或单个对象）
func ParseTicker(data json.RawMessage, symbol string) (domain.MarketTick, error) {
	raw := firstElement(data)

	var rt rawTicker
	if err := json.Unmarshal(raw, &rt); err != nil {
		return domain.MarketTick{}, errors.Wrap(err, "解析行情失败")
	}

	tick := domain.MarketTick{
		Symbol:    symbol,
		LastPrice: pick(rt.LastPrice, rt.Last),
		High24h:   pick(rt.High24h, rt.High),
		Low24h:    pick(rt.Low24h, rt.Low),
		Volume24h: pick(rt.Volume24h, rt.Vol),
		BestBid:   pick(rt.BestBid, rt.BidPx),
		BestAsk:   pick(rt.BestAsk, rt.AskPx),
	}
	if rt.Symbol != "" {
		tick.Symbol = rt.Symbol
	}
	ts := rt.Timestamp
	if len(ts) == 0 {
		ts = rt.Ts
	}
	tick.Timestamp = parseTimeFlexible(ts)
	return tick, nil
}

// ParseKlines 解析 K 线快照
// data 为行数组，每行 [ts, o, h, l, c, vol, ...]，元素可能是字符串或数字；
// 缺失字段按 0 处理，时间戳无法解析的行跳过；返回值按时间升序
func ParseKlines(data json.RawMessage) ([]domain.KlineBar, error) {
	var rows [][]any
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, errors.Wrap(err, "解析 K 线响应失败")
	}

	bars := make([]domain.KlineBar, 0, len(rows))
	for _, row := range rows {
		bar, ok := ParseKlineRow(row)
		if !ok {
			log.Warnf("跳过无法解析的 K 线行: %v", row)
			continue
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp < bars[j].Timestamp })
	return bars, nil
}

// ParseKlineRow 解析单行 K 线，时间戳缺失或非法时返回 ok=false
func ParseKlineRow(row []any) (domain.KlineBar, bool) {
	if len(row) == 0 {
		return domain.KlineBar{}, false
	}
	ts, ok := toInt64(row[0])
	if !ok || ts <= 0 {
		return domain.KlineBar{}, false
	}

	bar := domain.KlineBar{Timestamp: ts}
	fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume}
	for i, dst := range fields {
		if i+1 < len(row) {
			*dst = toFloat(row[i+1])
		}
	}
	return bar, true
}

// ParseBalance 归一化账户余额响应
// 兼容两种历史形态：data 为 {balances:{币种:明细}} 包装对象，
// 或直接是 币种->明细 的扁平映射；其余差异都挡在这一个函数里
func ParseBalance(data json.RawMessage) (domain.AccountBalance, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.Wrap(err, "解析余额响应失败")
	}

	if inner, ok := probe["balances"]; ok {
		data = inner
	}

	var balance domain.AccountBalance
	if err := json.Unmarshal(data, &balance); err != nil {
		return nil, errors.Wrap(err, "解析余额明细失败")
	}
	return balance, nil
}

// pick 返回第一个非零的 decimal
func pick(a, b decimal.Decimal) decimal.Decimal {
	if !a.IsZero() {
		return a
	}
	return b
}

// firstElement data 是数组时返回第一个元素，否则原样返回
func firstElement(data json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(data))
	if !strings.HasPrefix(trimmed, "[") {
		return data
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil || len(arr) == 0 {
		return data
	}
	return arr[0]
}

// parseTimeFlexible 解析时间戳：RFC3339 字符串、毫秒数字、毫秒字符串都接受
func parseTimeFlexible(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05.999999", s); err == nil {
			return t
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
		return time.Time{}
	}

	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

// toFloat 宽松地将 JSON 值转成 float64，失败返回 0
func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0
		}
		return f
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// toInt64 宽松地将 JSON 值转成 int64
func toInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
