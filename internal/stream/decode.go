package stream

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/moneymaster/tradedash/internal/domain"
	"github.com/moneymaster/tradedash/internal/view"
	"github.com/moneymaster/tradedash/pkg/api"
)

// inbound 推送信封 {code, msg, data:{type, ...}}
type inbound struct {
	Code string          `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// inboundData data 段：type 区分消息种类，负载可能内联也可能嵌在 data 里
type inboundData struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode 把一帧推送报文解码成视图模型消息
// 无法识别的形态一律返回错误，由调用方记录并丢弃，绝不抛过边界
func Decode(frame []byte, symbol string) (view.Message, error) {
	var env inbound
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, errors.Wrap(err, "解析推送信封失败")
	}
	if env.Code != "" && env.Code != "0" {
		return nil, errors.Errorf("推送业务错误: code=%s msg=%s", env.Code, env.Msg)
	}
	if len(env.Data) == 0 {
		return nil, errors.New("推送缺少 data 段")
	}

	var d inboundData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return nil, errors.Wrap(err, "解析推送 data 段失败")
	}
	payload := d.Data
	if len(payload) == 0 {
		// 负载内联在 data 对象里
		payload = env.Data
	}

	switch d.Type {
	case "ticker":
		tick, err := api.ParseTicker(payload, symbol)
		if err != nil {
			return nil, err
		}
		return view.TickerMessage{Tick: tick}, nil

	case "kline":
		bar, err := decodeKline(payload)
		if err != nil {
			return nil, err
		}
		return view.KlineMessage{Bar: bar}, nil

	case "strategy":
		var state domain.StrategyState
		if err := json.Unmarshal(payload, &state); err != nil {
			return nil, errors.Wrap(err, "解析策略推送失败")
		}
		return view.StrategyMessage{State: state}, nil

	default:
		return nil, errors.Errorf("未知推送类型: %q", d.Type)
	}
}

// decodeKline 解析 K 线推送负载
// 兼容 OKX 风格的行数组 [ts,o,h,l,c,vol,...] 和命名字段对象两种形态
func decodeKline(payload json.RawMessage) (domain.KlineBar, error) {
	var row []any
	if err := json.Unmarshal(payload, &row); err == nil {
		bar, ok := api.ParseKlineRow(row)
		if !ok {
			return domain.KlineBar{}, errors.Errorf("K 线行时间戳非法: %v", row)
		}
		return bar, nil
	}

	// 某些版本推 [[...]] 包一层
	var rows [][]any
	if err := json.Unmarshal(payload, &rows); err == nil && len(rows) > 0 {
		bar, ok := api.ParseKlineRow(rows[0])
		if !ok {
			return domain.KlineBar{}, errors.Errorf("K 线行时间戳非法: %v", rows[0])
		}
		return bar, nil
	}

	var bar domain.KlineBar
	if err := json.Unmarshal(payload, &bar); err != nil {
		return domain.KlineBar{}, errors.Wrap(err, "解析 K 线推送失败")
	}
	if bar.Timestamp <= 0 {
		return domain.KlineBar{}, errors.New("K 线推送缺少时间戳")
	}
	return bar, nil
}
