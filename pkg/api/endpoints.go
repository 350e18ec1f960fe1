package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/moneymaster/tradedash/internal/domain"
)

// GetMarketPrice 获取最新行情快照
func (c *Client) GetMarketPrice(ctx context.Context, symbol string) (domain.MarketTick, error) {
	data, err := c.get(ctx, fmt.Sprintf("/api/market/price/%s", symbol), nil)
	if err != nil {
		return domain.MarketTick{}, err
	}
	return ParseTicker(data, symbol)
}

// GetKlines 获取 K 线快照（按时间升序返回）
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]domain.KlineBar, error) {
	data, err := c.get(ctx, fmt.Sprintf("/api/market/kline/%s", symbol), map[string]string{
		"interval": interval,
		"limit":    fmt.Sprintf("%d", limit),
	})
	if err != nil {
		return nil, err
	}
	return ParseKlines(data)
}

// GetBalance 获取账户余额（兼容两种历史响应形态，见 ParseBalance）
func (c *Client) GetBalance(ctx context.Context) (domain.AccountBalance, error) {
	data, err := c.get(ctx, "/api/account/balance", nil)
	if err != nil {
		return nil, err
	}
	return ParseBalance(data)
}

// GetTrades 获取成交记录（整体拉取，不做增量合并）
func (c *Client) GetTrades(ctx context.Context, symbol string) ([]domain.TradeRecord, error) {
	data, err := c.get(ctx, "/api/trades", map[string]string{"symbol": symbol})
	if err != nil {
		return nil, err
	}
	var trades []domain.TradeRecord
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, errors.Wrap(err, "解析成交记录失败")
	}
	return trades, nil
}

// controlRequest 策略控制请求体
type controlRequest struct {
	StrategyType string `json:"strategy_type"`
	Symbol       string `json:"symbol"`
}

// controlResponse 策略控制响应 {status}
type controlResponse struct {
	Status string `json:"status"`
}

// StartStrategy 请求启动策略，返回后端确认的状态
func (c *Client) StartStrategy(ctx context.Context, strategyType, symbol string) (string, error) {
	return c.controlStrategy(ctx, "start", strategyType, symbol)
}

// StopStrategy 请求停止策略，返回后端确认的状态
func (c *Client) StopStrategy(ctx context.Context, strategyType, symbol string) (string, error) {
	return c.controlStrategy(ctx, "stop", strategyType, symbol)
}

// PauseStrategy 请求暂停策略，返回后端确认的状态
func (c *Client) PauseStrategy(ctx context.Context, strategyType, symbol string) (string, error) {
	return c.controlStrategy(ctx, "pause", strategyType, symbol)
}

func (c *Client) controlStrategy(ctx context.Context, action, strategyType, symbol string) (string, error) {
	data, err := c.post(ctx, "/api/strategy/"+action, controlRequest{
		StrategyType: strategyType,
		Symbol:       symbol,
	})
	if err != nil {
		return "", err
	}
	var resp controlResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", errors.Wrapf(err, "解析策略 %s 响应失败", action)
	}
	if resp.Status == "" {
		return "", errors.Errorf("策略 %s 响应缺少 status 字段", action)
	}
	log.Infof("策略控制 %s 已确认: status=%s", action, resp.Status)
	return resp.Status, nil
}

// GetStrategyState 获取策略状态（后端返回单元素数组）
func (c *Client) GetStrategyState(ctx context.Context, symbol, strategyType string) (domain.StrategyState, error) {
	data, err := c.get(ctx, "/api/strategy/state", map[string]string{
		"symbol":        symbol,
		"strategy_type": strategyType,
	})
	if err != nil {
		return domain.StrategyState{}, err
	}

	var states []domain.StrategyState
	if err := json.Unmarshal(data, &states); err != nil {
		// 兼容直接返回单个对象的形态
		var one domain.StrategyState
		if err2 := json.Unmarshal(data, &one); err2 != nil {
			return domain.StrategyState{}, errors.Wrap(err, "解析策略状态失败")
		}
		states = []domain.StrategyState{one}
	}
	if len(states) == 0 {
		return domain.StrategyState{}, errors.New("策略状态响应为空")
	}
	return states[0], nil
}

// GetAnalysis 获取 AI 市场分析结果
func (c *Client) GetAnalysis(ctx context.Context) (domain.Analysis, error) {
	data, err := c.get(ctx, "/api/strategy/analysis", nil)
	if err != nil {
		return domain.Analysis{}, err
	}
	var analysis domain.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return domain.Analysis{}, errors.Wrap(err, "解析分析结果失败")
	}
	return analysis, nil
}

// ClearHistory 清空后端交易历史
func (c *Client) ClearHistory(ctx context.Context) error {
	data, err := c.post(ctx, "/api/clear_history", nil)
	if err != nil {
		return err
	}
	var resp controlResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return errors.Wrap(err, "解析清空历史响应失败")
	}
	if resp.Status != "success" {
		return errors.Errorf("清空历史失败: status=%s", resp.Status)
	}
	return nil
}
