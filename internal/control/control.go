// Package control 策略控制状态机
// 本地从不推测状态：只有后端确认的转换才会写进视图模型。
// 命令在途时置 pending，期间的重复命令直接拒绝。
package control

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/moneymaster/tradedash/internal/domain"
	"github.com/moneymaster/tradedash/internal/view"
	"github.com/moneymaster/tradedash/pkg/api"
)

var log = logrus.WithField("component", "control")

// Command 策略控制命令
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
	CommandPause Command = "pause"
)

// ErrPending 已有命令在途
var ErrPending = errors.New("上一条策略命令尚未确认")

// allowed 各状态下允许发出的命令
// error 状态只能 stop 复位，与后端状态机保持一致
var allowed = map[domain.StrategyStatus][]Command{
	domain.StrategyStopped: {CommandStart},
	domain.StrategyRunning: {CommandStop, CommandPause},
	domain.StrategyPaused:  {CommandStart, CommandStop},
	domain.StrategyError:   {CommandStop},
}

// Controller 策略控制器：把用户命令转成后端调用，确认后派发状态
type Controller struct {
	client       *api.Client
	store        *view.Store
	strategyType string
	symbol       string

	mu      sync.Mutex
	pending bool
}

// NewController 创建策略控制器
func NewController(client *api.Client, store *view.Store, strategyType, symbol string) *Controller {
	return &Controller{
		client:       client,
		store:        store,
		strategyType: strategyType,
		symbol:       symbol,
	}
}

// Pending 是否有命令在途
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// Allowed 当前状态下命令是否可发
// 还没拿到策略状态时只允许 start（冷启动场景）
func (c *Controller) Allowed(cmd Command) bool {
	snap := c.store.Snapshot()
	if !snap.HasStrategy {
		return cmd == CommandStart
	}
	for _, a := range allowed[snap.Strategy.Status] {
		if a == cmd {
			return true
		}
	}
	return false
}

// Execute 执行一条策略命令并等待后端确认
// 确认的状态通过 StrategyMessage 进入视图模型；失败只产生提示，状态不变
func (c *Controller) Execute(ctx context.Context, cmd Command) error {
	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return ErrPending
	}
	if !c.Allowed(cmd) {
		c.mu.Unlock()
		return errors.Errorf("当前状态不允许命令 %s", cmd)
	}
	c.pending = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.pending = false
		c.mu.Unlock()
	}()

	log.Infof("发送策略命令: %s %s/%s", cmd, c.strategyType, c.symbol)

	var (
		status string
		err    error
	)
	switch cmd {
	case CommandStart:
		status, err = c.client.StartStrategy(ctx, c.strategyType, c.symbol)
	case CommandStop:
		status, err = c.client.StopStrategy(ctx, c.strategyType, c.symbol)
	case CommandPause:
		status, err = c.client.PauseStrategy(ctx, c.strategyType, c.symbol)
	default:
		return errors.Errorf("未知策略命令: %s", cmd)
	}
	if err != nil {
		log.Errorf("策略命令 %s 失败: %v", cmd, err)
		c.store.Warn("策略命令 " + string(cmd) + " 失败: " + err.Error())
		return err
	}

	confirmed := domain.StrategyStatus(status)
	if !confirmed.Valid() {
		log.Warnf("后端返回未知策略状态: %q", status)
		c.store.Warn("后端返回未知策略状态: " + status)
		return errors.Errorf("未知策略状态: %s", status)
	}

	snap := c.store.Snapshot()
	state := snap.Strategy
	state.StrategyName = c.strategyType
	state.Symbol = c.symbol
	state.Status = confirmed
	state.LastRunTime = time.Now()
	c.store.Dispatch(view.StrategyMessage{State: state})
	return nil
}

// Refresh 拉取后端策略状态并派发
// 轮询用：命令确认与轮询刷新收敛到同一条消息路径
func (c *Controller) Refresh(ctx context.Context) error {
	state, err := c.client.GetStrategyState(ctx, c.symbol, c.strategyType)
	if err != nil {
		return err
	}
	c.store.Dispatch(view.StrategyMessage{State: state})
	return nil
}

// ClearHistory 清空后端交易历史并刷新成交列表
func (c *Controller) ClearHistory(ctx context.Context) error {
	if err := c.client.ClearHistory(ctx); err != nil {
		c.store.Warn("清空历史失败: " + err.Error())
		return err
	}
	c.store.Dispatch(view.TradesMessage{Trades: nil})
	return nil
}
