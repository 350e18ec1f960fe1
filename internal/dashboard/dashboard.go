// Package dashboard 终端仪表盘：Bubble Tea 渲染视图模型快照，
// 按键转成策略控制 / 主题切换动作
package dashboard

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/moneymaster/tradedash/internal/control"
	"github.com/moneymaster/tradedash/internal/stream"
	"github.com/moneymaster/tradedash/internal/view"
	"github.com/moneymaster/tradedash/pkg/api"
	"github.com/moneymaster/tradedash/pkg/logger"
)

var log = logrus.WithField("module", "dashboard")

// Dashboard 仪表盘运行器：持有 TUI 程序和各动作的依赖
type Dashboard struct {
	store      *view.Store
	controller *control.Controller
	streams    *stream.Manager
	client     *api.Client

	symbol     string
	interval   string
	klineLimit int

	ctx         context.Context
	program     *tea.Program
	programDone chan struct{}
}

// New 创建仪表盘运行器
func New(store *view.Store, controller *control.Controller, streams *stream.Manager,
	client *api.Client, symbol, interval string, klineLimit int) *Dashboard {
	return &Dashboard{
		store:       store,
		controller:  controller,
		streams:     streams,
		client:      client,
		symbol:      symbol,
		interval:    interval,
		klineLimit:  klineLimit,
		programDone: make(chan struct{}),
	}
}

// Run 启动 TUI 并阻塞到退出
// 非终端环境（测试、管道）下直接等待 ctx 结束，数据链路照常运行
func (d *Dashboard) Run(ctx context.Context) error {
	d.ctx = ctx

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		log.Info("stdout 不是终端，跳过 TUI 渲染")
		<-ctx.Done()
		close(d.programDone)
		return nil
	}

	// 日志切到文件，避免打乱全屏界面
	logger.RedirectToFileOnly()

	m := newModel(d.store, d, d.symbol, d.interval)
	d.program = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	defer close(d.programDone)
	if _, err := d.program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("仪表盘运行失败: %w", err)
	}
	return nil
}

// Stop 请求 TUI 退出并等待
func (d *Dashboard) Stop() {
	if d.program != nil {
		d.program.Quit()
	}
	select {
	case <-d.programDone:
	case <-time.After(2 * time.Second):
	}
}

// Strategy 实现 Actions：异步执行策略命令，结果回传给 TUI
func (d *Dashboard) Strategy(cmd control.Command) tea.Cmd {
	return func() tea.Msg {
		err := d.controller.Execute(d.ctx, cmd)
		return ActionDoneMsg{Label: string(cmd), Err: err}
	}
}

// ClearHistory 实现 Actions：清空后端交易历史
func (d *Dashboard) ClearHistory() tea.Cmd {
	return func() tea.Msg {
		err := d.controller.ClearHistory(d.ctx)
		return ActionDoneMsg{Label: "clear_history", Err: err}
	}
}

// SwitchInterval 实现 Actions：切换 K 线周期
// 先关旧连接再开新连接（单 socket 约束），REST 快照先落地再接增量
func (d *Dashboard) SwitchInterval(interval string) tea.Cmd {
	return func() tea.Msg {
		d.interval = interval

		bars, err := d.client.GetKlines(d.ctx, d.symbol, interval, d.klineLimit)
		if err != nil {
			d.store.Warn("切换周期拉取 K 线失败: " + err.Error())
			return ActionDoneMsg{Label: "switch_interval", Err: err}
		}
		d.store.Dispatch(view.KlineSnapshotMessage{Bars: bars})

		if err := d.streams.Subscribe(d.ctx, d.symbol, interval); err != nil {
			d.store.Warn("切换周期重连失败: " + err.Error())
			return ActionDoneMsg{Label: "switch_interval", Err: err}
		}
		log.Infof("已切换 K 线周期: %s", interval)
		return ActionDoneMsg{Label: "switch_interval"}
	}
}
