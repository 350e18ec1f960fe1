// Package poller 按固定周期刷新 REST 数据
// 每个数据源一个 Poller，失败只记录日志并提示一次，下一个周期照常触发，
// 不做提前重试，也不做退避
package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moneymaster/tradedash/pkg/syncgroup"
)

var log = logrus.WithField("component", "poller")

// FetchFunc 单次拉取，成功时负责把结果派发给视图模型
type FetchFunc func(ctx context.Context) error

// WarnFunc 用户可见的一次性失败提示
type WarnFunc func(text string)

// Poller 单个固定周期轮询任务
type Poller struct {
	label    string
	interval time.Duration
	fetch    FetchFunc
	warn     WarnFunc

	// 同一轮连续失败只提示一次，恢复后重新武装
	warned bool
}

// New 创建轮询任务；interval 必须为正
func New(label string, interval time.Duration, fetch FetchFunc, warn WarnFunc) *Poller {
	return &Poller{
		label:    label,
		interval: interval,
		fetch:    fetch,
		warn:     warn,
	}
}

// Run 先立即拉取一次，然后按周期循环直到 ctx 取消
func (p *Poller) Run(ctx context.Context) {
	log.Infof("轮询启动: %s, 周期 %s", p.label, p.interval)

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("轮询停止: %s", p.label)
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.fetch(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Errorf("轮询 %s 失败: %v", p.label, err)
		if !p.warned && p.warn != nil {
			p.warn(p.label + " 刷新失败，将在下个周期重试")
			p.warned = true
		}
		return
	}
	p.warned = false
}

// Group 管理一组轮询任务的生命周期
type Group struct {
	sg      syncgroup.SyncGroup
	pollers []*Poller
}

// Add 注册一个轮询任务
func (g *Group) Add(p *Poller) {
	g.pollers = append(g.pollers, p)
}

// Start 启动所有任务，每个任务一个 goroutine
func (g *Group) Start(ctx context.Context) {
	for _, p := range g.pollers {
		p := p
		g.sg.Go(func() {
			p.Run(ctx)
		})
	}
}

// Wait 阻塞直到所有任务退出
func (g *Group) Wait() {
	g.sg.Wait()
}
