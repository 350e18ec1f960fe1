package stream

import (
	"context"
	"sync"
	"time"

	"github.com/moneymaster/tradedash/internal/view"
)

// Manager 维护当前订阅主题的唯一连接
// 切换主题先关旧连接（发 1000）再开新连接，任何时刻最多一条 socket。
// TUI 动作和轮询器分别跑在各自的 goroutine 里，current 由 mu 保护
type Manager struct {
	baseURL          string
	reconnectDelay   time.Duration
	handshakeTimeout time.Duration
	store            *view.Store

	mu      sync.Mutex
	current *Client
}

// NewManager 创建连接管理器
func NewManager(baseURL string, reconnectDelay, handshakeTimeout time.Duration, store *view.Store) *Manager {
	return &Manager{
		baseURL:          baseURL,
		reconnectDelay:   reconnectDelay,
		handshakeTimeout: handshakeTimeout,
		store:            store,
	}
}

// Subscribe 订阅主题；已有连接时先完整关闭旧连接
// 持锁建连，并发 Subscribe 串行化后单连接约束仍然成立
func (m *Manager) Subscribe(ctx context.Context, symbol, interval string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.current.Stop()
		m.current = nil
	}

	client := NewClient(Options{
		BaseURL:          m.baseURL,
		Symbol:           symbol,
		Interval:         interval,
		ReconnectDelay:   m.reconnectDelay,
		HandshakeTimeout: m.handshakeTimeout,
	}, &storeSink{store: m.store, symbol: symbol})

	if err := client.Start(ctx); err != nil {
		return err
	}
	m.current = client
	return nil
}

// Topic 当前订阅主题，无连接时为空串
func (m *Manager) Topic() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.Topic()
}

// Interval 当前订阅的 K 线周期，无连接时为空串
func (m *Manager) Interval() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.opts.Interval
}

// Close 关闭当前连接
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Stop()
		m.current = nil
	}
}

// storeSink 把原始帧解码后派发到视图模型 Store
type storeSink struct {
	store  *view.Store
	symbol string
}

func (s *storeSink) Dispatch(frame []byte) {
	msg, err := Decode(frame, s.symbol)
	if err != nil {
		// 无法识别的推送只记录，绝不打断读取循环
		log.Warnf("丢弃推送: %v", err)
		return
	}
	s.store.Dispatch(msg)
}

func (s *storeSink) Warn(text string) {
	s.store.Warn(text)
}
