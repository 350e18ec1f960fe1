// Package stream 管理到后端的市场数据 WebSocket 连接
// 每个主题（symbol+interval）最多一条连接；异常断开按固定延迟重连，
// 主动关闭发 1000 并且不再重连；消息严格按到达顺序派发给视图模型
package stream

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "stream")

// pingInterval 心跳周期，后端回 "pong" 文本
const pingInterval = 25 * time.Second

// Options 单条连接的参数
type Options struct {
	// BaseURL ws(s)://host 形式，不带路径
	BaseURL  string
	Symbol   string
	Interval string

	// ReconnectDelay 固定重连延迟，不做指数退避
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// Sink 消息出口：解码成功派发，失败告警
type Sink interface {
	Dispatch(frame []byte)
	Warn(text string)
}

// Client 单主题 WebSocket 连接
type Client struct {
	opts Options
	url  string
	sink Sink

	conn   *websocket.Conn
	connMu sync.Mutex

	running   bool
	runningMu sync.Mutex

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewClient 创建单主题连接（未连接状态）
func NewClient(opts Options, sink Sink) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 3 * time.Second
	}
	// 固定延迟约束在 1-5 秒之间
	if opts.ReconnectDelay < time.Second {
		opts.ReconnectDelay = time.Second
	}
	if opts.ReconnectDelay > 5*time.Second {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}

	base := strings.TrimSuffix(opts.BaseURL, "/")
	return &Client{
		opts:   opts,
		url:    fmt.Sprintf("%s/ws/market/%s/%s", base, opts.Symbol, opts.Interval),
		sink:   sink,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Topic 返回连接对应的主题标识
func (c *Client) Topic() string {
	return c.opts.Symbol + "/" + c.opts.Interval
}

// Start 建立连接并启动读取与心跳循环
func (c *Client) Start(ctx context.Context) error {
	c.runningMu.Lock()
	if c.running {
		c.runningMu.Unlock()
		return fmt.Errorf("连接已在运行: %s", c.Topic())
	}
	c.running = true
	c.runningMu.Unlock()

	if err := c.connect(); err != nil {
		c.runningMu.Lock()
		c.running = false
		c.runningMu.Unlock()
		return fmt.Errorf("初始连接失败 %s: %w", c.Topic(), err)
	}

	go c.readLoop(ctx)
	go c.pingLoop(ctx)

	log.Infof("已连接 %s", c.url)
	return nil
}

// Stop 主动关闭：发送 1000 并等待读取循环退出，不触发重连
func (c *Client) Stop() {
	c.runningMu.Lock()
	if !c.running {
		c.runningMu.Unlock()
		return
	}
	c.running = false
	c.runningMu.Unlock()

	close(c.stopCh)
	c.closeConn()

	select {
	case <-c.doneCh:
	case <-time.After(5 * time.Second):
		log.Warnf("关闭 %s 超时", c.Topic())
	}
	log.Infof("已关闭 %s", c.Topic())
}

// connect 建连并发送订阅帧
func (c *Client) connect() error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.opts.HandshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	headers := make(http.Header)
	headers.Set("User-Agent", "tradedash/1.0")

	conn, _, err := dialer.Dial(c.url, headers)
	if err != nil {
		return err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	return c.subscribe()
}

// subscribe 发送订阅帧（重连后复用，等价于 resubscribe）
func (c *Client) subscribe() error {
	frame := map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "tickers", "instId": c.opts.Symbol},
			{"channel": "candle" + c.opts.Interval, "instId": c.opts.Symbol},
		},
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("未连接")
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("发送订阅帧失败: %w", err)
	}
	log.Debugf("已订阅 %s", c.Topic())
	return nil
}

// closeConn 发送 1000 并关闭当前连接（幂等）
func (c *Client) closeConn() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
}

// readLoop 读取循环：单 goroutine 顺序派发，保证到达顺序
// 退出前兜底关闭连接：Stop 与重连拨号赛跑时，新连接可能在 Stop
// 检查之后才装上，这里保证它也会被关掉
func (c *Client) readLoop(ctx context.Context) {
	defer close(c.doneCh)
	defer c.closeConn()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		default:
		}

		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			if !c.redial(ctx) {
				return
			}
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()

			// 1000 是主动关闭的确认，不重连
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Infof("连接 %s 正常关闭", c.Topic())
				return
			}
			select {
			case <-c.stopCh:
				return
			default:
			}
			log.Errorf("连接 %s 读取错误: %v", c.Topic(), err)
			c.sink.Warn("行情连接中断，" + c.opts.ReconnectDelay.String() + " 后重连")
			if !c.redial(ctx) {
				return
			}
			continue
		}

		c.handle(message)
	}
}

// redial 固定延迟后重连并重新订阅；返回 false 表示应退出循环
func (c *Client) redial(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.stopCh:
		return false
	case <-time.After(c.opts.ReconnectDelay):
	}

	if err := c.connect(); err != nil {
		log.Errorf("重连 %s 失败: %v", c.Topic(), err)
		// 下一轮循环按同样的固定延迟再试
		return true
	}
	log.Infof("已重连 %s", c.Topic())
	return true
}

// pingLoop 心跳循环，发送 "ping" 文本
func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.connMu.Lock()
			conn := c.conn
			c.connMu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ping")); err != nil {
				log.Warnf("心跳发送失败 %s: %v", c.Topic(), err)
			}
		}
	}
}

// handle 处理单帧：pong 文本直接吞掉，其余交给 sink
func (c *Client) handle(frame []byte) {
	trimmed := strings.TrimSpace(string(frame))
	if trimmed == "pong" || trimmed == "PONG" {
		return
	}
	c.sink.Dispatch(frame)
}
