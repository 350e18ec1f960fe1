package control

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/moneymaster/tradedash/internal/domain"
	"github.com/moneymaster/tradedash/internal/view"
	"github.com/moneymaster/tradedash/pkg/api"
)

// controlServer 可配置响应的策略控制后端
type controlServer struct {
	mu       sync.Mutex
	status   string // 控制端点返回的确认状态
	delay    time.Duration
	requests []string
}

func (s *controlServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	status := s.status
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	json.NewEncoder(w).Encode(map[string]any{
		"code": "0", "msg": "",
		"data": map[string]string{"status": status},
	})
}

func newTestController(t *testing.T, srv *controlServer) (*Controller, *view.Store) {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	t.Cleanup(ts.Close)
	store := view.NewStore(10)
	return NewController(api.NewClient(ts.URL), store, "deepseek", "BTC-USDT"), store
}

// TestExecute_ServerConfirmedTransition 只有后端确认的状态才进入视图模型
func TestExecute_ServerConfirmedTransition(t *testing.T) {
	srv := &controlServer{status: "running"}
	c, store := newTestController(t, srv)

	if err := c.Execute(context.Background(), CommandStart); err != nil {
		t.Fatalf("不应出错: %v", err)
	}

	snap := store.Snapshot()
	if !snap.HasStrategy {
		t.Fatal("确认后应有策略状态")
	}
	if snap.Strategy.Status != domain.StrategyRunning {
		t.Errorf("期望 running，得到 %s", snap.Strategy.Status)
	}
}

// TestExecute_ServerDecidesFinalState 客户端不假设转换结果，以后端为准
func TestExecute_ServerDecidesFinalState(t *testing.T) {
	// start 命令后端直接回 error 状态（例如启动即失败）
	srv := &controlServer{status: "error"}
	c, store := newTestController(t, srv)

	if err := c.Execute(context.Background(), CommandStart); err != nil {
		t.Fatalf("不应出错: %v", err)
	}
	if store.Snapshot().Strategy.Status != domain.StrategyError {
		t.Errorf("应采用后端返回的 error 状态，得到 %s", store.Snapshot().Strategy.Status)
	}
}

// TestExecute_UnknownStatusRejected 后端返回未知状态时本地状态不变
func TestExecute_UnknownStatusRejected(t *testing.T) {
	srv := &controlServer{status: "exploded"}
	c, store := newTestController(t, srv)

	if err := c.Execute(context.Background(), CommandStart); err == nil {
		t.Fatal("未知状态应返回错误")
	}
	if store.Snapshot().HasStrategy {
		t.Error("未知状态不应写入视图模型")
	}
}

// TestExecute_DisallowedCommand 当前状态不允许的命令直接拒绝
func TestExecute_DisallowedCommand(t *testing.T) {
	srv := &controlServer{status: "running"}
	c, store := newTestController(t, srv)

	// 冷启动只允许 start
	if err := c.Execute(context.Background(), CommandPause); err == nil {
		t.Fatal("无策略状态时 pause 应被拒绝")
	}

	if err := c.Execute(context.Background(), CommandStart); err != nil {
		t.Fatalf("start 不应出错: %v", err)
	}
	// running 状态不允许再 start
	if err := c.Execute(context.Background(), CommandStart); err == nil {
		t.Fatal("running 状态下 start 应被拒绝")
	}
	_ = store
}

// TestExecute_PendingRejectsConcurrent 命令在途时并发命令被拒绝
func TestExecute_PendingRejectsConcurrent(t *testing.T) {
	srv := &controlServer{status: "running", delay: 200 * time.Millisecond}
	c, _ := newTestController(t, srv)

	done := make(chan error, 1)
	go func() {
		done <- c.Execute(context.Background(), CommandStart)
	}()

	// 等第一条命令进入在途状态
	deadline := time.Now().Add(time.Second)
	for !c.Pending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !c.Pending() {
		t.Fatal("第一条命令应处于在途状态")
	}

	if err := c.Execute(context.Background(), CommandStart); err != ErrPending {
		t.Errorf("在途期间应返回 ErrPending，得到 %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("第一条命令不应出错: %v", err)
	}
	if c.Pending() {
		t.Error("命令完成后在途标记应清除")
	}
}

// TestAllowed_StateMachine 各状态下允许的命令集合
func TestAllowed_StateMachine(t *testing.T) {
	srv := &controlServer{}
	c, store := newTestController(t, srv)

	set := func(status domain.StrategyStatus) {
		store.Dispatch(view.StrategyMessage{State: domain.StrategyState{Status: status}})
	}

	set(domain.StrategyRunning)
	if c.Allowed(CommandStart) {
		t.Error("running 不应允许 start")
	}
	if !c.Allowed(CommandStop) || !c.Allowed(CommandPause) {
		t.Error("running 应允许 stop 和 pause")
	}

	set(domain.StrategyPaused)
	if !c.Allowed(CommandStart) || !c.Allowed(CommandStop) {
		t.Error("paused 应允许 start 和 stop")
	}

	set(domain.StrategyError)
	if c.Allowed(CommandStart) || c.Allowed(CommandPause) {
		t.Error("error 只允许 stop 复位")
	}
	if !c.Allowed(CommandStop) {
		t.Error("error 应允许 stop")
	}
}
