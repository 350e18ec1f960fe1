package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// TestPoller_KeepsTickingAfterFailure 单次失败不影响下一个周期
func TestPoller_KeepsTickingAfterFailure(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return errors.New("模拟失败")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New("test", 30*time.Millisecond, fetch, nil)
	go p.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := atomic.LoadInt32(&calls); got < 3 {
		t.Errorf("失败后应继续按周期拉取，调用次数 %d", got)
	}
}

// TestPoller_WarnOnce 连续失败只提示一次，恢复后重新武装
func TestPoller_WarnOnce(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context) error {
		n := atomic.AddInt32(&calls, 1)
		// 前三次失败，第四次成功，之后再失败
		if n <= 3 || n >= 5 {
			return errors.New("模拟失败")
		}
		return nil
	}

	var mu sync.Mutex
	var warns []string
	warn := func(text string) {
		mu.Lock()
		warns = append(warns, text)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New("balance", 20*time.Millisecond, fetch, warn)
	go p.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&calls) < 6 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	mu.Lock()
	defer mu.Unlock()
	// 第一段失败提示一次，成功后恢复，第二段失败再提示一次
	if len(warns) != 2 {
		t.Errorf("期望 2 次提示（每段失败一次），得到 %d: %v", len(warns), warns)
	}
}

// TestPoller_StopsOnCancel 取消 context 后轮询退出
func TestPoller_StopsOnCancel(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &Group{}
	g.Add(New("a", 20*time.Millisecond, fetch, nil))
	g.Start(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("取消后 Group.Wait 应返回")
	}

	settled := atomic.LoadInt32(&calls)
	time.Sleep(60 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != settled {
		t.Errorf("取消后不应再拉取: %d -> %d", settled, got)
	}
}

// TestPoller_ImmediateFirstFetch 启动时立即拉取一次，不等第一个周期
func TestPoller_ImmediateFirstFetch(t *testing.T) {
	var calls int32
	fetch := func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := New("boot", time.Hour, fetch, nil)
	go p.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Error("启动时应立即拉取一次")
	}
}
