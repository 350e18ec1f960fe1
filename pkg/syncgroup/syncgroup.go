// Package syncgroup sync.WaitGroup 的轻量包装
// Go 负责配对 Add/Done，避免遗漏 Done 导致 Wait 卡死
package syncgroup

import "sync"

// SyncGroup goroutine 生命周期管理
type SyncGroup struct {
	wg sync.WaitGroup
}

// Go 启动一个受管理的 goroutine
func (g *SyncGroup) Go(fn func()) {
	if fn == nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait 阻塞直到所有 goroutine 退出
func (g *SyncGroup) Wait() {
	g.wg.Wait()
}
