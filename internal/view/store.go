package view

import (
	"sync"

	"github.com/moneymaster/tradedash/pkg/sigchan"
)

// Store 持有当前视图模型，串联 reducer 和 UI
// Dispatch 可以从任意 goroutine 调用；UI 监听 Changed 信号后用
// Snapshot 拉取最新状态（信号合并，UI 跟不上时天然 latest-wins）
type Store struct {
	mu      sync.RWMutex
	model   Model
	changed *sigchan.Chan
}

// NewStore 创建视图模型 Store
func NewStore(windowSize int) *Store {
	return &Store{
		model:   NewModel(windowSize),
		changed: sigchan.New(1),
	}
}

// Dispatch 应用一条消息并发出变更信号
func (s *Store) Dispatch(msg Message) {
	s.mu.Lock()
	s.model = Apply(s.model, msg)
	s.mu.Unlock()

	s.changed.Emit()
}

// Snapshot 返回当前视图模型的副本
func (s *Store) Snapshot() Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Changed 返回变更信号 channel
func (s *Store) Changed() *sigchan.Chan {
	return s.changed
}

// Warn 发布一条用户可见的警告提示
func (s *Store) Warn(text string) {
	s.Dispatch(NoticeMessage{Notice: warnNotice(text)})
}
