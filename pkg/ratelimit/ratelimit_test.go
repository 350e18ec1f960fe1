package ratelimit

import (
	"context"
	"testing"
	"time"
)

// TestTokenBucket_BurstThenDeny 容量内突发全部放行，耗尽后拒绝
func TestTokenBucket_BurstThenDeny(t *testing.T) {
	tb := NewTokenBucket(3, 1)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("第 %d 个请求应放行", i+1)
		}
	}
	if tb.Allow() {
		t.Error("令牌耗尽后应拒绝")
	}
}

// TestTokenBucket_Refill 按速率补充令牌
func TestTokenBucket_Refill(t *testing.T) {
	tb := NewTokenBucket(1, 20) // 每 50ms 一个令牌

	if !tb.Allow() {
		t.Fatal("初始令牌应放行")
	}
	if tb.Allow() {
		t.Fatal("令牌应已耗尽")
	}

	time.Sleep(100 * time.Millisecond)
	if !tb.Allow() {
		t.Error("补充后应放行")
	}
}

// TestTokenBucket_WaitCancelled ctx 取消时 Wait 返回
func TestTokenBucket_WaitCancelled(t *testing.T) {
	tb := NewTokenBucket(1, 1)
	tb.Allow() // 耗尽

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Error("ctx 超时后 Wait 应返回错误")
	}
}
