package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

// TestDirectionOf 价格方向判定
func TestDirectionOf(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	if DirectionOf(d("100"), d("105")) != PriceUp {
		t.Error("100 -> 105 应为 up")
	}
	if DirectionOf(d("105"), d("95")) != PriceDown {
		t.Error("105 -> 95 应为 down")
	}
	if DirectionOf(d("100"), d("100.00")) != PriceFlat {
		t.Error("等值应为 flat（忽略小数位表示差异）")
	}
}

// TestKlineBar_Bullish 收盘不低于开盘视为阳线
func TestKlineBar_Bullish(t *testing.T) {
	if !(KlineBar{Open: 10, Close: 12}).Bullish() {
		t.Error("收盘高于开盘应为阳线")
	}
	if !(KlineBar{Open: 10, Close: 10}).Bullish() {
		t.Error("收盘等于开盘应为阳线")
	}
	if (KlineBar{Open: 10, Close: 9}).Bullish() {
		t.Error("收盘低于开盘应为阴线")
	}
}

// TestStrategyStatus_Valid 已知状态集合
func TestStrategyStatus_Valid(t *testing.T) {
	for _, s := range []StrategyStatus{StrategyRunning, StrategyStopped, StrategyPaused, StrategyError} {
		if !s.Valid() {
			t.Errorf("%s 应为有效状态", s)
		}
	}
	if StrategyStatus("exploded").Valid() {
		t.Error("未知状态不应有效")
	}
}
