// Package chart 把视图模型里的 K 线序列投影成图表数据
// 只做纯计算，渲染见 render.go
package chart

import (
	"github.com/moneymaster/tradedash/internal/domain"
)

// CandleRow 单根蜡烛的序列行
// 注意列顺序是 OCLH（开、收、低、高），沿用图表库的轴约定，不是 OHLC
type CandleRow [4]float64

// VolumeBar 成交量柱：按收盘相对开盘着色
type VolumeBar struct {
	Value   float64
	Bullish bool // close >= open 为阳线（绿），否则阴线（红）
}

// Bounds 图表边界
type Bounds struct {
	MinLow    float64
	MaxHigh   float64
	MaxVolume float64
	Valid     bool // 没有任何有效行时为 false
}

// Series 图表序列：蜡烛、成交量与共享的时间轴
type Series struct {
	Timestamps []int64
	Candles    []CandleRow
	Volumes    []VolumeBar
	Bounds     Bounds
}

// Build 从 K 线序列构建图表序列
// 输入行可能残缺（字段为 0），全零行保留占位但不参与边界计算
func Build(bars []domain.KlineBar) Series {
	s := Series{
		Timestamps: make([]int64, 0, len(bars)),
		Candles:    make([]CandleRow, 0, len(bars)),
		Volumes:    make([]VolumeBar, 0, len(bars)),
	}

	for _, b := range bars {
		s.Timestamps = append(s.Timestamps, b.Timestamp)
		s.Candles = append(s.Candles, CandleRow{b.Open, b.Close, b.Low, b.High})
		s.Volumes = append(s.Volumes, VolumeBar{Value: b.Volume, Bullish: b.Bullish()})

		if b.IsZero() {
			continue
		}
		lo, hi := effectiveRange(b)
		if !s.Bounds.Valid {
			s.Bounds = Bounds{MinLow: lo, MaxHigh: hi, MaxVolume: b.Volume, Valid: true}
			continue
		}
		if lo < s.Bounds.MinLow {
			s.Bounds.MinLow = lo
		}
		if hi > s.Bounds.MaxHigh {
			s.Bounds.MaxHigh = hi
		}
		if b.Volume > s.Bounds.MaxVolume {
			s.Bounds.MaxVolume = b.Volume
		}
	}
	return s
}

// effectiveRange 计算单根 K 线的有效价格区间
// 残缺行里为 0 的字段不参与，避免把下边界拖到 0
func effectiveRange(b domain.KlineBar) (lo, hi float64) {
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close} {
		if v <= 0 {
			continue
		}
		if lo == 0 || v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
