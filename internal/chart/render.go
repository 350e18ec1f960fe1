package chart

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bullStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	bearStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	axisStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Render 把图表序列渲染成终端蜡烛图（每根蜡烛一列）
// width 限制显示的蜡烛数量（取最近的），height 是价格区的行数
func Render(s Series, width, height int) string {
	if height < 3 {
		height = 3
	}
	if width < 1 {
		width = 1
	}
	if !s.Bounds.Valid || len(s.Candles) == 0 {
		return axisStyle.Render("(暂无 K 线数据)")
	}

	candles := s.Candles
	if len(candles) > width {
		candles = candles[len(candles)-width:]
	}

	lo, hi := s.Bounds.MinLow, s.Bounds.MaxHigh
	if hi <= lo {
		hi = lo + 1
	}
	step := (hi - lo) / float64(height)

	// 自上而下逐行填充：每根蜡烛在该价格层显示实体、影线或空白
	rows := make([]string, height)
	for line := 0; line < height; line++ {
		top := hi - float64(line)*step
		bottom := top - step
		var sb strings.Builder
		for _, c := range candles {
			open, close_, low, high := c[0], c[1], c[2], c[3]
			if open == 0 && close_ == 0 && low == 0 && high == 0 {
				sb.WriteString(" ")
				continue
			}
			bodyTop := math.Max(open, close_)
			bodyBottom := math.Min(open, close_)
			style := bullStyle
			if close_ < open {
				style = bearStyle
			}
			switch {
			case bodyTop > bottom && bodyBottom < top:
				sb.WriteString(style.Render("█"))
			case high > bottom && low < top:
				sb.WriteString(style.Render("│"))
			default:
				sb.WriteString(" ")
			}
		}
		rows[line] = sb.String()
	}

	// 成交量行：按最大成交量归一化成 8 级块字符
	volumes := s.Volumes
	if len(volumes) > width {
		volumes = volumes[len(volumes)-width:]
	}
	var vol strings.Builder
	blocks := []rune(" ▁▂▃▄▅▆▇█")
	for _, v := range volumes {
		idx := 0
		if s.Bounds.MaxVolume > 0 {
			idx = int(v.Value / s.Bounds.MaxVolume * float64(len(blocks)-1))
			if idx >= len(blocks) {
				idx = len(blocks) - 1
			}
		}
		ch := string(blocks[idx])
		if v.Bullish {
			vol.WriteString(bullStyle.Render(ch))
		} else {
			vol.WriteString(bearStyle.Render(ch))
		}
	}

	var out strings.Builder
	out.WriteString(axisStyle.Render(formatPrice(hi)) + "\n")
	out.WriteString(strings.Join(rows, "\n"))
	out.WriteString("\n" + axisStyle.Render(formatPrice(lo)) + "\n")
	out.WriteString(vol.String())
	return out.String()
}

// formatPrice 按价格量级选择小数位数
func formatPrice(v float64) string {
	switch {
	case v >= 1000:
		return strconv.FormatFloat(v, 'f', 1, 64)
	case v >= 1:
		return strconv.FormatFloat(v, 'f', 2, 64)
	default:
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
}
