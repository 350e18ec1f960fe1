package dashboard

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/moneymaster/tradedash/internal/chart"
	"github.com/moneymaster/tradedash/internal/control"
	"github.com/moneymaster/tradedash/internal/domain"
	"github.com/moneymaster/tradedash/internal/view"
)

var modelLog = logrus.WithField("module", "dashboard.model")

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	upStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	downStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	flatStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
)

// Actions 把按键转成后端动作；实现方（runner）负责异步执行
type Actions interface {
	Strategy(cmd control.Command) tea.Cmd
	ClearHistory() tea.Cmd
	SwitchInterval(interval string) tea.Cmd
}

// ActionDoneMsg 动作执行完毕（err 为 nil 表示成功）
type ActionDoneMsg struct {
	Label string
	Err   error
}

type updateMsg struct {
	snapshot view.Model
}

type tickMsg time.Time

// intervals 可切换的 K 线周期，按 i 键循环
var intervals = []string{"1m", "5m", "15m", "1h", "4h", "1d"}

type model struct {
	snapshot view.Model
	store    *view.Store
	actions  Actions

	symbol   string
	interval string

	width  int
	height int

	// 清空历史需要二次确认
	confirmClear bool
	pendingLabel string
}

func newModel(store *view.Store, actions Actions, symbol, interval string) model {
	return model{
		snapshot: store.Snapshot(),
		store:    store,
		actions:  actions,
		symbol:   symbol,
		interval: interval,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case updateMsg:
		m.snapshot = msg.snapshot
		return m, m.waitForUpdate()
	case tickMsg:
		return m, m.tick()
	case ActionDoneMsg:
		if msg.Err != nil {
			modelLog.Errorf("动作 %s 失败: %v", msg.Label, msg.Err)
		}
		m.pendingLabel = ""
		return m, nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	// 确认对话框只认 y/n
	if m.confirmClear {
		switch key {
		case "y", "Y":
			m.confirmClear = false
			m.pendingLabel = "清空历史"
			return m, m.actions.ClearHistory()
		default:
			m.confirmClear = false
			return m, nil
		}
	}

	// 上一个动作还没回执时忽略新的动作键，避免并发命令
	if m.pendingLabel != "" {
		switch key {
		case "s", "x", "p", "c", "i":
			return m, nil
		}
	}

	switch key {
	case "ctrl+c", "q":
		// Bubble Tea 会拦截 Ctrl+C，主动补发一次 SIGINT，
		// 让外层走统一的优雅退出链路
		_ = syscall.Kill(os.Getpid(), syscall.SIGINT)
		return m, tea.Quit
	case "s":
		m.pendingLabel = "启动策略"
		return m, m.actions.Strategy(control.CommandStart)
	case "x":
		m.pendingLabel = "停止策略"
		return m, m.actions.Strategy(control.CommandStop)
	case "p":
		m.pendingLabel = "暂停策略"
		return m, m.actions.Strategy(control.CommandPause)
	case "c":
		m.confirmClear = true
		return m, nil
	case "i":
		next := nextInterval(m.interval)
		m.interval = next
		m.pendingLabel = "切换周期 " + next
		return m, m.actions.SwitchInterval(next)
	}
	return m, nil
}

func nextInterval(cur string) string {
	for i, iv := range intervals {
		if iv == cur {
			return intervals[(i+1)%len(intervals)]
		}
	}
	return intervals[0]
}

func (m model) View() string {
	availableWidth := m.width - 4
	if availableWidth < 80 {
		availableWidth = 80
	}
	leftWidth := availableWidth * 3 / 5
	rightWidth := availableWidth - leftWidth - 2

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderPrice(leftWidth),
		m.renderChart(leftWidth),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderStrategy(rightWidth),
		m.renderBalance(rightWidth),
		m.renderTrades(rightWidth),
		m.renderAnalysis(rightWidth),
	)

	content := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	sections := []string{m.renderHeader(), content, m.renderNotices()}
	if m.confirmClear {
		sections = append(sections, errStyle.Render("确认清空全部交易历史? (y/n)"))
	}
	sections = append(sections, m.renderHelp())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderHeader() string {
	pending := ""
	if m.pendingLabel != "" {
		pending = " | " + warnStyle.Render(m.pendingLabel+"...")
	}
	title := fmt.Sprintf("MoneyMaster Dashboard | %s @ %s | %s%s",
		m.symbol, m.interval, time.Now().Format("15:04:05"), pending)
	return titleStyle.Padding(0, 1).Render(title)
}

func (m model) renderPrice(width int) string {
	snap := m.snapshot
	tick := snap.Tick

	var lines []string
	lines = append(lines, titleStyle.Render("Price"))
	lines = append(lines, strings.Repeat("─", max(1, width-4)))

	style := flatStyle
	arrow := " "
	switch snap.Direction {
	case domain.PriceUp:
		style, arrow = upStyle, "▲"
	case domain.PriceDown:
		style, arrow = downStyle, "▼"
	}
	lines = append(lines, style.Render(fmt.Sprintf("%s %s", tick.LastPrice.String(), arrow)))
	lines = append(lines, fmt.Sprintf("Bid:%s Ask:%s", tick.BestBid.String(), tick.BestAsk.String()))
	lines = append(lines, fmt.Sprintf("24h High:%s Low:%s Vol:%s",
		tick.High24h.String(), tick.Low24h.String(), tick.Volume24h.String()))
	if !tick.Timestamp.IsZero() {
		lines = append(lines, dimStyle.Render("Updated: "+tick.Timestamp.Format("15:04:05")))
	}

	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m model) renderChart(width int) string {
	series := chart.Build(m.snapshot.Bars)

	chartHeight := m.height - 18
	if chartHeight < 8 {
		chartHeight = 8
	}
	body := chart.Render(series, max(10, width-4), chartHeight)

	content := titleStyle.Render(fmt.Sprintf("Kline (%s, %d bars)", m.interval, len(m.snapshot.Bars))) +
		"\n" + strings.Repeat("─", max(1, width-4)) + "\n" + body
	return panelStyle.Width(width).Render(content)
}

func (m model) renderStrategy(width int) string {
	snap := m.snapshot
	var lines []string
	lines = append(lines, titleStyle.Render("Strategy"))
	lines = append(lines, strings.Repeat("─", max(1, width-4)))

	if !snap.HasStrategy {
		lines = append(lines, dimStyle.Render("等待策略状态..."))
		return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
	}

	st := snap.Strategy
	statusStyle := flatStyle
	switch st.Status {
	case domain.StrategyRunning:
		statusStyle = upStyle
	case domain.StrategyError:
		statusStyle = errStyle
	case domain.StrategyPaused:
		statusStyle = warnStyle
	}
	lines = append(lines, fmt.Sprintf("%s %s", st.StrategyName, statusStyle.Render(string(st.Status))))
	if st.LastError != "" {
		lines = append(lines, errStyle.Render("Err: "+st.LastError))
	}

	pos := st.Position
	lines = append(lines, fmt.Sprintf("Pos:%s Avg:%s", pos.Position.String(), pos.AvgEntryPrice.String()))
	lines = append(lines, fmt.Sprintf("uPnL:%s PnL:%s Fee:%s",
		pos.UnrealizedPnL.String(), pos.TotalPnL.String(), pos.TotalCommission.String()))
	if !st.LastRunTime.IsZero() {
		lines = append(lines, dimStyle.Render("Last run: "+st.LastRunTime.Format("15:04:05")))
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m model) renderBalance(width int) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Balance"))
	lines = append(lines, strings.Repeat("─", max(1, width-4)))

	if len(m.snapshot.Balance) == 0 {
		lines = append(lines, dimStyle.Render("-"))
	} else {
		ccys := make([]string, 0, len(m.snapshot.Balance))
		for ccy := range m.snapshot.Balance {
			ccys = append(ccys, ccy)
		}
		sort.Strings(ccys)
		for _, ccy := range ccys {
			d := m.snapshot.Balance[ccy]
			lines = append(lines, fmt.Sprintf("%-6s Total:%s Avail:%s Frozen:%s",
				ccy, d.Total.String(), d.Available.String(), d.Frozen.String()))
		}
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m model) renderTrades(width int) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Trades"))
	lines = append(lines, strings.Repeat("─", max(1, width-4)))

	trades := m.snapshot.Trades
	if len(trades) == 0 {
		lines = append(lines, dimStyle.Render("-"))
	} else {
		// 最近 5 笔，新的在上
		shown := 0
		for i := len(trades) - 1; i >= 0 && shown < 5; i-- {
			t := trades[i]
			sideStyle := upStyle
			if t.Side == domain.SideSell {
				sideStyle = downStyle
			}
			lines = append(lines, fmt.Sprintf("%s %s %s@%s pnl:%s",
				t.TradeTime.Format("15:04:05"),
				sideStyle.Render(string(t.Side)),
				t.Quantity.String(), t.Price.String(), t.RealizedPnL.String()))
			shown++
		}
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m model) renderAnalysis(width int) string {
	a := m.snapshot.Analysis
	var lines []string
	lines = append(lines, titleStyle.Render("AI Analysis"))
	lines = append(lines, strings.Repeat("─", max(1, width-4)))

	if a.Trend == "" {
		lines = append(lines, dimStyle.Render("-"))
	} else {
		trendStyle := flatStyle
		switch strings.ToLower(a.Trend) {
		case "up", "bullish":
			trendStyle = upStyle
		case "down", "bearish":
			trendStyle = downStyle
		}
		lines = append(lines, fmt.Sprintf("Trend:%s Conf:%.0f%%", trendStyle.Render(a.Trend), a.Confidence*100))
		lines = append(lines, fmt.Sprintf("Sup:%.4g Res:%.4g", a.Support, a.Resistance))
		if a.Reasoning != "" {
			lines = append(lines, dimStyle.Render(truncate(a.Reasoning, max(10, (width-6)*2))))
		}
	}
	return panelStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m model) renderNotices() string {
	notices := m.snapshot.Notices
	if len(notices) == 0 {
		return ""
	}
	var lines []string
	for _, n := range notices {
		style := dimStyle
		switch n.Level {
		case view.NoticeWarn:
			style = warnStyle
		case view.NoticeError:
			style = errStyle
		}
		lines = append(lines, style.Render(fmt.Sprintf("[%s] %s", n.Time.Format("15:04:05"), n.Text)))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderHelp() string {
	return dimStyle.Render("s:启动 x:停止 p:暂停 c:清空历史 i:切换周期 q:退出")
}

// waitForUpdate 等待变更信号后拉取最新快照
// 信号在 sigchan 里合并，连续多次 Dispatch 只触发一次重绘
func (m model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-m.store.Changed().C()
		m.store.Changed().Drain()
		return updateMsg{snapshot: m.store.Snapshot()}
	}
}

// tick 时钟刷新（header 时间等与快照无关的部分）
func (m model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// truncate 按 rune 截断，分析文本多为中文，按字节切会截出乱码
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
