package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
)

const logPaneLimit = 200

// LogPane 显示最近的日志
type LogPane struct {
	log      *logging.Logger
	viewport viewport.Model
	notify   chan struct{}
	done     chan struct{}
	width    int
}

// NewLogPane 创建日志面板并注册实时回调
func NewLogPane(log *logging.Logger) *LogPane {
	p := &LogPane{
		log:      log,
		viewport: viewport.New(80, 12),
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		width:    80,
	}
	log.SetOnLog(func(logging.Entry) {
		select {
		case p.notify <- struct{}{}:
		default:
		}
	})
	p.refresh()
	return p
}

// Init 开始监听日志
func (p *LogPane) Init() tea.Cmd {
	return p.wait()
}

func (p *LogPane) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-p.notify:
			return LogMsg{}
		case <-p.done:
			return nil
		}
	}
}

// SetSize 设置大小
func (p *LogPane) SetSize(width, height int) {
	p.width = width
	p.viewport.Width = width
	p.viewport.Height = height
	p.refresh()
}

func (p *LogPane) refresh() {
	entries := p.log.History(logPaneLimit)
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		line := e.String()
		if e.Level == logging.LevelError {
			line = ErrorTextStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, DimStyle.Render("暂无日志"))
	}
	p.viewport.SetContent(strings.Join(lines, "\n"))
	p.viewport.GotoBottom()
}

// Update 处理消息
func (p *LogPane) Update(msg tea.Msg) (*LogPane, tea.Cmd) {
	if _, ok := msg.(LogMsg); ok {
		p.refresh()
		return p, p.wait()
	}
	var cmd tea.Cmd
	p.viewport, cmd = p.viewport.Update(msg)
	return p, cmd
}

// View 渲染日志面板
func (p *LogPane) View() string {
	return PaneStyle.Width(p.width).Render(TitleStyle.Render("日志") + "\n" + p.viewport.View())
}

// Close 取消日志回调
func (p *LogPane) Close() {
	select {
	case <-p.done:
	default:
		p.log.SetOnLog(nil)
		close(p.done)
	}
}
