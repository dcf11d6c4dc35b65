package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zacy-Sokach/PolyWrite/internal/invoke"
	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
)

// row 控制面板中的一行
type row struct {
	info    models.Info
	watcher *status.Watcher
	status  models.Status
	// inFlight 已发出但未完成的调用数
	inFlight int
	lastErr  string
	lastOK   bool
}

// ControlPanel 每个模型一行，显示状态并提供调用入口。
// 状态只来自 StatusStore 的订阅，调用结果不会改变状态。
type ControlPanel struct {
	rows       []*row
	selected   int
	dispatcher *invoke.Dispatcher
	log        *logging.Logger
	keys       KeyMap
	bar        progress.Model
	spin       spinner.Model
	ctx        context.Context
	width      int
	focused    bool
}

// NewControlPanel 为每个模型订阅状态
func NewControlPanel(ctx context.Context, store *status.Store, dispatcher *invoke.Dispatcher, log *logging.Logger) *ControlPanel {
	if log == nil {
		log = logging.Nop()
	}
	p := &ControlPanel{
		dispatcher: dispatcher,
		log:        log.Named("panel"),
		keys:       DefaultKeyMap,
		bar:        progress.New(progress.WithDefaultGradient(), progress.WithWidth(24)),
		spin:       spinner.New(spinner.WithSpinner(spinner.Dot)),
		ctx:        ctx,
		width:      60,
	}
	for _, id := range models.All() {
		w := status.Watch(store, id)
		p.rows = append(p.rows, &row{
			info:    models.InfoFor(id),
			watcher: w,
			status:  w.Initial(),
		})
	}
	return p
}

// Init 开始监听全部模型的状态
func (p *ControlPanel) Init() tea.Cmd {
	cmds := []tea.Cmd{p.spin.Tick}
	for _, r := range p.rows {
		cmds = append(cmds, waitStatus(r.watcher))
	}
	return tea.Batch(cmds...)
}

// waitStatus 读取下一次状态，观察者关闭后返回 nil
func waitStatus(w *status.Watcher) tea.Cmd {
	return func() tea.Msg {
		select {
		case st := <-w.Updates():
			return StatusMsg{ID: w.ID(), Status: st}
		case <-w.Done():
			return nil
		}
	}
}

// Focus 设置焦点
func (p *ControlPanel) Focus(focused bool) {
	p.focused = focused
}

// SetWidth 设置宽度
func (p *ControlPanel) SetWidth(width int) {
	p.width = width
	barWidth := width / 3
	if barWidth < 10 {
		barWidth = 10
	}
	p.bar.Width = barWidth
}

// Selected 当前选中的模型
func (p *ControlPanel) Selected() models.ID {
	return p.rows[p.selected].info.ID
}

// Status 返回面板当前显示的状态
func (p *ControlPanel) Status(id models.ID) models.Status {
	if r := p.row(id); r != nil {
		return r.status
	}
	return models.IdleStatus()
}

func (p *ControlPanel) row(id models.ID) *row {
	for _, r := range p.rows {
		if r.info.ID == id {
			return r
		}
	}
	return nil
}

// Update 处理消息
func (p *ControlPanel) Update(msg tea.Msg) (*ControlPanel, tea.Cmd) {
	switch msg := msg.(type) {
	case StatusMsg:
		r := p.row(msg.ID)
		if r == nil {
			return p, nil
		}
		r.status = msg.Status
		return p, waitStatus(r.watcher)

	case InvokeResultMsg:
		r := p.row(msg.Outcome.Model)
		if r == nil {
			return p, nil
		}
		if r.inFlight > 0 {
			r.inFlight--
		}
		r.lastOK = msg.Outcome.OK()
		r.lastErr = ""
		if msg.Outcome.Err != nil {
			r.lastErr = msg.Outcome.Err.Error()
		}
		return p, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spin, cmd = p.spin.Update(msg)
		return p, cmd

	case tea.KeyMsg:
		if !p.focused {
			return p, nil
		}
		switch {
		case key.Matches(msg, p.keys.Up):
			if p.selected > 0 {
				p.selected--
			}
		case key.Matches(msg, p.keys.Down):
			if p.selected < len(p.rows)-1 {
				p.selected++
			}
		case key.Matches(msg, p.keys.Invoke):
			return p, p.Invoke(p.Selected())
		case key.Matches(msg, p.keys.Proofreader):
			return p, p.Invoke(models.Proofreader)
		case key.Matches(msg, p.keys.Language):
			return p, p.Invoke(models.LanguageModel)
		case key.Matches(msg, p.keys.Summarizer):
			return p, p.Invoke(models.Summarizer)
		}
	}
	return p, nil
}

// Invoke 调用模型。无论当前状态如何都允许调用，包括调用尚未完成时。
func (p *ControlPanel) Invoke(id models.ID) tea.Cmd {
	if r := p.row(id); r != nil {
		r.inFlight++
	}
	ch := p.dispatcher.Invoke(p.ctx, id)
	return func() tea.Msg {
		out, ok := <-ch
		if !ok {
			return nil
		}
		return InvokeResultMsg{Outcome: out}
	}
}

// View 渲染面板
func (p *ControlPanel) View() string {
	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("模型"))
	sb.WriteString("\n\n")

	for i, r := range p.rows {
		line := p.renderRow(r)
		if p.focused && i == p.selected {
			line = SelectedRowStyle.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
		if detail := p.renderDetail(r); detail != "" {
			sb.WriteString("   ")
			sb.WriteString(detail)
			sb.WriteString("\n")
		}
	}

	style := PaneStyle
	if p.focused {
		style = FocusedPaneStyle
	}
	return style.Width(p.width).Render(strings.TrimRight(sb.String(), "\n"))
}

func (p *ControlPanel) renderRow(r *row) string {
	label := lipgloss.NewStyle().Width(16).Render(r.info.Label)
	parts := []string{label, Badge(r.status.State)}

	switch r.status.State {
	case models.StateChecking:
		parts = append(parts, p.spin.View())
	case models.StateDownloading:
		if pct, ok := r.status.DisplayProgress(); ok {
			parts = append(parts, p.bar.ViewAs(pct/100), fmt.Sprintf("%3.0f%%", pct))
		}
	}
	if r.inFlight > 0 {
		parts = append(parts, DimStyle.Render("调用中…"))
	}
	return strings.Join(parts, " ")
}

func (p *ControlPanel) renderDetail(r *row) string {
	switch {
	case r.status.Message != "":
		return DimStyle.Render(r.status.Message)
	case r.lastErr != "":
		return ErrorTextStyle.Render(r.lastErr)
	case r.lastOK:
		return DimStyle.Render("调用已完成")
	}
	return DimStyle.Render(r.info.Description)
}

// Close 取消全部订阅
func (p *ControlPanel) Close() {
	for _, r := range p.rows {
		r.watcher.Close()
	}
}
