package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Zacy-Sokach/PolyWrite/internal/suggest"
)

// Editor 写作区域，文本变化交给 SuggestionEngine，建议以浮框显示在光标所在行附近
type Editor struct {
	textarea textarea.Model
	engine   *suggest.Engine
	keys     KeyMap

	// changed 引擎状态改变的信号，容量为 1，多次改变合并为一次
	changed chan struct{}
	done    chan struct{}
	once    sync.Once

	snap    suggest.Snapshot
	focused bool
	width   int
	height  int

	// yOffset 与 textarea 视口同步的滚动位置，单位为屏幕行
	yOffset    int
	lineHeight int
}

// NewEditor 创建编辑器，opts.OnChange 会被覆盖
func NewEditor(opts suggest.Options) *Editor {
	ta := textarea.New()
	ta.Placeholder = "开始写作…"
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(10)

	e := &Editor{
		textarea: ta,
		keys:     DefaultKeyMap,
		changed:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		width:    60,
		height:   10,
	}
	e.lineHeight = opts.LineHeight
	if e.lineHeight <= 0 {
		e.lineHeight = suggest.DefaultLineHeight
	}
	opts.OnChange = func(suggest.Snapshot) {
		select {
		case e.changed <- struct{}{}:
		default:
		}
	}
	e.engine = suggest.NewEngine(opts)
	return e
}

// Init 开始监听建议变化
func (e *Editor) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, e.waitSuggestion())
}

func (e *Editor) waitSuggestion() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-e.changed:
			return SuggestionMsg{Snapshot: e.engine.Snapshot()}
		case <-e.done:
			return nil
		}
	}
}

// Focus 设置焦点
func (e *Editor) Focus(focused bool) tea.Cmd {
	e.focused = focused
	if focused {
		return e.textarea.Focus()
	}
	e.textarea.Blur()
	return nil
}

// SetSize 设置大小
func (e *Editor) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.textarea.SetWidth(width)
	e.textarea.SetHeight(height)
	e.scroll()
}

// Value 当前文档
func (e *Editor) Value() string {
	return e.textarea.Value()
}

// Suggestion 当前建议状态
func (e *Editor) Suggestion() suggest.Snapshot {
	return e.snap
}

// Update 处理消息
func (e *Editor) Update(msg tea.Msg) (*Editor, tea.Cmd) {
	switch msg := msg.(type) {
	case SuggestionMsg:
		e.snap = msg.Snapshot
		return e, e.waitSuggestion()

	case tea.KeyMsg:
		if !e.focused {
			return e, nil
		}
		switch {
		case key.Matches(msg, e.keys.Accept):
			if doc, ok := e.engine.Accept(e.textarea.Value()); ok {
				// SetValue 会把视口移回顶部
				e.textarea.SetValue(doc)
				e.yOffset = 0
				e.snap = e.engine.Snapshot()
			}
			return e, nil
		case key.Matches(msg, e.keys.Dismiss):
			e.engine.Dismiss()
			e.snap = e.engine.Snapshot()
			return e, nil
		}

		before := e.textarea.Value()
		var cmd tea.Cmd
		e.textarea, cmd = e.textarea.Update(msg)
		e.scroll()
		if after := e.textarea.Value(); after != before {
			e.engine.TextChanged(after, e.textarea.Line())
		}
		return e, cmd
	}

	var cmd tea.Cmd
	e.textarea, cmd = e.textarea.Update(msg)
	e.scroll()
	return e, cmd
}

// View 渲染编辑器，建议框插入在光标行下方
func (e *Editor) View() string {
	body := e.textarea.View()
	if e.snap.State == suggest.Visible && e.snap.Suggestion.Actionable() {
		box := SuggestionStyle.Render(e.snap.Suggestion.Text + "  " + DimStyle.Render("tab 采纳 · esc 忽略"))
		body = insertAt(body, box, e.boxRow())
	}

	style := PaneStyle
	if e.focused {
		style = FocusedPaneStyle
	}
	return style.Render(TitleStyle.Render("编辑器") + "\n" + body)
}

// boxRow 把建议位置从文档行换算成可视区域内的行。
// Position.Top 以文档第一行为基准，减去滚动和软换行的差值后限制在视口内
func (e *Editor) boxRow() int {
	pos := e.snap.Position
	top := pos.Top - pos.Line*e.lineHeight
	row := e.visualRow(pos.Line) - e.yOffset
	if h := e.textarea.Height(); row > h-1 {
		row = h - 1
	}
	if row < 0 {
		row = 0
	}
	return top + row*e.lineHeight
}

// visualRow 文档第 line 行（含光标所在的软换行）对应的屏幕行
func (e *Editor) visualRow(line int) int {
	lines := strings.Split(e.textarea.Value(), "\n")
	width := e.textarea.Width()
	row := 0
	for i := 0; i < line; i++ {
		if i >= len(lines) {
			row++
			continue
		}
		row += wrappedHeight(lines[i], width)
	}
	if line == e.textarea.Line() {
		row += e.textarea.LineInfo().RowOffset
	}
	return row
}

// scroll 按 textarea 的规则跟随光标：光标越出视口时刚好滚到可见
func (e *Editor) scroll() {
	row := e.visualRow(e.textarea.Line())
	h := e.textarea.Height()
	if row < e.yOffset {
		e.yOffset = row
	} else if row > e.yOffset+h-1 {
		e.yOffset = row - h + 1
	}
}

// wrappedHeight 一行文本在给定宽度下占的屏幕行数，按显示宽度估算
func wrappedHeight(line string, width int) int {
	if width <= 0 {
		return 1
	}
	return lipgloss.Width(line)/width + 1
}

// insertAt 把 block 插入到 base 的第 line 行之后，超出范围时追加在末尾
func insertAt(base, block string, line int) string {
	lines := strings.Split(base, "\n")
	if line < 0 {
		line = 0
	}
	if line > len(lines) {
		line = len(lines)
	}
	out := make([]string, 0, len(lines)+4)
	out = append(out, lines[:line]...)
	out = append(out, strings.Split(block, "\n")...)
	out = append(out, lines[line:]...)
	return strings.Join(out, "\n")
}

// Close 停止建议引擎
func (e *Editor) Close() {
	e.once.Do(func() {
		e.engine.Close()
		close(e.done)
	})
}
