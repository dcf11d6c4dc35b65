// Package tui 是 PolyWrite 的终端界面：模型控制面板、写作编辑器、日志和帮助。
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/Zacy-Sokach/PolyWrite/internal/invoke"
	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
	"github.com/Zacy-Sokach/PolyWrite/internal/suggest"
)

var (
	// ErrNoTerminal 标准输出不是终端，界面无处渲染
	ErrNoTerminal = errors.New("标准输出不是终端")
	// ErrMissingDependency 构造界面时缺少必需的组件
	ErrMissingDependency = errors.New("缺少界面依赖")
)

// Pane 当前获得焦点的面板
type Pane int

const (
	PanelPane Pane = iota
	EditorPane
)

// Deps 界面依赖
type Deps struct {
	Store      *status.Store
	Dispatcher *invoke.Dispatcher
	Logger     *logging.Logger
	Suggest    suggest.Options
	// Status 状态栏显示的连接信息
	Status  string
	Version string
}

// App 根模型
type App struct {
	deps   Deps
	ctx    context.Context
	cancel context.CancelFunc

	panel  *ControlPanel
	editor *Editor
	logs   *LogPane
	help   help.Model
	keys   KeyMap

	focus    Pane
	showHelp bool
	showLogs bool
	width    int
	height   int
}

// NewApp 创建界面，缺少必需依赖时直接返回错误
func NewApp(deps Deps) (*App, error) {
	var missing []string
	if deps.Store == nil {
		missing = append(missing, "status store")
	}
	if deps.Dispatcher == nil {
		missing = append(missing, "dispatcher")
	}
	if deps.Logger == nil {
		missing = append(missing, "logger")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrMissingDependency, missing)
	}

	if deps.Suggest.Logger == nil {
		deps.Suggest.Logger = deps.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		panel:  NewControlPanel(ctx, deps.Store, deps.Dispatcher, deps.Logger),
		editor: NewEditor(deps.Suggest),
		logs:   NewLogPane(deps.Logger),
		help:   help.New(),
		keys:   DefaultKeyMap,
	}
	a.setFocus(PanelPane)
	return a, nil
}

// Init 实现 tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.panel.Init(), a.editor.Init(), a.logs.Init())
}

func (a *App) setFocus(p Pane) tea.Cmd {
	a.focus = p
	a.panel.Focus(p == PanelPane)
	return a.editor.Focus(p == EditorPane)
}

// Focus 当前焦点
func (a *App) Focus() Pane {
	return a.focus
}

// Update 实现 tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, a.keys.Quit):
			return a, tea.Quit
		case key.Matches(msg, a.keys.Help):
			a.showHelp = !a.showHelp
			return a, nil
		case key.Matches(msg, a.keys.Logs):
			a.showLogs = !a.showLogs
			return a, nil
		case key.Matches(msg, a.keys.SwitchPane):
			next := EditorPane
			if a.focus == EditorPane {
				next = PanelPane
			}
			return a, a.setFocus(next)
		}
		// 按键只交给有焦点的面板
		if a.focus == PanelPane {
			a.panel, cmd = a.panel.Update(msg)
		} else {
			a.editor, cmd = a.editor.Update(msg)
		}
		return a, cmd

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case StatusMsg, InvokeResultMsg:
		a.panel, cmd = a.panel.Update(msg)
		return a, cmd

	case SuggestionMsg:
		a.editor, cmd = a.editor.Update(msg)
		return a, cmd

	case LogMsg:
		a.logs, cmd = a.logs.Update(msg)
		return a, cmd
	}

	a.panel, cmd = a.panel.Update(msg)
	cmds = append(cmds, cmd)
	a.editor, cmd = a.editor.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

func (a *App) resize() {
	inner := a.width - 4
	if inner < 20 {
		inner = 20
	}
	a.panel.SetWidth(inner)
	a.help.Width = a.width

	editorHeight := a.height - 18
	if a.showLogs {
		editorHeight -= 10
	}
	if editorHeight < 3 {
		editorHeight = 3
	}
	a.editor.SetSize(inner, editorHeight)
	a.logs.SetSize(inner, 8)
}

// View 实现 tea.Model
func (a *App) View() string {
	if a.showHelp {
		return lipgloss.JoinVertical(lipgloss.Left,
			HelpView(a.contentWidth()),
			a.help.View(a.keys),
		)
	}

	sections := []string{a.panel.View(), a.editor.View()}
	if a.showLogs {
		sections = append(sections, a.logs.View())
	}
	sections = append(sections, a.statusBar(), a.help.View(a.keys))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (a *App) contentWidth() int {
	if a.width <= 4 {
		return 60
	}
	return a.width - 4
}

func (a *App) statusBar() string {
	text := fmt.Sprintf("PolyWrite %s | %s | 错误 %d", a.deps.Version, a.deps.Status, a.deps.Logger.Count(logging.LevelError))
	width := a.width
	if width <= 0 {
		width = lipgloss.Width(text) + 2
	}
	return StatusBarStyle.Width(width).Render(text)
}

// Close 释放订阅和定时器，可以重复调用
func (a *App) Close() {
	a.cancel()
	a.panel.Close()
	a.editor.Close()
	a.logs.Close()
}

// Run 在当前终端运行界面直到退出
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if !IsTerminal(os.Stdout) {
		return ErrNoTerminal
	}
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("界面运行错误: %w", err)
	}
	return nil
}

// IsTerminal 判断文件是否连接到终端
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
