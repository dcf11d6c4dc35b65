package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap 全局与各面板的按键绑定
type KeyMap struct {
	Quit        key.Binding
	SwitchPane  key.Binding
	Help        key.Binding
	Logs        key.Binding
	Up          key.Binding
	Down        key.Binding
	Invoke      key.Binding
	Proofreader key.Binding
	Language    key.Binding
	Summarizer  key.Binding
	Accept      key.Binding
	Dismiss     key.Binding
}

// DefaultKeyMap 默认按键
var DefaultKeyMap = KeyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "退出"),
	),
	SwitchPane: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "切换面板"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "帮助"),
	),
	Logs: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "日志"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "上移"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "下移"),
	),
	Invoke: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "调用模型"),
	),
	Proofreader: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "校对"),
	),
	Language: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "语言模型"),
	),
	Summarizer: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "摘要"),
	),
	Accept: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "采纳建议"),
	),
	Dismiss: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "忽略建议"),
	),
}

// ShortHelp 实现 help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SwitchPane, k.Invoke, k.Accept, k.Help, k.Quit}
}

// FullHelp 实现 help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Invoke, k.Proofreader, k.Language, k.Summarizer},
		{k.Accept, k.Dismiss},
		{k.SwitchPane, k.Logs, k.Help, k.Quit},
	}
}
