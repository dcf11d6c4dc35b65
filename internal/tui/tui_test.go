package tui

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zacy-Sokach/PolyWrite/internal/host"
	"github.com/Zacy-Sokach/PolyWrite/internal/invoke"
	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
	"github.com/Zacy-Sokach/PolyWrite/internal/suggest"
)

type fakeSender struct {
	mu       sync.Mutex
	requests []host.Request
	reply    json.RawMessage
}

func (f *fakeSender) Send(_ context.Context, req host.Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.reply != nil {
		return f.reply, nil
	}
	return json.RawMessage(`{"type":"RESULT"}`), nil
}

func (f *fakeSender) sent() []host.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.Request(nil), f.requests...)
}

type fixture struct {
	app    *App
	store  *status.Store
	sender *fakeSender
	log    *logging.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logging.Nop()
	store := status.NewStore(log)
	sender := &fakeSender{}
	app, err := NewApp(Deps{
		Store:      store,
		Dispatcher: invoke.NewDispatcher(sender, log),
		Logger:     log,
		Suggest:    suggest.Options{Delay: 10 * time.Millisecond},
		Status:     "simulated",
		Version:    "test",
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return &fixture{app: app, store: store, sender: sender, log: log}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run 在限定时间内执行命令
func run(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	require.NotNil(t, cmd)
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("命令执行超时")
	}
	return nil
}

func TestNewAppRequiresDependencies(t *testing.T) {
	_, err := NewApp(Deps{})
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.Contains(t, err.Error(), "status store")
	assert.Contains(t, err.Error(), "dispatcher")
	assert.Contains(t, err.Error(), "logger")
}

func TestRunWithoutTerminal(t *testing.T) {
	if IsTerminal(os.Stdout) {
		t.Skip("标准输出是终端")
	}
	f := newFixture(t)
	assert.ErrorIs(t, f.app.Run(context.Background()), ErrNoTerminal)
}

func TestPanelShowsAllModels(t *testing.T) {
	f := newFixture(t)
	view := f.app.View()
	for _, id := range models.All() {
		assert.Contains(t, view, models.InfoFor(id).Label)
	}
	assert.Contains(t, view, string(models.StateIdle))
}

func TestPanelInvokeByNumber(t *testing.T) {
	f := newFixture(t)

	_, cmd := f.app.Update(keyRunes("2"))
	msg := run(t, cmd)

	result, ok := msg.(InvokeResultMsg)
	require.True(t, ok)
	assert.Equal(t, models.LanguageModel, result.Outcome.Model)
	assert.Equal(t, []host.Request{{Type: models.InvokeLanguageModel}}, f.sender.sent())

	f.app.Update(msg)
	assert.Contains(t, f.app.View(), "调用已完成")
	// 调用不改变状态
	assert.Equal(t, models.IdleStatus(), f.store.Current(models.LanguageModel))
}

func TestPanelInvokeSelectedRow(t *testing.T) {
	f := newFixture(t)

	f.app.Update(tea.KeyMsg{Type: tea.KeyDown})
	f.app.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, models.Summarizer, f.app.panel.Selected())

	_, cmd := f.app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	run(t, cmd)
	assert.Equal(t, []host.Request{{Type: models.InvokeSummarizer}}, f.sender.sent())
}

func TestPanelInvokeAlwaysEnabled(t *testing.T) {
	f := newFixture(t)
	f.store.Apply(status.Event{ModelID: models.Proofreader, Status: models.Status{State: models.StateUnavailable}})

	// 连续调用，不等待前一次完成
	_, first := f.app.Update(keyRunes("1"))
	_, second := f.app.Update(keyRunes("1"))
	run(t, first)
	run(t, second)
	assert.Len(t, f.sender.sent(), 2)
}

func TestPanelInvokeErrorShown(t *testing.T) {
	f := newFixture(t)
	f.sender.reply = host.ErrorResponse("quota exceeded")

	_, cmd := f.app.Update(keyRunes("2"))
	f.app.Update(run(t, cmd))

	assert.Contains(t, f.app.View(), "quota exceeded")
	assert.Equal(t, 1, f.log.Count(logging.LevelError))
	assert.Equal(t, models.IdleStatus(), f.store.Current(models.LanguageModel))
}

func TestPanelFollowsStatusUpdates(t *testing.T) {
	f := newFixture(t)
	w := f.app.panel.rows[2].watcher
	require.Equal(t, models.Summarizer, w.ID())

	f.store.Apply(status.Event{ModelID: models.Summarizer, Status: models.DownloadingStatus(40)})

	msg := run(t, waitStatus(w))
	_, next := f.app.Update(msg)
	assert.NotNil(t, next, "收到状态后继续监听")

	assert.Equal(t, models.StateDownloading, f.app.panel.Status(models.Summarizer).State)
	assert.Contains(t, f.app.View(), "40%")
}

func TestWatchCommandEndsAfterClose(t *testing.T) {
	f := newFixture(t)
	w := f.app.panel.rows[0].watcher
	f.app.Close()
	assert.Nil(t, run(t, waitStatus(w)))
}

func TestKeysGoToFocusedPane(t *testing.T) {
	f := newFixture(t)

	// 面板有焦点时数字键用于调用，不会输入到编辑器
	_, cmd := f.app.Update(keyRunes("1"))
	run(t, cmd)
	assert.Empty(t, f.app.editor.Value())

	f.app.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, EditorPane, f.app.Focus())

	f.app.Update(keyRunes("1"))
	assert.Equal(t, "1", f.app.editor.Value())
	assert.Len(t, f.sender.sent(), 1)
}

func TestEditorSuggestionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.app.Update(tea.KeyMsg{Type: tea.KeyCtrlN})

	doc := "Writing a long enough draft"
	f.app.Update(keyRunes(doc))
	require.Equal(t, doc, f.app.editor.Value())

	msg := run(t, f.app.editor.waitSuggestion())
	f.app.Update(msg)

	snap := f.app.editor.Suggestion()
	require.Equal(t, suggest.Visible, snap.State)
	assert.Contains(t, suggest.DefaultPool, snap.Suggestion.Text)
	assert.Contains(t, f.app.View(), snap.Suggestion.Text)

	f.app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, doc+" "+snap.Suggestion.Text, f.app.editor.Value())
	assert.Equal(t, suggest.Idle, f.app.editor.Suggestion().State)
}

func TestEditorDismiss(t *testing.T) {
	f := newFixture(t)
	f.app.Update(tea.KeyMsg{Type: tea.KeyCtrlN})

	doc := "Another sufficiently long draft"
	f.app.Update(keyRunes(doc))
	f.app.Update(run(t, f.app.editor.waitSuggestion()))
	require.Equal(t, suggest.Visible, f.app.editor.Suggestion().State)

	f.app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	f.app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, suggest.Idle, f.app.editor.Suggestion().State)
	assert.Equal(t, doc, f.app.editor.Value())

	// 没有建议时 tab 不修改文档
	f.app.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, doc, f.app.editor.Value())
}

func TestToggleHelpAndLogs(t *testing.T) {
	f := newFixture(t)

	f.app.Update(tea.KeyMsg{Type: tea.KeyF1})
	assert.Contains(t, f.app.View(), "模型面板")
	f.app.Update(tea.KeyMsg{Type: tea.KeyF1})

	f.log.Warn("宿主响应缓慢", nil)
	f.app.Update(run(t, f.app.logs.wait()))
	f.app.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Contains(t, f.app.View(), "宿主响应缓慢")
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	_, cmd := f.app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.IsType(t, tea.QuitMsg{}, run(t, cmd))
}

func TestRenderMarkdown(t *testing.T) {
	out := RenderMarkdown("# Title\n\nSome **bold** text.\n\n- one `code`\n- two\n")
	assert.Contains(t, out, "Title")
	assert.Contains(t, out, "bold")
	assert.Contains(t, out, "• one")
	assert.Contains(t, out, "code")
	assert.Contains(t, out, "• two")
	assert.NotContains(t, out, "**")
	assert.NotContains(t, out, "`")
}

func TestInsertAt(t *testing.T) {
	assert.Equal(t, "a\nX\nb", insertAt("a\nb", "X", 1))
	assert.Equal(t, "X\na", insertAt("a", "X", -3))
	assert.Equal(t, "a\nX", insertAt("a", "X", 10))
}

func TestBadgeUnknownState(t *testing.T) {
	assert.True(t, strings.Contains(Badge("weird"), "weird"))
}

func TestEditorSuggestionFollowsScroll(t *testing.T) {
	e := NewEditor(suggest.Options{Delay: time.Hour})
	t.Cleanup(e.Close)
	e.Focus(true)
	e.SetSize(40, 3)

	for i := 0; i < 8; i++ {
		if i > 0 {
			e.Update(tea.KeyMsg{Type: tea.KeyEnter})
		}
		e.Update(keyRunes("l" + string(rune('0'+i))))
	}
	e.Update(tea.KeyMsg{Type: tea.KeyUp})
	e.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.Equal(t, 5, e.textarea.Line())

	// 视口已滚到 l5..l7，第 5 行位于可视区域第一行
	e.Update(SuggestionMsg{Snapshot: suggest.Snapshot{
		State:      suggest.Visible,
		Suggestion: models.Suggestion{Text: "SUGGESTED", Visible: true},
		Position:   suggest.Position{Line: 5, Top: 6},
	}})
	assert.Equal(t, 1, e.boxRow())

	view := e.View()
	box := strings.Index(view, "SUGGESTED")
	require.NotEqual(t, -1, box)
	assert.Less(t, strings.Index(view, "l5"), box)
	assert.Less(t, box, strings.Index(view, "l6"))
	assert.NotContains(t, view, "l4")
}

func TestEditorSuggestionRowClampedToViewport(t *testing.T) {
	e := NewEditor(suggest.Options{Delay: time.Hour})
	t.Cleanup(e.Close)
	e.SetSize(40, 3)

	e.snap = suggest.Snapshot{Position: suggest.Position{Line: 40, Top: 41}}
	assert.Equal(t, 3, e.boxRow())
}
