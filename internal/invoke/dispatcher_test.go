package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Zacy-Sokach/PolyWrite/internal/host"
	"github.com/Zacy-Sokach/PolyWrite/internal/logging"
	"github.com/Zacy-Sokach/PolyWrite/internal/metrics"
	"github.com/Zacy-Sokach/PolyWrite/internal/models"
	"github.com/Zacy-Sokach/PolyWrite/internal/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSender 记录收到的请求并返回预设响应
type fakeSender struct {
	mu       sync.Mutex
	requests []host.Request
	respond  func(host.Request) (json.RawMessage, error)
	block    chan struct{}
}

func (f *fakeSender) Send(ctx context.Context, req host.Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.respond == nil {
		return json.RawMessage(`{"type":"RESULT"}`), nil
	}
	return f.respond(req)
}

func (f *fakeSender) sent() []host.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.Request(nil), f.requests...)
}

func wait(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out, ok := <-ch:
		require.True(t, ok)
		_, more := <-ch
		assert.False(t, more, "结果通道应只产生一个结果")
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("等待调用结果超时")
	}
	return Outcome{}
}

func TestInvokeSendsMappedMessageType(t *testing.T) {
	tests := []struct {
		id   models.ID
		want models.MessageType
	}{
		{models.Proofreader, "INVOKE_PROOFREADER"},
		{models.LanguageModel, "INVOKE_LANGUAGE_MODEL"},
		{models.Summarizer, "INVOKE_SUMMARIZER"},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			sender := &fakeSender{}
			d := NewDispatcher(sender, logging.Nop())

			out := wait(t, d.Invoke(context.Background(), tt.id))
			assert.True(t, out.OK())
			assert.Equal(t, tt.id, out.Model)
			assert.JSONEq(t, `{"type":"RESULT"}`, string(out.Payload))
			assert.Equal(t, []host.Request{{Type: tt.want}}, sender.sent())
		})
	}
}

func TestInvokeUnknownModel(t *testing.T) {
	sender := &fakeSender{}
	log := logging.Nop()
	reg := prometheus.NewRegistry()
	d := NewDispatcher(sender, log, WithMetrics(metrics.NewRecorder(reg)))

	out := wait(t, d.Invoke(context.Background(), models.ID("translator")))

	assert.ErrorIs(t, out.Err, models.ErrUnknownModel)
	assert.Empty(t, sender.sent())
	assert.Equal(t, 1, log.Count(logging.LevelError))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "polywrite_invocations_total"))
}

func TestInvokeErrorResponseIsLoggedNotApplied(t *testing.T) {
	sender := &fakeSender{respond: func(host.Request) (json.RawMessage, error) {
		return host.ErrorResponse("quota exceeded"), nil
	}}
	log := logging.Nop()
	store := status.NewStore(log)
	d := NewDispatcher(sender, log)

	before := store.Current(models.LanguageModel)
	out := wait(t, d.Invoke(context.Background(), models.LanguageModel))

	var respErr *host.ResponseError
	require.True(t, errors.As(out.Err, &respErr))
	assert.Equal(t, "quota exceeded", respErr.Message)

	errs := filter(log.History(0), logging.LevelError)
	require.Len(t, errs, 1)
	line := errs[0].String()
	assert.Contains(t, line, "languageModel")
	assert.Contains(t, line, "quota exceeded")

	assert.Equal(t, before, store.Current(models.LanguageModel))
}

func TestInvokeTransportErrorIsLogged(t *testing.T) {
	sender := &fakeSender{respond: func(host.Request) (json.RawMessage, error) {
		return nil, host.ErrHostClosed
	}}
	log := logging.Nop()
	d := NewDispatcher(sender, log)

	out := wait(t, d.Invoke(context.Background(), models.Summarizer))
	assert.ErrorIs(t, out.Err, host.ErrHostClosed)

	errs := filter(log.History(0), logging.LevelError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].String(), "summarizer")
}

func TestInvokeDoesNotBlockCaller(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	d := NewDispatcher(sender, logging.Nop())

	done := make(chan (<-chan Outcome))
	go func() {
		done <- d.Invoke(context.Background(), models.Proofreader)
	}()

	var ch <-chan Outcome
	select {
	case ch = <-done:
	case <-time.After(time.Second):
		t.Fatal("Invoke 阻塞了调用方")
	}

	close(sender.block)
	assert.True(t, wait(t, ch).OK())
}

func TestInvokeRepeatedWhileInFlight(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	d := NewDispatcher(sender, logging.Nop())

	first := d.Invoke(context.Background(), models.Summarizer)
	second := d.Invoke(context.Background(), models.Summarizer)

	require.Eventually(t, func() bool { return len(sender.sent()) == 2 }, time.Second, 5*time.Millisecond)
	close(sender.block)
	wait(t, first)
	wait(t, second)
}

func TestInvokeTimeout(t *testing.T) {
	sender := &fakeSender{block: make(chan struct{})}
	defer close(sender.block)
	d := NewDispatcher(sender, logging.Nop(), WithTimeout(10*time.Millisecond))

	out := wait(t, d.Invoke(context.Background(), models.Proofreader))
	assert.ErrorIs(t, out.Err, context.DeadlineExceeded)
}

func TestInvokeWithoutSender(t *testing.T) {
	log := logging.Nop()
	d := NewDispatcher(nil, log)

	out := wait(t, d.Invoke(context.Background(), models.Proofreader))
	assert.ErrorIs(t, out.Err, host.ErrNotConnected)
	assert.Equal(t, 1, log.Count(logging.LevelError))
}

func TestInvokeMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	sender := &fakeSender{respond: func(req host.Request) (json.RawMessage, error) {
		if req.Type == models.InvokeSummarizer {
			return host.ErrorResponse("boom"), nil
		}
		return json.RawMessage(`{}`), nil
	}}
	d := NewDispatcher(sender, logging.Nop(), WithMetrics(rec))

	wait(t, d.Invoke(context.Background(), models.Proofreader))
	wait(t, d.Invoke(context.Background(), models.Summarizer))

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "polywrite_invocations_total"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "polywrite_invocation_duration_seconds"))
}

func filter(entries []logging.Entry, level logging.Level) []logging.Entry {
	var out []logging.Entry
	for _, e := range entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}
