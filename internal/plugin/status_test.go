package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeReporter struct {
	mu     sync.Mutex
	report string
	err    error
	calls  int
}

func (f *fakeReporter) GenerateReport(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.report, f.err
}

func (f *fakeReporter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu          sync.Mutex
	subscribers int
	texts       []string
}

func (f *fakeNotifier) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribers
}

func (f *fakeNotifier) Notify(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
}

func (f *fakeNotifier) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStatusPlugin_Metadata(t *testing.T) {
	p := NewStatusPlugin(&fakeReporter{}, 0, nil)
	if p.Name() != "server_status" {
		t.Errorf("Name() = %q", p.Name())
	}
	if p.Description() != "服务器状态监控插件" {
		t.Errorf("Description() = %q", p.Description())
	}
}

func TestStatusPlugin_Matches(t *testing.T) {
	p := NewStatusPlugin(&fakeReporter{}, 0, nil)

	cases := map[string]bool{
		"状态查询":       true,
		"/状态查询":      true,
		"  状态查询  ":   true,
		"status":     true,
		"/status now": true,
		"状态":         false,
		"statusx":    false,
		"hello":      false,
		"":           false,
	}
	for text, want := range cases {
		if got := p.Matches(text); got != want {
			t.Errorf("Matches(%q) = %v, want %v", text, got, want)
		}
	}
}

func TestStatusPlugin_HandleSuccess(t *testing.T) {
	rep := &fakeReporter{report: "==== 服务器状态 ===="}
	p := NewStatusPlugin(rep, 0, nil)

	msgs, ok := p.Handle(context.Background(), Event{Sender: "alice", Message: "状态查询"})
	if !ok {
		t.Fatal("expected event to be handled")
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want exactly 1", len(msgs))
	}
	if msgs[0].Type != "plain" || msgs[0].Text != rep.report {
		t.Errorf("message = %+v", msgs[0])
	}
}

func TestStatusPlugin_HandleFailure(t *testing.T) {
	p := NewStatusPlugin(&fakeReporter{err: errors.New("boom")}, 0, nil)

	msgs, ok := p.Handle(context.Background(), Event{Message: "/status"})
	if !ok || len(msgs) != 1 {
		t.Fatalf("Handle() = %v, %v", msgs, ok)
	}
	if want := "⚠️ 状态获取失败: boom"; msgs[0].Text != want {
		t.Errorf("Text = %q, want %q", msgs[0].Text, want)
	}
}

func TestStatusPlugin_IgnoresOtherMessages(t *testing.T) {
	rep := &fakeReporter{report: "x"}
	p := NewStatusPlugin(rep, 0, nil)

	if msgs, ok := p.Handle(context.Background(), Event{Message: "天气"}); ok || msgs != nil {
		t.Errorf("Handle() = %v, %v; want nil, false", msgs, ok)
	}
	if rep.Calls() != 0 {
		t.Errorf("reporter called %d times", rep.Calls())
	}
}

func TestStatusPlugin_StartDisabled(t *testing.T) {
	p := NewStatusPlugin(&fakeReporter{}, 0, &fakeNotifier{subscribers: 1})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.Running() {
		t.Error("monitor loop should not run with a zero interval")
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestStatusPlugin_MonitorLoopNotifies(t *testing.T) {
	rep := &fakeReporter{report: "periodic"}
	notifier := &fakeNotifier{subscribers: 1}
	p := NewStatusPlugin(rep, 10*time.Millisecond, notifier)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop(context.Background())

	if !p.Running() {
		t.Fatal("expected monitor loop to be running")
	}
	waitFor(t, func() bool { return len(notifier.Texts()) >= 2 })

	for _, text := range notifier.Texts() {
		if text != "periodic" {
			t.Errorf("notified %q", text)
		}
	}
}

func TestStatusPlugin_MonitorLoopSkipsWithoutSubscribers(t *testing.T) {
	rep := &fakeReporter{report: "unused"}
	notifier := &fakeNotifier{}
	p := NewStatusPlugin(rep, 5*time.Millisecond, notifier)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	p.Stop(context.Background())

	if rep.Calls() != 0 {
		t.Errorf("reporter called %d times without subscribers", rep.Calls())
	}
	if len(notifier.Texts()) != 0 {
		t.Errorf("notified %v", notifier.Texts())
	}
}

func TestStatusPlugin_MonitorLoopSurvivesFailures(t *testing.T) {
	rep := &fakeReporter{err: errors.New("disk gone")}
	notifier := &fakeNotifier{subscribers: 1}
	p := NewStatusPlugin(rep, 5*time.Millisecond, notifier)

	p.Start(context.Background())
	defer p.Stop(context.Background())

	waitFor(t, func() bool { return rep.Calls() >= 3 })
	if len(notifier.Texts()) != 0 {
		t.Errorf("failed reports should not be pushed: %v", notifier.Texts())
	}
}

func TestStatusPlugin_StopIsIdempotent(t *testing.T) {
	p := NewStatusPlugin(&fakeReporter{}, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// The loop outlives the start context
	cancel()
	if !p.Running() {
		t.Error("expected loop to keep running after start context is cancelled")
	}

	// A second Start while running is a no-op
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := p.Stop(context.Background()); err != nil {
			t.Fatalf("Stop #%d: %v", i+1, err)
		}
	}
	if p.Running() {
		t.Error("expected loop to be stopped")
	}
}

func TestFailureText(t *testing.T) {
	if got := FailureText(errors.New("permission denied")); got != "⚠️ 状态获取失败: permission denied" {
		t.Errorf("FailureText() = %q", got)
	}
}

func TestStatusPlugin_StopHaltsMonitorLoop(t *testing.T) {
	rep := &fakeReporter{report: "tick"}
	notifier := &fakeNotifier{subscribers: 1}
	p := NewStatusPlugin(rep, 5*time.Millisecond, notifier)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool { return len(notifier.Texts()) >= 1 })

	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Allow an in-flight tick to land
	time.Sleep(20 * time.Millisecond)
	settled := rep.Calls()
	time.Sleep(50 * time.Millisecond)
	if rep.Calls() != settled {
		t.Errorf("reporter called after Stop: %d -> %d", settled, rep.Calls())
	}

	// The plugin can be started again
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer p.Stop(context.Background())
	waitFor(t, func() bool { return rep.Calls() > settled })
}
