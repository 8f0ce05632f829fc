package plugin

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordingPlugin struct {
	name     string
	command  string
	startErr error
	log      *[]string
}

func (p *recordingPlugin) Name() string        { return p.name }
func (p *recordingPlugin) Description() string { return p.name + " plugin" }

func (p *recordingPlugin) Start(ctx context.Context) error {
	if p.startErr != nil {
		return p.startErr
	}
	*p.log = append(*p.log, "start:"+p.name)
	return nil
}

func (p *recordingPlugin) Stop(ctx context.Context) error {
	*p.log = append(*p.log, "stop:"+p.name)
	return nil
}

func (p *recordingPlugin) Handle(ctx context.Context, ev Event) ([]Message, bool) {
	if CommandName(ev.Message) != p.command {
		return nil, false
	}
	return []Message{PlainResult(p.name)}, true
}

func TestCommandName(t *testing.T) {
	cases := map[string]string{
		"状态查询":         "状态查询",
		"/status":      "status",
		"  /status x ": "status",
		"":             "",
		"   ":          "",
	}
	for in, want := range cases {
		if got := CommandName(in); got != want {
			t.Errorf("CommandName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewRunner_SkipsInvalidPlugins(t *testing.T) {
	var log []string
	a := &recordingPlugin{name: "a", log: &log}
	dup := &recordingPlugin{name: "a", log: &log}
	unnamed := &recordingPlugin{log: &log}

	r := NewRunner(a, nil, dup, unnamed)
	plugins := r.Plugins()
	if len(plugins) != 1 || plugins[0] != Plugin(a) {
		t.Fatalf("Plugins() = %v", plugins)
	}
}

func TestRunner_DispatchFirstMatch(t *testing.T) {
	var log []string
	r := NewRunner(
		&recordingPlugin{name: "first", command: "ping", log: &log},
		&recordingPlugin{name: "second", command: "ping", log: &log},
		&recordingPlugin{name: "third", command: "other", log: &log},
	)

	msgs, ok := r.Dispatch(context.Background(), Event{Message: "/ping"})
	if !ok || len(msgs) != 1 || msgs[0].Text != "first" {
		t.Errorf("Dispatch(ping) = %v, %v", msgs, ok)
	}

	msgs, ok = r.Dispatch(context.Background(), Event{Message: "other"})
	if !ok || msgs[0].Text != "third" {
		t.Errorf("Dispatch(other) = %v, %v", msgs, ok)
	}

	if _, ok := r.Dispatch(context.Background(), Event{Message: "nothing"}); ok {
		t.Error("expected unmatched event to be rejected")
	}
}

func TestRunner_StartStopOrder(t *testing.T) {
	var log []string
	r := NewRunner(
		&recordingPlugin{name: "a", log: &log},
		&recordingPlugin{name: "b", log: &log},
	)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	want := "start:a,start:b,stop:b,stop:a"
	if got := strings.Join(log, ","); got != want {
		t.Errorf("lifecycle = %s, want %s", got, want)
	}
}

func TestRunner_StartFailureRollsBack(t *testing.T) {
	var log []string
	boom := errors.New("boom")
	r := NewRunner(
		&recordingPlugin{name: "a", log: &log},
		&recordingPlugin{name: "b", startErr: boom, log: &log},
		&recordingPlugin{name: "c", log: &log},
	)

	err := r.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "start plugin b") {
		t.Errorf("error = %q", err.Error())
	}

	want := "start:a,stop:a"
	if got := strings.Join(log, ","); got != want {
		t.Errorf("lifecycle = %s, want %s", got, want)
	}
}
