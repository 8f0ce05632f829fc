package plugin

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	StatusCommand      = "状态查询"
	StatusCommandAlias = "status"

	failurePrefix = "⚠️ 状态获取失败: "
)

// Reporter renders the host status report
type Reporter interface {
	GenerateReport(ctx context.Context) (string, error)
}

// Notifier receives reports produced by the monitor loop
type Notifier interface {
	Subscribers() int
	Notify(text string)
}

// StatusPlugin answers the status query command with a host status report
type StatusPlugin struct {
	reporter Reporter
	notifier Notifier
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
}

var (
	_ Plugin    = (*StatusPlugin)(nil)
	_ Lifecycle = (*StatusPlugin)(nil)
)

// NewStatusPlugin creates the plugin. interval <= 0 disables the monitor loop;
// notifier may be nil.
func NewStatusPlugin(reporter Reporter, interval time.Duration, notifier Notifier) *StatusPlugin {
	return &StatusPlugin{
		reporter: reporter,
		notifier: notifier,
		interval: interval,
	}
}

func (p *StatusPlugin) Name() string {
	return "server_status"
}

func (p *StatusPlugin) Description() string {
	return "服务器状态监控插件"
}

// Commands returns the tokens that trigger the report
func (p *StatusPlugin) Commands() []string {
	return []string{StatusCommand, StatusCommandAlias}
}

// Matches reports whether text invokes the status command
func (p *StatusPlugin) Matches(text string) bool {
	name := CommandName(text)
	for _, cmd := range p.Commands() {
		if name == cmd {
			return true
		}
	}
	return false
}

// Handle answers the status command with exactly one message
func (p *StatusPlugin) Handle(ctx context.Context, ev Event) ([]Message, bool) {
	if !p.Matches(ev.Message) {
		return nil, false
	}
	return []Message{p.ServerStatus(ctx)}, true
}

// ServerStatus generates the report, or the failure notice when collection fails
func (p *StatusPlugin) ServerStatus(ctx context.Context) Message {
	report, err := p.reporter.GenerateReport(ctx)
	if err != nil {
		return PlainResult(FailureText(err))
	}
	return PlainResult(report)
}

// FailureText renders a collection failure for chat users
func FailureText(err error) string {
	return failurePrefix + err.Error()
}

// Start launches the monitor loop when an interval is configured
func (p *StatusPlugin) Start(ctx context.Context) error {
	if p.interval <= 0 {
		log.Printf("[MONITOR] Monitor loop disabled")
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	go p.monitorLoop(loopCtx, p.interval)

	log.Printf("[MONITOR] Monitor loop started (interval: %v)", p.interval)
	return nil
}

// Stop cancels the monitor loop if it is running. It does not wait for an
// in-flight report to finish.
func (p *StatusPlugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
		log.Printf("[MONITOR] Monitor loop stopped")
	}
	return nil
}

// Running reports whether the monitor loop is active
func (p *StatusPlugin) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// monitorLoop pushes a report to subscribers every interval.
// Without a notifier or subscribers a tick does nothing.
func (p *StatusPlugin) monitorLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.notifier == nil || p.notifier.Subscribers() == 0 {
				continue
			}

			report, err := p.reporter.GenerateReport(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Printf("[MONITOR] Report generation failed: %v", err)
				continue
			}
			p.notifier.Notify(report)
		}
	}
}
