// Package plugin hosts chat-bot plugins: lifecycle hooks, command matching
// and event dispatch.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
)

// Lifecycle is driven by the host: Start once at load, Stop once at unload.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Plugin is the minimal interface every chat plugin implements
type Plugin interface {
	Lifecycle
	// Name returns the unique plugin name
	Name() string
	// Description returns a short summary for listings
	Description() string
	// Handle answers ev. ok is false when the event is not addressed to the plugin.
	Handle(ctx context.Context, ev Event) (msgs []Message, ok bool)
}

// Event is an incoming chat message
type Event struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// Message is a reply emitted back to the chat
type Message struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PlainResult wraps text as a plain-text reply
func PlainResult(text string) Message {
	return Message{Type: "plain", Text: text}
}

// CommandName extracts the command token from a chat message: the first
// word, without a leading "/".
func CommandName(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[0], "/")
}

// Runner keeps the loaded plugins in registration order
type Runner struct {
	plugins []Plugin
	started []Plugin
}

// NewRunner registers plugins. Nil plugins and duplicate names are skipped.
func NewRunner(plugins ...Plugin) *Runner {
	r := &Runner{}
	seen := make(map[string]bool)
	for _, p := range plugins {
		if p == nil {
			continue
		}
		name := p.Name()
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		r.plugins = append(r.plugins, p)
	}
	return r
}

// Plugins returns the registered plugins in registration order
func (r *Runner) Plugins() []Plugin {
	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Start starts every plugin. If one fails, those already started are stopped.
func (r *Runner) Start(ctx context.Context) error {
	for _, p := range r.plugins {
		if err := p.Start(ctx); err != nil {
			_ = r.Stop(ctx)
			return fmt.Errorf("start plugin %s: %w", p.Name(), err)
		}
		r.started = append(r.started, p)
		log.Printf("[PLUGIN] Started %s", p.Name())
	}
	return nil
}

// Stop stops started plugins in reverse order
func (r *Runner) Stop(ctx context.Context) error {
	var errs []error
	for i := len(r.started) - 1; i >= 0; i-- {
		p := r.started[i]
		if err := p.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop plugin %s: %w", p.Name(), err))
			continue
		}
		log.Printf("[PLUGIN] Stopped %s", p.Name())
	}
	r.started = nil
	return errors.Join(errs...)
}

// Dispatch hands ev to the first plugin that accepts it
func (r *Runner) Dispatch(ctx context.Context, ev Event) ([]Message, bool) {
	for _, p := range r.plugins {
		if msgs, ok := p.Handle(ctx, ev); ok {
			return msgs, true
		}
	}
	return nil, false
}
