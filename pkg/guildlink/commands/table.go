// Package commands dispatches prefixed chat commands from MessageCreated
// events to handlers registered at startup.
//
// Given the prefix "!", the message "!ban user1 user2" invokes the handler
// registered for "ban" with args ["user1", "user2"]. Messages without the
// prefix and unknown command names are ignored.
package commands

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tsarna/guildlink/pkg/guildlink/bus"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

var (
	// ErrInvalidCommand is returned for a command without a name or handler.
	ErrInvalidCommand = errors.New("invalid command")
	// ErrAmbiguousCommand is returned when a command would accept a name
	// another registered command already accepts.
	ErrAmbiguousCommand = errors.New("ambiguous command")
)

// Client is the part of the gateway client commands need.
// *gateway.Client satisfies it.
type Client interface {
	Identity() string
	Events() *events.Streams
	Send(ctx context.Context, data []byte) error
}

// HandlerFunc handles one command invocation.
type HandlerFunc func(ctx context.Context, client Client, event events.MessageCreated, name string, args []string) error

// Command binds a name, and optionally aliases, to a handler.
type Command struct {
	Name    string
	Aliases []string
	// Match overrides the default case-insensitive name and alias match.
	Match   func(name string) bool
	Handler HandlerFunc
}

// Group is a handler-bearing type that exposes its commands for registration.
type Group interface {
	Commands() []Command
}

func (c Command) keys() []string {
	return append([]string{c.Name}, c.Aliases...)
}

func (c Command) matches(name string) bool {
	if c.Match != nil {
		return c.Match(name)
	}
	for _, key := range c.keys() {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

// PrefixFunc returns the command prefix in effect for a message, or "" when
// the message should not be considered at all.
type PrefixFunc func(event events.MessageCreated) string

// Table is an ordered set of commands. Registration is expected at startup,
// but is safe concurrently with dispatch.
type Table struct {
	logger     *zap.Logger
	prefix     PrefixFunc
	separators string
	ignoreSelf bool
	enabled    atomic.Bool
	dispatched o11y.Counter

	mu       sync.RWMutex
	commands []Command
}

// Register adds commands in order. Either all are added or, on the first
// invalid or ambiguous command, none are.
func (t *Table) Register(cmds ...Command) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := append([]Command(nil), t.commands...)
	for _, cmd := range cmds {
		if err := validate(cmd, pending); err != nil {
			return err
		}
		pending = append(pending, cmd)
	}

	t.commands = pending
	return nil
}

// MustRegister is like Register but panics on error.
func (t *Table) MustRegister(cmds ...Command) {
	if err := t.Register(cmds...); err != nil {
		panic(err)
	}
}

// RegisterGroup registers every command of g.
func (t *Table) RegisterGroup(g Group) error {
	if g == nil {
		return fmt.Errorf("%w: nil group", ErrInvalidCommand)
	}
	if err := t.Register(g.Commands()...); err != nil {
		return fmt.Errorf("failed to register %T: %w", g, err)
	}
	return nil
}

func validate(cmd Command, existing []Command) error {
	if strings.TrimSpace(cmd.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCommand)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("%w: %q has no handler", ErrInvalidCommand, cmd.Name)
	}
	for _, alias := range cmd.Aliases {
		if strings.TrimSpace(alias) == "" {
			return fmt.Errorf("%w: %q has an empty alias", ErrInvalidCommand, cmd.Name)
		}
	}

	for _, other := range existing {
		for _, key := range cmd.keys() {
			if other.matches(key) {
				return fmt.Errorf("%w: %q is already handled by %q", ErrAmbiguousCommand, key, other.Name)
			}
		}
		for _, key := range other.keys() {
			if cmd.matches(key) {
				return fmt.Errorf("%w: %q would also handle %q", ErrAmbiguousCommand, cmd.Name, key)
			}
		}
	}
	return nil
}

// Names returns the primary name of every command in registration order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, len(t.commands))
	for i, cmd := range t.commands {
		names[i] = cmd.Name
	}
	return names
}

// SetEnabled turns dispatch on or off at runtime.
func (t *Table) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

// Enabled reports whether dispatch is on.
func (t *Table) Enabled() bool {
	return t.enabled.Load()
}

func (t *Table) lookup(name string) (Command, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, cmd := range t.commands {
		if cmd.matches(name) {
			return cmd, true
		}
	}
	return Command{}, false
}

// Parse splits a message into a command name and its arguments. It reports
// false when content does not start with prefix or has nothing after it.
// Runs of separator characters count as one.
func Parse(content, prefix, separators string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	if separators == "" {
		separators = DefaultSeparators
	}

	tokens := strings.FieldsFunc(content[len(prefix):], func(r rune) bool {
		return strings.ContainsRune(separators, r)
	})
	if len(tokens) == 0 {
		return "", nil, false
	}
	return tokens[0], tokens[1:], true
}

// Dispatch runs the command a message invokes, if any, and reports whether a
// handler was called. Handler errors and panics are logged, never returned.
func (t *Table) Dispatch(ctx context.Context, client Client, event events.MessageCreated) bool {
	if !t.enabled.Load() {
		return false
	}

	if t.ignoreSelf {
		if self := client.Identity(); self != "" && event.Message.CreatedBy == self {
			return false
		}
	}

	name, args, ok := Parse(event.Message.Content, t.prefix(event), t.separators)
	if !ok {
		return false
	}

	cmd, ok := t.lookup(name)
	if !ok {
		t.logger.Debug("Ignoring unknown command", zap.String("command", name))
		return false
	}

	result := "ok"
	if err := t.invoke(ctx, cmd, client, event, name, args); err != nil {
		result = "error"
		t.logger.Error("Command failed",
			zap.String("command", cmd.Name),
			zap.String("invokedAs", name),
			zap.String("channelId", event.Message.ChannelID),
			zap.String("messageId", event.Message.ID),
			zap.Error(err))
	}

	if t.dispatched != nil {
		t.dispatched.Add(ctx, 1,
			o11y.Label{Key: "command", Value: cmd.Name},
			o11y.Label{Key: "result", Value: result})
	}
	return true
}

func (t *Table) invoke(ctx context.Context, cmd Command, client Client, event events.MessageCreated, name string, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &bus.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return cmd.Handler(ctx, client, event, name, args)
}

// Handler adapts the table to a MessageCreated stream handler bound to
// client. It never returns an error, so the stream does not count command
// failures as subscriber errors.
func (t *Table) Handler(client Client) bus.Handler[events.MessageCreated] {
	return func(ctx context.Context, event events.MessageCreated) error {
		t.Dispatch(ctx, client, event)
		return nil
	}
}

// Attach subscribes the table to client's MessageCreated stream. Commands
// then run on the client's reader goroutine; wrap Handler with
// subutils.NewAsyncHandler instead when handlers block.
func (t *Table) Attach(client Client) *bus.Subscription {
	return client.Events().MessageCreated.Subscribe(t.Handler(client))
}
