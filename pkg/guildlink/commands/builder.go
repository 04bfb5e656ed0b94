package commands

import (
	"fmt"

	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

// DefaultSeparators splits command arguments on spaces.
const DefaultSeparators = " "

// TableBuilder provides a fluent interface for building command tables.
type TableBuilder struct {
	logger     *zap.Logger
	prefix     string
	prefixFunc PrefixFunc
	separators string
	ignoreSelf bool
	disabled   bool
	metrics    o11y.MetricsProvider
	commands   []Command
}

// NewTable creates a new command table builder. Self-authored messages are
// ignored by default.
func NewTable() *TableBuilder {
	return &TableBuilder{
		logger:     zap.NewNop(),
		separators: DefaultSeparators,
		ignoreSelf: true,
	}
}

// WithLogger sets the logger for dispatch errors.
func (b *TableBuilder) WithLogger(logger *zap.Logger) *TableBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithPrefix sets a static command prefix such as "!".
func (b *TableBuilder) WithPrefix(prefix string) *TableBuilder {
	b.prefix = prefix
	return b
}

// WithPrefixFunc chooses the prefix per message, e.g. per server. It takes
// precedence over WithPrefix.
func (b *TableBuilder) WithPrefixFunc(fn PrefixFunc) *TableBuilder {
	b.prefixFunc = fn
	return b
}

// WithSeparators sets the characters that split arguments. Each character
// is a separator on its own.
func (b *TableBuilder) WithSeparators(separators string) *TableBuilder {
	b.separators = separators
	return b
}

// WithIgnoreSelf controls whether the bot's own messages are dispatched.
func (b *TableBuilder) WithIgnoreSelf(ignore bool) *TableBuilder {
	b.ignoreSelf = ignore
	return b
}

// WithEnabled sets whether the table starts enabled. Default true.
func (b *TableBuilder) WithEnabled(enabled bool) *TableBuilder {
	b.disabled = !enabled
	return b
}

// WithMetrics counts dispatched commands.
func (b *TableBuilder) WithMetrics(provider o11y.MetricsProvider) *TableBuilder {
	b.metrics = provider
	return b
}

// WithCommands queues commands to register at Build time.
func (b *TableBuilder) WithCommands(cmds ...Command) *TableBuilder {
	b.commands = append(b.commands, cmds...)
	return b
}

// WithGroup queues every command of g.
func (b *TableBuilder) WithGroup(g Group) *TableBuilder {
	if g != nil {
		b.commands = append(b.commands, g.Commands()...)
	}
	return b
}

// Build creates the table and registers queued commands.
func (b *TableBuilder) Build() (*Table, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	prefix := b.prefixFunc
	if prefix == nil {
		static := b.prefix
		prefix = func(events.MessageCreated) string { return static }
	}

	t := &Table{
		logger:     b.logger,
		prefix:     prefix,
		separators: b.separators,
		ignoreSelf: b.ignoreSelf,
	}
	t.enabled.Store(!b.disabled)
	if b.metrics != nil {
		t.dispatched = b.metrics.Counter(o11y.MetricCommands)
	}

	if err := t.Register(b.commands...); err != nil {
		return nil, err
	}
	return t, nil
}

// IsValid checks that all required configuration is present.
func (b *TableBuilder) IsValid() error {
	if b.prefix == "" && b.prefixFunc == nil {
		return fmt.Errorf("prefix or prefix function is required")
	}

	if b.separators == "" {
		b.separators = DefaultSeparators
	}

	if b.logger == nil {
		b.logger = zap.NewNop()
	}

	return nil
}
