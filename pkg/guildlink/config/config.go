// Package config loads guildlink's HCL configuration: the gateway
// connection, the command table, cursor checkpointing, CLI output shaping
// and metrics reporting.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/tsarna/guildlink/pkg/guildlink/commands"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/gateway"
	"github.com/tsarna/guildlink/pkg/guildlink/transform"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

type ConfigBuilder struct {
	logger  *zap.Logger
	sources []any
	baseDir string
}

// Config is a fully evaluated and validated configuration.
type Config struct {
	Logger *zap.Logger

	Gateway    GatewayConfig
	Commands   *CommandsConfig // nil without a commands block
	Checkpoint *Checkpoint     // nil without a checkpoint block
	Output     OutputConfig
	Metrics    *MetricsConfig // nil without a metrics block

	evalCtx *hcl.EvalContext
}

type GatewayConfig struct {
	URL           string
	Token         string
	DialTimeout   time.Duration
	WriteTimeout  time.Duration
	MissedAcks    int
	DedupWindow   int
	LastMessageID string
	Headers       map[string]string
	Backoff       gateway.Backoff
}

type CommandsConfig struct {
	Prefix     string
	Separators string
	IgnoreSelf bool
	Enabled    bool
}

// OutputConfig shapes the events the CLI prints.
type OutputConfig struct {
	Topics  []string // keep only events matching one of these
	Exclude []string // then drop events matching any of these
	JQ      string
}

type MetricsConfig struct {
	Interval    time.Duration
	ServiceName string
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		sources: make([]any, 0),
		baseDir: ".",
	}
}

func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	cb.logger = logger
	return cb
}

func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

// WithBaseDir sets the directory relative paths given to file() resolve
// against.
func (cb *ConfigBuilder) WithBaseDir(dir string) *ConfigBuilder {
	if dir != "" {
		cb.baseDir = dir
	}
	return cb
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	logger := cb.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}
	if len(bodies) == 0 {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "No configuration",
			Detail:   "No configuration sources were provided",
		})
	}

	config := &Config{
		Logger: logger,
		evalCtx: &hcl.EvalContext{
			Variables: map[string]cty.Value{"env": GetEnvObject()},
			Functions: functions(cb.baseDir),
		},
	}

	var def fileDefinition
	diags = diags.Extend(gohcl.DecodeBody(hcl.MergeBodies(bodies), config.evalCtx, &def))
	if diags.HasErrors() {
		return nil, diags
	}

	diags = diags.Extend(config.buildGateway(&def.Gateway))
	if def.Commands != nil {
		diags = diags.Extend(config.buildCommands(def.Commands))
	}
	if def.Checkpoint != nil {
		diags = diags.Extend(config.buildCheckpoint(def.Checkpoint))
	}
	if def.Output != nil {
		diags = diags.Extend(config.buildOutput(def.Output))
	}
	if def.Metrics != nil {
		diags = diags.Extend(config.buildMetrics(def.Metrics))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	return config, diags
}

type fileDefinition struct {
	Gateway    GatewayDefinition     `hcl:"gateway,block"`
	Commands   *CommandsDefinition   `hcl:"commands,block"`
	Checkpoint *CheckpointDefinition `hcl:"checkpoint,block"`
	Output     *OutputDefinition     `hcl:"output,block"`
	Metrics    *MetricsDefinition    `hcl:"metrics,block"`
}

type GatewayDefinition struct {
	URL           string               `hcl:"url,optional"`
	Token         string               `hcl:"token"`
	DialTimeout   hcl.Expression       `hcl:"dial_timeout,optional"`
	WriteTimeout  hcl.Expression       `hcl:"write_timeout,optional"`
	MissedAcks    *int                 `hcl:"missed_acks,optional"`
	DedupWindow   *int                 `hcl:"dedup_window,optional"`
	LastMessageID string               `hcl:"last_message_id,optional"`
	Headers       map[string]string    `hcl:"headers,optional"`
	Reconnect     *ReconnectDefinition `hcl:"reconnect,block"`
	DefRange      hcl.Range            `hcl:",def_range"`
}

type ReconnectDefinition struct {
	InitialDelay hcl.Expression `hcl:"initial_delay,optional"`
	MaxDelay     hcl.Expression `hcl:"max_delay,optional"`
	Factor       *float64       `hcl:"factor,optional"`
	DefRange     hcl.Range      `hcl:",def_range"`
}

type CommandsDefinition struct {
	Prefix     string    `hcl:"prefix"`
	Separators *string   `hcl:"separators,optional"`
	IgnoreSelf *bool     `hcl:"ignore_self,optional"`
	Enabled    *bool     `hcl:"enabled,optional"`
	DefRange   hcl.Range `hcl:",def_range"`
}

type CheckpointDefinition struct {
	File     string    `hcl:"file"`
	Schedule string    `hcl:"schedule,optional"`
	Timezone string    `hcl:"timezone,optional"`
	DefRange hcl.Range `hcl:",def_range"`
}

type OutputDefinition struct {
	Topics   []string  `hcl:"topics,optional"`
	Exclude  []string  `hcl:"exclude,optional"`
	JQ       string    `hcl:"jq,optional"`
	DefRange hcl.Range `hcl:",def_range"`
}

type MetricsDefinition struct {
	Interval    hcl.Expression `hcl:"interval,optional"`
	ServiceName string         `hcl:"service_name,optional"`
}

func invalid(subject hcl.Range, summary, detail string) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  subject.Ptr(),
	}
}

func (c *Config) buildGateway(def *GatewayDefinition) hcl.Diagnostics {
	g := GatewayConfig{
		URL:           def.URL,
		Token:         def.Token,
		MissedAcks:    gateway.DefaultMissedAcks,
		DedupWindow:   gateway.DefaultDedupWindow,
		LastMessageID: def.LastMessageID,
		Headers:       def.Headers,
		Backoff:       gateway.DefaultBackoff,
	}
	if g.URL == "" {
		g.URL = gateway.DefaultURL
	}

	var diags, addDiags hcl.Diagnostics
	g.DialTimeout, addDiags = ParseDuration(def.DialTimeout, c.evalCtx, gateway.DefaultDialTimeout)
	diags = diags.Extend(addDiags)
	g.WriteTimeout, addDiags = ParseDuration(def.WriteTimeout, c.evalCtx, gateway.DefaultWriteTimeout)
	diags = diags.Extend(addDiags)

	if def.Token == "" {
		diags = diags.Append(invalid(def.DefRange, "Missing token", "The gateway token must not be empty"))
	}
	if def.MissedAcks != nil {
		g.MissedAcks = *def.MissedAcks
		if g.MissedAcks < 1 {
			diags = diags.Append(invalid(def.DefRange, "Invalid missed_acks",
				fmt.Sprintf("missed_acks must be at least 1, got %d", g.MissedAcks)))
		}
	}
	if def.DedupWindow != nil {
		g.DedupWindow = *def.DedupWindow
		if g.DedupWindow < 0 {
			diags = diags.Append(invalid(def.DefRange, "Invalid dedup_window",
				fmt.Sprintf("dedup_window must not be negative, got %d", g.DedupWindow)))
		}
	}

	if r := def.Reconnect; r != nil {
		g.Backoff.Initial, addDiags = ParseDuration(r.InitialDelay, c.evalCtx, gateway.DefaultBackoff.Initial)
		diags = diags.Extend(addDiags)
		g.Backoff.Max, addDiags = ParseDuration(r.MaxDelay, c.evalCtx, gateway.DefaultBackoff.Max)
		diags = diags.Extend(addDiags)
		if r.Factor != nil {
			g.Backoff.Factor = *r.Factor
		}
		if !diags.HasErrors() {
			if err := g.Backoff.Validate(); err != nil {
				diags = diags.Append(invalid(r.DefRange, "Invalid reconnect block", err.Error()))
			}
		}
	}

	c.Gateway = g
	return diags
}

func (c *Config) buildCommands(def *CommandsDefinition) hcl.Diagnostics {
	cmds := &CommandsConfig{
		Prefix:     def.Prefix,
		Separators: commands.DefaultSeparators,
		IgnoreSelf: true,
		Enabled:    true,
	}
	if def.Separators != nil {
		cmds.Separators = *def.Separators
	}
	if def.IgnoreSelf != nil {
		cmds.IgnoreSelf = *def.IgnoreSelf
	}
	if def.Enabled != nil {
		cmds.Enabled = *def.Enabled
	}

	var diags hcl.Diagnostics
	if cmds.Prefix == "" {
		diags = diags.Append(invalid(def.DefRange, "Missing prefix", "The command prefix must not be empty"))
	}
	if cmds.Separators == "" {
		diags = diags.Append(invalid(def.DefRange, "Invalid separators", "At least one separator character is required"))
	}

	c.Commands = cmds
	return diags
}

func (c *Config) buildCheckpoint(def *CheckpointDefinition) hcl.Diagnostics {
	var diags hcl.Diagnostics

	cp := &Checkpoint{File: def.File, Schedule: def.Schedule}
	if cp.File == "" {
		diags = diags.Append(invalid(def.DefRange, "Missing file", "The checkpoint file must not be empty"))
	}
	if cp.Schedule == "" {
		cp.Schedule = DefaultCheckpointSchedule
	}
	if _, err := cronParser.Parse(cp.Schedule); err != nil {
		diags = diags.Append(invalid(def.DefRange, "Invalid schedule",
			fmt.Sprintf("Invalid checkpoint schedule %q: %s", cp.Schedule, err)))
	}

	timezone := def.Timezone
	if timezone == "" {
		timezone = "Local"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		diags = diags.Append(invalid(def.DefRange, "Invalid timezone",
			fmt.Sprintf("Invalid timezone: %s", timezone)))
	}
	cp.Location = location

	c.Checkpoint = cp
	return diags
}

func (c *Config) buildOutput(def *OutputDefinition) hcl.Diagnostics {
	var diags hcl.Diagnostics

	patterns := append(append([]string{}, def.Topics...), def.Exclude...)
	if _, err := events.NewTopicFilter(patterns...); err != nil {
		diags = diags.Append(invalid(def.DefRange, "Invalid topic pattern", err.Error()))
	}
	if def.JQ != "" {
		if _, err := transform.JQ(def.JQ, nil); err != nil {
			diags = diags.Append(invalid(def.DefRange, "Invalid jq query", err.Error()))
		}
	}

	c.Output = OutputConfig{Topics: def.Topics, Exclude: def.Exclude, JQ: def.JQ}
	return diags
}

func (c *Config) buildMetrics(def *MetricsDefinition) hcl.Diagnostics {
	interval, diags := ParseDuration(def.Interval, c.evalCtx, 30*time.Second)
	if !diags.HasErrors() && interval == 0 {
		diags = diags.Append(invalid(def.Interval.Range(), "Invalid interval", "The metrics interval must be positive"))
	}

	c.Metrics = &MetricsConfig{Interval: interval, ServiceName: def.ServiceName}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = "guildlink"
	}
	return diags
}

// Apply copies the gateway settings onto a client builder.
func (g GatewayConfig) Apply(b *gateway.ClientBuilder) *gateway.ClientBuilder {
	b = b.WithURL(g.URL).
		WithToken(g.Token).
		WithDialTimeout(g.DialTimeout).
		WithWriteTimeout(g.WriteTimeout).
		WithMissedAcks(g.MissedAcks).
		WithDedupWindow(g.DedupWindow).
		WithReconnectBackoff(g.Backoff)
	for key, value := range g.Headers {
		b = b.WithHeader(key, value)
	}
	if g.LastMessageID != "" {
		b = b.WithLastMessageID(g.LastMessageID)
	}
	return b
}

// Apply copies the command settings onto a table builder.
func (cc *CommandsConfig) Apply(b *commands.TableBuilder) *commands.TableBuilder {
	return b.WithPrefix(cc.Prefix).
		WithSeparators(cc.Separators).
		WithIgnoreSelf(cc.IgnoreSelf).
		WithEnabled(cc.Enabled)
}

// Transforms returns the output pipeline: topic selection, exclusion, then
// the jq projection.
func (o OutputConfig) Transforms(logger *zap.Logger) ([]transform.Func, error) {
	var transforms []transform.Func
	if len(o.Topics) > 0 {
		filter, err := events.NewTopicFilter(o.Topics...)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, transform.SelectEvents(filter))
	}
	for _, pattern := range o.Exclude {
		transforms = append(transforms, transform.DropTopicPattern(pattern))
	}
	if o.JQ != "" {
		jq, err := transform.JQ(o.JQ, logger)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, jq)
	}
	return transforms, nil
}
