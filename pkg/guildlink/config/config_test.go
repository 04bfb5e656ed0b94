package config

import (
	"context"
	_ "embed"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/guildlink/pkg/guildlink/commands"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/gateway"
	"github.com/tsarna/guildlink/pkg/guildlink/transform"
	"go.uber.org/zap"
)

//go:embed testdata/full.hcl
var fullConfig []byte

func TestBuildFullConfig(t *testing.T) {
	t.Setenv("GUILDLINK_TEST_TOKEN", "secret")

	cfg, diags := NewConfig().WithLogger(zap.NewNop()).WithSources(fullConfig).Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, GatewayConfig{
		URL:           "wss://gateway.example.test/websocket/v1",
		Token:         "secret",
		DialTimeout:   15 * time.Second,
		WriteTimeout:  5 * time.Second,
		MissedAcks:    3,
		DedupWindow:   0,
		LastMessageID: "m41",
		Headers:       map[string]string{"x-client": "guildlink"},
		Backoff: gateway.Backoff{
			Initial: 500 * time.Millisecond,
			Max:     2 * time.Minute,
			Factor:  1.5,
		},
	}, cfg.Gateway)

	require.NotNil(t, cfg.Commands)
	assert.Equal(t, CommandsConfig{Prefix: "!", Separators: " ,", IgnoreSelf: false, Enabled: true}, *cfg.Commands)

	require.NotNil(t, cfg.Checkpoint)
	assert.Equal(t, "/var/lib/guildlink/cursor", cfg.Checkpoint.File)
	assert.Equal(t, "@every 10s", cfg.Checkpoint.Schedule)
	assert.Equal(t, time.UTC, cfg.Checkpoint.Location)

	assert.Equal(t, []string{"servers/+/ChatMessageCreated", "servers/+/ChatMessageUpdated"}, cfg.Output.Topics)
	assert.Equal(t, []string{"servers/quiet/#"}, cfg.Output.Exclude)
	assert.NotEmpty(t, cfg.Output.JQ)

	require.NotNil(t, cfg.Metrics)
	assert.Equal(t, MetricsConfig{Interval: time.Minute, ServiceName: "guildlink-test"}, *cfg.Metrics)
}

func TestBuildMinimalConfigDefaults(t *testing.T) {
	cfg, diags := NewConfig().WithSources([]byte(`gateway { token = "t" }`)).Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, gateway.DefaultURL, cfg.Gateway.URL)
	assert.Equal(t, gateway.DefaultDialTimeout, cfg.Gateway.DialTimeout)
	assert.Equal(t, gateway.DefaultWriteTimeout, cfg.Gateway.WriteTimeout)
	assert.Equal(t, gateway.DefaultMissedAcks, cfg.Gateway.MissedAcks)
	assert.Equal(t, gateway.DefaultDedupWindow, cfg.Gateway.DedupWindow)
	assert.Equal(t, gateway.DefaultBackoff, cfg.Gateway.Backoff)
	assert.Empty(t, cfg.Gateway.LastMessageID)

	assert.Nil(t, cfg.Commands)
	assert.Nil(t, cfg.Checkpoint)
	assert.Nil(t, cfg.Metrics)
	assert.Equal(t, OutputConfig{}, cfg.Output)
}

func TestBuildDefaultsInsideBlocks(t *testing.T) {
	cfg, diags := NewConfig().WithSources([]byte(`
gateway {
  token = "t"
  reconnect {
    factor = 3
  }
}
commands {
  prefix = "!"
}
checkpoint {
  file = "cursor"
}
metrics {}
`)).Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, gateway.Backoff{Initial: time.Second, Max: time.Minute, Factor: 3}, cfg.Gateway.Backoff)
	assert.Equal(t, CommandsConfig{Prefix: "!", Separators: commands.DefaultSeparators, IgnoreSelf: true, Enabled: true}, *cfg.Commands)
	assert.Equal(t, DefaultCheckpointSchedule, cfg.Checkpoint.Schedule)
	assert.Equal(t, time.Local, cfg.Checkpoint.Location)
	assert.Equal(t, MetricsConfig{Interval: 30 * time.Second, ServiceName: "guildlink"}, *cfg.Metrics)
}

func TestBuildDirectorySource(t *testing.T) {
	cfg, diags := NewConfig().WithSources("testdata/split").Build()
	require.False(t, diags.HasErrors(), diags.Error())

	assert.Equal(t, "split-token", cfg.Gateway.Token)
	require.NotNil(t, cfg.Commands)
	assert.Equal(t, ".", cfg.Commands.Prefix)
}

func TestBuildTokenFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "token"), []byte("  from-file\n"), 0o600))

	cfg, diags := NewConfig().
		WithBaseDir(dir).
		WithSources([]byte(`gateway { token = trimspace(file("token")) }`)).
		Build()
	require.False(t, diags.HasErrors(), diags.Error())
	assert.Equal(t, "from-file", cfg.Gateway.Token)
}

func TestBuildInvalid(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		summary string
	}{
		{"no gateway block", `commands { prefix = "!" }`, "Missing gateway block"},
		{"empty token", `gateway { token = "" }`, "Missing token"},
		{"missing env var", `gateway { token = env.GUILDLINK_SURELY_UNSET_VAR }`, "Unsupported attribute"},
		{"missed acks", `gateway {
  token       = "t"
  missed_acks = 0
}`, "Invalid missed_acks"},
		{"negative dedup window", `gateway {
  token        = "t"
  dedup_window = -1
}`, "Invalid dedup_window"},
		{"bad duration", `gateway {
  token        = "t"
  dial_timeout = "soon"
}`, "Invalid duration"},
		{"bad backoff", `gateway {
  token = "t"
  reconnect {
    factor = 0.5
  }
}`, "Invalid reconnect block"},
		{"empty prefix", `gateway { token = "t" }
commands { prefix = "" }`, "Missing prefix"},
		{"bad schedule", `gateway { token = "t" }
checkpoint {
  file     = "c"
  schedule = "every now and then"
}`, "Invalid schedule"},
		{"bad timezone", `gateway { token = "t" }
checkpoint {
  file     = "c"
  timezone = "Mars/Olympus_Mons"
}`, "Invalid timezone"},
		{"bad topic", `gateway { token = "t" }
output { topics = ["servers/#/ChatMessageCreated"] }`, "Invalid topic pattern"},
		{"bad jq", `gateway { token = "t" }
output { jq = "{" }`, "Invalid jq query"},
		{"zero metrics interval", `gateway { token = "t" }
metrics { interval = 0 }`, "Invalid interval"},
		{"unknown block", `gateway { token = "t" }
bogus {}`, "Unsupported block type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, diags := NewConfig().WithSources([]byte(tt.source)).Build()
			require.True(t, diags.HasErrors())
			assert.Nil(t, cfg)
			assert.Contains(t, diags.Error(), tt.summary)
		})
	}
}

func TestBuildNoSources(t *testing.T) {
	_, diags := NewConfig().Build()
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "No configuration")
}

func TestBuildMissingFile(t *testing.T) {
	_, diags := NewConfig().WithSources("testdata/does-not-exist.hcl").Build()
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "Failed to stat file")
}

func TestGatewayConfigApply(t *testing.T) {
	t.Setenv("GUILDLINK_TEST_TOKEN", "secret")
	cfg, diags := NewConfig().WithSources(fullConfig).Build()
	require.False(t, diags.HasErrors(), diags.Error())

	client, err := cfg.Gateway.Apply(gateway.NewClient()).Build()
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, "m41", client.LastMessageID())
	assert.Equal(t, gateway.StateDisconnected, client.State())
}

func TestCommandsConfigApply(t *testing.T) {
	cc := &CommandsConfig{Prefix: "!", Separators: " ", IgnoreSelf: true, Enabled: false}

	table, err := cc.Apply(commands.NewTable()).Build()
	require.NoError(t, err)
	assert.False(t, table.Enabled())
}

func TestOutputTransforms(t *testing.T) {
	out := OutputConfig{
		Topics:  []string{"servers/+server/ChatMessageCreated"},
		Exclude: []string{"servers/quiet/#"},
		JQ:      "{text: .message.content, kind: $event, server: $fields.server}",
	}
	transforms, err := out.Transforms(zap.NewNop())
	require.NoError(t, err)
	require.Len(t, transforms, 3)

	run := func(ev events.Event) *transform.Message {
		msg, err := transform.NewMessage(ev)
		require.NoError(t, err)
		return transform.Apply(context.Background(), msg, transforms...)
	}

	msg := run(events.MessageCreated{ServerID: "loud", Message: events.Message{ID: "m1", Content: "hello"}})
	require.NotNil(t, msg)
	assert.Equal(t, map[string]any{"text": "hello", "kind": "ChatMessageCreated", "server": "loud"}, msg.Payload)
	assert.Equal(t, map[string]string{"server": "loud"}, msg.Fields)

	assert.Nil(t, run(events.MessageCreated{ServerID: "quiet", Message: events.Message{ID: "m2"}}))
	assert.Nil(t, run(events.MessageUpdated{ServerID: "loud", Message: events.Message{ID: "m3"}}))
}

func TestOutputTransformsEmpty(t *testing.T) {
	transforms, err := OutputConfig{}.Transforms(nil)
	require.NoError(t, err)
	assert.Empty(t, transforms)
}
