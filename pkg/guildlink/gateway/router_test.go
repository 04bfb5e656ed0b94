package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/guildlink/pkg/guildlink/bus"
	"github.com/tsarna/guildlink/pkg/guildlink/dedup"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/o11y"
	"go.uber.org/zap"
)

type routerFixture struct {
	router  *router
	streams *events.Streams
	metrics *o11y.StandaloneMetricsProvider

	mu        sync.Mutex
	welcomes  []Welcome
	rejected  []string
	published []string
}

func newRouterFixture(t *testing.T, window int) *routerFixture {
	t.Helper()

	f := &routerFixture{metrics: o11y.NewStandaloneMetricsProvider(nil)}
	f.streams = events.NewStreams(bus.Config{})
	registry := events.NewRegistry()
	require.NoError(t, f.streams.Register(registry))

	f.streams.All.Subscribe(func(ctx context.Context, ev events.Event) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.published = append(f.published, ev.EventName())
		return nil
	})

	f.router = &router{
		registry: registry,
		logger:   zap.NewNop(),
		window:   dedup.NewWindow(window),
		metrics:  newRouterMetrics(f.metrics),
		now:      time.Now,
		onWelcome: func(ctx context.Context, w Welcome) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.welcomes = append(f.welcomes, w)
		},
		onInvalidCursor: func(ctx context.Context, reason string) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.rejected = append(f.rejected, reason)
		},
	}
	return f
}

func TestRouterWelcomeSeedsEmptyCursorOnly(t *testing.T) {
	f := newRouterFixture(t, 0)
	ctx := context.Background()

	f.router.routeData(ctx, []byte(welcomeFrame(1000, "w1")))
	assert.Equal(t, "w1", f.router.Cursor())
	assert.False(t, f.router.LastAck().IsZero())
	require.Len(t, f.welcomes, 1)

	f.router.routeData(ctx, []byte(messageFrame("m1", "x")))
	f.router.routeData(ctx, []byte(welcomeFrame(1000, "w2")))
	assert.Equal(t, "m1", f.router.Cursor())
	assert.Len(t, f.welcomes, 2)
}

func TestRouterInvalidWelcomeIsDropped(t *testing.T) {
	f := newRouterFixture(t, 0)

	f.router.routeData(context.Background(), []byte(`{"op":1,"d":{"heartbeatIntervalMs":-5}}`))
	assert.Empty(t, f.welcomes)
	assert.Nil(t, f.router.welcome.Load())
	assert.Equal(t, int64(1), f.metrics.CounterValue(o11y.MetricDecodeErrors))
}

func TestRouterCursorAdvancesOnlyAfterPublish(t *testing.T) {
	f := newRouterFixture(t, 0)
	ctx := context.Background()

	var seenCursor string
	f.streams.MessageCreated.Subscribe(func(ctx context.Context, ev events.MessageCreated) error {
		seenCursor = f.router.Cursor()
		return nil
	})

	f.router.routeData(ctx, []byte(messageFrame("m1", "a")))
	assert.Empty(t, seenCursor)
	assert.Equal(t, "m1", f.router.Cursor())

	f.router.routeData(ctx, []byte(messageFrame("m2", "b")))
	assert.Equal(t, "m1", seenCursor)
	assert.Equal(t, "m2", f.router.Cursor())
}

func TestRouterDropsWithoutAdvancing(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		counter string
	}{
		{"unknown event", eventFrame("BrandNewThing", "x1", `{"a":1}`), o11y.MetricUnknownEvents},
		{"undecodable payload", eventFrame(events.NameMessageCreated, "x2", `{"message":"nope"}`), o11y.MetricDecodeErrors},
		{"empty payload", `{"op":0,"t":"ChatMessageCreated","s":"x3"}`, o11y.MetricDecodeErrors},
		{"nameless event", `{"op":0,"s":"x4","d":{}}`, o11y.MetricDecodeErrors},
		{"malformed frame", `{"op":`, o11y.MetricDecodeErrors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t, 0)
			f.router.setCursor("m0")

			f.router.routeData(context.Background(), []byte(tt.frame))

			assert.Equal(t, "m0", f.router.Cursor())
			assert.Empty(t, f.published)
			assert.Equal(t, int64(1), f.metrics.CounterValue(tt.counter))
		})
	}
}

func TestRouterHeartbeatAck(t *testing.T) {
	f := newRouterFixture(t, 0)
	now := time.Unix(1700000000, 0)
	f.router.now = func() time.Time { return now }

	f.router.routeData(context.Background(), []byte(`{"op":4}`))
	assert.Equal(t, now, f.router.LastAck())
}

func TestRouterInvalidCursor(t *testing.T) {
	f := newRouterFixture(t, 0)
	f.router.setCursor("stale")

	f.router.routeData(context.Background(), []byte(`{"op":9,"d":{"message":"too old"}}`))
	assert.Empty(t, f.router.Cursor())
	assert.Equal(t, []string{"too old"}, f.rejected)
}

func TestRouterIgnoresOtherControlFrames(t *testing.T) {
	f := newRouterFixture(t, 0)
	f.router.setCursor("m5")
	ctx := context.Background()

	for _, frame := range []string{`{"op":2}`, `{"op":8,"d":{"message":"oops"}}`, `{"op":3}`, `{"op":99}`} {
		f.router.routeData(ctx, []byte(frame))
	}

	assert.Equal(t, "m5", f.router.Cursor())
	assert.Empty(t, f.published)
	assert.Equal(t, int64(4), f.metrics.CounterValue(o11y.MetricFrames))
}

func TestRouterDeduplicates(t *testing.T) {
	f := newRouterFixture(t, 4)
	ctx := context.Background()

	f.router.routeData(ctx, []byte(messageFrame("m1", "a")))
	f.router.routeData(ctx, []byte(messageFrame("m1", "a")))
	assert.Len(t, f.published, 1)
	assert.Equal(t, int64(1), f.metrics.CounterValue(o11y.MetricDuplicates))

	// ids fall out of a full window and are delivered again
	for _, id := range []string{"m2", "m3", "m4", "m5"} {
		f.router.routeData(ctx, []byte(messageFrame(id, id)))
	}
	f.router.routeData(ctx, []byte(messageFrame("m1", "a")))
	assert.Len(t, f.published, 6)
}

func TestRouterSurvivesPanickingPublish(t *testing.T) {
	f := newRouterFixture(t, 0)
	registry := events.NewRegistry()
	require.NoError(t, registry.RegisterFunc(events.NameMessageCreated, events.DecodeJSON[events.MessageCreated],
		func(ctx context.Context, ev events.Event) error {
			panic("boom")
		}))
	f.router.registry = registry

	assert.NotPanics(t, func() {
		f.router.routeData(context.Background(), []byte(messageFrame("m1", "a")))
	})
	assert.Empty(t, f.router.Cursor())
}

func TestRouterPublishErrorKeepsCursor(t *testing.T) {
	f := newRouterFixture(t, 0)
	registry := events.NewRegistry()
	require.NoError(t, registry.RegisterFunc(events.NameMessageCreated, events.DecodeJSON[events.MessageCreated],
		func(ctx context.Context, ev events.Event) error {
			return errors.New("sink unavailable")
		}))
	f.router.registry = registry

	f.router.routeData(context.Background(), []byte(messageFrame("m1", "a")))
	assert.Empty(t, f.router.Cursor())
}
