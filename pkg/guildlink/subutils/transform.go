package subutils

import (
	"context"

	"github.com/tsarna/guildlink/pkg/guildlink/bus"
	"github.com/tsarna/guildlink/pkg/guildlink/events"
	"github.com/tsarna/guildlink/pkg/guildlink/transform"
)

// OutputFunc receives the result of a transform chain.
type OutputFunc func(ctx context.Context, msg *transform.Message) error

// NewTransformingHandler returns a handler that projects each event through
// the transforms and passes surviving messages to out. Events dropped by a
// transform never reach out.
//
//	chatFilter, _ := events.NewTopicFilter("servers/+/ChatMessageCreated")
//	project, _ := transform.JQ(`{text: .message.content}`, logger)
//	client.Events().All.Subscribe(subutils.NewTransformingHandler(print,
//	    transform.SelectEvents(chatFilter),
//	    project,
//	))
func NewTransformingHandler(out OutputFunc, transforms ...transform.Func) bus.Handler[events.Event] {
	return func(ctx context.Context, event events.Event) error {
		msg, err := transform.NewMessage(event)
		if err != nil {
			return err
		}

		if msg = transform.Apply(ctx, msg, transforms...); msg == nil {
			return nil
		}
		return out(ctx, msg)
	}
}
