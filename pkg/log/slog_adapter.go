package log

import (
	"context"
	"encoding/hex"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger. Errors log at Warn level,
// everything else at Debug.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}

	if event.ConnectionID != "" {
		attrs = append(attrs, slog.String("conn_id", event.ConnectionID))
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, slog.String("remote_addr", event.RemoteAddr))
	}

	level := slog.LevelDebug

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.Int("frame_size", event.Frame.Size),
			slog.String("data", hex.EncodeToString(event.Frame.Data)),
			slog.Bool("truncated", event.Frame.Truncated),
		)
	case event.Message != nil:
		attrs = append(attrs, slog.Uint64("msg_id", uint64(event.Message.MessageID)))
		if event.Message.Operation != "" {
			attrs = append(attrs, slog.String("operation", event.Message.Operation))
		}
		if event.Message.Attribute != "" {
			attrs = append(attrs, slog.String("attribute", event.Message.Attribute))
		}
		if event.Message.Status != "" {
			attrs = append(attrs, slog.String("status", event.Message.Status))
		}
		if event.Message.ProcessingTime > 0 {
			attrs = append(attrs, slog.Duration("processing_time", event.Message.ProcessingTime))
		}
	case event.Data != nil:
		attrs = append(attrs,
			slog.String("channel", event.Data.Channel),
			slog.Uint64("seq", event.Data.Seq),
		)
		if event.Data.Subscriber != "" {
			attrs = append(attrs, slog.String("subscriber", event.Data.Subscriber))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.ControlMsg != nil:
		attrs = append(attrs, slog.String("ctrl_type", event.ControlMsg.Type))
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), level, "labwire", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
