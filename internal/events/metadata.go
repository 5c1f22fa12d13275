package events

import "context"

type metadataKey struct{}

// Metadata is request context copied into every event built under ctx.
type Metadata struct {
	SessionID     string
	DeviceID      string
	AdminID       string
	CorrelationID string
}

func WithMetadata(ctx context.Context, m Metadata) context.Context {
	return context.WithValue(ctx, metadataKey{}, m)
}

func MetadataFrom(ctx context.Context) Metadata {
	m, _ := ctx.Value(metadataKey{}).(Metadata)
	return m
}

func (m Metadata) toContext() map[string]string {
	out := make(map[string]string, 4)
	if m.SessionID != "" {
		out["sessionId"] = m.SessionID
	}
	if m.DeviceID != "" {
		out["deviceId"] = m.DeviceID
	}
	if m.AdminID != "" {
		out["adminId"] = m.AdminID
	}
	if m.CorrelationID != "" {
		out["correlationId"] = m.CorrelationID
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
