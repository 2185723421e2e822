// Package signaling forwards opaque WebRTC negotiation payloads between two handles.
package signaling

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
	"gufagu-backend/pkg/metrics"
)

// Directory delivers events to live handles
type Directory interface {
	Send(conn domain.ConnID, event string, data any) error
}

// Relay is a pure pass-through. It never inspects the payload.
type Relay struct {
	dir     Directory
	metrics *metrics.Metrics
}

// NewRelay creates a new Relay
func NewRelay(dir Directory, m *metrics.Metrics) *Relay {
	return &Relay{dir: dir, metrics: m}
}

// Forward re-emits event to the target with the sender's handle as from.
// It returns a PEER_NOT_CONNECTED error when the target is gone.
func (r *Relay) Forward(ctx context.Context, from, to domain.ConnID, event string, payload json.RawMessage) error {
	err := r.dir.Send(to, event, domain.RelayMessage{From: from, Payload: payload})
	if err != nil {
		r.metrics.RecordRelay(event, "failed")
		logger.FromContext(ctx).Debug("Relay target unavailable",
			zap.String("event", event),
			zap.String("to", to.String()),
			zap.Error(err))
		if apperrors.HasCode(err, apperrors.ErrCodePeerNotConnected) {
			return err
		}
		return apperrors.PeerNotConnectedError()
	}

	r.metrics.RecordRelay(event, "delivered")
	return nil
}
