package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"gufagu-backend/internal/domain"
	apperrors "gufagu-backend/pkg/errors"
	"gufagu-backend/pkg/logger"
)

type joinQueuePayload struct {
	Interests []string `json:"interests" validate:"omitempty,dive,required"`
}

type targetPayload struct {
	To domain.ConnID `json:"to"`
}

// signalPayload carries an opaque signaling body; only payload is relayed
type signalPayload struct {
	To      domain.ConnID   `json:"to"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

type chatPayload struct {
	To      domain.ConnID `json:"to"`
	Message string        `json:"message" validate:"required"`
}

type reportPayload struct {
	Reason string `json:"reason" validate:"required"`
}

type qualityPayload struct {
	Quality string `json:"quality" validate:"required,max=32"`
}

type callFriendPayload struct {
	FriendID string `json:"friendId" validate:"required,uuid"`
	CallType string `json:"callType" validate:"required,oneof=voice video"`
}

type callIDPayload struct {
	CallID string `json:"callId" validate:"required"`
}

// dispatch routes one inbound frame. Any failure, panics included, is
// reported to the originating connection only.
func (h *Hub) dispatch(ctx context.Context, info domain.ConnInfo, raw []byte) {
	var frame domain.Frame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		h.reply(ctx, info.ConnID, "", apperrors.NewWithStatus(apperrors.ErrCodeInvalidInput, "Malformed frame", http.StatusBadRequest))
		return
	}
	h.metrics.RecordWebSocketMessage(frame.Event, "inbound")

	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("Panic while handling realtime event",
				zap.String("event", frame.Event),
				zap.Any("panic", r),
				zap.Stack("stack"))
			h.reply(ctx, info.ConnID, frame.Event, apperrors.InternalError("Internal server error"))
		}
	}()

	if err := h.route(ctx, info, frame); err != nil {
		h.reply(ctx, info.ConnID, frame.Event, err)
	}
}

func (h *Hub) route(ctx context.Context, info domain.ConnInfo, frame domain.Frame) error {
	conn := info.ConnID

	switch frame.Event {
	case domain.EventJoinQueue:
		var p joinQueuePayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.matching.Join(ctx, info, p.Interests)

	case domain.EventLeaveQueue:
		h.matching.Leave(ctx, conn)
		return nil

	case domain.EventSkipPartner:
		return h.matching.Skip(ctx, conn)

	case domain.EventEndChat:
		return h.matching.End(ctx, conn)

	case domain.EventReportPartner:
		var p reportPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.matching.Report(ctx, conn, p.Reason)

	case domain.EventChatMessage:
		var p chatPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.matching.Chat(ctx, conn, p.To, p.Message)

	case domain.EventTypingStart, domain.EventTypingStop:
		var p targetPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.matching.Typing(ctx, conn, p.To, frame.Event)

	case domain.EventConnectionQuality:
		var p qualityPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.matching.UpdateQuality(ctx, conn, p.Quality)

	case domain.EventWebRTCOffer, domain.EventWebRTCAnswer, domain.EventWebRTCICECandidate:
		var p signalPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.matching.Relay(ctx, conn, p.To, frame.Event, p.Payload)

	case domain.EventCallFriend:
		var p callFriendPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		friendID, err := uuid.Parse(p.FriendID)
		if err != nil {
			return apperrors.ValidationError("Invalid friendId")
		}
		_, err = h.calls.Initiate(ctx, info, friendID, domain.CallType(p.CallType))
		return err

	case domain.EventAcceptCall:
		var p callIDPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.calls.Accept(ctx, p.CallID, info)

	case domain.EventDeclineCall:
		var p callIDPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.calls.Decline(ctx, p.CallID, info)

	case domain.EventEndFriendCall:
		var p callIDPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.calls.End(ctx, p.CallID, info)

	case domain.EventFriendCallOffer, domain.EventFriendCallAnswer, domain.EventFriendCallICE:
		var p signalPayload
		if err := h.decode(frame.Data, &p); err != nil {
			return err
		}
		return h.calls.Relay(ctx, info, p.To, frame.Event, p.Payload)
	}

	return apperrors.UnknownEventError(frame.Event)
}

// decode unmarshals and validates an event payload. A missing payload
// decodes as the zero value.
func (h *Hub) decode(data json.RawMessage, dst any) error {
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, dst); err != nil {
			return apperrors.ValidationError("Invalid payload")
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperrors.ValidationError(fmt.Sprintf("Invalid %s", verrs[0].Field()))
		}
		return apperrors.ValidationError("Invalid payload")
	}
	return nil
}

func (h *Hub) reply(ctx context.Context, conn domain.ConnID, event string, err error) {
	appErr := apperrors.GetAppError(err)
	h.metrics.RecordWebSocketError(event, string(appErr.Code))

	message := appErr.Message
	if appErr.Code == apperrors.ErrCodeInternal || appErr.Code == apperrors.ErrCodeDatabase {
		logger.FromContext(ctx).Error("Realtime event failed",
			zap.String("event", event),
			zap.Error(err))
		message = "Internal server error"
	}

	_ = h.registry.Send(conn, domain.EventError, domain.ErrorPayload{
		Event:   event,
		Code:    string(appErr.Code),
		Message: message,
	})
}
