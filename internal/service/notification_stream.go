package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/observability"
)

const streamBufferSize = 16

// notificationEvent is the wire format shared by the redis pub/sub and
// NATS legs of the cross-node pipeline. Source carries the publishing
// node's id so a node skips its own echoes.
type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

// notificationStream fans notifications out to the SSE subscribers of a
// single process. Slow consumers are dropped rather than blocking the
// write path.
type notificationStream struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan dto.NotificationResponse]struct{}
}

func newNotificationStream() *notificationStream {
	return &notificationStream{
		subscribers: make(map[string]map[chan dto.NotificationResponse]struct{}),
	}
}

func (st *notificationStream) subscribe(userID string) chan dto.NotificationResponse {
	channel := make(chan dto.NotificationResponse, streamBufferSize)

	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.subscribers[userID]; !exists {
		st.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	st.subscribers[userID][channel] = struct{}{}

	return channel
}

func (st *notificationStream) unsubscribe(userID string, channel chan dto.NotificationResponse) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if channels, ok := st.subscribers[userID]; ok {
		delete(channels, channel)
		close(channel)
		if len(channels) == 0 {
			delete(st.subscribers, userID)
		}
	}
}

func (st *notificationStream) deliver(userID string, notification dto.NotificationResponse) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	for channel := range st.subscribers[userID] {
		select {
		case channel <- notification:
		default:
		}
	}
}

// publish forwards a freshly persisted notification to the other nodes.
func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisTopic != "" {
		if err := s.redis.Publish(ctx, s.redisTopic, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisTopic)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.QueueSubscribe(s.natsSubject, "modu-notifications", func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	observability.NotificationsRelayedTotal().Inc()
	s.stream.deliver(event.Notification.UserID, event.Notification)
}
