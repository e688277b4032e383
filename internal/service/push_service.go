package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/models"
	"github.com/modu-office/modu-api/internal/observability"
	"github.com/modu-office/modu-api/internal/repository"
)

// PushConfig carries the VAPID signing material and delivery bounds.
// Empty keys disable delivery entirely; subscriptions are still stored.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
	Timeout         time.Duration
}

// PushService registers Web Push endpoints and fans notifications out to
// them, pruning endpoints the push provider reports as gone.
type PushService interface {
	Subscribe(ctx context.Context, userID string, payload dto.PushSubscribeRequest) error
	FanOut(ctx context.Context, userID string, payload dto.PushPayload)
}

type pushService struct {
	repo      repository.PushSubscriptionRepository
	config    PushConfig
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewPushService constructs a push delivery service.
func NewPushService(repo repository.PushSubscriptionRepository, config PushConfig, validate *validator.Validate, logger zerolog.Logger) PushService {
	if config.TTL <= 0 {
		config.TTL = 60
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &pushService{
		repo:      repo,
		config:    config,
		validator: validate,
		logger:    logger.With().Str("component", "push_service").Logger(),
	}
}

func (s *pushService) Subscribe(ctx context.Context, userID string, payload dto.PushSubscribeRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	subscription := models.PushSubscription{
		Endpoint: strings.TrimSpace(payload.Endpoint),
		UserID:   userID,
		P256dh:   strings.TrimSpace(payload.Keys.P256dh),
		Auth:     strings.TrimSpace(payload.Keys.Auth),
	}
	if subscription.Endpoint == "" || subscription.P256dh == "" || subscription.Auth == "" {
		return fmt.Errorf("%w: endpoint and keys are required", ErrInvalidRequest)
	}

	return s.repo.Upsert(ctx, &subscription)
}

// FanOut attempts delivery to every endpoint the user has registered.
// It never reports failure: notification delivery must not block or fail
// the triggering business action. Each subscription is attempted in
// isolation so one dead endpoint cannot stall the rest.
func (s *pushService) FanOut(ctx context.Context, userID string, payload dto.PushPayload) {
	if s.config.VAPIDPublicKey == "" || s.config.VAPIDPrivateKey == "" {
		return
	}

	subscriptions, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to load push subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode push payload")
		return
	}

	for _, subscription := range subscriptions {
		s.deliver(ctx, subscription, body)
	}
}

func (s *pushService) deliver(ctx context.Context, subscription models.PushSubscription, body []byte) {
	deliveryCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	resp, err := webpush.SendNotificationWithContext(deliveryCtx, body, &webpush.Subscription{
		Endpoint: subscription.Endpoint,
		Keys: webpush.Keys{
			P256dh: subscription.P256dh,
			Auth:   subscription.Auth,
		},
	}, &webpush.Options{
		Subscriber:      s.config.Subscriber,
		VAPIDPublicKey:  s.config.VAPIDPublicKey,
		VAPIDPrivateKey: s.config.VAPIDPrivateKey,
		TTL:             s.config.TTL,
	})
	if err != nil {
		observability.PushDeliveriesTotal().WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("endpoint", subscription.Endpoint).Msg("push delivery failed")
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound, http.StatusGone, http.StatusForbidden:
		// The endpoint is gone; keeping the row only produces repeat
		// failures on every future fan-out.
		observability.PushDeliveriesTotal().WithLabelValues("pruned").Inc()
		if err := s.repo.DeleteByEndpoint(ctx, subscription.Endpoint); err != nil {
			s.logger.Warn().Err(err).Str("endpoint", subscription.Endpoint).Msg("failed to prune dead push endpoint")
			return
		}
		s.logger.Info().Str("endpoint", subscription.Endpoint).Int("status", resp.StatusCode).Msg("pruned dead push endpoint")
	default:
		if resp.StatusCode >= http.StatusBadRequest {
			observability.PushDeliveriesTotal().WithLabelValues("rejected").Inc()
			s.logger.Warn().Str("endpoint", subscription.Endpoint).Int("status", resp.StatusCode).Msg("push delivery rejected")
			return
		}
		observability.PushDeliveriesTotal().WithLabelValues("sent").Inc()
	}
}
