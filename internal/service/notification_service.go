package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/models"
	"github.com/modu-office/modu-api/internal/observability"
	"github.com/modu-office/modu-api/internal/repository"
)

// DefaultDedupWindow suppresses identical (user, type, link) notifications
// created within this trailing window.
const DefaultDedupWindow = 5 * time.Second

// PushDeliverer is the slice of the push service the notification
// pipeline needs. FanOut is best-effort and never reports failure.
type PushDeliverer interface {
	FanOut(ctx context.Context, userID string, payload dto.PushPayload)
}

// NotificationService persists deduplicated in-app notifications and
// streams them to subscribed clients and push endpoints.
type NotificationService interface {
	Create(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationCreateResult, error)
	List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, callerID string, id uint) (dto.NotificationResponse, error)
	SoftDelete(ctx context.Context, callerID string, id uint) error
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	push        PushDeliverer
	redis       *redis.Client
	redisTopic  string
	dedupPrefix string
	nats        *nats.Conn
	natsSubject string
	window      time.Duration
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	stream      *notificationStream
	nodeID      string
}

// NewNotificationService constructs a notification service. redisClient
// and natsConn may be nil; cross-node event delivery and the redis dedup
// guard degrade gracefully without them.
func NewNotificationService(repo repository.NotificationRepository, push PushDeliverer, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, window time.Duration, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	if window <= 0 {
		window = DefaultDedupWindow
	}

	topic := ""
	dedupPrefix := ""
	subject := ""
	if channelBase != "" {
		topic = channelBase + ":notifications"
		dedupPrefix = channelBase + ":notifications:dedup"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		push:        push,
		redis:       redisClient,
		redisTopic:  topic,
		dedupPrefix: dedupPrefix,
		nats:        natsConn,
		natsSubject: subject,
		window:      window,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/modu-office/modu-api/internal/service/notification"),
		stream:      newNotificationStream(),
		nodeID:      uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisTopic != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) Create(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationCreateResult, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationCreateResult{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	notificationType := strings.TrimSpace(payload.Type)
	title := strings.TrimSpace(s.sanitizer.Sanitize(payload.Title))
	link := strings.TrimSpace(payload.Link)
	if notificationType == "" || title == "" {
		return dto.NotificationCreateResult{}, fmt.Errorf("%w: type and title are required", ErrInvalidRequest)
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.create", trace.WithAttributes(
		attribute.String("notification.user_id", payload.UserID),
		attribute.String("notification.type", notificationType),
	))
	defer span.End()

	duplicate, claim, err := s.isDuplicate(spanCtx, payload.UserID, notificationType, link)
	if err != nil {
		span.RecordError(err)
		s.releaseClaim(spanCtx, claim)
		return dto.NotificationCreateResult{}, err
	}
	if duplicate {
		observability.NotificationsSkippedTotal().Inc()
		return dto.NotificationCreateResult{Skipped: true}, nil
	}

	model := models.Notification{
		UserID: payload.UserID,
		Type:   notificationType,
		Title:  title,
		Link:   link,
	}
	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		s.releaseClaim(spanCtx, claim)
		return dto.NotificationCreateResult{}, err
	}

	response := dto.NewNotificationResponse(model)
	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()

	s.stream.deliver(response.UserID, response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification event")
	}

	// Push is best-effort: it must never downgrade the caller's success.
	s.push.FanOut(spanCtx, response.UserID, dto.PushPayload{
		Title: response.Title,
		Body:  response.Title,
		URL:   response.Link,
	})

	return dto.NotificationCreateResult{Notification: &response}, nil
}

// isDuplicate runs the redis SETNX fast guard when available and always
// consults the authoritative window probe in storage. A cross-node race
// may let an occasional duplicate through; a notification is never lost.
// When this call wins the SETNX it returns the claimed key so the caller
// can release it if the insert never lands.
func (s *notificationService) isDuplicate(ctx context.Context, userID, notificationType, link string) (bool, string, error) {
	var claim string
	if s.redis != nil && s.dedupPrefix != "" {
		key := fmt.Sprintf("%s:%s:%s:%s", s.dedupPrefix, userID, notificationType, link)
		set, err := s.redis.SetNX(ctx, key, s.nodeID, s.window).Result()
		if err != nil {
			s.logger.Warn().Err(err).Msg("dedup guard unavailable, falling back to storage probe")
		} else if !set {
			return true, "", nil
		} else {
			claim = key
		}
	}

	duplicate, err := s.repo.HasRecentDuplicate(ctx, userID, notificationType, link, time.Now().Add(-s.window))
	return duplicate, claim, err
}

// releaseClaim frees a claimed dedup key after a failed create so a
// retry inside the window is suppressed only by a persisted row, never
// by the key alone.
func (s *notificationService) releaseClaim(ctx context.Context, key string) {
	if key == "" || s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to release dedup guard key")
	}
}

func (s *notificationService) List(ctx context.Context, userID string, limit, offset int) ([]dto.NotificationResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	notifications, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, callerID string, id uint) (dto.NotificationResponse, error) {
	notification, err := s.loadOwned(ctx, callerID, id)
	if err != nil {
		return dto.NotificationResponse{}, err
	}

	if !notification.IsRead {
		if err := s.repo.MarkRead(ctx, id); err != nil {
			return dto.NotificationResponse{}, err
		}
		notification.IsRead = true
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) SoftDelete(ctx context.Context, callerID string, id uint) error {
	if _, err := s.loadOwned(ctx, callerID, id); err != nil {
		return err
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *notificationService) loadOwned(ctx context.Context, callerID string, id uint) (models.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Notification{}, fmt.Errorf("%w: notification %d", ErrNotFound, id)
		}
		return models.Notification{}, err
	}
	if notification.UserID != callerID {
		return models.Notification{}, fmt.Errorf("%w: notification %d belongs to another user", ErrForbidden, id)
	}
	return notification, nil
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	channel := s.stream.subscribe(userID)
	observability.StreamClientsActive().Inc()

	cleanup := func() {
		s.stream.unsubscribe(userID, channel)
		observability.StreamClientsActive().Dec()
	}

	return channel, cleanup
}
