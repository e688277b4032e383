package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/modu-office/modu-api/internal/directory"
	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/models"
	"github.com/modu-office/modu-api/internal/repository"
)

// Default channels created lazily on the first listing. The slug
// uniqueness constraint reconciles a duplicate seed under a concurrent
// cold start.
var defaultChannels = []models.Channel{
	{Slug: "general", Name: "일반", SortOrder: 0},
	{Slug: "work-report-am", Name: "오전 업무 보고", GroupName: "업무 보고", SortOrder: 1},
	{Slug: "work-report-pm", Name: "오후 업무 보고", GroupName: "업무 보고", SortOrder: 2},
}

const selfRoomName = "내 메모"

// RoomService manages topic channels and membership-gated rooms.
type RoomService interface {
	ListChannels(ctx context.Context) ([]dto.ChannelGroupResponse, error)
	ListRooms(ctx context.Context, userID string) ([]dto.RoomResponse, error)
	FindOrCreateDirectRoom(ctx context.Context, userID, otherUserID string) (dto.DirectRoomResponse, error)
	CreateGroupRoom(ctx context.Context, creatorID string, payload dto.GroupRoomCreateRequest) (dto.RoomResponse, error)
}

type roomService struct {
	rooms     repository.RoomRepository
	channels  repository.ChannelRepository
	users     directory.Gateway
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewRoomService constructs a room service.
func NewRoomService(rooms repository.RoomRepository, channels repository.ChannelRepository, users directory.Gateway, validate *validator.Validate, logger zerolog.Logger) RoomService {
	return &roomService{
		rooms:     rooms,
		channels:  channels,
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "room_service").Logger(),
		tracer:    otel.Tracer("github.com/modu-office/modu-api/internal/service/room"),
	}
}

func (s *roomService) ListChannels(ctx context.Context) ([]dto.ChannelGroupResponse, error) {
	count, err := s.channels.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		seed := make([]models.Channel, len(defaultChannels))
		copy(seed, defaultChannels)
		if err := s.channels.SeedDefaults(ctx, seed); err != nil {
			return nil, err
		}
		s.logger.Info().Int("channels", len(seed)).Msg("seeded default channels")
	}

	channels, err := s.channels.List(ctx)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]dto.ChannelResponse)
	order := make([]string, 0)
	for _, channel := range channels {
		if _, seen := grouped[channel.GroupName]; !seen {
			order = append(order, channel.GroupName)
		}
		grouped[channel.GroupName] = append(grouped[channel.GroupName], dto.NewChannelResponse(channel))
	}

	// Ungrouped channels lead; remaining groups keep their lowest
	// sort-order position.
	sort.SliceStable(order, func(i, j int) bool {
		if (order[i] == "") != (order[j] == "") {
			return order[i] == ""
		}
		return false
	})

	response := make([]dto.ChannelGroupResponse, 0, len(order))
	for _, groupName := range order {
		response = append(response, dto.ChannelGroupResponse{
			GroupName: groupName,
			Channels:  grouped[groupName],
		})
	}

	return response, nil
}

func (s *roomService) ListRooms(ctx context.Context, userID string) ([]dto.RoomResponse, error) {
	ctx, span := s.tracer.Start(ctx, "rooms.list", trace.WithAttributes(
		attribute.String("room.user_id", userID),
	))
	defer span.End()

	selfRoom, err := s.rooms.FindSelfRoom(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			span.RecordError(err)
			return nil, err
		}
		selfRoom, err = s.rooms.Create(ctx, selfRoomName, []string{userID})
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		s.logger.Info().Str("user_id", userID).Uint("room_id", selfRoom.ID).Msg("provisioned self room")
	}

	rooms, err := s.rooms.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	// Self room first, then insertion order.
	sort.SliceStable(rooms, func(i, j int) bool {
		return rooms[i].ID == selfRoom.ID && rooms[j].ID != selfRoom.ID
	})

	memberIDs := make(map[string]struct{})
	for _, room := range rooms {
		for _, membership := range room.Memberships {
			memberIDs[membership.UserID] = struct{}{}
		}
	}
	profiles, err := s.resolveProfiles(ctx, memberIDs)
	if err != nil {
		// Room data is still useful without display profiles.
		s.logger.Warn().Err(err).Msg("failed to resolve member profiles")
		profiles = map[string]directory.Profile{}
	}

	response := make([]dto.RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, newRoomResponse(room, profiles))
	}

	return response, nil
}

func (s *roomService) FindOrCreateDirectRoom(ctx context.Context, userID, otherUserID string) (dto.DirectRoomResponse, error) {
	otherUserID = strings.TrimSpace(otherUserID)
	if otherUserID == "" {
		return dto.DirectRoomResponse{}, fmt.Errorf("%w: counterpart user id is required", ErrInvalidRequest)
	}
	if otherUserID == userID {
		return dto.DirectRoomResponse{}, fmt.Errorf("%w: cannot open a direct room with yourself", ErrInvalidRequest)
	}

	ctx, span := s.tracer.Start(ctx, "rooms.direct", trace.WithAttributes(
		attribute.String("room.user_id", userID),
		attribute.String("room.other_user_id", otherUserID),
	))
	defer span.End()

	other, err := s.users.GetUser(ctx, otherUserID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return dto.DirectRoomResponse{}, fmt.Errorf("%w: user %s", ErrNotFound, otherUserID)
		}
		span.RecordError(err)
		return dto.DirectRoomResponse{}, err
	}
	if !other.Approved() {
		return dto.DirectRoomResponse{}, fmt.Errorf("%w: user %s", ErrNotFound, otherUserID)
	}

	profiles := map[string]directory.Profile{other.ID: other}

	// Find-before-create: a duplicate under a true race is an accepted
	// soft invariant; reads pick the lowest-id room.
	room, err := s.rooms.FindDirectRoom(ctx, userID, otherUserID)
	if err == nil {
		return dto.DirectRoomResponse{Room: newRoomResponse(room, profiles), Existing: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		return dto.DirectRoomResponse{}, err
	}

	name := fmt.Sprintf("%s와의 대화", other.Name)
	room, err = s.rooms.Create(ctx, name, []string{userID, otherUserID})
	if err != nil {
		span.RecordError(err)
		return dto.DirectRoomResponse{}, err
	}

	s.logger.Info().Str("user_id", userID).Str("other_user_id", otherUserID).Uint("room_id", room.ID).Msg("created direct room")

	return dto.DirectRoomResponse{Room: newRoomResponse(room, profiles), Existing: false}, nil
}

func (s *roomService) CreateGroupRoom(ctx context.Context, creatorID string, payload dto.GroupRoomCreateRequest) (dto.RoomResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RoomResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	name := strings.TrimSpace(payload.Name)
	if name == "" {
		return dto.RoomResponse{}, fmt.Errorf("%w: room name is required", ErrInvalidRequest)
	}

	seen := map[string]struct{}{creatorID: {}}
	members := []string{creatorID}
	for _, memberID := range payload.MemberIDs {
		memberID = strings.TrimSpace(memberID)
		if memberID == "" {
			continue
		}
		if _, dup := seen[memberID]; dup {
			continue
		}
		seen[memberID] = struct{}{}
		members = append(members, memberID)
	}
	if len(members) < 2 {
		return dto.RoomResponse{}, fmt.Errorf("%w: a group room needs at least two distinct members", ErrInvalidRequest)
	}

	ctx, span := s.tracer.Start(ctx, "rooms.create_group", trace.WithAttributes(
		attribute.String("room.creator_id", creatorID),
		attribute.Int("room.member_count", len(members)),
	))
	defer span.End()

	room, err := s.rooms.Create(ctx, name, members)
	if err != nil {
		span.RecordError(err)
		return dto.RoomResponse{}, err
	}

	memberSet := make(map[string]struct{}, len(members))
	for _, memberID := range members {
		memberSet[memberID] = struct{}{}
	}
	profiles, err := s.resolveProfiles(ctx, memberSet)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to resolve member profiles")
		profiles = map[string]directory.Profile{}
	}

	s.logger.Info().Str("creator_id", creatorID).Uint("room_id", room.ID).Int("members", len(members)).Msg("created group room")

	return newRoomResponse(room, profiles), nil
}

func (s *roomService) resolveProfiles(ctx context.Context, ids map[string]struct{}) (map[string]directory.Profile, error) {
	list := make([]string, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Strings(list)
	return s.users.GetUsers(ctx, list)
}

func newRoomResponse(room models.Room, profiles map[string]directory.Profile) dto.RoomResponse {
	members := make([]dto.RoomMemberSummary, 0, len(room.Memberships))
	for _, membership := range room.Memberships {
		summary := dto.RoomMemberSummary{ID: membership.UserID}
		if profile, ok := profiles[membership.UserID]; ok {
			summary.Name = profile.Name
			summary.AvatarURL = profile.AvatarURL
		}
		members = append(members, summary)
	}

	return dto.RoomResponse{
		ID:          room.ID,
		Name:        room.Name,
		MemberCount: len(room.Memberships),
		Members:     members,
		CreatedAt:   room.CreatedAt,
	}
}
