package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/modu-office/modu-api/internal/directory"
	"github.com/modu-office/modu-api/internal/dto"
)

func newRoomServiceForTest(rooms *roomRepoStub, channels *channelRepoStub, users *directoryStub) RoomService {
	return NewRoomService(rooms, channels, users, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func approvedDirectory(ids ...string) *directoryStub {
	profiles := make(map[string]directory.Profile, len(ids))
	for _, id := range ids {
		profiles[id] = directory.Profile{ID: id, Name: "사원 " + id, ApprovalStatus: directory.StatusApproved}
	}
	return &directoryStub{profiles: profiles}
}

func TestListChannelsSeedsDefaultsOnce(t *testing.T) {
	channels := &channelRepoStub{}
	svc := newRoomServiceForTest(&roomRepoStub{}, channels, approvedDirectory())

	groups, err := svc.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels.channels, 3)

	// Ungrouped channels lead, then the report group.
	require.Len(t, groups, 2)
	require.Equal(t, "", groups[0].GroupName)
	require.Equal(t, "일반", groups[0].Channels[0].Name)
	require.Equal(t, "업무 보고", groups[1].GroupName)
	require.Len(t, groups[1].Channels, 2)

	// A second listing does not seed again.
	_, err = svc.ListChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, channels.channels, 3)
}

func TestListRoomsProvisionsSelfRoomOnce(t *testing.T) {
	rooms := &roomRepoStub{}
	svc := newRoomServiceForTest(rooms, &channelRepoStub{}, approvedDirectory("emp-1"))

	first, err := svc.ListRooms(context.Background(), "emp-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "내 메모", first[0].Name)
	require.Equal(t, 1, rooms.created)

	second, err := svc.ListRooms(context.Background(), "emp-1")
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)
	require.Equal(t, 1, rooms.created, "self room must not be provisioned twice")
}

func TestListRoomsPutsSelfRoomFirst(t *testing.T) {
	rooms := &roomRepoStub{}
	_, err := rooms.Create(context.Background(), "팀 잡담", []string{"emp-1", "emp-2", "emp-3"})
	require.NoError(t, err)

	svc := newRoomServiceForTest(rooms, &channelRepoStub{}, approvedDirectory("emp-1", "emp-2", "emp-3"))

	listed, err := svc.ListRooms(context.Background(), "emp-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "내 메모", listed[0].Name)
	require.Equal(t, "팀 잡담", listed[1].Name)
	require.Equal(t, "사원 emp-2", findMember(t, listed[1].Members, "emp-2").Name)
}

func TestFindOrCreateDirectRoomRejectsSelf(t *testing.T) {
	svc := newRoomServiceForTest(&roomRepoStub{}, &channelRepoStub{}, approvedDirectory("emp-1"))

	_, err := svc.FindOrCreateDirectRoom(context.Background(), "emp-1", "emp-1")
	require.True(t, errors.Is(err, ErrInvalidRequest))
}

func TestFindOrCreateDirectRoomUnknownUser(t *testing.T) {
	svc := newRoomServiceForTest(&roomRepoStub{}, &channelRepoStub{}, approvedDirectory("emp-1"))

	_, err := svc.FindOrCreateDirectRoom(context.Background(), "emp-1", "emp-404")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestFindOrCreateDirectRoomUnapprovedUser(t *testing.T) {
	users := approvedDirectory("emp-1")
	users.profiles["emp-2"] = directory.Profile{ID: "emp-2", Name: "대기자", ApprovalStatus: directory.StatusPending}
	svc := newRoomServiceForTest(&roomRepoStub{}, &channelRepoStub{}, users)

	_, err := svc.FindOrCreateDirectRoom(context.Background(), "emp-1", "emp-2")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestFindOrCreateDirectRoomReusesExistingRoom(t *testing.T) {
	rooms := &roomRepoStub{}
	svc := newRoomServiceForTest(rooms, &channelRepoStub{}, approvedDirectory("emp-1", "emp-2"))

	created, err := svc.FindOrCreateDirectRoom(context.Background(), "emp-1", "emp-2")
	require.NoError(t, err)
	require.False(t, created.Existing)
	require.Equal(t, "사원 emp-2와의 대화", created.Room.Name)
	require.Equal(t, 2, created.Room.MemberCount)

	again, err := svc.FindOrCreateDirectRoom(context.Background(), "emp-1", "emp-2")
	require.NoError(t, err)
	require.True(t, again.Existing)
	require.Equal(t, created.Room.ID, again.Room.ID)
	require.Equal(t, 1, rooms.created)
}

func TestCreateGroupRoomDeduplicatesMembers(t *testing.T) {
	rooms := &roomRepoStub{}
	svc := newRoomServiceForTest(rooms, &channelRepoStub{}, approvedDirectory("emp-1", "emp-2"))

	room, err := svc.CreateGroupRoom(context.Background(), "emp-1", dto.GroupRoomCreateRequest{
		Name:      "신규 프로젝트",
		MemberIDs: []string{"emp-2", "emp-2", "emp-1", " "},
	})
	require.NoError(t, err)
	require.Equal(t, 2, room.MemberCount)
}

func TestCreateGroupRoomNeedsTwoDistinctMembers(t *testing.T) {
	svc := newRoomServiceForTest(&roomRepoStub{}, &channelRepoStub{}, approvedDirectory("emp-1"))

	_, err := svc.CreateGroupRoom(context.Background(), "emp-1", dto.GroupRoomCreateRequest{
		Name:      "혼자",
		MemberIDs: []string{"emp-1"},
	})
	require.True(t, errors.Is(err, ErrInvalidRequest))
}

func findMember(t *testing.T, members []dto.RoomMemberSummary, id string) dto.RoomMemberSummary {
	t.Helper()
	for _, member := range members {
		if member.ID == id {
			return member
		}
	}
	t.Fatalf("member %s not found", id)
	return dto.RoomMemberSummary{}
}
