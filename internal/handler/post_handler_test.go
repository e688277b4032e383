package handler_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/modu-office/modu-api/internal/dto"
	"github.com/modu-office/modu-api/internal/handler"
	"github.com/modu-office/modu-api/internal/service"
)

type mockPostService struct {
	lastQuery   dto.PostListQuery
	lastCreate  dto.PostCreateRequest
	lastEmoji   string
	lastPostID  uint
	listResult  dto.PostListResponse
	postResult  dto.PostResponse
	reactions   dto.ReactionCountResponse
	readResult  dto.ReadCountResponse
	err         error
	createCalls int
}

func (m *mockPostService) List(_ context.Context, _ string, query dto.PostListQuery) (dto.PostListResponse, error) {
	m.lastQuery = query
	return m.listResult, m.err
}

func (m *mockPostService) Create(_ context.Context, _ string, payload dto.PostCreateRequest) (dto.PostResponse, error) {
	m.lastCreate = payload
	m.createCalls++
	return m.postResult, m.err
}

func (m *mockPostService) ToggleReaction(_ context.Context, _ string, postID uint, emoji string) (dto.ReactionCountResponse, error) {
	m.lastPostID = postID
	m.lastEmoji = emoji
	return m.reactions, m.err
}

func (m *mockPostService) MarkRead(_ context.Context, _ string, postID uint) (dto.ReadCountResponse, error) {
	m.lastPostID = postID
	return m.readResult, m.err
}

func newPostApp(svc service.PostService, userID string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v2/messaging", authenticate(userID, "member"))
	handler.NewPostHandler(svc, zerolog.Nop()).Register(group)
	return app
}

func TestPostHandlerListParsesQuery(t *testing.T) {
	svc := &mockPostService{listResult: dto.PostListResponse{NextCursor: 42}}
	app := newPostApp(svc, "emp-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet,
		"/api/v2/messaging/posts?channel_id=3&cursor=10&limit=5&search=%ED%9A%8C%EC%9D%98", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NotNil(t, svc.lastQuery.ChannelID)
	require.Equal(t, uint(3), *svc.lastQuery.ChannelID)
	require.Nil(t, svc.lastQuery.RoomID)
	require.Equal(t, uint(10), svc.lastQuery.Cursor)
	require.Equal(t, 5, svc.lastQuery.Limit)
	require.Equal(t, "회의", svc.lastQuery.Search)

	var body struct {
		Data dto.PostListResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, uint(42), body.Data.NextCursor)
}

func TestPostHandlerListRejectsBadCursor(t *testing.T) {
	app := newPostApp(&mockPostService{}, "emp-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v2/messaging/posts?cursor=abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestPostHandlerCreateFromJSON(t *testing.T) {
	svc := &mockPostService{postResult: dto.PostResponse{ID: 1}}
	app := newPostApp(svc, "emp-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v2/messaging/posts",
		strings.NewReader(`{"channel_id":2,"content":"점심 메뉴 추천?"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.NotNil(t, svc.lastCreate.ChannelID)
	require.Equal(t, uint(2), *svc.lastCreate.ChannelID)
	require.Equal(t, "점심 메뉴 추천?", svc.lastCreate.Content)
	require.Empty(t, svc.lastCreate.Attachments)
}

func TestPostHandlerCreateFromMultipart(t *testing.T) {
	svc := &mockPostService{postResult: dto.PostResponse{ID: 1}}
	app := newPostApp(svc, "emp-1")

	var buffer bytes.Buffer
	writer := multipart.NewWriter(&buffer)
	require.NoError(t, writer.WriteField("room_id", "5"))
	require.NoError(t, writer.WriteField("content", "사진 올립니다"))
	part, err := writer.CreateFormFile("attachments", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'})
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v2/messaging/posts", &buffer)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	require.NotNil(t, svc.lastCreate.RoomID)
	require.Equal(t, uint(5), *svc.lastCreate.RoomID)
	require.Equal(t, "사진 올립니다", svc.lastCreate.Content)
	require.Len(t, svc.lastCreate.Attachments, 1)
	require.Equal(t, "photo.png", svc.lastCreate.Attachments[0].FileName)
	require.Len(t, svc.lastCreate.Attachments[0].Data, 8)
}

func TestPostHandlerToggleReaction(t *testing.T) {
	svc := &mockPostService{reactions: dto.ReactionCountResponse{Reactions: map[string]int64{"👍": 2}}}
	app := newPostApp(svc, "emp-1")

	req := httptest.NewRequest(http.MethodPost, "/api/v2/messaging/posts/9/reactions",
		strings.NewReader(`{"emoji":"👍"}`))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(9), svc.lastPostID)
	require.Equal(t, "👍", svc.lastEmoji)
}

func TestPostHandlerMarkRead(t *testing.T) {
	svc := &mockPostService{readResult: dto.ReadCountResponse{ReadCount: 4}}
	app := newPostApp(svc, "emp-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v2/messaging/posts/9/read", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data dto.ReadCountResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, int64(4), body.Data.ReadCount)
}

func TestPostHandlerInvalidPostID(t *testing.T) {
	app := newPostApp(&mockPostService{}, "emp-1")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v2/messaging/posts/zero/read", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
