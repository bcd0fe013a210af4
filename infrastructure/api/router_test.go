package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"planning-poker/auth"
	"planning-poker/domain"
	"planning-poker/errors"
	"planning-poker/infrastructure/storage"
	"planning-poker/mocks"
	"planning-poker/observability"
	"planning-poker/services"

	"github.com/gin-gonic/gin"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var alice = domain.Profile{UserID: "alice", Name: "Alice"}

type routerFixture struct {
	router *gin.Engine
	auth   *mocks.MockIAuthService
	rooms  *mocks.MockIRoomService
}

func newRouterFixture(t *testing.T) routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	authService := mocks.NewMockIAuthService(ctrl)
	roomService := mocks.NewMockIRoomService(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	router := NewRouter(gin.TestMode, log, Handlers{
		Authenticator: authService,
		Auth:          NewAuthHandler(authService, time.Hour, true),
		Rooms:         NewRoomHandler(roomService),
		Health:        NewHealthHandler(observability.NewMonitoringManager(log, func() int { return 2 })),
		Gateway: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	})
	return routerFixture{router: router, auth: authService, rooms: roomService}
}

// perform runs a request against the router, as alice when token is set.
func (f routerFixture) perform(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	buf := &bytes.Buffer{}
	if body != nil {
		require.NoError(t, json.NewEncoder(buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
		f.auth.EXPECT().Authenticate(gomock.Any(), token).Return(alice, nil)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)

	var payload map[string]any
	if res.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	}
	return res, payload
}

func TestRouter_Login_Sets_Cookie(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.auth.EXPECT().Login(gomock.Any(), "alice@example.com", "CorrectPass123!").
		Return(services.Token("jwt"), storage.User{ID: "alice", Email: "alice@example.com", Name: "Alice"}, nil)

	res, payload := f.perform(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@example.com", "password": "CorrectPass123!"}, "")

	req.Equal(http.StatusOK, res.Code)
	req.Equal("ok", payload["status"])
	cookies := res.Result().Cookies()
	req.Len(cookies, 1)
	req.Equal(auth.CookieName, cookies[0].Name)
	req.Equal("jwt", cookies[0].Value)
	req.True(cookies[0].HttpOnly)
	req.True(cookies[0].Secure)
	req.Equal(3600, cookies[0].MaxAge)
}

func TestRouter_Login_Failures(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.auth.EXPECT().Login(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(services.Token(""), storage.User{}, errors.ErrInvalidCredentials)

	res, payload := f.perform(t, http.MethodPost, "/api/auth/login",
		map[string]string{"email": "alice@example.com", "password": "nope"}, "")
	req.Equal(http.StatusUnauthorized, res.Code)
	req.Equal("UNAUTHENTICATED", payload["code"])

	// Missing fields never reach the service
	res, _ = f.perform(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "alice@example.com"}, "")
	req.Equal(http.StatusBadRequest, res.Code)
}

func TestRouter_Register(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.auth.EXPECT().Register(gomock.Any(), "bob@example.com", "Bob", "ComplexPass123!").
		Return(services.Token("jwt"), storage.User{ID: "bob", Email: "bob@example.com", Name: "Bob"}, nil)
	f.auth.EXPECT().Register(gomock.Any(), "bob@example.com", "Bob", "ComplexPass123!").
		Return(services.Token(""), storage.User{}, errors.ErrUserAlreadyExists)

	body := map[string]string{"email": "bob@example.com", "name": "Bob", "password": "ComplexPass123!"}
	res, payload := f.perform(t, http.MethodPost, "/api/auth/register", body, "")
	req.Equal(http.StatusCreated, res.Code)
	req.Equal("bob", payload["data"].(map[string]any)["user"].(map[string]any)["id"])

	res, _ = f.perform(t, http.MethodPost, "/api/auth/register", body, "")
	req.Equal(http.StatusConflict, res.Code)
}

func TestRouter_Me_And_Logout(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	res, payload := f.perform(t, http.MethodGet, "/api/auth/me", nil, "jwt")
	req.Equal(http.StatusOK, res.Code)
	req.Equal("Alice", payload["data"].(map[string]any)["user"].(map[string]any)["name"])

	res, _ = f.perform(t, http.MethodPost, "/api/auth/logout", nil, "")
	req.Equal(http.StatusOK, res.Code)
	req.Equal(-1, res.Result().Cookies()[0].MaxAge)
}

func TestRouter_Rooms_Require_Authentication(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.auth.EXPECT().Authenticate(gomock.Any(), "forged").Return(domain.Profile{}, errors.ErrInvalidToken)

	res, payload := f.perform(t, http.MethodGet, "/api/rooms", nil, "")
	req.Equal(http.StatusUnauthorized, res.Code)
	req.Equal("UNAUTHENTICATED", payload["code"])

	r := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
	r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "forged"})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	req.Equal(http.StatusUnauthorized, rec.Code)
}

func TestRouter_Create_Room(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	room := domain.NewRoom("r1", "Sprint 1", alice, time.Now())
	f.rooms.EXPECT().Create(gomock.Any(), alice, "Sprint 1").Return(room, nil)
	f.rooms.EXPECT().Create(gomock.Any(), alice, "Sprint 2").Return(domain.Room{}, errors.ErrMaxRoomsExceeded)

	res, payload := f.perform(t, http.MethodPost, "/api/rooms", map[string]string{"name": "Sprint 1"}, "jwt")
	req.Equal(http.StatusCreated, res.Code)
	req.Equal("r1", payload["data"].(map[string]any)["room"].(map[string]any)["id"])

	// Given alice reached the cap
	res, payload = f.perform(t, http.MethodPost, "/api/rooms", map[string]string{"name": "Sprint 2"}, "jwt")
	req.Equal(http.StatusBadRequest, res.Code)
	req.Equal("MAX_ROOMS_EXCEEDED", payload["code"])
}

func TestRouter_Get_Room_Hides_Votes(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	room := domain.NewRoom("r1", "Sprint 1", alice, time.Now())
	room.Votes["alice"] = 5
	f.rooms.EXPECT().Get(gomock.Any(), domain.RoomID("r1")).Return(room, nil)
	f.rooms.EXPECT().Get(gomock.Any(), domain.RoomID("nope")).Return(domain.Room{}, errors.ErrRoomNotFound)

	res, payload := f.perform(t, http.MethodGet, "/api/rooms/r1", nil, "jwt")
	req.Equal(http.StatusOK, res.Code)
	view := payload["data"].(map[string]any)["room"].(map[string]any)
	req.Equal("Sprint 1", view["name"])
	req.Empty(view["votes"])

	res, _ = f.perform(t, http.MethodGet, "/api/rooms/nope", nil, "jwt")
	req.Equal(http.StatusNotFound, res.Code)
}

func TestRouter_List_And_Delete_Rooms(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)
	f.rooms.EXPECT().List(gomock.Any(), "alice").
		Return([]services.RoomSummary{{ID: "r1", Name: "Sprint 1", ParticipantCount: 2}}, nil)
	f.rooms.EXPECT().Delete(gomock.Any(), domain.RoomID("r1"), "alice").Return(nil)
	f.rooms.EXPECT().Delete(gomock.Any(), domain.RoomID("r2"), "alice").Return(errors.ErrNotAdmin)

	res, payload := f.perform(t, http.MethodGet, "/api/rooms", nil, "jwt")
	req.Equal(http.StatusOK, res.Code)
	rooms := payload["data"].(map[string]any)["rooms"].([]any)
	req.Len(rooms, 1)
	req.Equal(float64(2), rooms[0].(map[string]any)["participantCount"])

	res, _ = f.perform(t, http.MethodDelete, "/api/rooms/r1", nil, "jwt")
	req.Equal(http.StatusOK, res.Code)

	res, _ = f.perform(t, http.MethodDelete, "/api/rooms/r2", nil, "jwt")
	req.Equal(http.StatusForbidden, res.Code)
}

func TestRouter_Health_And_Gateway(t *testing.T) {
	req := require.New(t)
	f := newRouterFixture(t)

	res, payload := f.perform(t, http.MethodGet, "/healthz", nil, "")
	req.Equal(http.StatusOK, res.Code)
	req.Equal(float64(2), payload["data"].(map[string]any)["connections"])

	res, _ = f.perform(t, http.MethodGet, "/ws", nil, "")
	req.Equal(http.StatusTeapot, res.Code)
}
