package handler_test

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/elimu-api/internal/dto"
	"github.com/noah-isme/elimu-api/internal/handler"
	"github.com/noah-isme/elimu-api/internal/middleware"
	"github.com/noah-isme/elimu-api/internal/service"
)

const realtimeSecret = "realtime-secret"

func realtimeToken(t *testing.T, subject, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(realtimeSecret))
	require.NoError(t, err)
	return signed
}

func newRealtimeApp(svc service.RealtimeService) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())

	realtimeHandler := handler.NewRealtimeHandler(svc, zerolog.Nop())
	realtimeHandler.RegisterSocket(app.Group("/api/v1/realtime", middleware.JWTProtected(realtimeSecret)))
	realtimeHandler.RegisterPublisher(app.Group("/api/v1/admin/realtime",
		middleware.JWTProtected(realtimeSecret),
		middleware.RequireRole(middleware.RoleAdmin),
	))
	return app
}

func startFiberServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	})

	return listener.Addr().String()
}

func readRealtime(t *testing.T, conn *websocket.Conn) dto.RealtimeMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var message dto.RealtimeMessage
	require.NoError(t, conn.ReadJSON(&message))
	return message
}

func TestRealtimeHandlerDeliversPublishedEvents(t *testing.T) {
	svc := service.NewRealtimeService(nil, "", nil, nil, zerolog.Nop())
	app := newRealtimeApp(svc)
	addr := startFiberServer(t, app)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	url := "ws://" + addr + "/api/v1/realtime/ws?access_token=" + realtimeToken(t, instructorID, "instructor")
	conn, resp, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(dto.RealtimeClientMessage{Event: dto.RealtimeEventJoin, InstructorID: instructorID}))
	joined := readRealtime(t, conn)
	require.Equal(t, dto.RealtimeEventJoined, joined.Event)
	require.Equal(t, instructorID, joined.InstructorID)

	body := `{"instructorId":"` + strings.ToUpper(instructorID) + `","reason":"progress","message":"<i>Lesson</i> done"}`
	req, err := http.NewRequest(http.MethodPost, "http://"+addr+"/api/v1/admin/realtime/events", bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+realtimeToken(t, "admin-1", "admin"))

	publishResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusAccepted, publishResp.StatusCode)
	_ = publishResp.Body.Close()

	event := readRealtime(t, conn)
	require.Equal(t, dto.RealtimeEventStudentUpdate, event.Event)
	require.Equal(t, "progress", event.Reason)
	require.Equal(t, "Lesson done", event.Message)
}

func TestRealtimeHandlerRejectsForeignRoom(t *testing.T) {
	svc := service.NewRealtimeService(nil, "", nil, nil, zerolog.Nop())
	addr := startFiberServer(t, newRealtimeApp(svc))

	header := http.Header{"Authorization": {"Bearer " + realtimeToken(t, instructorID, "instructor")}}
	conn, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/realtime/ws", header)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(dto.RealtimeClientMessage{Event: dto.RealtimeEventJoin, InstructorID: "9f8e7d6c-5b4a-4321-8765-0fedcba98765"}))
	message := readRealtime(t, conn)
	require.Equal(t, dto.RealtimeEventError, message.Event)
}

func TestRealtimeHandlerRequiresToken(t *testing.T) {
	svc := service.NewRealtimeService(nil, "", nil, nil, zerolog.Nop())
	addr := startFiberServer(t, newRealtimeApp(svc))

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/realtime/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestRealtimeHandlerPublishValidation(t *testing.T) {
	svc := service.NewRealtimeService(nil, "", nil, nil, zerolog.Nop())
	app := newRealtimeApp(svc)
	adminToken := realtimeToken(t, "admin-1", "admin")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/realtime/events", bytes.NewBufferString(`{"instructorId":"nope","reason":"progress"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var payload map[string]interface{}
	decodeResponse(t, resp, &payload)
	require.Equal(t, "invalid event", payload["message"])

	req = httptest.NewRequest(http.MethodPost, "/api/v1/admin/realtime/events", bytes.NewBufferString(`{`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRealtimeHandlerPublishRequiresAdmin(t *testing.T) {
	svc := service.NewRealtimeService(nil, "", nil, nil, zerolog.Nop())
	app := newRealtimeApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/realtime/events", bytes.NewBufferString(`{"instructorId":"`+instructorID+`"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+realtimeToken(t, instructorID, "instructor"))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
