package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"amara-go/internal/handler"
	"amara-go/internal/model"
	"amara-go/internal/relay"
	"amara-go/internal/service"
	"amara-go/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// memMessageRepo 是端到端测试用的内存消息库。
type memMessageRepo struct {
	mu     sync.Mutex
	nextID uint
	byChat map[string][]model.Message
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{byChat: make(map[string][]model.Message)}
}

func (r *memMessageRepo) Create(_ context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	msg.ID = r.nextID
	msg.CreatedAt = time.Now()
	r.byChat[msg.ChatID] = append(r.byChat[msg.ChatID], *msg)
	return nil
}

func (r *memMessageRepo) FindRecent(_ context.Context, chatID string, limit int) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.byChat[chatID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

type staticCompanion struct{}

func (staticCompanion) Respond(_ context.Context, _, _, _ string) string { return "noted" }

// receivedMessage 解析 receive_message 事件的 data 部分。
type receivedMessage struct {
	Event string        `json:"event"`
	Data  model.Message `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, *token.JWTManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := relay.NewHub()
	repo := newMemMessageRepo()
	messageService := service.NewMessageService(repo, staticCompanion{}, hub, nil)
	jwtManager := token.NewJWTManager("test-secret")

	r := gin.New()
	r.GET("/", handler.Health)
	r.GET("/ws/:token", handler.NewChatHandler(hub, messageService, jwtManager).Handle)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, jwtManager
}

func dial(t *testing.T, srv *httptest.Server, jwtManager *token.JWTManager) *websocket.Conn {
	t.Helper()
	tok, err := jwtManager.GenerateToken("user-1", time.Minute)
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + tok
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) receivedMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg receivedMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebsocketRejectsInvalidToken(t *testing.T) {
	srv, _ := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/not-a-token"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSendMessageBroadcastsToRoomMembers(t *testing.T) {
	srv, jwtManager := newTestServer(t)

	sender := dial(t, srv, jwtManager)
	observer := dial(t, srv, jwtManager)

	join := `{"event":"join_chat","data":{"chatId":"room1"}}`
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(join)))
	require.NoError(t, observer.WriteMessage(websocket.TextMessage, []byte(join)))

	// join 无回包；短暂等待成员登记完成
	time.Sleep(50 * time.Millisecond)

	send := `{"event":"send_message","data":{"chatId":"room1","userId":"user-1","content":"hi","chatType":"COUPLE"}}`
	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(send)))

	got := readEvent(t, sender)
	require.Equal(t, "receive_message", got.Event)
	require.Equal(t, "hi", got.Data.Content)
	require.Equal(t, "user-1", got.Data.UserID)
	require.False(t, got.Data.Synthesized)
	require.NotZero(t, got.Data.ID)

	fromObserver := readEvent(t, observer)
	require.Equal(t, got.Data.ID, fromObserver.Data.ID, "两个成员收到同一事件")
	require.Equal(t, got.Data.Content, fromObserver.Data.Content)
}

func TestPrivateAISendDeliversHumanThenReply(t *testing.T) {
	srv, jwtManager := newTestServer(t)

	conn := dial(t, srv, jwtManager)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"join_chat","data":{"chatId":"private1"}}`)))
	time.Sleep(50 * time.Millisecond)

	send := `{"event":"send_message","data":{"chatId":"private1","userId":"user-1","content":"hello","chatType":"PRIVATE_AI"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(send)))

	human := readEvent(t, conn)
	require.Equal(t, "hello", human.Data.Content)
	require.False(t, human.Data.Synthesized)

	reply := readEvent(t, conn)
	require.Equal(t, "noted", reply.Data.Content)
	require.True(t, reply.Data.Synthesized)
	require.Equal(t, model.AIUserID, reply.Data.UserID)
	require.Greater(t, reply.Data.ID, human.Data.ID, "人类消息严格先于 AI 回复")
}

func TestMalformedEventsAreIgnored(t *testing.T) {
	srv, jwtManager := newTestServer(t)

	conn := dial(t, srv, jwtManager)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"join_chat","data":{"chatId":"room1"}}`)))
	time.Sleep(50 * time.Millisecond)

	// 非法帧与空内容消息：无回包，连接保持可用
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"send_message","data":{"chatId":"room1","userId":"user-1","content":"   ","chatType":"COUPLE"}}`)))

	send := `{"event":"send_message","data":{"chatId":"room1","userId":"user-1","content":"still alive","chatType":"COUPLE"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(send)))

	got := readEvent(t, conn)
	require.Equal(t, "still alive", got.Data.Content, "非法事件之后连接仍然工作")
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
