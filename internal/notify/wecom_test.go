package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/clipvault/clipvault/internal/event"
)

type wecomFixture struct {
	tokenCalls atomic.Int64
	sendCalls  atomic.Int64
	lastText   atomic.Value
	lastToUser atomic.Value
}

func newWeComServer(t *testing.T, fx *wecomFixture) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gettoken":
			fx.tokenCalls.Add(1)
			require.Equal(t, "corp-1", r.URL.Query().Get("corpid"))
			require.Equal(t, "secret-1", r.URL.Query().Get("corpsecret"))
			json.NewEncoder(w).Encode(map[string]any{
				"errcode":      0,
				"access_token": "tok-123",
				"expires_in":   7200,
			})
		case "/message/send":
			fx.sendCalls.Add(1)
			require.Equal(t, "tok-123", r.URL.Query().Get("access_token"))
			var payload struct {
				ToUser  string `json:"touser"`
				MsgType string `json:"msgtype"`
				Text    struct {
					Content string `json:"content"`
				} `json:"text"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			require.Equal(t, "text", payload.MsgType)
			fx.lastText.Store(payload.Text.Content)
			fx.lastToUser.Store(payload.ToUser)
			json.NewEncoder(w).Encode(map[string]any{"errcode": 0, "errmsg": "ok"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newSink(srv *httptest.Server, atAll bool) *WeCom {
	return New(Config{
		CorpID:     "corp-1",
		AgentID:    "1000001",
		CorpSecret: "secret-1",
		UserID:     "zhangsan",
		AtAll:      atAll,
		APIBase:    srv.URL,
	}, zap.NewNop())
}

func succeededEvent() event.Event {
	return event.Event{
		Type:   event.TypeSucceeded,
		ClipID: "clip-1",
		URL:    "https://example.com/post",
		TS:     time.Unix(1000, 0),
		Title:  "A Title",
		DocID:  "doc-1",
	}
}

func TestConsume_SucceededSendsText(t *testing.T) {
	t.Parallel()

	fx := &wecomFixture{}
	srv := newWeComServer(t, fx)
	defer srv.Close()

	sink := newSink(srv, true)
	require.NoError(t, sink.Consume(context.Background(), succeededEvent()))

	require.Equal(t, int64(1), fx.sendCalls.Load())
	require.Contains(t, fx.lastText.Load().(string), "A Title")
	require.Contains(t, fx.lastText.Load().(string), "https://example.com/post")
	require.Equal(t, "@all", fx.lastToUser.Load().(string))
}

func TestConsume_FailedCarriesStageAndReason(t *testing.T) {
	t.Parallel()

	fx := &wecomFixture{}
	srv := newWeComServer(t, fx)
	defer srv.Close()

	sink := newSink(srv, false)
	err := sink.Consume(context.Background(), event.Event{
		Type:   event.TypeFailed,
		ClipID: "clip-1",
		URL:    "https://example.com",
		TS:     time.Unix(1000, 0),
		Stage:  "Fetching",
		Reason: "timeout",
	})
	require.NoError(t, err)
	require.Contains(t, fx.lastText.Load().(string), "Fetching")
	require.Contains(t, fx.lastText.Load().(string), "timeout")
	require.Equal(t, "zhangsan", fx.lastToUser.Load().(string))
}

func TestConsume_StartedIgnored(t *testing.T) {
	t.Parallel()

	fx := &wecomFixture{}
	srv := newWeComServer(t, fx)
	defer srv.Close()

	sink := newSink(srv, true)
	err := sink.Consume(context.Background(), event.Event{
		Type: event.TypeStarted, ClipID: "c", URL: "u", TS: time.Unix(1000, 0),
	})
	require.NoError(t, err)
	require.Zero(t, fx.tokenCalls.Load())
	require.Zero(t, fx.sendCalls.Load())
}

func TestToken_CachedAcrossSends(t *testing.T) {
	t.Parallel()

	fx := &wecomFixture{}
	srv := newWeComServer(t, fx)
	defer srv.Close()

	sink := newSink(srv, true)
	ctx := context.Background()
	require.NoError(t, sink.Consume(ctx, succeededEvent()))
	require.NoError(t, sink.Consume(ctx, succeededEvent()))
	require.NoError(t, sink.Consume(ctx, succeededEvent()))

	require.Equal(t, int64(1), fx.tokenCalls.Load())
	require.Equal(t, int64(3), fx.sendCalls.Load())
}

func TestToken_RejectionSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"errcode": 40013, "errmsg": "invalid corpid"})
	}))
	defer srv.Close()

	sink := newSink(srv, true)
	err := sink.Consume(context.Background(), succeededEvent())
	require.Error(t, err)
	require.Contains(t, err.Error(), "40013")
}
