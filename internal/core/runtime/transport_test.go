package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/require"
)

func TestDialWebSocketRoundTrip(t *testing.T) {
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := wsutil.WriteServerText(conn, []byte(`{"event":"message","data":{"text":"Welcome!","display":"box","section":true}}`)); err != nil {
			return
		}
		data, _, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		received <- string(data)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := DialWebSocket(ctx, url)
	require.NoError(t, err)
	defer conn.Close()

	frame, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, _, err := decodeFrame(frame)
	require.NoError(t, err)
	require.Equal(t, "Welcome!", msg.Text)
	require.True(t, msg.Section)

	out, err := encodeMessage("hello")
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(out))

	select {
	case got := <-received:
		require.JSONEq(t, `{"event":"message","data":"hello"}`, got)
	case <-ctx.Done():
		t.Fatal("server never received the message")
	}
}

func TestDialWebSocketRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := DialWebSocket(ctx, url)
	require.Error(t, err)
}
