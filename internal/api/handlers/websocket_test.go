package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	gorillaWS "github.com/gorilla/websocket"
	"github.com/scripta/scripta-api/internal/testutil"
	"github.com/scripta/scripta-api/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketHandler_RejectsBadTokens(t *testing.T) {
	ts := testutil.NewTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := gorillaWS.DefaultDialer.Dial(ts.WebSocketURL(tt.token), nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestWebSocketHandler_PingAndErrors(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, token := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	client := testutil.NewWSClient(t, ts.WebSocketURL(token))
	client.Send(websocket.MessageTypePing, nil)
	client.ExpectMessage(websocket.MessageTypePong, 2*time.Second)
	assert.Equal(t, 1, ts.Hub.ConnectionCount(user.ID))

	client.Send(websocket.MessageType("draft.subscribe"), nil)
	msg := client.ExpectMessage(websocket.MessageTypeError, 2*time.Second)

	var payload websocket.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "UNKNOWN_TYPE", payload.Code)

	client.Close()
	assert.Eventually(t, func() bool { return ts.Hub.ConnectionCount(user.ID) == 0 }, 2*time.Second, 10*time.Millisecond)
}
