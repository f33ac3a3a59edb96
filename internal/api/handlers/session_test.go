package handlers_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/scripta/scripta-api/internal/domain"
	"github.com/scripta/scripta-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionList struct {
	Message  string                  `json:"message"`
	Sessions []domain.TrustedSession `json:"sessions"`
}

func TestSessionHandler(t *testing.T) {
	ts := testutil.NewTestServer(t)
	user, password := testutil.NewUserBuilder().Build(t, ts.DB.DB)
	token := testutil.Login(t, ts, user.Email, password)
	_, otherToken := testutil.NewUserBuilder().BuildAndAuthenticate(t, ts)

	resp := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/sessions"), nil, token))
	var list sessionList
	testutil.AssertJSONResponse(t, resp, &list)
	assert.Equal(t, "Active sessions retrieved", list.Message)
	require.Len(t, list.Sessions, 1)
	session := list.Sessions[0]
	assert.Equal(t, user.ID, session.UserID)
	assert.NotEmpty(t, session.UserAgent)

	sessionURL := ts.APIURL("/sessions/" + session.ID.String())

	t.Run("get own session", func(t *testing.T) {
		resp := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, sessionURL, nil, token))
		var got domain.TrustedSession
		testutil.AssertJSONResponse(t, resp, &got)
		assert.Equal(t, session.ID, got.ID)
	})

	t.Run("other users cannot see or revoke it", func(t *testing.T) {
		get := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, sessionURL, nil, otherToken))
		testutil.AssertErrorResponse(t, get, http.StatusNotFound, "Session not found")

		del := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, sessionURL, nil, otherToken))
		assert.Equal(t, http.StatusNotFound, del.StatusCode)
	})

	t.Run("bad ids", func(t *testing.T) {
		bad := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodGet, ts.APIURL("/sessions/xyz"), nil, token))
		testutil.AssertErrorResponse(t, bad, http.StatusBadRequest, "Invalid session ID")

		unknown := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, ts.APIURL("/sessions/"+uuid.NewString()), nil, token))
		assert.Equal(t, http.StatusNotFound, unknown.StatusCode)
	})

	t.Run("revoking forces verification on next login", func(t *testing.T) {
		del := testutil.Do(t, testutil.CreateAuthenticatedRequest(t, http.MethodDelete, sessionURL, nil, token))
		assert.Equal(t, http.StatusOK, del.StatusCode)

		resp := post(t, ts.APIURL("/auth/login"), map[string]string{"identifier": user.Email, "password": password})
		var body testutil.AuthResponse
		testutil.AssertJSONResponse(t, resp, &body)
		assert.Equal(t, "Verification required", body.Message)
	})
}
