package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rkwebforge/tracklet/internal/app"
	"github.com/rkwebforge/tracklet/internal/auth"
	"github.com/rkwebforge/tracklet/internal/config"
)

type envelopeResponse struct {
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T) (*httptest.Server, func() *http.Client) {
	t.Helper()

	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	cfg := &config.Config{
		Env:                "dev",
		HTTPAddr:           ":0",
		BaseURL:            "http://localhost",
		DBDSN:              "unused",
		JWTSecret:          "test-secret",
		LogLevel:           "error",
		RateLimitRPM:       120,
		SessionDays:        7,
		InvitePurgeDays:    30,
		AuditRetentionDays: 180,
	}

	srv := httptest.NewServer(app.NewRouter(pool, cfg))
	t.Cleanup(srv.Close)

	newClient := func() *http.Client {
		jar, err := cookiejar.New(nil)
		require.NoError(t, err)
		return &http.Client{Jar: jar}
	}

	return srv, newClient
}

// seedCSRF plants a double-submit token in the client's jar and returns it
func seedCSRF(t *testing.T, client *http.Client, srvURL string) string {
	t.Helper()

	baseURL, err := url.Parse(srvURL)
	require.NoError(t, err)

	token, err := auth.GenerateCSRFToken()
	require.NoError(t, err)
	client.Jar.SetCookies(baseURL, []*http.Cookie{{Name: auth.CSRFCookieName, Value: token, Path: "/"}})
	return token
}

func doJSONExpectStatus(t *testing.T, client *http.Client, method, urlStr, csrfToken string, wantStatus int, payload any) envelopeResponse {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if csrfToken != "" {
		req.Header.Set(auth.CSRFHeaderName, csrfToken)
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, wantStatus, resp.StatusCode, "body: %s", string(respBody))

	if wantStatus >= 400 {
		return envelopeResponse{}
	}

	var env envelopeResponse
	require.NoError(t, json.Unmarshal(respBody, &env))
	require.NotEmpty(t, env.RequestID)
	return env
}

func TestE2E_InviteSignupFlow(t *testing.T) {
	srv, newClient := newTestServer(t)

	ownerClient := newClient()
	csrfToken := seedCSRF(t, ownerClient, srv.URL)

	doJSONExpectStatus(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/auth/signup", csrfToken, http.StatusCreated, map[string]any{
		"name":     "Owner",
		"email":    "owner@example.com",
		"password": "password123",
	})

	// Create an organization
	var orgID uuid.UUID
	{
		env := doJSONExpectStatus(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/orgs", csrfToken, http.StatusCreated, map[string]any{
			"name": "Acme Corp",
		})
		var parsed struct {
			Org struct {
				ID   uuid.UUID `json:"id"`
				Slug string    `json:"slug"`
			} `json:"org"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &parsed))
		require.Equal(t, "acme-corp", parsed.Org.Slug)
		orgID = parsed.Org.ID
	}

	// Create a shareable invitation
	var inviteToken string
	{
		env := doJSONExpectStatus(t, ownerClient, http.MethodPost, srv.URL+"/api/v1/orgs/"+orgID.String()+"/invites", csrfToken, http.StatusCreated, map[string]any{
			"role":            "member",
			"expires_in_days": 7,
		})
		var parsed struct {
			Invite struct {
				Token string `json:"token"`
				URL   string `json:"url"`
			} `json:"invite"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &parsed))
		require.NotEmpty(t, parsed.Invite.Token)
		require.Contains(t, parsed.Invite.URL, parsed.Invite.Token)
		inviteToken = parsed.Invite.Token
	}

	// The invitation preview is reachable without a session
	{
		anon := newClient()
		env := doJSONExpectStatus(t, anon, http.MethodGet, srv.URL+"/api/v1/invites/"+inviteToken, "", http.StatusOK, nil)
		var parsed struct {
			OrgName string `json:"org_name"`
			Role    string `json:"role"`
			Valid   bool   `json:"valid"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &parsed))
		require.Equal(t, "Acme Corp", parsed.OrgName)
		require.Equal(t, "member", parsed.Role)
		require.True(t, parsed.Valid)
	}

	// A new user signs up with the invite token and lands in the org
	joinerClient := newClient()
	joinerCSRF := seedCSRF(t, joinerClient, srv.URL)
	doJSONExpectStatus(t, joinerClient, http.MethodPost, srv.URL+"/api/v1/auth/signup", joinerCSRF, http.StatusCreated, map[string]any{
		"name":         "Joiner",
		"email":        "joiner@example.com",
		"password":     "password123",
		"invite_token": inviteToken,
	})

	{
		env := doJSONExpectStatus(t, joinerClient, http.MethodGet, srv.URL+"/api/v1/orgs", "", http.StatusOK, nil)
		var parsed struct {
			Orgs []struct {
				ID   uuid.UUID `json:"id"`
				Role string    `json:"role"`
			} `json:"orgs"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &parsed))
		require.Len(t, parsed.Orgs, 1)
		require.Equal(t, orgID, parsed.Orgs[0].ID)
		require.Equal(t, "member", parsed.Orgs[0].Role)
	}

	// The owner sees both members
	{
		env := doJSONExpectStatus(t, ownerClient, http.MethodGet, srv.URL+"/api/v1/orgs/"+orgID.String()+"/members", "", http.StatusOK, nil)
		var parsed struct {
			Members []struct {
				Email   string `json:"email"`
				Role    string `json:"role"`
				IsOwner bool   `json:"is_owner"`
			} `json:"members"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &parsed))
		require.Len(t, parsed.Members, 2)
	}

	// Members cannot create invitations
	doJSONExpectStatus(t, joinerClient, http.MethodPost, srv.URL+"/api/v1/orgs/"+orgID.String()+"/invites", joinerCSRF, http.StatusForbidden, map[string]any{
		"role": "member",
	})

	// The audit trail records the lifecycle
	{
		env := doJSONExpectStatus(t, ownerClient, http.MethodGet, srv.URL+"/api/v1/orgs/"+orgID.String()+"/audit", "", http.StatusOK, nil)
		var parsed struct {
			Events []struct {
				Action string `json:"action"`
			} `json:"events"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &parsed))

		actions := make(map[string]bool)
		for _, ev := range parsed.Events {
			actions[ev.Action] = true
		}
		require.True(t, actions["org.created"])
		require.True(t, actions["org.invite_created"])
		require.True(t, actions["org.invite_redeemed"])
	}
}

func TestE2E_MutationWithoutCSRFRejected(t *testing.T) {
	srv, newClient := newTestServer(t)

	client := newClient()
	doJSONExpectStatus(t, client, http.MethodPost, srv.URL+"/api/v1/auth/signup", "", http.StatusForbidden, map[string]any{
		"name":     "NoToken",
		"email":    "notoken@example.com",
		"password": "password123",
	})
}
