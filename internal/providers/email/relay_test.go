package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelay struct {
	tokenCalls int
	sendCalls  int
	raw        string
	auth       string
	tokenForm  map[string]string
}

func newFakeRelay(t *testing.T, f *fakeRelay, accessToken string, sendStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		require.NoError(t, r.ParseForm())
		f.tokenForm = map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"refresh_token": r.PostForm.Get("refresh_token"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		f.sendCalls++
		f.auth = r.Header.Get("Authorization")
		var body struct {
			Raw string `json:"raw"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.raw = body.Raw
		w.WriteHeader(sendStatus)
		_, _ = io.WriteString(w, `{"id":"msg-1"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func relayFor(srv *httptest.Server) *Relay {
	return NewRelay(RelayConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RefreshToken: "refresh-token",
		Sender:       "crew@eventcrew.test",
		TokenURL:     srv.URL + "/token",
		SendURL:      srv.URL + "/send",
	}, srv.Client(), nil)
}

func TestRelaySendsEncodedMessage(t *testing.T) {
	f := &fakeRelay{}
	srv := newFakeRelay(t, f, "access-123", http.StatusOK)

	err := relayFor(srv).Send(context.Background(), Message{
		To:       "jo@example.com",
		FromName: "Event Crew",
		Subject:  "You're invited to join the Fête team",
		HTML:     "<p>Hello</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, f.tokenCalls)
	assert.Equal(t, "refresh_token", f.tokenForm["grant_type"])
	assert.Equal(t, "refresh-token", f.tokenForm["refresh_token"])
	assert.Equal(t, "client-id", f.tokenForm["client_id"])
	assert.Equal(t, "Bearer access-123", f.auth)

	assert.NotContains(t, f.raw, "=")
	decoded, err := base64.RawURLEncoding.DecodeString(f.raw)
	require.NoError(t, err)

	parsed, err := mail.ReadMessage(strings.NewReader(string(decoded)))
	require.NoError(t, err)
	assert.Equal(t, "jo@example.com", parsed.Header.Get("To"))
	assert.True(t, strings.HasPrefix(parsed.Header.Get("Subject"), "=?UTF-8?B?"))

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "You're invited to join the Fête team", subject)

	from, err := mail.ParseAddress(parsed.Header.Get("From"))
	require.NoError(t, err)
	assert.Equal(t, "crew@eventcrew.test", from.Address)
	assert.Equal(t, "Event Crew", from.Name)
	assert.Contains(t, parsed.Header.Get("Content-Type"), "text/html")
}

func TestRelayEmptyAccessTokenFails(t *testing.T) {
	f := &fakeRelay{}
	srv := newFakeRelay(t, f, "", http.StatusOK)

	err := relayFor(srv).Send(context.Background(), Message{To: "jo@example.com", Subject: "s", HTML: "b"})
	assert.ErrorIs(t, err, ErrTokenExchangeFailed)
	assert.Equal(t, 0, f.sendCalls)
}

func TestRelayMissingCredentialsFails(t *testing.T) {
	r := NewRelay(RelayConfig{Sender: "crew@eventcrew.test"}, nil, nil)
	err := r.Send(context.Background(), Message{To: "jo@example.com"})
	assert.ErrorIs(t, err, ErrTokenExchangeFailed)
}

func TestRelayRejectedSendFails(t *testing.T) {
	f := &fakeRelay{}
	srv := newFakeRelay(t, f, "access-123", http.StatusBadRequest)

	err := relayFor(srv).Send(context.Background(), Message{To: "jo@example.com", Subject: "s", HTML: "b"})
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Equal(t, 1, f.sendCalls)
}

func TestEncodeSubjectSplitsLongValues(t *testing.T) {
	subject := strings.Repeat("ü", 40)
	encoded := EncodeSubject(subject)

	words := strings.Fields(encoded)
	require.Greater(t, len(words), 1)
	for _, w := range words {
		assert.LessOrEqual(t, len(w), 75)
	}
	decoded, err := new(mime.WordDecoder).DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, subject, decoded)
}
