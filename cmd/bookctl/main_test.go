package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/workday-booking/internal/utils"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fakeAPI(t *testing.T, lines *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/auth/login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access":{"access_token":"tok-1"}}`))
		case "/v1/admin/commands":
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid token"}`))
				return
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			*lines = append(*lines, body["line"])
			_ = json.NewEncoder(w).Encode(map[string]string{"reply": "ok " + body["line"]})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOperatorCommandsGoThroughAPI(t *testing.T) {
	var lines []string
	srv := fakeAPI(t, &lines)

	out, err := run(t, "", "--server", srv.URL, "--token", "tok-1", "refund", "pay-1", "1500")
	require.NoError(t, err)
	assert.Equal(t, "ok /refund pay-1 1500\n", out)

	_, err = run(t, "", "--server", srv.URL, "--token", "tok-1", "upcoming")
	require.NoError(t, err)
	_, err = run(t, "", "--server", srv.URL, "--token", "tok-1", "stats")
	require.NoError(t, err)
	assert.Equal(t, []string{"/refund pay-1 1500", "/upcoming", "/stats"}, lines)

	_, err = run(t, "", "--server", srv.URL, "--token", "bad", "today")
	assert.ErrorContains(t, err, "invalid token")

	_, err = run(t, "", "--server", srv.URL, "--token", "", "today")
	assert.ErrorContains(t, err, "no operator token")

	_, err = run(t, "", "--server", srv.URL, "--token", "tok-1", "status")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	srv := fakeAPI(t, new([]string))

	out, err := run(t, "pw\n", "--server", srv.URL, "login")
	require.NoError(t, err)
	assert.Equal(t, "tok-1\n", out)

	_, err = run(t, "nope\n", "--server", srv.URL, "login")
	assert.ErrorContains(t, err, "invalid credentials")
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := run(t, "", "token", "42", "--role", "client")
	require.NoError(t, err)
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(strings.TrimSpace(out), claims, func(*jwt.Token) (interface{}, error) {
		return []byte("cli-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, "CLIENT", claims["role"])

	_, err = run(t, "", "token", "alice", "--role", "client")
	assert.Error(t, err)
	_, err = run(t, "", "token", "alice", "--role", "admin")
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	out, err := run(t, "s3cret\n", "hash-password", "--cost", "4")
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(strings.TrimSpace(out), "s3cret"))

	_, err = run(t, "\n", "hash-password")
	assert.Error(t, err)
}
