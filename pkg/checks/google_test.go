package checks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func newTestDirectory(t *testing.T, h http.Handler) *GoogleDirectory {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	dir, err := NewGoogleDirectory(context.Background(), GoogleConfig{
		RequestDelay: time.Millisecond,
		Options: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/"),
			option.WithHTTPClient(srv.Client()),
		},
	}, nil)
	require.NoError(t, err)
	return dir
}

func TestGoogleDirectoryUsers(t *testing.T) {
	r := require.New(t)
	var calls int32
	dir := newTestDirectory(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/admin/directory/v1/users", req.URL.Path)
		assert.Equal(t, DefaultCustomer, req.URL.Query().Get("customer"))
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch req.URL.Query().Get("pageToken") {
		case "":
			fmt.Fprint(w, `{"users": [
				{"primaryEmail": "a@example.com", "isAdmin": true, "isEnrolledIn2Sv": true,
				 "name": {"fullName": "A"}, "lastLoginTime": "2024-02-01T10:00:00.000Z"}
			], "nextPageToken": "p2"}`)
		case "p2":
			fmt.Fprint(w, `{"users": [
				{"primaryEmail": "b@example.com", "suspended": true, "lastLoginTime": "1970-01-01T00:00:00.000Z"}
			]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))

	users, err := dir.Users(context.Background())
	r.NoError(err)
	r.Len(users, 2)
	r.Equal(User{
		Email:         "a@example.com",
		Name:          "A",
		IsAdmin:       true,
		EnrolledIn2SV: true,
		LastLogin:     time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
	}, users[0])
	r.True(users[1].Suspended)
	r.True(users[1].LastLogin.IsZero())

	_, err = dir.Users(context.Background())
	r.NoError(err)
	r.Equal(int32(2), atomic.LoadInt32(&calls))
}

func TestGoogleDirectoryForbidden(t *testing.T) {
	dir := newTestDirectory(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error": {"code": 403, "message": "Not Authorized to access this resource/api"}}`)
	}))

	_, err := dir.MobileDevices(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "listing mobile devices")
	require.Contains(t, err.Error(), "domain-wide delegation")

	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	require.Equal(t, http.StatusForbidden, gerr.Code)
}

func TestNewGoogleDirectoryNeedsCredentials(t *testing.T) {
	_, err := NewGoogleDirectory(context.Background(), GoogleConfig{}, nil)
	require.Error(t, err)

	_, err = NewGoogleDirectory(context.Background(), GoogleConfig{CredentialsFile: "/nonexistent/key.json"}, nil)
	require.ErrorContains(t, err, "reading credentials")
}

func TestAPIError(t *testing.T) {
	err := apiError("listing users", &googleapi.Error{Code: http.StatusTooManyRequests})
	require.Contains(t, err.Error(), "rate limited")

	err = apiError("listing users", errors.New("dial tcp: refused"))
	require.EqualError(t, err, "listing users: dial tcp: refused")
}

func TestParseLoginTime(t *testing.T) {
	require.True(t, parseLoginTime("").IsZero())
	require.True(t, parseLoginTime("1970-01-01T00:00:00.000Z").IsZero())
	require.Equal(t, 2023, parseLoginTime("2023-05-06T07:08:09.000Z").Year())
}
