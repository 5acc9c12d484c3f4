package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_RegisterDriver(t *testing.T) {
	var got DriverRegistration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/drivers", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-API-KEY"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id": 4821, "name": "Ana"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", "key-1", time.Second)
	id, err := c.RegisterDriver(context.Background(), DriverRegistration{Name: "Ana", Email: "ana@example.com", Phone: "+52"})
	require.NoError(t, err)
	assert.Equal(t, "4821", id)
	assert.Equal(t, "ana@example.com", got.Email)
}

func TestHTTPClient_RegisterDriverWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, "k", time.Second).RegisterDriver(context.Background(), DriverRegistration{})
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestHTTPClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, "wrong", time.Second).UnassignOrder(context.Background(), "77")
	require.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "status 401")
}

func TestHTTPClient_ListDrivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`[{"id": 1, "name": "Ana", "email": "ana@example.com", "phoneNumber": "+521"},
			{"id": "x-2", "name": "Ben", "email": "ben@example.com"}]`))
	}))
	defer srv.Close()

	drivers, err := NewHTTPClient(srv.URL, "k", time.Second).ListDrivers(context.Background())
	require.NoError(t, err)
	require.Len(t, drivers, 2)
	assert.Equal(t, RemoteDriver{ID: "1", Name: "Ana", Email: "ana@example.com", Phone: "+521"}, drivers[0])
	assert.Equal(t, "x-2", drivers[1].ID)
}

func TestHTTPClient_SetOrderTargets(t *testing.T) {
	var body struct {
		TargetDriverIDs []string `json:"targetDriverIds"`
		Notes           string   `json:"notes"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/orders/A%2F1", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewHTTPClient(srv.URL, "k", time.Second).SetOrderTargets(context.Background(), "A/1", []string{"1", "2"}, "payment method: CASH")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, body.TargetDriverIDs)
	assert.Equal(t, "payment method: CASH", body.Notes)
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(url, "k", 200*time.Millisecond).ListDrivers(context.Background())
	assert.True(t, errors.Is(err, ErrRequestFailed))
}
