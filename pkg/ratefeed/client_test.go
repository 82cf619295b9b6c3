package ratefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	want := []Entry{
		{
			HTSNumber:   "7208.10.15.00",
			Description: "Flat-rolled products of iron or non-alloy steel, in coils",
			General:     "Free",
			Special:     "",
			Other:       "20%",
		},
		{
			HTSNumber:   "7208.10.30.00",
			Description: "Pickled, not in coils",
			General:     "Free",
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "7208.10", r.URL.Query().Get("keyword"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRequestsPerSec(1000))
	got, err := client.Search(context.Background(), "7208.10")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "7208.10.15.00", got[0].HTSNumber)
	assert.Equal(t, "Free", got[0].General)
	assert.Equal(t, "20%", got[0].Other)
}

func TestSearch_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]Entry{{HTSNumber: "7208.10.15.00"}}) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRequestsPerSec(1000))
	got, err := client.Search(context.Background(), "7208.10")

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearch_NonRetryableStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`not found`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRequestsPerSec(1000))
	_, err := client.Search(context.Background(), "0000")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearch_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not": "a list"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRequestsPerSec(1000))
	_, err := client.Search(context.Background(), "7208")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestSearch_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithBaseURL(srv.URL), WithRequestsPerSec(1000))
	_, err := client.Search(ctx, "7208")
	require.Error(t, err)
}
