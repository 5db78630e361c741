package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/notification"
)

func TestWebhookPostsNotificationJSON(t *testing.T) {
	var got notification.Notification
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"X-Token": "secret"},
	})
	require.True(t, ch.Available())

	n := notification.New("deploy", "ship it", notification.TypeSystemAlert, notification.PriorityHigh)
	require.NoError(t, ch.Send(context.Background(), n))
	assert.Equal(t, n.ID, got.ID)
	assert.Equal(t, "deploy", got.Title)
}

func TestWebhookRetriesBeforeSucceeding(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(WebhookConfig{URL: srv.URL})
	n := notification.New("t", "m", notification.TypeSystemAlert, notification.PriorityMedium)
	require.NoError(t, ch.Send(context.Background(), n))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookGivesUpAfterMaxAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch := NewWebhookChannel(WebhookConfig{URL: srv.URL})
	n := notification.New("t", "m", notification.TypeSystemAlert, notification.PriorityMedium)
	err := ch.Send(context.Background(), n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestWebhookUnconfiguredUnavailable(t *testing.T) {
	ch := NewWebhookChannel(WebhookConfig{})
	assert.False(t, ch.Available())
}
