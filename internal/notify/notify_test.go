package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"propbook/pkg/logger"
	"propbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_SwallowsFailure(t *testing.T) {
	n := NewMemoryNotifier()
	n.SetErr(errors.New("smtp down"))

	ok := Dispatch(context.Background(), n, logger.Discard(), time.Second, model.Notification{Kind: model.NotifyVisitFeedback})
	assert.False(t, ok)
	assert.Equal(t, 1, n.Count(model.NotifyVisitFeedback))

	n.SetErr(nil)
	ok = Dispatch(context.Background(), n, logger.Discard(), 0, model.Notification{Kind: model.NotifyVisitFeedback})
	assert.True(t, ok)
	assert.Equal(t, 2, n.Count(model.NotifyVisitFeedback))
}

func TestHTTPNotifier(t *testing.T) {
	var got model.Notification
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key = r.Header.Get("Idempotency-Key")
		if r.URL.Path != "/notifications" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got.RecipientID == "reject-me" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"unknown recipient"}`))
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewHTTPNotifier(srv.URL, time.Second)

	err := n.Notify(context.Background(), model.Notification{Kind: model.NotifyBookingAccepted, RecipientID: "t-1", EntityID: "b-1"})
	require.NoError(t, err)
	assert.Equal(t, model.NotifyBookingAccepted, got.Kind)
	assert.Equal(t, "b-1", got.EntityID)
	assert.Equal(t, "booking_accepted:b-1", key)

	err = n.Notify(context.Background(), model.Notification{RecipientID: "reject-me"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown recipient")
}
