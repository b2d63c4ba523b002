package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rookgm/storefront/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"id":"49a3999c-0ce1-4ea6-ab68-afcd6dc2e794"}`))
	}))
	defer srv.Close()

	c := NewClient("re_test", "Shop <noreply@shop.example>", srv.URL, time.Second)
	err := c.Send(context.Background(), Message{To: []string{"ada@example.com"}, Subject: "Hi", HTML: "<p>Hi</p>"})
	require.NoError(t, err)

	want := sendRequest{From: "Shop <noreply@shop.example>", To: []string{"ada@example.com"}, Subject: "Hi", HTML: "<p>Hi</p>"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_Send_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"validation_error","message":"Invalid to field"}`))
	}))
	defer srv.Close()

	c := NewClient("re_test", "noreply@shop.example", srv.URL, time.Second)
	err := c.Send(context.Background(), Message{To: []string{"nope"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEmailUnavailable)
	assert.Contains(t, err.Error(), "Invalid to field")
}

func TestClient_Send_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := NewClient("re_test", "noreply@shop.example", srv.URL, time.Second)
	err := c.Send(context.Background(), Message{To: []string{"ada@example.com"}})
	assert.ErrorIs(t, err, models.ErrEmailUnavailable)
}

func TestTemplates(t *testing.T) {
	msg, err := ReminderMessage(models.Reminder{
		Name:       "Ada",
		Email:      "ada@example.com",
		CycleStart: time.Date(2024, time.January, 29, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Contains(t, msg.HTML, "2024-01-29")

	msg, err = ContactMessage("hello@shop.example", models.ContactMessage{
		Name:    "Eve",
		Email:   "eve@example.com",
		Message: `<script>alert("x")</script>`,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello@shop.example"}, msg.To)
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.HTML, "&lt;script&gt;")

	msg, err = OrderConfirmationMessage(models.OrderCompletedEvent{
		OrderID:  "order-1",
		Name:     "Ada",
		Email:    "ada@example.com",
		Total:    decimal.RequireFromString("12500"),
		Currency: "NGN",
	})
	require.NoError(t, err)
	assert.Equal(t, "Order Confirmation: order-1", msg.Subject)
	assert.Contains(t, msg.HTML, "12500.00 NGN")

	msg, err = SubscriptionMessage("ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Thanks for Subscribing!", msg.Subject)
}
