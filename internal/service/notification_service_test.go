package service

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifications(store *mockNotificationStore) *NotificationService {
	return NewNotificationService(store, "admin", 100, 20, newTestLogger())
}

func TestOrderInsertCreatesNewOrderNotification(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	order := makeOrder("abcdef1234567890", models.OrderStatusPending)
	svc.HandleOrderEvent(context.Background(), models.OrderEvent{Type: models.ChangeInsert, New: &order})

	saved := store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, models.NotificationOrderNew, saved[0].Type)
	assert.Contains(t, saved[0].Body, "34567890", "body shows the short order reference")
	assert.Contains(t, saved[0].Body, "Jane Smith")
	assert.Len(t, saved[0].ID, 32, "identifier is the derived hex digest")
}

func TestOrderEventReplayCollapsesToOneNotification(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	order := makeOrder("o1", models.OrderStatusPending)
	event := models.OrderEvent{Type: models.ChangeInsert, New: &order}

	svc.HandleOrderEvent(context.Background(), event)
	svc.HandleOrderEvent(context.Background(), event)

	assert.Len(t, store.all(), 1, "re-delivered changes map to the same identifier")
}

func TestOrderUpdateWithoutStatusChangeIsSilent(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	before := makeOrder("o1", models.OrderStatusPreparing)
	after := makeOrder("o1", models.OrderStatusPreparing)
	after.TotalAmount = 300

	svc.HandleOrderEvent(context.Background(), models.OrderEvent{Type: models.ChangeUpdate, Old: &before, New: &after})
	assert.Empty(t, store.all())
}

func TestOrderStatusChangeNotifies(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	before := makeOrder("o1", models.OrderStatusPreparing)
	after := makeOrder("o1", models.OrderStatusOutForDelivery)

	svc.HandleOrderEvent(context.Background(), models.OrderEvent{Type: models.ChangeUpdate, Old: &before, New: &after})

	saved := store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, models.NotificationOrderStatusChange, saved[0].Type)
	assert.Contains(t, saved[0].Body, "out_for_delivery")
}

func TestOrderCancellationNotifies(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	before := makeOrder("o1", models.OrderStatusConfirmed)
	after := makeOrder("o1", models.OrderStatusCancelled)

	svc.HandleOrderEvent(context.Background(), models.OrderEvent{Type: models.ChangeUpdate, Old: &before, New: &after})

	saved := store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, models.NotificationOrderCancelled, saved[0].Type)
}

func TestOrderDeleteIsSilent(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	removed := makeOrder("o1", models.OrderStatusPending)
	svc.HandleOrderEvent(context.Background(), models.OrderEvent{Type: models.ChangeDelete, Old: &removed})
	assert.Empty(t, store.all())
}

func TestCustomerMessageNotifiesWithTruncatedPreview(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	msg := makeMessage("m1", "cust-1", "this message body is well past the preview limit", models.SenderRoleCustomer, time.Now())
	svc.HandleMessageEvent(context.Background(), models.MessageEvent{Type: models.ChangeInsert, New: &msg})

	saved := store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, models.NotificationMessageNew, saved[0].Type)
	assert.Equal(t, "this message body is...", saved[0].Body)
}

func TestStaffMessageEchoIsSilent(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	msg := makeMessage("m1", "cust-1", "reply from staff", models.SenderRoleStaff, time.Now())
	svc.HandleMessageEvent(context.Background(), models.MessageEvent{Type: models.ChangeInsert, New: &msg})
	assert.Empty(t, store.all())
}

func TestMessageUpdateIsSilent(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)

	msg := makeMessage("m1", "cust-1", "hello", models.SenderRoleCustomer, time.Now())
	svc.HandleMessageEvent(context.Background(), models.MessageEvent{Type: models.ChangeUpdate, New: &msg})
	assert.Empty(t, store.all())
}

func TestListClampsLimitToCap(t *testing.T) {
	store := &mockNotificationStore{}
	svc := NewNotificationService(store, "admin", 5, 20, newTestLogger())

	for i := 0; i < 3; i++ {
		order := makeOrder(string(rune('a'+i)), models.OrderStatusPending)
		order.UpdatedAt = time.Now().Add(time.Duration(i) * time.Second)
		svc.HandleOrderEvent(context.Background(), models.OrderEvent{Type: models.ChangeInsert, New: &order})
	}

	notifications, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, notifications, 3)

	notifications, err = svc.List(context.Background(), 9999)
	require.NoError(t, err)
	assert.Len(t, notifications, 3)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)
	ctx := context.Background()

	order := makeOrder("o1", models.OrderStatusPending)
	svc.HandleOrderEvent(ctx, models.OrderEvent{Type: models.ChangeInsert, New: &order})

	count, err := svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	saved := store.all()
	require.NoError(t, svc.MarkRead(ctx, saved[0].ID))

	count, err = svc.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMarkReadRequiresID(t *testing.T) {
	svc := newTestNotifications(&mockNotificationStore{})
	err := svc.MarkRead(context.Background(), "")
	assert.Equal(t, apperrors.ErrCodeValidationFailed, apperrors.GetCode(err))
}

func TestDeleteNotificationRemovesIt(t *testing.T) {
	store := &mockNotificationStore{}
	svc := newTestNotifications(store)
	ctx := context.Background()

	order := makeOrder("o1", models.OrderStatusPending)
	svc.HandleOrderEvent(ctx, models.OrderEvent{Type: models.ChangeInsert, New: &order})

	saved := store.all()
	require.Len(t, saved, 1)
	require.NoError(t, svc.Delete(ctx, saved[0].ID))
	assert.Empty(t, store.all())
}

func TestTruncatePreview(t *testing.T) {
	assert.Equal(t, "short", truncatePreview("short", 20))
	assert.Equal(t, "exactly-ten", truncatePreview("exactly-ten", 11))
	assert.Equal(t, "abcde...", truncatePreview("abcdefgh", 5))
	assert.Equal(t, "héllo...", truncatePreview("héllo wörld", 5), "truncation counts runes, not bytes")
}
