package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/pkg/realtime"

	"github.com/sirupsen/logrus"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

// mockBackend implements BackendClient with overridable function fields.
// Unset fields return zero values.
type mockBackend struct {
	listOrdersFn         func(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	listRecentOrdersFn   func(ctx context.Context, limit int) ([]models.Order, error)
	getOrderFn           func(ctx context.Context, id string) (*models.Order, error)
	getOrderItemsFn      func(ctx context.Context, orderID string) ([]models.OrderItem, error)
	updateOrderStatusFn  func(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error)
	updateOrderFn        func(ctx context.Context, id string, patch map[string]interface{}) (*models.Order, error)
	listMessagesFn       func(ctx context.Context, customerID string) ([]models.Message, error)
	listRecentMessagesFn func(ctx context.Context, limit int) ([]models.Message, error)
	insertMessageFn      func(ctx context.Context, params models.SendMessageParams) (*models.Message, error)
	markConvReadFn       func(ctx context.Context, customerID string) error
	listUnreadFn         func(ctx context.Context) ([]models.Message, error)
	listCustomersFn      func(ctx context.Context, filter models.CustomerFilter) ([]models.Profile, error)
	getProfileFn         func(ctx context.Context, id string) (*models.Profile, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *mockBackend) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[name]++
}

func (m *mockBackend) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockBackend) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	m.record("ListOrders")
	if m.listOrdersFn != nil {
		return m.listOrdersFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockBackend) ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error) {
	m.record("ListRecentOrders")
	if m.listRecentOrdersFn != nil {
		return m.listRecentOrdersFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockBackend) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	m.record("GetOrder")
	if m.getOrderFn != nil {
		return m.getOrderFn(ctx, id)
	}
	return nil, fmt.Errorf("no order configured")
}

func (m *mockBackend) GetOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	m.record("GetOrderItems")
	if m.getOrderItemsFn != nil {
		return m.getOrderItemsFn(ctx, orderID)
	}
	return nil, nil
}

func (m *mockBackend) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	m.record("UpdateOrderStatus")
	if m.updateOrderStatusFn != nil {
		return m.updateOrderStatusFn(ctx, id, status)
	}
	return nil, fmt.Errorf("no update configured")
}

func (m *mockBackend) UpdateOrder(ctx context.Context, id string, patch map[string]interface{}) (*models.Order, error) {
	m.record("UpdateOrder")
	if m.updateOrderFn != nil {
		return m.updateOrderFn(ctx, id, patch)
	}
	return nil, fmt.Errorf("no update configured")
}

func (m *mockBackend) ListMessages(ctx context.Context, customerID string) ([]models.Message, error) {
	m.record("ListMessages")
	if m.listMessagesFn != nil {
		return m.listMessagesFn(ctx, customerID)
	}
	return nil, nil
}

func (m *mockBackend) ListRecentMessages(ctx context.Context, limit int) ([]models.Message, error) {
	m.record("ListRecentMessages")
	if m.listRecentMessagesFn != nil {
		return m.listRecentMessagesFn(ctx, limit)
	}
	return nil, nil
}

func (m *mockBackend) InsertMessage(ctx context.Context, params models.SendMessageParams) (*models.Message, error) {
	m.record("InsertMessage")
	if m.insertMessageFn != nil {
		return m.insertMessageFn(ctx, params)
	}
	return nil, fmt.Errorf("no insert configured")
}

func (m *mockBackend) MarkConversationRead(ctx context.Context, customerID string) error {
	m.record("MarkConversationRead")
	if m.markConvReadFn != nil {
		return m.markConvReadFn(ctx, customerID)
	}
	return nil
}

func (m *mockBackend) ListUnreadMessages(ctx context.Context) ([]models.Message, error) {
	m.record("ListUnreadMessages")
	if m.listUnreadFn != nil {
		return m.listUnreadFn(ctx)
	}
	return nil, nil
}

func (m *mockBackend) ListCustomers(ctx context.Context, filter models.CustomerFilter) ([]models.Profile, error) {
	m.record("ListCustomers")
	if m.listCustomersFn != nil {
		return m.listCustomersFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockBackend) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	m.record("GetProfile")
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, id)
	}
	return nil, fmt.Errorf("no profile configured")
}

// mockFeed implements FeedClient and records the registered handlers so
// tests can inject events and status changes.
type mockFeed struct {
	mu             sync.Mutex
	handlers       map[string]realtime.Handler
	statusHandlers map[string]realtime.StatusHandler
	subscribeErr   error
	unsubscribes   []string
	onlinePokes    int
}

func newMockFeed() *mockFeed {
	return &mockFeed{
		handlers:       make(map[string]realtime.Handler),
		statusHandlers: make(map[string]realtime.StatusHandler),
	}
}

func (f *mockFeed) Subscribe(name string, config realtime.SubscriptionConfig, handler realtime.Handler, status realtime.StatusHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[name] = handler
	f.statusHandlers[name] = status
	return nil
}

func (f *mockFeed) Unsubscribe(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribes = append(f.unsubscribes, name)
}

func (f *mockFeed) NotifyOnline() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onlinePokes++
}

func (f *mockFeed) Connected() bool { return true }

func (f *mockFeed) deliver(name string, ev realtime.Event) {
	f.mu.Lock()
	handler := f.handlers[name]
	f.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

func (f *mockFeed) setStatus(name string, status realtime.Status, err error) {
	f.mu.Lock()
	handler := f.statusHandlers[name]
	f.mu.Unlock()
	if handler != nil {
		handler(status, err)
	}
}

// mockNotificationStore keeps notifications in memory, newest first.
type mockNotificationStore struct {
	mu      sync.Mutex
	saved   []models.ClientNotification
	saveErr error
}

func (m *mockNotificationStore) SaveNotification(ctx context.Context, userID string, n *models.ClientNotification, cap int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, existing := range m.saved {
		if existing.ID == n.ID {
			return nil
		}
	}
	m.saved = append(m.saved, *n)
	return nil
}

func (m *mockNotificationStore) ListNotifications(ctx context.Context, userID string, limit int) ([]models.ClientNotification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ClientNotification, len(m.saved))
	copy(out, m.saved)
	return out, nil
}

func (m *mockNotificationStore) MarkNotificationRead(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.saved {
		if m.saved[i].ID == id {
			m.saved[i].Read = true
		}
	}
	return nil
}

func (m *mockNotificationStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.saved {
		m.saved[i].Read = true
	}
	return nil
}

func (m *mockNotificationStore) DeleteNotification(ctx context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.saved[:0]
	for _, n := range m.saved {
		if n.ID != id {
			remaining = append(remaining, n)
		}
	}
	m.saved = remaining
	return nil
}

func (m *mockNotificationStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.saved {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationStore) all() []models.ClientNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ClientNotification, len(m.saved))
	copy(out, m.saved)
	return out
}
