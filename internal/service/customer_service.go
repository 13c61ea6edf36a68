package service

import (
	"context"
	"sort"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	"github.com/KKNMAL003/dash/internal/models"

	"github.com/sirupsen/logrus"
)

// conversationScanLimit bounds how many recent messages are scanned when
// deriving last-message previews for the conversation list.
const conversationScanLimit = 500

// CustomerService serves the customer directory and the conversation list.
type CustomerService struct {
	api       BackendClient
	cache     *cache.Store
	staleTime time.Duration
	logger    *logrus.Logger
}

func NewCustomerService(api BackendClient, cacheStore *cache.Store, staleTime time.Duration, logger *logrus.Logger) *CustomerService {
	return &CustomerService{
		api:       api,
		cache:     cacheStore,
		staleTime: staleTime,
		logger:    logger,
	}
}

// Customers returns customer profiles matching the filter, from cache
// when fresh.
func (s *CustomerService) Customers(ctx context.Context, filter models.CustomerFilter) ([]models.Profile, error) {
	key := cache.CustomerListKey(filter.Search)
	if cached, ok := s.cache.Lookup(ctx, key, s.staleTime); ok {
		if profiles, ok := cached.([]models.Profile); ok {
			return profiles, nil
		}
	}

	profiles, err := s.api.ListCustomers(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.cache.Put(ctx, key, profiles)
	return profiles, nil
}

// GetCustomer returns a customer profile with their order statistics.
func (s *CustomerService) GetCustomer(ctx context.Context, id string) (*models.Profile, *models.CustomerStats, error) {
	profile, err := s.api.GetProfile(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	orders, err := s.api.ListOrders(ctx, models.OrderFilter{CustomerID: id})
	if err != nil {
		return nil, nil, err
	}

	stats := models.CustomerStats{}
	for _, order := range orders {
		stats.TotalOrders++
		if order.Status != models.OrderStatusCancelled {
			stats.TotalSpent += order.TotalAmount
		}
		if !order.Status.IsTerminal() {
			stats.ActiveOrders++
		}
		created := order.CreatedAt
		if stats.LastOrderDate == nil || created.After(*stats.LastOrderDate) {
			stats.LastOrderDate = &created
		}
	}

	return profile, &stats, nil
}

// Conversations returns the customer conversation list, newest activity
// first, with unread counts. Customers with no chat history sort last.
func (s *CustomerService) Conversations(ctx context.Context, search string) ([]models.Conversation, error) {
	key := cache.ConversationsKey(search)
	if cached, ok := s.cache.Lookup(ctx, key, s.staleTime); ok {
		if conversations, ok := cached.([]models.Conversation); ok {
			return conversations, nil
		}
	}

	customers, err := s.api.ListCustomers(ctx, models.CustomerFilter{Search: search})
	if err != nil {
		return nil, err
	}
	recent, err := s.api.ListRecentMessages(ctx, conversationScanLimit)
	if err != nil {
		return nil, err
	}
	unread, err := s.api.ListUnreadMessages(ctx)
	if err != nil {
		return nil, err
	}

	conversations := BuildConversations(customers, recent, unread)
	s.cache.Put(ctx, key, conversations)
	return conversations, nil
}

// BuildConversations joins customer profiles with their newest message and
// unread count. recent must be ordered newest first.
func BuildConversations(customers []models.Profile, recent, unread []models.Message) []models.Conversation {
	lastByCustomer := make(map[string]models.Message, len(customers))
	for _, msg := range recent {
		if _, seen := lastByCustomer[msg.CustomerID]; !seen {
			lastByCustomer[msg.CustomerID] = msg
		}
	}

	unreadByCustomer := make(map[string]int)
	for _, msg := range unread {
		unreadByCustomer[msg.CustomerID]++
	}

	conversations := make([]models.Conversation, 0, len(customers))
	for _, customer := range customers {
		conv := models.Conversation{
			Profile:     customer,
			UnreadCount: unreadByCustomer[customer.ID],
		}
		if last, ok := lastByCustomer[customer.ID]; ok {
			msg := last
			conv.LastMessage = &msg
		}
		conversations = append(conversations, conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		a, b := conversations[i].LastMessage, conversations[j].LastMessage
		switch {
		case a == nil && b == nil:
			return conversations[i].CreatedAt.After(conversations[j].CreatedAt)
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.CreatedAt.After(b.CreatedAt)
		}
	})

	return conversations
}
