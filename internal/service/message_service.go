package service

import (
	"context"
	"strings"
	"time"

	"github.com/KKNMAL003/dash/internal/cache"
	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/metrics"
	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/internal/privacy"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const provisionalIDPrefix = "temp-"

// MessageService serves chat reads and performs optimistic sends. A send
// moves through three states: the provisional message is patched into the
// cache immediately (pending), then either replaced by the confirmed row
// or rolled back to the exact pre-send snapshot on failure.
type MessageService struct {
	api         BackendClient
	cache       *cache.Store
	staleTime   time.Duration
	matchWindow time.Duration
	logger      *logrus.Logger
}

func NewMessageService(api BackendClient, cacheStore *cache.Store, staleTime, matchWindow time.Duration, logger *logrus.Logger) *MessageService {
	return &MessageService{
		api:         api,
		cache:       cacheStore,
		staleTime:   staleTime,
		matchWindow: matchWindow,
		logger:      logger,
	}
}

// Messages returns a customer's chat history in chronological order, from
// cache when fresh.
func (s *MessageService) Messages(ctx context.Context, customerID string) ([]models.Message, error) {
	if customerID == "" {
		return nil, apperrors.NewValidationError("customer_id", customerID, "customer id is required")
	}

	key := cache.MessagesKey(customerID)
	if cached, ok := s.cache.Lookup(ctx, key, s.staleTime); ok {
		if messages, ok := cached.([]models.Message); ok {
			return messages, nil
		}
	}

	// The generation guard discards this result if a send mutates the
	// conversation while the fetch is in flight.
	gen := s.cache.Generation(ctx, key)
	messages, err := s.api.ListMessages(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !s.cache.PutIfUnchanged(ctx, key, messages, gen) {
		s.logger.WithField("customer_id", privacy.MaskID(customerID)).Debug("Discarded conversation read that raced a send")
	}
	return messages, nil
}

// SendMessage performs an optimistic send. The provisional message is
// visible in the cached conversation before the backend confirms; on
// failure the conversation is restored to its pre-send state and the
// error is returned to the caller.
func (s *MessageService) SendMessage(ctx context.Context, params models.SendMessageParams) (*models.Message, error) {
	if params.CustomerID == "" {
		return nil, apperrors.NewValidationError("customer_id", "", "customer id is required")
	}
	if strings.TrimSpace(params.Body) == "" {
		return nil, apperrors.NewValidationError("message", "", "message body is required")
	}

	provisional := models.Message{
		ID:          provisionalIDPrefix + uuid.NewString(),
		CustomerID:  params.CustomerID,
		StaffID:     params.StaffID,
		LogType:     models.LogTypeUserMessage,
		Subject:     params.Subject,
		Body:        params.Body,
		SenderRole:  models.SenderRoleStaff,
		CreatedAt:   time.Now(),
		Provisional: true,
	}

	key := cache.MessagesKey(params.CustomerID)
	snapshot := s.cache.TakeSnapshot(ctx, key)

	s.cache.Patch(ctx, key, func(value interface{}) interface{} {
		messages, ok := value.([]models.Message)
		if !ok {
			return value
		}
		return append(append([]models.Message(nil), messages...), provisional)
	})

	confirmed, err := s.api.InsertMessage(ctx, params)
	if err != nil {
		s.cache.Restore(ctx, snapshot)
		s.cache.Invalidate(ctx, key)
		metrics.IncrementCounter("message_send_rollbacks_total", nil, "Optimistic sends rolled back")
		s.logger.WithError(err).WithField("customer_id", privacy.MaskID(params.CustomerID)).Warn("Message send failed, rolled back")
		return nil, err
	}

	s.settleSend(ctx, key, provisional.ID, *confirmed)
	metrics.IncrementCounter("messages_sent_total", nil, "Messages sent")
	return confirmed, nil
}

// settleSend upserts the confirmed row into the cached conversation:
// the provisional message is replaced in place, a row the change feed
// already delivered is kept, and if neither is present (a stale read
// overwrote the optimistic patch mid-flight) the confirmed row is
// appended so the conversation never loses the sent message. The key is
// marked stale afterwards so the next read fetches authoritative data.
func (s *MessageService) settleSend(ctx context.Context, key cache.Key, provisionalID string, confirmed models.Message) {
	s.cache.Patch(ctx, key, func(value interface{}) interface{} {
		messages, ok := value.([]models.Message)
		if !ok {
			return value
		}

		settled := make([]models.Message, 0, len(messages)+1)
		placed := false
		for _, msg := range messages {
			switch msg.ID {
			case provisionalID:
				if !placed {
					settled = append(settled, confirmed)
					placed = true
				}
			case confirmed.ID:
				if !placed {
					settled = append(settled, msg)
					placed = true
				}
			default:
				settled = append(settled, msg)
			}
		}
		if !placed {
			settled = append(settled, confirmed)
		}
		return settled
	})

	s.cache.Invalidate(ctx, key)
	s.cache.InvalidateFamily(ctx, cache.FamilyConversations)
}

// MarkConversationRead marks every unread customer message in the
// conversation as read, then patches the cached views to match.
func (s *MessageService) MarkConversationRead(ctx context.Context, customerID string) error {
	if customerID == "" {
		return apperrors.NewValidationError("customer_id", customerID, "customer id is required")
	}

	if err := s.api.MarkConversationRead(ctx, customerID); err != nil {
		return err
	}

	s.cache.Patch(ctx, cache.MessagesKey(customerID), func(value interface{}) interface{} {
		messages, ok := value.([]models.Message)
		if !ok {
			return value
		}
		updated := make([]models.Message, len(messages))
		for i, msg := range messages {
			if msg.SenderRole == models.SenderRoleCustomer {
				msg.Read = true
			}
			updated[i] = msg
		}
		return updated
	})
	s.cache.InvalidateFamily(ctx, cache.FamilyConversations)
	return nil
}
