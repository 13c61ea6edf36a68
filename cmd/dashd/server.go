package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	apperrors "github.com/KKNMAL003/dash/internal/errors"
	"github.com/KKNMAL003/dash/internal/metrics"
	"github.com/KKNMAL003/dash/internal/middleware"
	"github.com/KKNMAL003/dash/internal/models"
	"github.com/KKNMAL003/dash/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// maxSettingBodyBytes bounds a settings object upload.
const maxSettingBodyBytes = 64 * 1024

type Server struct {
	router        *mux.Router
	logger        *logrus.Logger
	orders        *service.OrderService
	messages      *service.MessageService
	customers     *service.CustomerService
	notifications *service.NotificationService
	analytics     *service.AnalyticsService
	settings      *service.SettingsService
	sync          *service.ChatSync
	server        *http.Server
}

func NewServer(
	orders *service.OrderService,
	messages *service.MessageService,
	customers *service.CustomerService,
	notifications *service.NotificationService,
	analytics *service.AnalyticsService,
	settings *service.SettingsService,
	chatSync *service.ChatSync,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		orders:        orders,
		messages:      messages,
		customers:     customers,
		notifications: notifications,
		analytics:     analytics,
		settings:      settings,
		sync:          chatSync,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()

	orders := api.PathPrefix("/orders").Subrouter()
	orders.HandleFunc("", s.handleListOrders()).Methods(http.MethodGet)
	orders.HandleFunc("/{id}", s.handleGetOrder()).Methods(http.MethodGet)
	orders.HandleFunc("/{id}/items", s.handleGetOrderItems()).Methods(http.MethodGet)
	orders.HandleFunc("/{id}/status", s.handleUpdateOrderStatus()).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/advance", s.handleAdvanceOrder()).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/cancel", s.handleCancelOrder()).Methods(http.MethodPost)
	orders.HandleFunc("/{id}/driver", s.handleAssignDriver()).Methods(http.MethodPost)

	chat := api.PathPrefix("/chat").Subrouter()
	chat.HandleFunc("/conversations", s.handleConversations()).Methods(http.MethodGet)
	chat.HandleFunc("/{customerId}/messages", s.handleListMessages()).Methods(http.MethodGet)
	chat.HandleFunc("/{customerId}/messages", s.handleSendMessage()).Methods(http.MethodPost)
	chat.HandleFunc("/{customerId}/read", s.handleMarkConversationRead()).Methods(http.MethodPost)

	customers := api.PathPrefix("/customers").Subrouter()
	customers.HandleFunc("", s.handleListCustomers()).Methods(http.MethodGet)
	customers.HandleFunc("/{id}", s.handleGetCustomer()).Methods(http.MethodGet)

	notifications := api.PathPrefix("/notifications").Subrouter()
	notifications.HandleFunc("", s.handleListNotifications()).Methods(http.MethodGet)
	notifications.HandleFunc("/unread-count", s.handleUnreadCount()).Methods(http.MethodGet)
	notifications.HandleFunc("/read-all", s.handleMarkAllNotificationsRead()).Methods(http.MethodPost)
	notifications.HandleFunc("/{id}/read", s.handleMarkNotificationRead()).Methods(http.MethodPost)
	notifications.HandleFunc("/{id}", s.handleDeleteNotification()).Methods(http.MethodDelete)

	analytics := api.PathPrefix("/analytics").Subrouter()
	analytics.HandleFunc("/dashboard", s.handleDashboardStats()).Methods(http.MethodGet)
	analytics.HandleFunc("/recent-orders", s.handleRecentOrders()).Methods(http.MethodGet)

	settings := api.PathPrefix("/settings").Subrouter()
	settings.HandleFunc("/{key}", s.handleGetSetting()).Methods(http.MethodGet)
	settings.HandleFunc("/{key}", s.handlePutSetting()).Methods(http.MethodPut)

	syncRoutes := api.PathPrefix("/sync").Subrouter()
	syncRoutes.HandleFunc("/network-restored", s.handleNetworkRestored()).Methods(http.MethodPost)
	syncRoutes.HandleFunc("/foregrounded", s.handleForegrounded()).Methods(http.MethodPost)
}

func (s *Server) Start(cfg models.ServerConfig) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting admin API on port %d", cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":       "ok",
			"feed_healthy": s.sync.FeedHealthy(),
		})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.GetAllMetrics())
	}
}

func (s *Server) handleListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := models.OrderFilter{
			Status:     models.OrderStatus(r.URL.Query().Get("status")),
			CustomerID: r.URL.Query().Get("customer_id"),
			Search:     r.URL.Query().Get("search"),
		}
		if filter.Status != "" && !filter.Status.IsValid() {
			s.writeError(w, apperrors.NewValidationError("status", string(filter.Status), "unknown order status"))
			return
		}

		orders, err := s.orders.ListOrders(r.Context(), filter)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, orders)
	}
}

func (s *Server) handleGetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := s.orders.GetOrder(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) handleGetOrderItems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := s.orders.GetOrderItems(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, items)
	}
}

func (s *Server) handleUpdateOrderStatus() http.HandlerFunc {
	type request struct {
		Status models.OrderStatus `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "", "invalid JSON body"))
			return
		}
		order, err := s.orders.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) handleAdvanceOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := s.orders.AdvanceStatus(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) handleCancelOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := s.orders.CancelOrder(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) handleAssignDriver() http.HandlerFunc {
	type request struct {
		DriverID string `json:"driver_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "", "invalid JSON body"))
			return
		}
		order, err := s.orders.AssignDriver(r.Context(), mux.Vars(r)["id"], req.DriverID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, order)
	}
}

func (s *Server) handleConversations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conversations, err := s.customers.Conversations(r.Context(), r.URL.Query().Get("search"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, conversations)
	}
}

func (s *Server) handleListMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, err := s.messages.Messages(r.Context(), mux.Vars(r)["customerId"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, messages)
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	type request struct {
		Message string  `json:"message"`
		Subject *string `json:"subject"`
		StaffID *string `json:"staff_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "", "invalid JSON body"))
			return
		}
		message, err := s.messages.SendMessage(r.Context(), models.SendMessageParams{
			CustomerID: mux.Vars(r)["customerId"],
			StaffID:    req.StaffID,
			Body:       req.Message,
			Subject:    req.Subject,
			LogType:    models.LogTypeUserMessage,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, message)
	}
}

func (s *Server) handleMarkConversationRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.messages.MarkConversationRead(r.Context(), mux.Vars(r)["customerId"]); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleListCustomers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profiles, err := s.customers.Customers(r.Context(), models.CustomerFilter{Search: r.URL.Query().Get("search")})
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, profiles)
	}
}

func (s *Server) handleGetCustomer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, stats, err := s.customers.GetCustomer(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"profile": profile,
			"stats":   stats,
		})
	}
}

func (s *Server) handleListNotifications() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				s.writeError(w, apperrors.NewValidationError("limit", raw, "must be an integer"))
				return
			}
			limit = parsed
		}
		notifications, err := s.notifications.List(r.Context(), limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, notifications)
	}
}

func (s *Server) handleUnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := s.notifications.UnreadCount(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]int{"unread": count})
	}
}

func (s *Server) handleMarkNotificationRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.notifications.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMarkAllNotificationsRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.notifications.MarkAllRead(r.Context()); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleDeleteNotification() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.notifications.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleGetSetting() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		value, err := s.settings.Get(r.Context(), mux.Vars(r)["key"])
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, value)
	}
}

func (s *Server) handlePutSetting() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingBodyBytes))
		if err != nil {
			s.writeError(w, apperrors.NewValidationError("body", "", "failed to read request body"))
			return
		}
		if err := s.settings.Put(r.Context(), mux.Vars(r)["key"], body); err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleDashboardStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.analytics.DashboardStats(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleRecentOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 10
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				s.writeError(w, apperrors.NewValidationError("limit", raw, "must be a positive integer"))
				return
			}
			limit = parsed
		}
		orders, err := s.analytics.RecentOrders(r.Context(), limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, orders)
	}
}

func (s *Server) handleNetworkRestored() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sync.NotifyNetworkRestored()
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleForegrounded() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sync.NotifyForegrounded()
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":     apperrors.GetUserMessage(err),
		"code":      apperrors.GetCode(err),
		"retryable": apperrors.IsRetryable(err),
	}
	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		s.logger.WithError(encodeErr).Error("Failed to encode error response")
	}
}

func errorStatus(err error) int {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeValidationFailed, apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidTransition:
		return http.StatusConflict
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeAuthentication:
		return http.StatusUnauthorized
	case apperrors.ErrCodeAuthorization:
		return http.StatusForbidden
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeBackendAPI, apperrors.ErrCodeRealtimeChannel:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
