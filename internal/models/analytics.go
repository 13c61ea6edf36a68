package models

import "time"

// DashboardStats summarizes the order book for the dashboard landing view.
type DashboardStats struct {
	TotalOrders     int                 `json:"total_orders"`
	ActiveOrders    int                 `json:"active_orders"`
	CompletedOrders int                 `json:"completed_orders"`
	CancelledOrders int                 `json:"cancelled_orders"`
	TotalRevenue    float64             `json:"total_revenue"`
	TodayOrders     int                 `json:"today_orders"`
	TodayRevenue    float64             `json:"today_revenue"`
	ByStatus        map[OrderStatus]int `json:"by_status"`
	GeneratedAt     time.Time           `json:"generated_at"`
}
