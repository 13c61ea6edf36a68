package cache

import (
	"strconv"
	"strings"
)

// Key identifies a cached query. Keys form families by path prefix, so
// invalidating "orders/list" covers every filtered order list.
type Key string

const (
	FamilyOrders        Key = "orders"
	FamilyOrderList     Key = "orders/list"
	FamilyOrderDetail   Key = "orders/detail"
	FamilyChat          Key = "chat"
	FamilyConversations Key = "chat/conversations"
	FamilyMessages      Key = "chat/messages"
	FamilyAnalytics     Key = "analytics"
	FamilyCustomers     Key = "customers"
)

func OrderListKey(filter string) Key {
	if filter == "" {
		return FamilyOrderList
	}
	return FamilyOrderList + Key("/"+filter)
}

func OrderDetailKey(id string) Key {
	return FamilyOrderDetail + Key("/"+id)
}

func ConversationsKey(search string) Key {
	if search == "" {
		return FamilyConversations
	}
	return FamilyConversations + Key("/"+search)
}

func MessagesKey(customerID string) Key {
	return FamilyMessages + Key("/"+customerID)
}

func CustomerListKey(search string) Key {
	if search == "" {
		return FamilyCustomers + "/list"
	}
	return FamilyCustomers + Key("/list/"+search)
}

func CustomerDetailKey(id string) Key {
	return FamilyCustomers + Key("/detail/"+id)
}

const DashboardStatsKey Key = "analytics/dashboard"

func RecentOrdersKey(limit int) Key {
	return FamilyAnalytics + Key("/recent-orders/"+strconv.Itoa(limit))
}

// Family returns the first path segment, used for metrics labels.
func (k Key) Family() Key {
	if i := strings.IndexByte(string(k), '/'); i >= 0 {
		return k[:i]
	}
	return k
}

// InFamily reports whether k equals the family key or sits beneath it.
func (k Key) InFamily(family Key) bool {
	if k == family {
		return true
	}
	return strings.HasPrefix(string(k), string(family)+"/")
}
