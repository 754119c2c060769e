package models

import "time"

// OrderItem is one line of an order. Price is optional: when the ordering
// front-end omits it, the current menu price for the item name is used.
type OrderItem struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    *int64 `json:"price,omitempty"`
}

// Order is one customer transaction as stored in the ledger.
type Order struct {
	ID             string      `json:"id"`
	OrderNumber    int64       `json:"order_number"`
	Items          []OrderItem `json:"items"`
	TotalPrice     int64       `json:"total_price"`
	Timestamp      time.Time   `json:"timestamp"`
	StatsProcessed bool        `json:"stats_processed"`
}

// Validate checks the fields an order must carry before it can be accepted.
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrNoItems
	}
	for _, it := range o.Items {
		if it.Name == "" {
			return ErrItemName
		}
		if it.Quantity < 0 {
			return ErrItemQuantity
		}
	}
	return nil
}
