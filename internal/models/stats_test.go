package models

import (
	"testing"
	"time"
)

func TestPeriodKeys(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)
	tests := []struct {
		name    string
		ts      time.Time
		daily   string
		monthly string
	}{
		{"utc", time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), "2024-03-15", "2024-03"},
		{"midnight", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), "2024-03-15", "2024-03"},
		{"kst crosses date line", time.Date(2024, 3, 16, 8, 0, 0, 0, kst), "2024-03-15", "2024-03"},
		{"month boundary", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "2024-04-01", "2024-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DailyKey(tt.ts); got != tt.daily {
				t.Errorf("DailyKey(%v) = %q, want %q", tt.ts, got, tt.daily)
			}
			if got := MonthlyKey(tt.ts); got != tt.monthly {
				t.Errorf("MonthlyKey(%v) = %q, want %q", tt.ts, got, tt.monthly)
			}
		})
	}
}

func TestOrderValidate(t *testing.T) {
	p := int64(1500)
	tests := []struct {
		name    string
		order   Order
		wantErr error
	}{
		{"ok", Order{Items: []OrderItem{{Name: "콜라", Quantity: 1, Price: &p}}}, nil},
		{"no items", Order{}, ErrNoItems},
		{"unnamed item", Order{Items: []OrderItem{{Quantity: 1}}}, ErrItemName},
		{"negative quantity", Order{Items: []OrderItem{{Name: "콜라", Quantity: -1}}}, ErrItemQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.order.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
