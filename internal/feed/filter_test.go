package feed

import (
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		event     string
		predicate string
		want      Filter
		wantErr   bool
	}{
		{
			name:  "whole_table",
			table: "orders",
			want:  Filter{Table: TableOrders},
		},
		{
			name:  "wildcard_event",
			table: "notifications",
			event: "*",
			want:  Filter{Table: TableNotifications},
		},
		{
			name:      "update_by_id",
			table:     "orders",
			event:     "update",
			predicate: "id=eq.8a1f",
			want:      Filter{Table: TableOrders, Events: []EventType{EventUpdate}, Column: "id", Value: "8a1f"},
		},
		{
			name:      "value_with_equals_sign",
			table:     "notifications",
			event:     "INSERT",
			predicate: "user_id=eq.a=b",
			want:      Filter{Table: TableNotifications, Events: []EventType{EventInsert}, Column: "user_id", Value: "a=b"},
		},
		{name: "unknown_table", table: "users", wantErr: true},
		{name: "unknown_event", table: "orders", event: "TRUNCATE", wantErr: true},
		{name: "missing_operator", table: "orders", predicate: "id=8a1f", wantErr: true},
		{name: "missing_column", table: "orders", predicate: "=eq.1", wantErr: true},
		{name: "no_equals", table: "orders", predicate: "id", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilter(tt.table, tt.event, tt.predicate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilter_Match(t *testing.T) {
	ev, err := NewEvent(TableNotifications, EventInsert, map[string]any{
		"id":                    "n-1",
		"user_id":               nil,
		"is_admin_notification": true,
		"type":                  "order_received",
		"metadata":              map[string]any{"total": 10},
	})
	require.NoError(t, err)

	assert.True(t, Filter{Table: TableNotifications}.Match(ev))
	assert.True(t, Filter{Table: TableNotifications, Column: "is_admin_notification", Value: "true"}.Match(ev))
	assert.False(t, Filter{Table: TableNotifications, Column: "user_id", Value: ""}.Match(ev), "null columns never match")
	assert.False(t, Filter{Table: TableNotifications, Column: "metadata", Value: ""}.Match(ev), "nested values are not columns")
	assert.False(t, Filter{Table: TableNotifications, Events: []EventType{EventUpdate}}.Match(ev))
	assert.False(t, Filter{Table: TableOrders}.Match(ev))
}

func TestFilter_MatchRow(t *testing.T) {
	row := struct {
		ID     string  `json:"id"`
		UserID string  `json:"user_id"`
		Total  float64 `json:"total"`
	}{ID: "o-1", UserID: "u-1", Total: 12.5}

	assert.True(t, Filter{Table: TableOrders}.MatchRow(row))
	assert.True(t, Filter{Table: TableOrders, Column: "user_id", Value: "u-1"}.MatchRow(row))
	assert.True(t, Filter{Table: TableOrders, Column: "total", Value: "12.5"}.MatchRow(row))
	assert.False(t, Filter{Table: TableOrders, Column: "user_id", Value: "u-2"}.MatchRow(row))
	assert.False(t, Filter{Table: TableOrders, Events: []EventType{EventDelete}, Column: "id", Value: "o-2"}.MatchRow(row))
}
