// Package feed delivers row change events to subscribers.
package feed

import (
	"fmt"
	"github.com/goccy/go-json"
	"strconv"
	"time"
)

// Table is the name of an observed table
type Table string

const (
	TableOrders        Table = "orders"
	TableNotifications Table = "notifications"
)

// EventType is the kind of row change
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// RowEvent describes one committed row change.
// Columns holds the top-level scalar fields of Record as strings and is what filters match on.
type RowEvent struct {
	Table      Table             `json:"table"`
	Type       EventType         `json:"type"`
	Record     json.RawMessage   `json:"record,omitempty"`
	Columns    map[string]string `json:"columns"`
	CommitTime time.Time         `json:"commit_time"`
}

// Key identifies the changed row
func (e RowEvent) Key() string {
	return string(e.Table) + "/" + e.Columns["id"]
}

// NewEvent builds an event carrying row as its record
func NewEvent(table Table, typ EventType, row any) (RowEvent, error) {
	record, err := json.Marshal(row)
	if err != nil {
		return RowEvent{}, fmt.Errorf("marshal %s row: %w", table, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(record, &fields); err != nil {
		return RowEvent{}, fmt.Errorf("decode %s row: %w", table, err)
	}

	columns := make(map[string]string, len(fields))
	for name, v := range fields {
		switch val := v.(type) {
		case string:
			columns[name] = val
		case bool:
			columns[name] = strconv.FormatBool(val)
		case float64:
			columns[name] = strconv.FormatFloat(val, 'f', -1, 64)
		}
	}

	return RowEvent{
		Table:      table,
		Type:       typ,
		Record:     record,
		Columns:    columns,
		CommitTime: time.Now().UTC(),
	}, nil
}
