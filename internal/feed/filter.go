package feed

import (
	"fmt"
	"strings"
)

// Filter selects the events a subscriber receives
type Filter struct {
	Table  Table
	Events []EventType
	Column string
	Value  string
}

// ParseFilter builds a filter from a table name, an event type and an
// optional "column=eq.value" predicate.
func ParseFilter(table, event, predicate string) (Filter, error) {
	f := Filter{Table: Table(table)}
	switch f.Table {
	case TableOrders, TableNotifications:
	default:
		return Filter{}, fmt.Errorf("unknown table %q", table)
	}

	switch ev := EventType(strings.ToUpper(event)); ev {
	case "", EventAll:
	case EventInsert, EventUpdate, EventDelete:
		f.Events = []EventType{ev}
	default:
		return Filter{}, fmt.Errorf("unknown event %q", event)
	}

	if predicate == "" {
		return f, nil
	}
	column, rest, ok := strings.Cut(predicate, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("malformed filter %q", predicate)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("unsupported operator in filter %q", predicate)
	}
	f.Column = column
	f.Value = value

	return f, nil
}

// Match reports whether ev passes the filter
func (f Filter) Match(ev RowEvent) bool {
	if ev.Table != f.Table {
		return false
	}
	if len(f.Events) > 0 {
		found := false
		for _, t := range f.Events {
			if t == ev.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Column == "" {
		return true
	}
	v, ok := ev.Columns[f.Column]
	return ok && v == f.Value
}

func (f Filter) String() string {
	s := string(f.Table)
	if len(f.Events) > 0 {
		s += ":" + string(f.Events[0])
	}
	if f.Column != "" {
		s += ":" + f.Column + "=eq." + f.Value
	}
	return s
}

// MatchRow reports whether row satisfies the column predicate. Event types are ignored.
func (f Filter) MatchRow(row any) bool {
	if f.Column == "" {
		return true
	}
	ev, err := NewEvent(f.Table, EventAll, row)
	if err != nil {
		return false
	}
	v, ok := ev.Columns[f.Column]
	return ok && v == f.Value
}
