package storage

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/treespora/planner/planning"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

// nullTime scans a nullable timestamp stored natively (PostgreSQL) or as text (SQLite).
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(value any) error {
	n.Time, n.Valid = time.Time{}, false
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		n.Time, n.Valid = v, true
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("scan timestamp: unsupported type %T", value)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t, true
			return nil
		}
	}
	return fmt.Errorf("scan timestamp: unrecognized format %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// nullDate scans a nullable calendar date. Unparseable text scans as the zero date.
type nullDate struct {
	Date civil.Date
}

func (n *nullDate) Scan(value any) error {
	n.Date = civil.Date{}
	switch v := value.(type) {
	case nil:
	case time.Time:
		n.Date = civil.DateOf(v)
	case string:
		n.Date = planning.ParseDate(v)
	case []byte:
		n.Date = planning.ParseDate(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", value)
	}
	return nil
}
