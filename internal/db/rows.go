package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/randalmurphal/featureplus/internal/entity"
	"github.com/randalmurphal/featureplus/internal/errors"
)

// timeLayout is used for every timestamp column. Stored as text so both
// dialects compare and sort it the same way.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// rowID converts an entity id to its integer primary key. Ids that are not
// integers cannot exist in the database.
func rowID(key entity.Key) (int64, error) {
	n, err := strconv.ParseInt(key.ID, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.ErrNotFound(key.String())
	}
	return n, nil
}

// nullableID maps "" to NULL for optional foreign keys.
func nullableID(kind entity.Kind, id string) (any, error) {
	if id == "" {
		return nil, nil
	}
	n, err := rowID(entity.Key{Kind: kind, ID: id})
	if err != nil {
		return nil, errors.ErrValidation(string(kind)+"_id", fmt.Sprintf("%s %s not found", kind, id))
	}
	return n, nil
}

func formatID(n int64) string {
	return strconv.FormatInt(n, 10)
}

func formatNullID(n sql.NullInt64) string {
	if !n.Valid {
		return ""
	}
	return formatID(n.Int64)
}

func encodeJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// notFound maps sql.ErrNoRows onto NOT_FOUND for key.
func notFound(err error, key entity.Key) error {
	if err == sql.ErrNoRows {
		return errors.ErrNotFound(key.String())
	}
	return err
}

func affected(res sql.Result, key entity.Key) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.ErrNotFound(key.String())
	}
	return nil
}
