package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Drivers disagree on the Go types they hand back (sqlite returns []byte and
// int64 where pgx returns string and bool), so schema setters normalise here.

// TextValue converts v exactly as string attributes do when applied, so
// callers that must treat a value as text see what will be stored.
func TextValue(v any) (string, error) {
	return asString(v)
}

func asString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	case fmt.Stringer:
		return t.String(), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", v)
	}
}

func asInt(v any) (int, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		if t != float64(int(t)) {
			return 0, fmt.Errorf("cannot convert %v to int", t)
		}
		return int(t), nil
	case []byte:
		return strconv.Atoi(string(t))
	case string:
		if t == "" {
			return 0, nil
		}
		return strconv.Atoi(t)
	default:
		return 0, fmt.Errorf("cannot convert %T to int", v)
	}
}

func asBool(v any) (bool, error) {
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case []byte:
		return strconv.ParseBool(string(t))
	case string:
		return strconv.ParseBool(t)
	default:
		return false, fmt.Errorf("cannot convert %T to bool", v)
	}
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case []byte:
		return parseTime(string(t))
	case string:
		return parseTime(t)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func asUUID(v any) (uuid.UUID, error) {
	switch t := v.(type) {
	case nil:
		return uuid.Nil, nil
	case uuid.UUID:
		return t, nil
	case [16]byte:
		return uuid.UUID(t), nil
	case []byte:
		if len(t) == 16 {
			return uuid.FromBytes(t)
		}
		return uuid.ParseBytes(t)
	case string:
		if t == "" {
			return uuid.Nil, nil
		}
		return uuid.Parse(t)
	default:
		return uuid.Nil, fmt.Errorf("cannot convert %T to uuid", v)
	}
}
