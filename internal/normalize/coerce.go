package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockdash/internal/gateway"
)

// pick returns row[primary] when present and non-nil, otherwise row[secondary].
func pick(row gateway.Row, primary, secondary string) any {
	if v, ok := row[primary]; ok && v != nil {
		return v
	}
	if secondary == "" {
		return nil
	}
	return row[secondary]
}

func asString(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case []byte:
		return string(value)
	case [16]byte:
		return uuid.UUID(value).String()
	case uuid.UUID:
		return value.String()
	case fmt.Stringer:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprint(value)
	}
}

func asOptionalString(v any) *string {
	s := strings.TrimSpace(asString(v))
	if s == "" {
		return nil
	}
	return &s
}

// asDecimal coerces anything non-numeric (including NaN and Inf) to zero.
func asDecimal(v any) decimal.Decimal {
	switch value := v.(type) {
	case decimal.Decimal:
		return value
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(value)
	case float32:
		return asDecimal(float64(value))
	case int:
		return decimal.NewFromInt(int64(value))
	case int32:
		return decimal.NewFromInt(int64(value))
	case int64:
		return decimal.NewFromInt(value)
	case json.Number:
		return parseDecimal(value.String())
	case string:
		return parseDecimal(value)
	case []byte:
		return parseDecimal(string(value))
	default:
		return decimal.Zero
	}
}

func parseDecimal(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// asInt truncates fractional values; non-numeric input is zero.
func asInt(v any) int {
	switch value := v.(type) {
	case int:
		return value
	case int32:
		return int(value)
	case int64:
		return int(value)
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0
		}
		return int(value)
	default:
		return int(asDecimal(v).IntPart())
	}
}

func asBool(v any, fallback bool) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) time.Time {
	switch value := v.(type) {
	case time.Time:
		return value
	case string:
		raw := strings.TrimSpace(value)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, raw); err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

func asOptionalTime(v any) *time.Time {
	t := asTime(v)
	if t.IsZero() {
		return nil
	}
	return &t
}

func asStringSlice(v any) []string {
	switch value := v.(type) {
	case []string:
		out := make([]string, 0, len(value))
		for _, s := range value {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		// Postgres array literal, e.g. {a,b}.
		trimmed := strings.Trim(strings.TrimSpace(value), "{}")
		if trimmed == "" {
			return []string{}
		}
		parts := strings.Split(trimmed, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if s := strings.Trim(strings.TrimSpace(part), `"`); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func embedded(v any) gateway.Row {
	switch value := v.(type) {
	case gateway.Row:
		return value
	case map[string]any:
		return value
	default:
		return nil
	}
}
