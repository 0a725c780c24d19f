package runner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// watermarkColumn is the change-tracking column incremental pipelines filter
// on. Source tables must carry it to participate in incremental loads.
const watermarkColumn = "updated_at"

// InjectWatermark appends the incremental predicate to a SQL query. The
// watermark is bound as a parameter, never spliced into the query text.
func InjectWatermark(query string, watermark time.Time) (string, []any) {
	clause := "WHERE"
	if containsWhere(query) {
		clause = "AND"
	}

	return fmt.Sprintf("%s %s %s > ?", query, clause, watermarkColumn), []any{watermark}
}

// containsWhere reports whether the query already has a WHERE clause. The
// keyword is matched case-insensitively at word boundaries, so identifiers
// like "warehouses" or "anywhere" do not count, while "WHERE(a=1)" does.
func containsWhere(query string) bool {
	upper := strings.ToUpper(query)
	for i := 0; ; {
		j := strings.Index(upper[i:], "WHERE")
		if j < 0 {
			return false
		}
		j += i

		boundedLeft := j == 0 || !isWordChar(upper[j-1])
		boundedRight := j+5 >= len(upper) || !isWordChar(upper[j+5])
		if boundedLeft && boundedRight {
			return true
		}

		i = j + 5
	}
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}

// InjectWatermarkFilter merges the incremental predicate into a MongoDB JSON
// filter document. The watermark is encoded as an extended-JSON $date so the
// driver compares it as a BSON datetime.
func InjectWatermarkFilter(filterJSON string, watermark time.Time) (string, error) {
	filter := map[string]any{}

	trimmed := strings.TrimSpace(filterJSON)
	if trimmed != "" && trimmed != "{}" {
		if !gjson.Valid(trimmed) {
			return "", fmt.Errorf("invalid filter document: %s", trimmed)
		}
		if err := json.Unmarshal([]byte(trimmed), &filter); err != nil {
			return "", fmt.Errorf("parse filter document: %w", err)
		}
	}

	filter[watermarkColumn] = map[string]any{
		"$gt": map[string]any{"$date": watermark.UTC().Format(time.RFC3339Nano)},
	}

	merged, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("encode filter document: %w", err)
	}

	return string(merged), nil
}
