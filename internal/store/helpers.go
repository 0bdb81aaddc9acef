package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/BTreeMap/TastingFlow/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfZero is nilIfEmpty for nullable integer columns.
func nilIfZero(n int64) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// scanRowMaps reads every remaining row into a map keyed by column name. Catalog tables are read
// this way so that rows loaded under older column spellings still come through adaptQuestion and
// adaptBottle.
func scanRowMaps(rows *sql.Rows) ([]map[string]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}
	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[columnKey(c)] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}

// columnKey folds a column name so "bottle_name", "bottle name", "Bottle-Name" and "bottleName"
// all land on the same key.
func columnKey(c string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(c) {
		switch r {
		case '_', ' ', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Accepted spellings per canonical field, already folded by columnKey.
var (
	idKeys           = []string{"id"}
	bottleIDKeys     = []string{"bottleid"}
	bottleNameKeys   = []string{"bottlename", "bottle", "wine"}
	questionTextKeys = []string{"questiontext", "text", "prompt", "question"}
	questionTypeKeys = []string{"questiontype", "type", "kind"}
	choicesKeys      = []string{"choices", "options"}
	helpTextKeys     = []string{"helptext", "help", "description"}
	mediaURLKeys     = []string{"mediaurl", "media", "url"}
	forHostKeys      = []string{"forhost", "hostonly"}
	positionKeys     = []string{"position", "questionorder", "sortorder"}
	nameKeys         = []string{"name", "bottlename"}
	sequenceKeys     = []string{"sequence", "sequencenumber", "position", "bottleorder"}
)

// lookup returns the first present, non-NULL value among keys.
func lookup(row map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func asInt64(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	case string, []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(asString(t)), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	case string, []byte:
		switch strings.ToLower(strings.TrimSpace(asString(t))) {
		case "true", "t", "1", "yes", "y":
			return true
		}
	}
	return false
}

// adaptQuestion turns a scanned question row into the canonical RawQuestion.
func adaptQuestion(row map[string]any) models.RawQuestion {
	var q models.RawQuestion
	if v, ok := lookup(row, idKeys); ok {
		q.ID, _ = asInt64(v)
	}
	if v, ok := lookup(row, bottleIDKeys); ok {
		q.BottleID, _ = asInt64(v)
	}
	if v, ok := lookup(row, bottleNameKeys); ok {
		q.BottleName = strings.TrimSpace(asString(v))
	}
	if v, ok := lookup(row, questionTextKeys); ok {
		q.Prompt = asString(v)
	}
	if v, ok := lookup(row, questionTypeKeys); ok {
		q.Type = asString(v)
	}
	if v, ok := lookup(row, choicesKeys); ok {
		if b, isBytes := v.([]byte); isBytes {
			v = string(b)
		}
		q.Choices = v
	}
	if v, ok := lookup(row, helpTextKeys); ok {
		q.HelpText = asString(v)
	}
	if v, ok := lookup(row, mediaURLKeys); ok {
		q.MediaURL = strings.TrimSpace(asString(v))
	}
	if v, ok := lookup(row, forHostKeys); ok {
		q.ForHost = asBool(v)
	}
	if v, ok := lookup(row, positionKeys); ok {
		n, _ := asInt64(v)
		q.Position = int(n)
	}
	return q
}

// adaptBottle turns a scanned bottle row into the canonical Bottle.
func adaptBottle(row map[string]any) models.Bottle {
	var b models.Bottle
	if v, ok := lookup(row, idKeys); ok {
		b.ID, _ = asInt64(v)
	}
	if v, ok := lookup(row, nameKeys); ok {
		b.Name = strings.TrimSpace(asString(v))
	}
	if v, ok := lookup(row, sequenceKeys); ok {
		if n, ok := asInt64(v); ok {
			seq := int(n)
			b.Sequence = &seq
		}
	}
	return b
}

// submissionJSON holds the JSON columns of a stored submission.
type submissionJSON struct {
	answers, responses, bottles []byte
}

// encodeSubmission marshals the map fields of a submission for storage.
func encodeSubmission(sub models.Submission) (submissionJSON, error) {
	var enc submissionJSON
	var err error
	if enc.answers, err = json.Marshal(sub.Answers); err != nil {
		return enc, fmt.Errorf("failed to encode answers: %w", err)
	}
	if enc.responses, err = json.Marshal(sub.Responses); err != nil {
		return enc, fmt.Errorf("failed to encode responses: %w", err)
	}
	if enc.bottles, err = json.Marshal(sub.Bottles); err != nil {
		return enc, fmt.Errorf("failed to encode bottle names: %w", err)
	}
	return enc, nil
}

// decodeSubmission fills the map fields of sub from their stored JSON.
func decodeSubmission(sub *models.Submission, enc submissionJSON) error {
	answers, responses, bottles := enc.answers, enc.responses, enc.bottles
	if len(bottles) > 0 {
		if err := json.Unmarshal(bottles, &sub.Bottles); err != nil {
			return fmt.Errorf("failed to decode bottle names: %w", err)
		}
	}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &sub.Answers); err != nil {
			return fmt.Errorf("failed to decode answers: %w", err)
		}
	}
	if len(responses) > 0 {
		if err := json.Unmarshal(responses, &sub.Responses); err != nil {
			return fmt.Errorf("failed to decode responses: %w", err)
		}
	}
	return nil
}

// choicesColumn renders a question's choices for the TEXT choices column. Lists are stored as a
// JSON array so that entries containing delimiters survive the round trip.
func choicesColumn(v any) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return nilIfEmpty(t), nil
	case []byte:
		return nilIfEmpty(string(t)), nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("failed to encode choices: %w", err)
		}
		return string(b), nil
	}
}

// lowerNames folds names for case-insensitive matching and drops blanks.
func lowerNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if k := strings.ToLower(strings.TrimSpace(n)); k != "" {
			out = append(out, k)
		}
	}
	return out
}
