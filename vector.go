package counsel

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector is a pgvector embedding.
// Implements sql.Scanner and driver.Valuer for database compatibility.
type Vector []float32

// Scan implements sql.Scanner.
func (v *Vector) Scan(src any) error {
	if src == nil {
		*v = nil
		return nil
	}

	var s string
	switch val := src.(type) {
	case []byte:
		s = string(val)
	case string:
		s = val
	default:
		return fmt.Errorf("cannot scan %T into Vector", src)
	}

	// pgvector text form: [0.1,0.2,0.3]
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		*v = nil
		return nil
	}

	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("failed to parse vector element %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}

// Value implements driver.Valuer.
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}

// Cosine returns the cosine similarity of v and w in [-1, 1].
// Mismatched lengths and zero vectors have similarity 0.
func (v Vector) Cosine(w Vector) float64 {
	if len(v) == 0 || len(v) != len(w) {
		return 0
	}
	var dot, nv, nw float64
	for i := range v {
		a, b := float64(v[i]), float64(w[i])
		dot += a * b
		nv += a * a
		nw += b * b
	}
	if nv == 0 || nw == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(nv) * math.Sqrt(nw))
	return math.Max(-1, math.Min(1, sim))
}
