package notecard

import "fmt"

// Mode is the hub connectivity mode of the card.
type Mode string

// Hub connectivity modes.
const (
	ModeMinimum    Mode = "minimum"
	ModePeriodic   Mode = "periodic"
	ModeContinuous Mode = "continuous"
)

// Request is a single transaction sent to the card. It always carries a
// "req" field naming the operation.
type Request map[string]any

// NewRequest creates a request for the named operation.
func NewRequest(name string) Request {
	return Request{"req": name}
}

// Name returns the operation name.
func (r Request) Name() string {
	s, _ := r["req"].(string)
	return s
}

// Response is the decoded reply to a transaction. Numbers decode as float64.
type Response map[string]any

// Err returns the error reported by the card, if any.
func (r Response) Err() string {
	return r.String("err")
}

// String returns a string field, or "" if absent.
func (r Response) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool reports whether a field is exactly true.
func (r Response) Bool(key string) bool {
	v, _ := r[key].(bool)
	return v
}

// Float returns a numeric field.
func (r Response) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Int returns a numeric field truncated to an int.
func (r Response) Int(key string) int {
	f, _ := r.Float(key)
	return int(f)
}

// Map returns a nested object field.
func (r Response) Map(key string) map[string]any {
	m, _ := r[key].(map[string]any)
	return m
}
