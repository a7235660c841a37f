package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Request is one JSON POST to the messaging provider.
type Request struct {
	// Op names the provider operation for logs and metrics, e.g. "create_lot".
	Op      string
	URL     string
	Headers map[string]string
	Timeout time.Duration
	// Body is encoded as JSON; nil is sent as an empty list.
	Body any
}

// Response carries a 2xx provider answer. JSON is the decoded body when it
// was valid JSON, otherwise nil.
type Response struct {
	StatusCode int
	Body       []byte
	JSON       any
}

// Client abstracts the provider HTTP surface.
// A non-nil error means transport failure or a status outside [200,300).
type Client interface {
	Post(ctx context.Context, req Request) (*Response, error)
}

// Error is returned for non-2xx answers.
type Error struct {
	Op         string
	StatusCode int
	Preview    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Preview)
}

// lotIDKeys are the JSON fields a create-lot answer may carry the id in.
var lotIDKeys = []string{"idLot", "idLotEmail", "id", "lotId", "idLote"}

// LotID extracts the lot identifier from a create-lot answer: a JSON
// object field, a bare JSON string or number, or the raw text body.
func LotID(resp *Response) (string, bool) {
	if resp == nil {
		return "", false
	}
	switch v := resp.JSON.(type) {
	case map[string]any:
		for _, k := range lotIDKeys {
			if id := scalarString(v[k]); id != "" {
				return id, true
			}
		}
		return "", false
	case []any:
		return "", false
	case nil:
	default:
		if id := scalarString(v); id != "" {
			return id, true
		}
		return "", false
	}
	id := strings.TrimSpace(string(resp.Body))
	return id, id != ""
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%.0f", x))
	case bool:
		if x {
			return "1"
		}
	}
	return ""
}

// Preview trims s to at most max bytes for logging.
func Preview(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
