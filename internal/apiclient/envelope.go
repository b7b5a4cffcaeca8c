package apiclient

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"taskboard/internal/model"
)

// TotalCountHeader carries the collection size for bare array responses.
const TotalCountHeader = "X-Total-Count"

// EnvelopeKind identifies which list response shape the backend used.
type EnvelopeKind int

const (
	Unrecognized EnvelopeKind = iota
	// ArrayEnvelope is a bare JSON array with the total in TotalCountHeader.
	ArrayEnvelope
	// WrappedEnvelope is an object holding a data/items array and a count.
	WrappedEnvelope
)

func (k EnvelopeKind) String() string {
	switch k {
	case ArrayEnvelope:
		return "array"
	case WrappedEnvelope:
		return "wrapped"
	default:
		return "unrecognized"
	}
}

// Envelope is a decoded list response.
type Envelope struct {
	Kind  EnvelopeKind
	Items []model.Task
	Total int
}

var (
	wrappedItemKeys  = []string{"data", "items"}
	wrappedTotalKeys = []string{"total", "totalCount", "count", "items"}
)

// DecodeEnvelope classifies a list response body. It never fails: shapes it
// cannot read decode as Unrecognized with no items and a zero total.
func DecodeEnvelope(body []byte, header http.Header) Envelope {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Envelope{Kind: Unrecognized}
	}

	switch body[0] {
	case '[':
		var items []model.Task
		if err := json.Unmarshal(body, &items); err != nil {
			return Envelope{Kind: Unrecognized}
		}
		total, ok := headerTotal(header)
		if !ok {
			total = len(items)
		}
		return Envelope{Kind: ArrayEnvelope, Items: nonNil(items), Total: total}

	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return Envelope{Kind: Unrecognized}
		}
		items, ok := wrappedItems(fields)
		if !ok {
			return Envelope{Kind: Unrecognized}
		}
		total, ok := wrappedTotal(fields)
		if !ok {
			if total, ok = headerTotal(header); !ok {
				total = len(items)
			}
		}
		return Envelope{Kind: WrappedEnvelope, Items: nonNil(items), Total: total}
	}

	return Envelope{Kind: Unrecognized}
}

// Page converts the envelope into the canonical page for page/pageSize.
func (e Envelope) Page(page, pageSize int) model.Page {
	items := e.Items
	if items == nil {
		items = []model.Task{}
	}
	return model.Page{
		Items:    items,
		Total:    e.Total,
		NextPage: model.NextPageAfter(page, pageSize, e.Total),
	}
}

func wrappedItems(fields map[string]json.RawMessage) ([]model.Task, bool) {
	for _, key := range wrappedItemKeys {
		raw, ok := fields[key]
		if !ok || !isArray(raw) {
			continue
		}
		var items []model.Task
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, false
		}
		return items, true
	}
	return nil, false
}

func wrappedTotal(fields map[string]json.RawMessage) (int, bool) {
	for _, key := range wrappedTotalKeys {
		raw, ok := fields[key]
		if !ok || isArray(raw) {
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			continue
		}
		if v, err := n.Int64(); err == nil && v >= 0 {
			return int(v), true
		}
	}
	return 0, false
}

func headerTotal(h http.Header) (int, bool) {
	if h == nil {
		return 0, false
	}
	v := strings.TrimSpace(h.Get(TotalCountHeader))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func nonNil(items []model.Task) []model.Task {
	if items == nil {
		return []model.Task{}
	}
	return items
}
