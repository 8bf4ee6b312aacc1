package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Train is one record of the server-held resource list. The connection core
// never interprets it; it is forwarded to clients verbatim. Fields the
// struct does not name are kept in Extra and written back on marshal.
type Train struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Departure time.Time `json:"departure"`
	SeatsFree int       `json:"seats_free"`

	Extra map[string]json.RawMessage `json:"-"`
}

// trainFields has Train's layout without its JSON methods.
type trainFields Train

var trainKeys = []string{"id", "number", "from", "to", "departure", "seats_free"}

func (t Train) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(trainFields(t))
	if err != nil || len(t.Extra) == 0 {
		return known, err
	}

	all := make(map[string]json.RawMessage, len(t.Extra)+len(trainKeys))
	for k, v := range t.Extra {
		if !isTrainKey(k) {
			all[k] = v
		}
	}
	if err := json.Unmarshal(known, &all); err != nil {
		return nil, err
	}
	return json.Marshal(all)
}

func (t *Train) UnmarshalJSON(b []byte) error {
	var known trainFields
	if err := json.Unmarshal(b, &known); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return err
	}

	*t = Train(known)
	t.Extra = nil
	for k, v := range all {
		if isTrainKey(k) {
			continue
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return err
		}
		if t.Extra == nil {
			t.Extra = make(map[string]json.RawMessage)
		}
		t.Extra[k] = buf.Bytes()
	}
	return nil
}

// isTrainKey matches the way encoding/json maps keys onto fields.
func isTrainKey(k string) bool {
	for _, known := range trainKeys {
		if strings.EqualFold(k, known) {
			return true
		}
	}
	return false
}
