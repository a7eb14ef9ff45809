package remote

import (
	"encoding/json"
	"strings"
	"time"
)

// Ref is a remote reference field. The API serializes these either as a bare
// scalar ("abc123") or as a reference object ({"id": "...", "value": "..."}).
// ID() is the single normalization point: it prefers the reference identifier
// and falls back to the raw scalar.
type Ref struct {
	scalar string
	id     string
	value  string
}

// UnmarshalJSON accepts both the scalar and the object encoding.
func (r *Ref) UnmarshalJSON(data []byte) error {
	*r = Ref{}

	var scalar string
	if err := json.Unmarshal(data, &scalar); err == nil {
		r.scalar = scalar
		return nil
	}

	var obj struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.id = obj.ID
	r.value = obj.Value
	return nil
}

// ID returns the normalized identifier for the referenced entity.
func (r Ref) ID() string {
	if r.id != "" {
		return r.id
	}
	if r.value != "" {
		return r.value
	}
	return r.scalar
}

// IsZero reports whether the field was absent or empty.
func (r Ref) IsZero() bool {
	return r.id == "" && r.value == "" && r.scalar == ""
}

// Record is one raw row from the remote incident table. Raw carries the
// untouched JSON so the local copy can keep the full payload.
type Record struct {
	SysID            string `json:"sys_id"`
	Number           string `json:"number"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	Subcategory      string `json:"subcategory"`
	State            string `json:"state"`
	Priority         string `json:"priority"`
	Impact           string `json:"impact"`
	Urgency          string `json:"urgency"`
	OpenedAt         string `json:"opened_at"`
	ClosedAt         string `json:"closed_at"`
	ResolvedAt       string `json:"resolved_at"`
	UpdatedOn        string `json:"sys_updated_on"`
	CallerID         Ref    `json:"caller_id"`
	AssignedTo       Ref    `json:"assigned_to"`
	AssignmentGroup  Ref    `json:"assignment_group"`
	Company          Ref    `json:"company"`
	Location         Ref    `json:"location"`

	Raw json.RawMessage `json:"-"`
}

// ExternalID returns the identifier used for the local compound key. The
// human-facing number wins when present; sys_id covers tables without one.
func (r Record) ExternalID() string {
	if r.Number != "" {
		return r.Number
	}
	return r.SysID
}

// listResponse is the Table API list envelope.
type listResponse struct {
	Result []json.RawMessage `json:"result"`
}

func decodeRecords(data []byte) ([]Record, error) {
	var envelope listResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(envelope.Result))
	for _, raw := range envelope.Result {
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, err
		}
		rec.Raw = raw
		records = append(records, rec)
	}
	return records, nil
}

// remoteTimeLayout is the timestamp format the Table API emits (UTC).
const remoteTimeLayout = "2006-01-02 15:04:05"

// ParseTime parses a remote timestamp, returning nil for absent values.
func ParseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if t, err := time.Parse(remoteTimeLayout, value); err == nil {
		t = t.UTC()
		return &t
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t
	}
	return nil
}

// FormatTime renders a timestamp the way the remote filter syntax expects.
func FormatTime(t time.Time) string {
	return t.UTC().Format(remoteTimeLayout)
}
