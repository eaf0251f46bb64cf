package domain

import "time"

// MaxCaseUUIDs caps how many external case identifiers a domain keeps.
const MaxCaseUUIDs = 10

// CaseMapping links a watched domain to the external case identifiers
// (MISP-style event UUIDs) opened for it, most recent last.
type CaseMapping struct {
	Domain    string
	CaseUUIDs []string
	UpdatedAt time.Time
}

// AppendCaseUUID appends uuid to uuids in recency order: an already-present
// uuid moves to the tail, and the list is trimmed from the front to the cap.
func AppendCaseUUID(uuids []string, uuid string) []string {
	out := make([]string, 0, len(uuids)+1)
	for _, u := range uuids {
		if u != uuid {
			out = append(out, u)
		}
	}
	out = append(out, uuid)
	if len(out) > MaxCaseUUIDs {
		out = out[len(out)-MaxCaseUUIDs:]
	}
	return out
}
