package memory

import "sort"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ValidRole reports whether r is a role the store accepts. The system
// role is injected at prompt-assembly time and never persisted.
func ValidRole(r Role) bool {
	return r == RoleUser || r == RoleAssistant
}

// Record is one immutable turn of a conversation. Timestamp is assigned
// by the Manager at append time; Seq is the store-assigned tiebreaker
// that keeps ordering deterministic when timestamps collide at
// sub-resolution.
type Record struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Seq       uint64 `json:"seq"`
}

// Turn is the role/content pair handed to the completion call.
// Timestamps never leave the store.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// sortChronological orders records by ascending timestamp, ties broken
// by sequence number.
func sortChronological(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp < records[j].Timestamp
		}
		return records[i].Seq < records[j].Seq
	})
}

// toTurns strips storage metadata from records.
func toTurns(records []Record) []Turn {
	turns := make([]Turn, 0, len(records))
	for _, rec := range records {
		turns = append(turns, Turn{Role: rec.Role, Content: rec.Content})
	}
	return turns
}
