package chat

// Chat is a snapshot of the roster and the log. It is the payload of the Sync
// packet.
type Chat struct {
	AllMessages []Message `json:"all_messages"`
	Members     []Member  `json:"members"`
}

// NewChat returns an empty Chat. Slices are non-nil so that an empty snapshot
// encodes as [] rather than null.
func NewChat() Chat {
	return Chat{
		AllMessages: []Message{},
		Members:     []Member{},
	}
}

// MemberIDs returns the IDs of the roster, in roster order.
func (c Chat) MemberIDs() []string {
	res := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		res = append(res, m.ID)
	}
	return res
}

// MembersDiff returns the members of remote whose ID is not present in local,
// preserving the order of remote.
func MembersDiff(local, remote []Member) []Member {
	known := make(map[string]struct{}, len(local))
	for _, m := range local {
		known[m.ID] = struct{}{}
	}

	diff := []Member{}
	for _, r := range remote {
		if _, ok := known[r.ID]; ok {
			continue
		}
		// guard against duplicates inside remote itself
		known[r.ID] = struct{}{}
		diff = append(diff, r)
	}
	return diff
}
