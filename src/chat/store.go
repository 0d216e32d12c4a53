package chat

import "sync"

// Store is the synchronized handle on a node's Chat. A single mutex covers
// both the roster and the log; no method performs I/O while holding it.
type Store struct {
	l    sync.Mutex
	chat Chat
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		chat: NewChat(),
	}
}

// AddMessage appends m to the log. There is no deduplication.
func (s *Store) AddMessage(m Message) {
	s.l.Lock()
	defer s.l.Unlock()

	s.chat.AllMessages = append(s.chat.AllMessages, m)
}

// AddMember appends m to the roster unless a member with the same ID is
// already present. It reports whether the roster changed.
func (s *Store) AddMember(m Member) bool {
	s.l.Lock()
	defer s.l.Unlock()

	return s.addMemberRaw(m)
}

// addMemberRaw is not protected by the mutex.
func (s *Store) addMemberRaw(m Member) bool {
	for _, existing := range s.chat.Members {
		if existing.ID == m.ID {
			return false
		}
	}
	s.chat.Members = append(s.chat.Members, m)
	return true
}

// RemoveMember removes the member with the given ID from the roster and
// reports whether it was present.
func (s *Store) RemoveMember(id string) bool {
	s.l.Lock()
	defer s.l.Unlock()

	before := len(s.chat.Members)
	s.chat.Members = ExcludeMember(s.chat.Members, id)
	return len(s.chat.Members) != before
}

// ReplaceAllMessages overwrites the log with messages. Local appends that
// happened after the remote snapshot was taken are lost.
func (s *Store) ReplaceAllMessages(messages []Message) {
	cp := make([]Message, len(messages))
	copy(cp, messages)

	s.l.Lock()
	defer s.l.Unlock()

	s.chat.AllMessages = cp
}

// MembersDiff returns the members of remote that are not in the local roster.
func (s *Store) MembersDiff(remote []Member) []Member {
	s.l.Lock()
	defer s.l.Unlock()

	return MembersDiff(s.chat.Members, remote)
}

// MergeMembers adds every member of remote that is unknown locally and returns
// the ones that were added. Diff and insertion happen in the same critical
// section, so concurrent merges never return the same member twice.
func (s *Store) MergeMembers(remote []Member) []Member {
	s.l.Lock()
	defer s.l.Unlock()

	diff := MembersDiff(s.chat.Members, remote)
	for _, m := range diff {
		s.addMemberRaw(m)
	}
	return diff
}

// HasMember reports whether a member with the given ID is in the roster.
func (s *Store) HasMember(id string) bool {
	s.l.Lock()
	defer s.l.Unlock()

	for _, m := range s.chat.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Members returns a copy of the roster.
func (s *Store) Members() []Member {
	s.l.Lock()
	defer s.l.Unlock()

	res := make([]Member, len(s.chat.Members))
	copy(res, s.chat.Members)
	return res
}

// Messages returns a copy of the log.
func (s *Store) Messages() []Message {
	s.l.Lock()
	defer s.l.Unlock()

	res := make([]Message, len(s.chat.AllMessages))
	copy(res, s.chat.AllMessages)
	return res
}

// Snapshot returns a deep copy of the Chat, suitable for sending in a Sync.
func (s *Store) Snapshot() Chat {
	s.l.Lock()
	defer s.l.Unlock()

	snap := Chat{
		AllMessages: make([]Message, len(s.chat.AllMessages)),
		Members:     make([]Member, len(s.chat.Members)),
	}
	copy(snap.AllMessages, s.chat.AllMessages)
	copy(snap.Members, s.chat.Members)
	return snap
}

// Len returns the number of members and the number of messages.
func (s *Store) Len() (members int, messages int) {
	s.l.Lock()
	defer s.l.Unlock()

	return len(s.chat.Members), len(s.chat.AllMessages)
}
