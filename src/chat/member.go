package chat

import (
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
)

// Member is the identity record of a chat participant.
type Member struct {
	IP       string `json:"ip"`
	Port     uint16 `json:"port"`
	Username string `json:"username"`
	ID       string `json:"id"`
}

// NewMember creates a Member with a fresh random ID. It is called once per
// process for the local node.
func NewMember(username, ip string, port uint16) Member {
	return Member{
		IP:       ip,
		Port:     port,
		Username: username,
		ID:       uuid.New().String(),
	}
}

// NetAddr returns the ip:port where the member accepts connections.
func (m Member) NetAddr() string {
	return net.JoinHostPort(m.IP, strconv.Itoa(int(m.Port)))
}

func (m Member) String() string {
	return fmt.Sprintf("%s(%s@%s)", m.Username, m.ID, m.NetAddr())
}

// ExcludeMember returns the members whose ID differs from id.
func ExcludeMember(members []Member, id string) []Member {
	others := make([]Member, 0, len(members))
	for _, m := range members {
		if m.ID != id {
			others = append(others, m)
		}
	}
	return others
}
