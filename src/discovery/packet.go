package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/ugorji/go/codec"
)

// Datagram kinds.
const (
	KindDiscovery    = "Discovery"
	KindDiscoveryRes = "DiscoveryRes"
)

// MaxDatagramSize is the size of the receive buffer.
const MaxDatagramSize = 1024

// ErrMalformed is returned for datagrams that decode but do not describe a
// valid discovery packet.
var ErrMalformed = errors.New("malformed discovery packet")

// Packet is a discovery datagram. IP, Port and TargetID are only set on
// DiscoveryRes packets.
//
// On the wire a packet is a single-key object naming its kind:
//
//	{"Discovery":"<sender_id>"}
//	{"DiscoveryRes":["<ip>",<port>,"<sender_id>","<target_id>"]}
type Packet struct {
	Kind     string
	IP       string
	Port     uint16
	SenderID string
	TargetID string
}

// NewDiscovery creates a probe sent by senderID.
func NewDiscovery(senderID string) Packet {
	return Packet{
		Kind:     KindDiscovery,
		SenderID: senderID,
	}
}

// NewDiscoveryRes creates the answer of senderID, reachable at ip:port, to a
// probe sent by targetID.
func NewDiscoveryRes(ip string, port uint16, senderID, targetID string) Packet {
	return Packet{
		Kind:     KindDiscoveryRes,
		IP:       ip,
		Port:     port,
		SenderID: senderID,
		TargetID: targetID,
	}
}

func jsonHandle() *codec.JsonHandle {
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	return jh
}

// Marshal returns the JSON encoding of the packet.
func (p *Packet) Marshal() ([]byte, error) {
	var body interface{}
	switch p.Kind {
	case KindDiscovery:
		body = p.SenderID
	case KindDiscoveryRes:
		body = []interface{}{p.IP, p.Port, p.SenderID, p.TargetID}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrMalformed, p.Kind)
	}

	var b []byte
	enc := codec.NewEncoderBytes(&b, jsonHandle())

	if err := enc.Encode(map[string]interface{}{p.Kind: body}); err != nil {
		return nil, err
	}

	return b, nil
}

// Unmarshal decodes data into the packet and validates it.
func (p *Packet) Unmarshal(data []byte) error {
	var tagged map[string]interface{}
	dec := codec.NewDecoderBytes(data, jsonHandle())

	if err := dec.Decode(&tagged); err != nil {
		return err
	}
	if len(tagged) != 1 {
		return fmt.Errorf("%w: expected exactly one kind, got %d", ErrMalformed, len(tagged))
	}

	for kind, body := range tagged {
		switch kind {
		case KindDiscovery:
			sender, ok := body.(string)
			if !ok {
				return fmt.Errorf("%w: Discovery body is not a string", ErrMalformed)
			}
			*p = NewDiscovery(sender)

		case KindDiscoveryRes:
			fields, ok := body.([]interface{})
			if !ok || len(fields) != 4 {
				return fmt.Errorf("%w: DiscoveryRes body is not a 4-element array", ErrMalformed)
			}
			ip, ok1 := fields[0].(string)
			port, ok2 := toPort(fields[1])
			sender, ok3 := fields[2].(string)
			target, ok4 := fields[3].(string)
			if !ok1 || !ok2 || !ok3 || !ok4 {
				return fmt.Errorf("%w: invalid DiscoveryRes fields", ErrMalformed)
			}
			*p = NewDiscoveryRes(ip, port, sender, target)

		default:
			return fmt.Errorf("%w: unknown kind %q", ErrMalformed, kind)
		}
	}

	return p.validate()
}

// toPort accepts the numeric types the codec produces for a JSON number.
func toPort(v interface{}) (uint16, bool) {
	var n float64
	switch x := v.(type) {
	case uint64:
		n = float64(x)
	case int64:
		n = float64(x)
	case float64:
		n = x
	default:
		return 0, false
	}
	if n < 1 || n > 65535 || n != float64(uint16(n)) {
		return 0, false
	}
	return uint16(n), true
}

func (p *Packet) validate() error {
	if p.SenderID == "" {
		return fmt.Errorf("%w: missing sender id", ErrMalformed)
	}

	if p.Kind == KindDiscoveryRes && (p.IP == "" || p.TargetID == "") {
		return fmt.Errorf("%w: incomplete DiscoveryRes", ErrMalformed)
	}

	return nil
}

// Candidate is the address of a node that answered one of our probes.
type Candidate struct {
	IP   string
	Port uint16
}

// Addr returns the candidate as ip:port.
func (c Candidate) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(int(c.Port)))
}
