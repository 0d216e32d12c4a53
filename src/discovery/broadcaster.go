package discovery

import (
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

// Broadcaster sends a fixed number of probes to the multicast group.
type Broadcaster struct {
	selfID   string
	group    *net.UDPAddr
	probes   int
	interval time.Duration
	logger   *logrus.Entry
}

// NewBroadcaster creates a Broadcaster sending probes on behalf of selfID.
func NewBroadcaster(groupAddr string, selfID string, probes int, interval time.Duration, logger *logrus.Entry) (*Broadcaster, error) {
	group, err := net.ResolveUDPAddr("udp4", groupAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving multicast group %s: %w", groupAddr, err)
	}

	return &Broadcaster{
		selfID:   selfID,
		group:    group,
		probes:   probes,
		interval: interval,
		logger:   logger,
	}, nil
}

// Run opens an ephemeral UDP socket and sends the probes through it. It
// returns early when stopCh is closed.
func (b *Broadcaster) Run(stopCh <-chan struct{}) error {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("opening discovery socket: %w", err)
	}
	defer conn.Close()

	return b.Broadcast(conn, stopCh)
}

// Broadcast sends the probes through conn, waiting interval between two
// consecutive probes.
func (b *Broadcaster) Broadcast(conn net.PacketConn, stopCh <-chan struct{}) error {
	probe := NewDiscovery(b.selfID)
	data, err := probe.Marshal()
	if err != nil {
		return err
	}

	for i := 0; i < b.probes; i++ {
		if i > 0 {
			select {
			case <-time.After(b.interval):
			case <-stopCh:
				return nil
			}
		}

		if _, err := conn.WriteTo(data, b.group); err != nil {
			return fmt.Errorf("sending discovery probe: %w", err)
		}

		b.logger.WithField("probe", i+1).Debug("Sent discovery probe")
	}

	return nil
}
