package commands

import (
	"math/rand"
	"net"
	"time"

	"github.com/mosaicnetworks/meshchat/src/config"
)

const (
	usernameLength  = 4
	usernameLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var rnd = rand.New(rand.NewSource(time.Now().UnixNano()))

func randomUsername(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = usernameLetters[rnd.Intn(len(usernameLetters))]
	}
	return string(b)
}

// localIP returns the IPv4 address of the interface that routes to the
// outside world. No packet is sent.
func localIP() string {
	conn, err := net.Dial("udp4", "8.8.8.8:80")
	if err != nil {
		return config.DefaultFallbackIP
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.To4() == nil {
		return config.DefaultFallbackIP
	}
	return addr.IP.String()
}
