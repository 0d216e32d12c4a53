package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/meshchat/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// DefaultConfigName is the name, without extension, of the optional config
// file looked up in DataDir.
const DefaultConfigName = "meshchat"

// Default configuration values.
const (
	DefaultLogLevel          = "info"
	DefaultBindAddr          = "0.0.0.0:0"
	DefaultMulticastAddr     = "239.255.42.99:9000"
	DefaultDiscovery         = false
	DefaultDiscoveryProbes   = 3
	DefaultDiscoveryInterval = 1 * time.Second
	DefaultDialTimeout       = time.Duration(0)
	DefaultServiceAddr       = ""
	DefaultFallbackIP        = "127.0.0.1"
)

// Config contains all the configuration properties of a meshchat node.
type Config struct {
	// DataDir is where the optional meshchat.toml (or .json, .yaml) config
	// file is looked up. Nothing is ever written there.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of every log entry.
	LogFile string `mapstructure:"log-file"`

	// Username is the display name of the local member. A random one is
	// generated when empty.
	Username string `mapstructure:"username"`

	// BindAddr is the local ip:port of the TCP listener. Port 0 lets the OS
	// choose.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseIP is the IP announced to other members in Identity packets
	// and discovery replies.
	AdvertiseIP string `mapstructure:"advertise"`

	// ConnectAddr is an optional ip:port dialed at startup.
	ConnectAddr string `mapstructure:"connect"`

	// Discovery enables the multicast discovery subsystem.
	Discovery bool `mapstructure:"discovery"`

	// MulticastAddr is the group:port used by discovery.
	MulticastAddr string `mapstructure:"multicast"`

	// DiscoveryProbes is the number of Discovery packets sent at startup.
	DiscoveryProbes int `mapstructure:"discovery-probes"`

	// DiscoveryInterval is the delay between two Discovery packets.
	DiscoveryInterval time.Duration `mapstructure:"discovery-interval"`

	// DialTimeout bounds outgoing connection attempts. Zero means no
	// timeout.
	DialTimeout time.Duration `mapstructure:"dial-timeout"`

	// ServiceAddr is the ip:port of the read-only HTTP status service. The
	// service is disabled when empty.
	ServiceAddr string `mapstructure:"service-listen"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		BindAddr:          DefaultBindAddr,
		MulticastAddr:     DefaultMulticastAddr,
		Discovery:         DefaultDiscovery,
		DiscoveryProbes:   DefaultDiscoveryProbes,
		DiscoveryInterval: DefaultDiscoveryInterval,
		DialTimeout:       DefaultDialTimeout,
		ServiceAddr:       DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with default values and a logger that
// writes through t.Log. It binds to the loopback interface.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.BindAddr = "127.0.0.1:0"
	config.AdvertiseIP = "127.0.0.1"
	config.logger = common.NewTestLogger(t, level)
	return config
}

// Logger returns a formatted logrus Entry, with prefix set to "meshchat".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "meshchat")
}

// SetLogger replaces the logger returned by Logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDataDir return the default directory name for top-level meshchat
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".MeshChat")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "MeshChat")
		} else {
			return filepath.Join(home, ".meshchat")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}
