package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/meshchat/src/config"
	"github.com/mosaicnetworks/meshchat/src/discovery"
	"github.com/mosaicnetworks/meshchat/src/node"
	"github.com/mosaicnetworks/meshchat/src/service"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRunCmd returns the command that starts a meshchat node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runMeshchat,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runMeshchat(cmd *cobra.Command, args []string) error {
	if _config.Quit {
		fmt.Println("DISCONNECTED")
		return nil
	}

	conf := &_config.Meshchat
	logger := conf.Logger()

	if conf.Username == "" {
		conf.Username = randomUsername(usernameLength)
	}
	if conf.AdvertiseIP == "" {
		conf.AdvertiseIP = localIP()
	}

	n, err := node.NewNode(conf, newColorDisplay(os.Stdout))
	if err != nil {
		logger.Error("Cannot start node: ", err)
		return err
	}
	defer n.Shutdown()

	n.RunAsync()

	fmt.Printf("%s joined as %s, listening on %s\n",
		conf.Username, n.Self().ID, n.Addr())

	if conf.ServiceAddr != "" {
		svc := service.NewService(conf.ServiceAddr, n, logger)
		go svc.Serve()
		defer svc.Close()
	}

	if conf.ConnectAddr != "" {
		if _, err := n.Dial(conf.ConnectAddr); err != nil {
			logger.WithError(err).Error("Cannot connect")
		}
	}

	if conf.Discovery {
		stop, err := startDiscovery(n, logger)
		if err != nil {
			logger.Error("Cannot start discovery: ", err)
			return err
		}
		defer stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	c := newConsole(n)
	defer c.Close()

	doneCh := make(chan bool, 1)
	go func() { doneCh <- c.run() }()

	select {
	case aborted := <-doneCh:
		if !aborted {
			// end of input leaves the node running
			logger.Debug("Input closed")
			<-sigCh
		}
	case <-sigCh:
	}

	fmt.Println("DISCONNECTED")

	return nil
}

// startDiscovery joins the multicast group, sends the probes and connects to
// the first node that answers. The returned function stops the listener and
// the broadcaster.
func startDiscovery(n *node.Node, logger *logrus.Entry) (func(), error) {
	conf := &_config.Meshchat

	listener, err := discovery.Listen(conf.MulticastAddr, n.Self(), logger.WithField("prefix", "discovery"))
	if err != nil {
		return nil, err
	}

	broadcaster, err := discovery.NewBroadcaster(conf.MulticastAddr,
		n.Self().ID,
		conf.DiscoveryProbes,
		conf.DiscoveryInterval,
		logger.WithField("prefix", "discovery"))
	if err != nil {
		listener.Close()
		return nil, err
	}

	stopCh := make(chan struct{})

	go listener.Run()

	go func() {
		if err := broadcaster.Run(stopCh); err != nil {
			logger.WithError(err).Warn("Discovery broadcast failed")
		}
	}()

	go n.ConnectFirst(listener.Candidates())

	return func() {
		close(stopCh)
		listener.Close()
	}, nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

// AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Meshchat.DataDir, "Top-level directory for configuration")
	cmd.Flags().String("log", _config.Meshchat.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Meshchat.LogFile, "Also write JSON logs to this file")
	cmd.Flags().StringP("username", "u", _config.Meshchat.Username, "Display name (random if empty)")
	cmd.Flags().BoolP("quit", "q", _config.Quit, "Print DISCONNECTED and exit")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Meshchat.BindAddr, "Listen IP:Port for the chat node")
	cmd.Flags().StringP("advertise", "a", _config.Meshchat.AdvertiseIP, "IP announced to other members (detected if empty)")
	cmd.Flags().StringP("connect", "c", _config.Meshchat.ConnectAddr, "IP:Port of a member to join")
	cmd.Flags().DurationP("dial-timeout", "t", _config.Meshchat.DialTimeout, "TCP dial timeout (0 waits indefinitely)")

	// Discovery
	cmd.Flags().BoolP("discovery", "d", _config.Meshchat.Discovery, "Find other members with multicast")
	cmd.Flags().String("multicast", _config.Meshchat.MulticastAddr, "Multicast group IP:Port")
	cmd.Flags().Int("discovery-probes", _config.Meshchat.DiscoveryProbes, "Number of discovery probes")
	cmd.Flags().Duration("discovery-interval", _config.Meshchat.DiscoveryInterval, "Time between discovery probes")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Meshchat.ServiceAddr, "Listen IP:Port for HTTP service (disabled if empty)")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	logFields := logrus.Fields{
		"meshchat.DataDir":     _config.Meshchat.DataDir,
		"meshchat.LogLevel":    _config.Meshchat.LogLevel,
		"meshchat.LogFile":     _config.Meshchat.LogFile,
		"meshchat.Username":    _config.Meshchat.Username,
		"meshchat.BindAddr":    _config.Meshchat.BindAddr,
		"meshchat.AdvertiseIP": _config.Meshchat.AdvertiseIP,
		"meshchat.ConnectAddr": _config.Meshchat.ConnectAddr,
		"meshchat.DialTimeout": _config.Meshchat.DialTimeout,
		"meshchat.Discovery":   _config.Meshchat.Discovery,
		"meshchat.ServiceAddr": _config.Meshchat.ServiceAddr,
		"Quit":                 _config.Quit,
	}

	if _config.Meshchat.Discovery {
		logFields["meshchat.MulticastAddr"] = _config.Meshchat.MulticastAddr
		logFields["meshchat.DiscoveryProbes"] = _config.Meshchat.DiscoveryProbes
		logFields["meshchat.DiscoveryInterval"] = _config.Meshchat.DiscoveryInterval
	}

	_config.Meshchat.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/meshchat.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName) // name of config file (without extension)
	viper.AddConfigPath(_config.Meshchat.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Meshchat.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Meshchat.Logger().Debugf("No config file found in: %s", _config.Meshchat.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
