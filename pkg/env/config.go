// Package env provides the common options to set up a ringtask node.
package env

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/ringtask/pkg/bbuf"
	"github.com/robotalks/ringtask/pkg/stackmon"
)

var (
	// ErrNodeRequired indicates the node ID is empty.
	ErrNodeRequired = errors.New("node id must be specified")
)

// Config provides common options to set up a node.
type Config struct {
	// NodeID names the node in MQTT topics.
	NodeID string

	// MQTTBrokerURL specifies the MQTT broker to use, empty to disable.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string

	// Device is the serial device to read symbols from, empty for stdin.
	Device string

	Buffer bbuf.Config

	// PollInterval is the idle wait when the device read times out.
	PollInterval time.Duration

	// WebSocketAddr is the listen address of the WebSocket symbol input.
	WebSocketAddr string

	// MetricsAddr is the listen address of the /metrics endpoint.
	MetricsAddr string

	StackDemo       bool
	MonitorInterval time.Duration
	Stack           stackmon.DemoConfig
}

var defaultConfig = Config{
	MQTTBrokerURL:   "",
	Buffer:          bbuf.DefaultConfig(),
	PollInterval:    10 * time.Millisecond,
	MonitorInterval: stackmon.DefaultInterval,
	Stack:           stackmon.DefaultDemoConfig(),
}

func init() {
	if val := os.Getenv("RINGTASK_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("RINGTASK_DEVICE"); val != "" {
		defaultConfig.Device = val
	}
	if val := os.Getenv("RINGTASK_NODE"); val != "" {
		defaultConfig.NodeID = val
	} else {
		defaultConfig.NodeID = MachineID()
	}
}

// MachineID retrieves an ID identifying the machine, falling back to the
// host name.
func MachineID() string {
	if id, err := machineid.ProtectedID("ringtask"); err == nil {
		return id[:12]
	}
	host, _ := os.Hostname()
	return host
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.NodeID, "node", defaultConfig.NodeID, "Node ID")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.Device, "device", defaultConfig.Device, "Serial device to read symbols from, default stdin")
	flag.StringVar(&defaultConfig.Buffer.Name, "buffer", defaultConfig.Buffer.Name, "Buffer name")
	flag.IntVar(&defaultConfig.Buffer.Capacity, "capacity", defaultConfig.Buffer.Capacity, "Buffer capacity")
	flag.IntVar(&defaultConfig.Buffer.MaxData, "max-data", defaultConfig.Buffer.MaxData, "Produced values wrap at this number")
	flag.DurationVar(&defaultConfig.Buffer.Timeout, "timeout", defaultConfig.Buffer.Timeout, "Reservation timeout")
	flag.DurationVar(&defaultConfig.PollInterval, "poll", defaultConfig.PollInterval, "Idle wait between device reads")
	flag.StringVar(&defaultConfig.WebSocketAddr, "ws", defaultConfig.WebSocketAddr, "WebSocket listen address")
	flag.StringVar(&defaultConfig.MetricsAddr, "metrics", defaultConfig.MetricsAddr, "Metrics listen address")
	flag.BoolVar(&defaultConfig.StackDemo, "stack-demo", defaultConfig.StackDemo, "Run stack monitor demo tasks")
	flag.DurationVar(&defaultConfig.MonitorInterval, "monitor-interval", defaultConfig.MonitorInterval, "Stack monitor interval")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrNodeRequired
	}
	if c.MQTTBrokerURL != "" {
		if _, err := url.Parse(c.MQTTBrokerURL); err != nil {
			return fmt.Errorf("invalid MQTT broker URL: %v", err)
		}
	}
	if c.Buffer.Capacity < 1 {
		return fmt.Errorf("invalid buffer capacity: %d", c.Buffer.Capacity)
	}
	if c.Buffer.MaxData < 1 {
		return fmt.Errorf("invalid max data: %d", c.Buffer.MaxData)
	}
	if c.Buffer.Timeout <= 0 {
		return fmt.Errorf("invalid timeout: %v", c.Buffer.Timeout)
	}
	return nil
}

// MustValidate validates the config and fails on error.
func (c *Config) MustValidate() *Config {
	if err := c.Validate(); err != nil {
		log.Fatalln(err)
	}
	return c
}

// NewBuffer creates the buffer from config.
func (c *Config) NewBuffer() *bbuf.Buffer {
	return bbuf.New(c.Buffer)
}

// OpenDevice opens the symbol input device. The returned bool is true
// when the reader returns on idle timeouts.
func (c *Config) OpenDevice() (*os.File, bool, error) {
	if c.Device == "" {
		return os.Stdin, false, nil
	}
	f, err := os.OpenFile(c.Device, os.O_RDONLY, 0)
	if err != nil {
		return nil, false, fmt.Errorf("open device %s error: %v", c.Device, err)
	}
	return f, true, nil
}
