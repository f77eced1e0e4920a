package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfigCopiesDefault(t *testing.T) {
	conf := NewConfig()
	require.NotEmpty(t, conf.NodeID)
	require.Equal(t, 5, conf.Buffer.Capacity)
	require.Equal(t, 5, conf.Buffer.MaxData)
	require.Equal(t, 100*time.Millisecond, conf.Buffer.Timeout)

	conf.Buffer.Capacity = 10
	require.Equal(t, 5, Default().Buffer.Capacity)
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{name: "default", modify: func(*Config) {}, valid: true},
		{name: "no node", modify: func(c *Config) { c.NodeID = "" }},
		{name: "bad url", modify: func(c *Config) { c.MQTTBrokerURL = "mqtt://%zz" }},
		{name: "zero capacity", modify: func(c *Config) { c.Buffer.Capacity = 0 }},
		{name: "negative timeout", modify: func(c *Config) { c.Buffer.Timeout = -time.Second }},
		{name: "zero timeout", modify: func(c *Config) { c.Buffer.Timeout = 0 }},
		{name: "zero max data", modify: func(c *Config) { c.Buffer.MaxData = 0 }},
		{name: "max data one", modify: func(c *Config) { c.Buffer.MaxData = 1 }, valid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := NewConfig()
			conf.NodeID = "n1"
			tc.modify(conf)
			err := conf.Validate()
			if tc.valid {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
	conf := NewConfig()
	conf.NodeID = ""
	require.Equal(t, ErrNodeRequired, conf.Validate())
}

func TestOpenDevice(t *testing.T) {
	conf := NewConfig()
	f, timeout, err := conf.OpenDevice()
	require.NoError(t, err)
	require.Equal(t, os.Stdin, f)
	require.False(t, timeout)

	conf.Device = filepath.Join(t.TempDir(), "tty")
	_, _, err = conf.OpenDevice()
	require.Error(t, err)

	require.NoError(t, os.WriteFile(conf.Device, []byte("pc"), 0644))
	f, timeout, err = conf.OpenDevice()
	require.NoError(t, err)
	defer f.Close()
	require.True(t, timeout)
}

func TestNewBuffer(t *testing.T) {
	conf := NewConfig()
	conf.Buffer.Name = "main"
	conf.Buffer.Capacity = 3
	buf := conf.NewBuffer()
	require.Equal(t, "main", buf.Name())
	require.Equal(t, 3, buf.Cap())
}
