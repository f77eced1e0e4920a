package sh

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/ringtask/pkg/env"
	"github.com/robotalks/ringtask/pkg/events"
)

func newTestShell(t *testing.T) (*Shell, *bytes.Buffer) {
	conf := env.NewConfig()
	conf.NodeID = "n1"
	conf.Buffer.Name = "main"
	conf.Buffer.Timeout = 10 * time.Millisecond
	var out bytes.Buffer
	return newShell(conf, &out), &out
}

func TestShellSendLocal(t *testing.T) {
	s, out := newTestShell(t)
	require.NoError(t, s.Send("p"))
	require.NoError(t, s.Send("p"))
	require.NoError(t, s.Send("c"))
	require.Equal(t, []string{
		"n1/main: produced 0 buffer: [0]",
		"n1/main: produced 1 buffer: [0 1]",
		"n1/main: consumed 0 buffer: [1]",
	}, strings.Split(strings.TrimSpace(out.String()), "\n"))

	out.Reset()
	require.NoError(t, s.Send("ccx"))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.ElementsMatch(t, []string{
		"n1/main: consumed 1 buffer: []",
		"n1/main: buffer empty buffer: []",
	}, lines)
	require.Equal(t, uint64(1), s.Dispatcher.Ignored())
	stats := s.Buffer.Stats()
	require.Equal(t, uint64(2), stats.Produced)
	require.Equal(t, uint64(2), stats.Consumed)
	require.Equal(t, uint64(1), stats.Empty)
}

func TestShellOutputJSON(t *testing.T) {
	s, out := newTestShell(t)
	s.OutputJSON = true
	require.NoError(t, s.Send("p"))
	var ev events.Event
	require.NoError(t, json.Unmarshal(out.Bytes(), &ev))
	require.Equal(t, events.KindProduced, ev.Kind)
	require.Equal(t, []int{0}, ev.Contents)
}

func TestShellConnectRequiresBroker(t *testing.T) {
	s, _ := newTestShell(t)
	s.Config.MQTTBrokerURL = ""
	require.Error(t, s.Connect("n2"))
	require.Nil(t, s.Remote)
	s.Disconnect()
}

func TestShellConnectFailureStaysLocal(t *testing.T) {
	s, out := newTestShell(t)
	s.Config.MQTTBrokerURL = "mqtt://127.0.0.1:1/ringtask"
	require.Error(t, s.Connect("n2"))
	require.Nil(t, s.Remote)
	require.NoError(t, s.Send("p"))
	require.Equal(t, "n1/main: produced 0 buffer: [0]\n", out.String())
}
