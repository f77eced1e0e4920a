package websocket

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/robotalks/ringtask/pkg/bbuf"
)

type syncBuffer struct {
	lock sync.Mutex
	data []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return string(b.data)
}

func TestServerFeedsInput(t *testing.T) {
	var input syncBuffer
	s := NewServer("", &input)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, err := websocket.Dial(url, "", ts.URL)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, websocket.Message.Send(ws, "pp"))
	require.NoError(t, websocket.Message.Send(ws, []byte("c")))
	require.Eventually(t, func() bool {
		return input.String() == "ppc"
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, s.Peers())

	s.HandleResult(bbuf.Result{Op: bbuf.OpProduce, OK: true, Value: 0, Snapshot: bbuf.Snapshot{Contents: []int{0}}})
	ws.SetReadDeadline(time.Now().Add(time.Second))
	var msg string
	require.NoError(t, websocket.Message.Receive(ws, &msg))
	require.Equal(t, "produced [0]", msg)

	ws.Close()
	require.Eventually(t, func() bool {
		return s.Peers() == 0
	}, time.Second, 5*time.Millisecond)
}
