package mqtt

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/ringtask/pkg/bbuf"
	"github.com/robotalks/ringtask/pkg/events"
)

// Topic suffixes under <prefix><node>/.
const (
	TopicSymbols = "symbols"
	TopicEvents  = "events"
	TopicMeta    = "meta"
)

// NodeMeta is published retained on the meta topic while the node is up.
type NodeMeta struct {
	Buffer   string `json:"buffer"`
	Capacity int    `json:"capacity"`
}

// Bridge feeds symbols received over MQTT into Input and publishes
// operation results as events.
type Bridge struct {
	Queue *Queue
	Node  string
	Meta  NodeMeta
	Input io.Writer
	// ConnectTimeout bounds the first connect to the broker.
	ConnectTimeout time.Duration

	metaJSON []byte
}

// NewBridge creates a Bridge connected to brokerURL.
// The broker removes the meta topic if the node disappears.
func NewBridge(brokerURL, node string, meta NodeMeta, input io.Writer) (*Bridge, error) {
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		return nil, err
	}
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+node+"/"+TopicMeta, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("ringtask:" + node)
	}
	b := &Bridge{
		Queue:    NewQueue(opts, topicPrefix),
		Node:     node,
		Meta:     meta,
		Input:    input,
		metaJSON: metaJSON,

		ConnectTimeout: DefaultConnectTimeout,
	}
	b.Queue.OnConnect = func(*Queue) { b.onConnected() }
	return b, nil
}

// Topic returns the full topic (without prefix) of a suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.Node + "/" + suffix
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "mqtt-bridge"
}

// HandleResult implements dispatch.ResultHandler.
func (b *Bridge) HandleResult(res bbuf.Result) {
	payload, err := events.FromResult(b.Node, b.Meta.Buffer, res).Encode()
	if err != nil {
		glog.Errorf("encode event error: %v", err)
		return
	}
	b.Queue.Pub(b.Topic(TopicEvents), payload)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(b.Topic(TopicSymbols), Handler(b.handleSymbols))
	if err := b.Queue.ConnectWait(b.ConnectTimeout); err != nil {
		sub.Close()
		b.Queue.Close()
		return err
	}
	<-ctx.Done()
	sub.Close()
	b.Queue.PubWith(b.Topic(TopicMeta), nil, 1, true).Wait()
	b.Queue.Close()
	return ctx.Err()
}

func (b *Bridge) handleSymbols(_ string, payload []byte) {
	if _, err := b.Input.Write(payload); err != nil {
		glog.Errorf("symbols input error: %v", err)
	}
}

func (b *Bridge) onConnected() {
	b.Queue.PubWith(b.Topic(TopicMeta), b.metaJSON, 1, true)
}
