package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ringtask/pkg/bbuf"
	"github.com/robotalks/ringtask/pkg/comm/mqtt"
	"github.com/robotalks/ringtask/pkg/dispatch"
	"github.com/robotalks/ringtask/pkg/env"
	"github.com/robotalks/ringtask/pkg/events"
)

// Shell provides ishell backed interactive shell over a buffer. Symbols
// go to the in-process dispatcher unless a remote node is connected.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell      *ishell.Shell
	Config     *env.Config
	Buffer     *bbuf.Buffer
	Dispatcher *dispatch.Dispatcher
	Remote     *Remote

	out     io.Writer
	outLock sync.Mutex
}

// Remote is a node connected over MQTT.
type Remote struct {
	Node  string
	Queue *mqtt.Queue
	sub   *mqtt.Subscription
}

// Close drops the subscription and the broker connection.
func (r *Remote) Close() {
	r.sub.Close()
	r.Queue.Close()
}

const (
	shellKey    = "$shell"
	localPrompt = "[local] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := newShell(conf, os.Stdout)
	s.Interactive = !evalOnly
	s.OutputJSON = outputJSON
	s.Shell = ishell.New()
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(localPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

func newShell(conf *env.Config, out io.Writer) *Shell {
	s := &Shell{Config: conf, Buffer: conf.NewBuffer(), out: out}
	s.Dispatcher = dispatch.New(nil, s.Buffer)
	s.Dispatcher.Handler = dispatch.HandleResultFunc(func(res bbuf.Result) {
		s.PrintEvent(events.FromResult(conf.NodeID, s.Buffer.Name(), res))
	})
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// PrintEvent prints an event as text or JSON.
func (s *Shell) PrintEvent(ev *events.Event) {
	s.outLock.Lock()
	defer s.outLock.Unlock()
	if s.OutputJSON {
		out, err := json.Marshal(ev)
		if err != nil {
			fmt.Fprintln(s.out, err)
			return
		}
		fmt.Fprintln(s.out, string(out))
		return
	}
	fmt.Fprintln(s.out, ev.String())
}

// Send dispatches symbols. Locally it waits for all operations to
// complete; to a remote node the symbols are published without waiting.
func (s *Shell) Send(symbols string) error {
	if r := s.Remote; r != nil {
		token := r.Queue.Pub(r.Node+"/"+mqtt.TopicSymbols, []byte(symbols))
		if !token.WaitTimeout(time.Second) {
			return fmt.Errorf("publish timeout")
		}
		return token.Error()
	}
	s.Dispatcher.Write([]byte(symbols))
	s.Dispatcher.Wait()
	return nil
}

// Connect connects a remote node and prints its events.
func (s *Shell) Connect(node string) error {
	if s.Config.MQTTBrokerURL == "" {
		return fmt.Errorf("MQTT broker URL required")
	}
	q, err := mqtt.NewQueueFromURL(s.Config.MQTTBrokerURL)
	if err != nil {
		return err
	}
	r := &Remote{Node: node, Queue: q}
	r.sub = q.Sub(node+"/"+mqtt.TopicEvents, func(topic string, payload []byte) {
		ev, err := events.Decode(payload)
		if err != nil {
			log.Printf("decode event error: %v", err)
			return
		}
		s.PrintEvent(ev)
	})
	if err := q.ConnectWait(mqtt.DefaultConnectTimeout); err != nil {
		r.Close()
		return err
	}
	s.Disconnect()
	s.Remote = r
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("%s > ", node))
	}
	return nil
}

// Disconnect disconnects the remote node.
func (s *Shell) Disconnect() {
	if r := s.Remote; r != nil {
		r.Close()
		s.Remote = nil
		if s.Shell != nil {
			s.Shell.SetPrompt(localPrompt)
		}
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// ConnectCmd connects a remote node.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"conn"},
		Help:    "NODE",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("NODE required"))
				return
			}
			if err := ShellFrom(c).Connect(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd switches back to the local buffer.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).Run(flag.Args()...)
}

// MustBeLocal wraps command func requiring the in-process buffer.
func MustBeLocal(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Remote != nil {
			c.Err(fmt.Errorf("not available on remote node"))
			return
		}
		fn(c)
	}
}
