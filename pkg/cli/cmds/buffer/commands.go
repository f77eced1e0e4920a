package buffer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/ringtask/pkg/cli/sh"
	"github.com/robotalks/ringtask/pkg/dispatch"
)

func send(c *ishell.Context, symbols string) {
	if err := sh.ShellFrom(c).Send(symbols); err != nil {
		c.Err(err)
	}
}

func printJSON(c *ishell.Context, v interface{}) bool {
	if !sh.ShellFrom(c).OutputJSON {
		return false
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return true
	}
	c.Println(string(out))
	return true
}

var (
	// ProduceCmd produces one value.
	ProduceCmd = ishell.Cmd{
		Name:    "produce",
		Aliases: []string{"p"},
		Help:    "",
		Func: func(c *ishell.Context) {
			send(c, string(dispatch.SymbolProduce))
		},
	}

	// ConsumeCmd consumes one value.
	ConsumeCmd = ishell.Cmd{
		Name:    "consume",
		Aliases: []string{"c"},
		Help:    "",
		Func: func(c *ishell.Context) {
			send(c, string(dispatch.SymbolConsume))
		},
	}

	// SendCmd sends a sequence of symbols, all operations run concurrently.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "SYMBOLS",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("SYMBOLS required"))
				return
			}
			send(c, strings.Join(c.Args, ""))
		},
	}

	// ShowCmd prints the buffer contents.
	ShowCmd = ishell.Cmd{
		Name:    "show",
		Aliases: []string{"b"},
		Help:    "",
		Func: sh.MustBeLocal(func(c *ishell.Context) {
			snapshot := sh.ShellFrom(c).Buffer.Snapshot()
			if printJSON(c, snapshot) {
				return
			}
			c.Printf("head=%d tail=%d filled=%d empty=%d buffer: %s\n",
				snapshot.Head, snapshot.Tail, snapshot.Filled, snapshot.Empty, snapshot)
		}),
	}

	// StatsCmd prints operation counters.
	StatsCmd = ishell.Cmd{
		Name:    "stats",
		Aliases: []string{"st"},
		Help:    "",
		Func: sh.MustBeLocal(func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			stats := s.Buffer.Stats()
			if printJSON(c, stats) {
				return
			}
			c.Printf("produced=%d consumed=%d full=%d empty=%d ignored=%d\n",
				stats.Produced, stats.Consumed, stats.Full, stats.Empty, s.Dispatcher.Ignored())
		}),
	}
)

func init() {
	sh.AddCmds(
		&ProduceCmd,
		&ConsumeCmd,
		&SendCmd,
		&ShowCmd,
		&StatsCmd,
	)
}
