// Package websocket accepts symbols over WebSocket connections and
// sends operation results back to the connected peers.
package websocket

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/ringtask/pkg/bbuf"
	fx "github.com/robotalks/ringtask/pkg/framework"
)

// DefaultPath is where the WebSocket endpoint is mounted.
const DefaultPath = "/symbols"

// Conn wraps websocket.Conn for message oriented reading and writing.
type Conn websocket.Conn

// ReadMessage receives one frame.
func (c *Conn) ReadMessage() (msg []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(c), &msg)
	return
}

// WriteMessage sends a text frame.
func (c *Conn) WriteMessage(msg string) error {
	return websocket.Message.Send((*websocket.Conn)(c), msg)
}

// Server feeds every received frame into Input.
type Server struct {
	Addr  string
	Path  string
	Input io.Writer

	lock  sync.Mutex
	conns map[*Conn]struct{}
}

// NewServer creates a Server.
func NewServer(addr string, input io.Writer) *Server {
	return &Server{Addr: addr, Path: DefaultPath, Input: input}
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "websocket"
}

// Handler returns the http.Handler serving the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return websocket.Handler(s.serve)
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.Path, s.Handler())
	srv := &http.Server{Addr: s.Addr, Handler: mux}
	glog.Infof("websocket listening on %s%s", s.Addr, s.Path)
	return fx.RunWithContextCancel(ctx, func() {
		srv.Close()
		s.closeAll()
	}, srv.ListenAndServe)
}

// HandleResult implements dispatch.ResultHandler, sending the outcome
// to every connected peer.
func (s *Server) HandleResult(res bbuf.Result) {
	msg := res.Outcome() + " " + res.Snapshot.String()
	for _, conn := range s.peers() {
		if err := conn.WriteMessage(msg); err != nil {
			glog.V(3).Infof("websocket send error: %v", err)
		}
	}
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.conns)
}

func (s *Server) serve(ws *websocket.Conn) {
	conn := (*Conn)(ws)
	s.add(conn)
	defer s.remove(conn)
	glog.V(2).Infof("websocket peer connected: %s", ws.Request().RemoteAddr)
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			if err != io.EOF {
				glog.V(2).Infof("websocket receive error: %v", err)
			}
			return
		}
		if _, err := s.Input.Write(msg); err != nil {
			glog.Errorf("symbols input error: %v", err)
			return
		}
	}
}

func (s *Server) add(conn *Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.conns == nil {
		s.conns = make(map[*Conn]struct{})
	}
	s.conns[conn] = struct{}{}
}

func (s *Server) remove(conn *Conn) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.conns, conn)
}

func (s *Server) peers() []*Conn {
	s.lock.Lock()
	defer s.lock.Unlock()
	conns := make([]*Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (s *Server) closeAll() {
	for _, conn := range s.peers() {
		(*websocket.Conn)(conn).Close()
	}
}
