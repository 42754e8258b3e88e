package lavakit

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// nodeSocket wraps one live *websocket.Conn for a Node: a buffered send
// path serialized through sendCh (so Send() from any goroutine is safe) and
// a recv channel the Node's read loop drains. Grounded on the teacher's
// Socket (sendChan + read/write pump goroutines), adapted to signal the
// Node when the connection ends by closing recv. The close code and reason
// are not passed on.
type nodeSocket struct {
	conn *websocket.Conn

	sendCh chan wsSendRequest
	recv   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

type wsSendRequest struct {
	data    []byte
	errCh   chan error
}

var wsDialer = &websocket.Dialer{
	Proxy:            http.ProxyFromEnvironment,
	HandshakeTimeout: 45 * time.Second,
}

// dialNodeSocket opens the WebSocket session for n, with the headers
// spec.md §4.1 requires.
func dialNodeSocket(n *Node, botID Snowflake) (*nodeSocket, error) {
	u, err := url.Parse(n.config.wsURL())
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", n.config.Password)
	headers.Set("User-Id", botID.String())
	headers.Set("Client-Name", n.config.ClientName)
	if n.config.Resume != nil && n.hasEverConnected {
		headers.Set("Resume-Key", n.config.Resume.Key)
	}
	for k, v := range n.config.DefaultRequestHeaders {
		headers.Set(k, v)
	}

	conn, _, err := wsDialer.Dial(u.String(), headers)
	if err != nil {
		return nil, err
	}

	s := &nodeSocket{
		conn:   conn,
		sendCh: make(chan wsSendRequest),
		recv:   make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	go s.writePump()
	go s.readPump()
	return s, nil
}

func (s *nodeSocket) writePump() {
	for req := range s.sendCh {
		req.errCh <- s.conn.WriteMessage(websocket.TextMessage, req.data)
	}
}

func (s *nodeSocket) readPump() {
	defer close(s.recv)
	var buf []byte
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		switch msgType {
		case websocket.TextMessage:
			s.recv <- data
		case websocket.BinaryMessage:
			// ReadMessage already joins a fragmented message's
			// continuation frames, so each binary message is forwarded
			// whole, one per recv value.
			buf = append(buf, data...)
			s.recv <- buf
			buf = nil
		case websocket.CloseMessage:
			return
		}
	}
}

// send enqueues data on the write pump and waits for the result.
func (s *nodeSocket) send(data []byte) error {
	errCh := make(chan error, 1)
	select {
	case s.sendCh <- wsSendRequest{data: data, errCh: errCh}:
	case <-s.done:
		return newErr(ErrNodeSendWithoutSocket, "socket closed")
	}
	return <-errCh
}

// close sends a graceful close frame, then hard-closes the connection.
func (s *nodeSocket) close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(2*time.Second))
		_ = s.conn.Close()
		close(s.sendCh)
	})
}
