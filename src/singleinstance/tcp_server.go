package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"
	scanVerb     = "SCAN"
	statusFound  = "FOUND\n"
	statusError  = "ERROR\n"
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	ports    PortRange
	lis      net.Listener
	incoming chan *tcpConn
	done     chan struct{}
	once     sync.Once
	port     int
}

func newTcpServer(r PortRange) *tcpServer {
	return &tcpServer{ports: r, incoming: make(chan *tcpConn, 8), done: make(chan struct{})}
}

// Start binds only the first port of the range. If it is occupied another
// resident owns it and Start fails.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	addr := net.JoinHostPort(residentHost, strconv.Itoa(s.ports.Start))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: failed to bind %s: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = lis.Addr().(*net.TCPAddr).Port
	log.Printf("singleinstance: listening on %s", lis.Addr())
	go s.acceptLoop(ctx)
	return nil
}

func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		go s.handshake(ctx, c)
	}
}

// handshake reads the request line on its own goroutine so a silent client
// cannot hold up the others.
func (s *tcpServer) handshake(ctx context.Context, c net.Conn) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	br := bufio.NewReader(c)
	line, _ := br.ReadString('\n')
	bw := bufio.NewWriter(c)

	if line == pingRequest {
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return
	}
	req, err := parseScan(line)
	if err != nil {
		log.Printf("singleinstance: bad request from %s: %v", remote, err)
		_, _ = bw.WriteString(statusError + err.Error())
		_ = bw.Flush()
		_ = c.Close()
		return
	}

	// The scan waits on the user; only the client decides how long.
	_ = c.SetDeadline(time.Time{})
	log.Printf("singleinstance: scan request from %s timeout=%v", remote, req.Timeout)
	tc := newTcpConn(c, req, br, bw)
	select {
	case s.incoming <- tc:
	case <-ctx.Done():
		_ = tc.Close()
	case <-s.done:
		_ = tc.Close()
	}
}

func parseScan(line string) (Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != scanVerb {
		return Request{}, fmt.Errorf("unknown request %q", strings.TrimSpace(line))
	}
	var req Request
	if len(fields) > 1 {
		ms, err := strconv.Atoi(fields[1])
		if err != nil || ms < 0 {
			return Request{}, fmt.Errorf("invalid timeout %q", fields[1])
		}
		req.Timeout = time.Duration(ms) * time.Millisecond
	}
	return req, nil
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.once.Do(func() {
		close(s.done)
		if s.lis != nil {
			_ = s.lis.Close()
		}
	})
	return nil
}

type tcpConn struct {
	c    net.Conn
	r    Request
	w    *bufio.Writer
	gone chan struct{}
}

// newTcpConn starts watching for the client going away. The client sends
// nothing after its request line, so any read completing means EOF or error.
func newTcpConn(c net.Conn, req Request, br *bufio.Reader, bw *bufio.Writer) *tcpConn {
	tc := &tcpConn{c: c, r: req, w: bw, gone: make(chan struct{})}
	go func() {
		defer close(tc.gone)
		_, _ = io.Copy(io.Discard, br)
	}()
	return tc
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(payload string) error {
	if _, err := tc.w.WriteString(statusFound + payload); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(statusError + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Done() <-chan struct{} { return tc.gone }

func (tc *tcpConn) Close() error { return tc.c.Close() }

// Serve answers requests one at a time until ctx is cancelled or srv closes.
// Each handler runs under a context that ends when its client disconnects.
func Serve(ctx context.Context, srv Server, h Handler) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		serveOne(ctx, conn, h)
	}
}

func serveOne(ctx context.Context, conn Conn, h Handler) {
	defer conn.Close()

	hctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-conn.Done():
			cancel()
		case <-hctx.Done():
		}
	}()

	payload, err := h(hctx, conn.Request())
	select {
	case <-conn.Done():
		log.Printf("singleinstance: client left before the scan finished")
		return
	default:
	}
	if err != nil {
		_ = conn.RespondError(err.Error())
		return
	}
	_ = conn.RespondSuccess(payload)
}
