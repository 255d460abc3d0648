package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const probeTimeout = 300 * time.Millisecond

type tcpClient struct {
	ports PortRange
}

func newTcpClient(r PortRange) *tcpClient { return &tcpClient{ports: r} }

func (c *tcpClient) TryScan(ctx context.Context, timeout time.Duration) (bool, string, error) {
	addr, ok := c.detect()
	if !ok {
		return false, "", nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false, "", nil
	}
	defer conn.Close()

	// Unblock the read below when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := fmt.Fprintf(w, "%s %d\n", scanVerb, timeout.Milliseconds()); err != nil {
		return true, "", err
	}
	if err := w.Flush(); err != nil {
		return true, "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		if ctx.Err() != nil {
			return true, "", ctx.Err()
		}
		return true, "", fmt.Errorf("resident closed the connection: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case statusFound:
		return true, string(body), nil
	case statusError:
		return true, "", errors.New(string(body))
	}
	return true, "", fmt.Errorf("unexpected resident reply %q", status)
}

// detect returns the first port in range that answers PING.
func (c *tcpClient) detect() (string, bool) {
	for port := c.ports.Start; port <= c.ports.End; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if ping(addr, probeTimeout) {
			return addr, true
		}
	}
	return "", false
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(pingRequest); err != nil {
		return false
	}
	if err := w.Flush(); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
