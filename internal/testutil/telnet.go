package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/cory-johannsen/arena/internal/frontend/telnet"
)

// TelnetClient is a line-protocol test client that sees output with ANSI
// styling removed.
type TelnetClient struct {
	conn   net.Conn
	reader *bufio.Reader
	seen   strings.Builder
	t      *testing.T
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v", addr, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return &TelnetClient{
		conn:   conn,
		reader: bufio.NewReader(conn),
		t:      t,
	}
}

// ReadUntil reads until substr appears in the unread, de-styled output or
// the timeout passes. Output up to and including the match is consumed.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns the consumed output, or fails the test on timeout.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	for {
		plain := telnet.StripANSI(c.seen.String())
		if i := strings.Index(plain, substr); i >= 0 {
			c.seen.Reset()
			c.seen.WriteString(plain[i+len(substr):])
			return plain[:i+len(substr)]
		}
		b, err := c.reader.ReadByte()
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, plain, err)
		}
		if b == telnet.IAC {
			// Skip the three-byte option negotiation sent on connect.
			_, _ = c.reader.Discard(2)
			continue
		}
		c.seen.WriteByte(b)
	}
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	_ = c.conn.Close()
}
