// Package transport implements the bidirectional byte-stream sources and
// sinks a session controller needs: a file (optionally followed like
// `tail -f`), a serial port (RS232 or RS485), a network listener that
// takes the first connection on any of N ports, and stdin.
package transport

import (
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grid-x/serial"
)

// Transport is a bidirectional byte stream with the extra "following"
// behavior file transports need: a read past EOF
// blocks and retries rather than returning immediately.
type Transport interface {
	io.ReadWriteCloser
	// Following reports whether Read should block past EOF waiting for
	// more data, rather than returning it immediately (tail -f semantics).
	Following() bool
	// Reconnectable reports whether the caller should attempt Reconnect
	// after an EOF rather than terminating (only network listeners can).
	Reconnectable() bool
}

var followPollInterval = 100 * time.Millisecond

// fileTransport wraps an *os.File, optionally following appended data.
type fileTransport struct {
	f         *os.File
	following bool
}

// OpenFile opens path for reading. If follow is true, reads past EOF
// poll for more data instead of returning immediately, per
// se/files.py.openInFile combined with the -f flag's tail semantics.
func OpenFile(path string, follow bool) (Transport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileTransport{f: f, following: follow}, nil
}

// Stdin wraps os.Stdin as a non-seekable, non-following input transport.
func Stdin() Transport { return &fileTransport{f: os.Stdin} }

func (t *fileTransport) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	if err == io.EOF && t.following {
		for n == 0 && err == io.EOF {
			time.Sleep(followPollInterval)
			n, err = t.f.Read(p)
		}
	}
	return n, err
}

func (t *fileTransport) Write(p []byte) (int, error) { return t.f.Write(p) }
func (t *fileTransport) Close() error                { return t.f.Close() }
func (t *fileTransport) Following() bool             { return t.following }
func (t *fileTransport) Reconnectable() bool         { return false }

// SerialType distinguishes RS232 point-to-point wiring from RS485
// multidrop, which the session controller reads in passive
// byte-at-a-time mode (see C2's Reader) because there's no length
// prefix to trust on a shared bus.
type SerialType int

const (
	SerialRS232 SerialType = 2
	SerialRS485 SerialType = 4
)

type serialTransport struct {
	port       io.ReadWriteCloser
	serialType SerialType
}

// OpenSerial opens a serial device at the given baud rate, per
// se/files.py.openSerial.
func OpenSerial(device string, baud int, serialType SerialType) (Transport, error) {
	cfg := serial.Config{Address: device, BaudRate: baud}
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &serialTransport{port: port, serialType: serialType}, nil
}

func (t *serialTransport) Read(p []byte) (int, error)  { return t.port.Read(p) }
func (t *serialTransport) Write(p []byte) (int, error) { return t.port.Write(p) }
func (t *serialTransport) Close() error                { return t.port.Close() }
func (t *serialTransport) Following() bool              { return true }
func (t *serialTransport) Reconnectable() bool          { return false }

// IsRS485 reports whether this serial transport is wired for
// multidrop RS485, which callers use to pick passive frame-sync mode.
func (t *serialTransport) IsRS485() bool { return t.serialType == SerialRS485 }

// socketTimeout matches se/files.py's socketTimeout: long enough that a
// live but idle connection doesn't trip it, short enough to detect a
// genuinely lost peer.
const socketTimeout = 120 * time.Second

type netTransport struct {
	conn  net.Conn
	ports []int
}

// ListenFirst opens a listener on every port in ports and accepts
// whichever gets the first incoming connection, closing the rest, per
// se/files.py.openDataSocket.
func ListenFirst(ports []int) (Transport, error) {
	listeners := make([]net.Listener, 0, len(ports))
	for _, port := range ports {
		l, err := net.Listen("tcp", formatListenAddr(port))
		if err != nil {
			for _, other := range listeners {
				other.Close()
			}
			return nil, err
		}
		listeners = append(listeners, l)
	}

	type accepted struct {
		conn net.Conn
		err  error
	}
	results := make(chan accepted, len(listeners))
	for _, l := range listeners {
		l := l
		go func() {
			conn, err := l.Accept()
			results <- accepted{conn, err}
		}()
	}

	first := <-results
	for _, l := range listeners {
		l.Close()
	}
	if first.err != nil {
		return nil, first.err
	}
	first.conn.SetDeadline(time.Now().Add(socketTimeout))
	return &netTransport{conn: first.conn, ports: ports}, nil
}

func formatListenAddr(port int) string {
	return ":" + strconv.Itoa(port)
}

func (t *netTransport) Read(p []byte) (int, error) {
	n, err := t.conn.Read(p)
	if err == nil {
		t.conn.SetDeadline(time.Now().Add(socketTimeout))
	}
	return n, err
}
func (t *netTransport) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *netTransport) Close() error                { return t.conn.Close() }
func (t *netTransport) Following() bool             { return false }
func (t *netTransport) Reconnectable() bool         { return true }

// Reconnect closes the current connection and waits for a new one on the
// same port set.
func (t *netTransport) Reconnect() (Transport, error) {
	t.conn.Close()
	return ListenFirst(t.ports)
}
