package main

import (
	"os"

	"github.com/jbuehl/semonitor/internal/transport"
)

// recordingTransport mirrors every byte read from or written to the
// underlying transport into a side file, for offline replay or
// debugging (the --record-file flag).
type recordingTransport struct {
	transport.Transport
	rec *os.File
}

func wrapRecording(tr transport.Transport, path string, appendMode bool) (transport.Transport, error) {
	flag := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flag = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}
	return &recordingTransport{Transport: tr, rec: f}, nil
}

func (t *recordingTransport) Read(p []byte) (int, error) {
	n, err := t.Transport.Read(p)
	if n > 0 {
		_, _ = t.rec.Write(p[:n])
	}
	return n, err
}

func (t *recordingTransport) Write(p []byte) (int, error) {
	n, err := t.Transport.Write(p)
	if n > 0 {
		_, _ = t.rec.Write(p[:n])
	}
	return n, err
}

func (t *recordingTransport) Close() error {
	t.rec.Close()
	return t.Transport.Close()
}
