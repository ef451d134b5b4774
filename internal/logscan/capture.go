// SPDX-License-Identifier: MIT

package logscan

import (
	"bytes"
	"sync"
)

// Capture is an io.Writer that buffers log output and parses it on demand.
// Intended for tests: hook it into log.Configure and call Records afterwards.
type Capture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewCapture returns an empty capture buffer.
func NewCapture() *Capture {
	return &Capture{}
}

// Write implements io.Writer.
func (c *Capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Records parses everything captured so far.
func (c *Capture) Records() []Record {
	c.mu.Lock()
	data := append([]byte(nil), c.buf.Bytes()...)
	c.mu.Unlock()
	recs, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return recs
}
