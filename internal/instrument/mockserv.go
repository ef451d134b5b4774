// SPDX-License-Identifier: MIT

package instrument

import (
	"bufio"
	"net"
	"strings"
	"sync"
)

// MockServer is a configurable line-protocol instrument for tests. A
// handler maps each received command to a response; an empty response
// means the command is silently consumed (write-only commands).
type MockServer struct {
	listener net.Listener

	mu         sync.Mutex
	handler    func(cmd string) string
	received   []string
	banner     string
	terminator string
	closed     bool
	wg         sync.WaitGroup
}

// NewMockServer starts a mock instrument on a loopback port.
func NewMockServer(handler func(cmd string) string) *MockServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	m := &MockServer{listener: ln, handler: handler}
	m.wg.Add(1)
	go m.acceptLoop()
	return m
}

// Addr returns the host:port of the mock instrument.
func (m *MockServer) Addr() string {
	return m.listener.Addr().String()
}

// SetBanner makes the mock print a line on connect, like instruments that
// greet with a firmware banner.
func (m *MockServer) SetBanner(banner string) {
	m.mu.Lock()
	m.banner = banner
	m.mu.Unlock()
}

// SetTerminator overrides the "\r\n" the mock appends to responses, for
// instruments that end responses with something else.
func (m *MockServer) SetTerminator(term string) {
	m.mu.Lock()
	m.terminator = term
	m.mu.Unlock()
}

// Received returns every command seen so far.
func (m *MockServer) Received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.received...)
}

// Close stops the server.
func (m *MockServer) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	_ = m.listener.Close()
	m.wg.Wait()
}

func (m *MockServer) acceptLoop() {
	defer m.wg.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		m.wg.Add(1)
		go m.serve(conn)
	}
}

func (m *MockServer) serve(conn net.Conn) {
	defer m.wg.Done()
	defer conn.Close() //nolint:errcheck // test helper

	m.mu.Lock()
	banner := m.banner
	m.mu.Unlock()
	if banner != "" {
		_, _ = conn.Write([]byte(banner + "\r\n"))
	}

	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")

		m.mu.Lock()
		m.received = append(m.received, cmd)
		handler := m.handler
		m.mu.Unlock()

		m.mu.Lock()
		term := m.terminator
		m.mu.Unlock()
		if term == "" {
			term = "\r\n"
		}

		resp := ""
		if handler != nil {
			resp = handler(cmd)
		}
		if resp != "" {
			if _, err := conn.Write([]byte(resp + term)); err != nil {
				return
			}
		}
	}
}
