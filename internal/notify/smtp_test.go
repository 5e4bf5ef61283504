package notify

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRelay speaks just enough SMTP for net/smtp's client.
type fakeRelay struct {
	ln   net.Listener
	mu   sync.Mutex
	cmds []string
	data []string
}

func startFakeRelay(t *testing.T) *fakeRelay {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := &fakeRelay{ln: ln}
	t.Cleanup(func() { _ = ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go r.serve(conn)
		}
	}()
	return r
}

func (r *fakeRelay) port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

func (r *fakeRelay) serve(conn net.Conn) {
	defer conn.Close()
	rd := bufio.NewReader(conn)
	write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }
	write("220 fake.relay ESMTP")
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		r.mu.Lock()
		r.cmds = append(r.cmds, verb)
		r.mu.Unlock()
		switch verb {
		case "EHLO", "HELO":
			write("250 fake.relay")
		case "MAIL", "RCPT", "RSET", "NOOP":
			write("250 ok")
		case "DATA":
			write("354 go ahead")
			var body strings.Builder
			for {
				l, err := rd.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			r.mu.Lock()
			r.data = append(r.data, body.String())
			r.mu.Unlock()
			write("250 queued")
		case "QUIT":
			write("221 bye")
			return
		default:
			write("502 not implemented")
		}
	}
}

func (r *fakeRelay) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.cmds...), append([]string(nil), r.data...)
}

func TestSMTPMailerAgainstRelay(t *testing.T) {
	relay := startFakeRelay(t)
	m, err := NewSMTPMailer(SMTPConfig{
		Host: "127.0.0.1",
		Port: relay.port(),
		From: "Projects <noreply@county.example>",
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, m.Probe(context.Background()))
	require.NoError(t, m.SendEmail(context.Background(), "resident@example.org", "Project Update: Dam", "<p>hello</p>"))

	cmds, data := relay.snapshot()
	assert.Contains(t, cmds, "MAIL")
	assert.Contains(t, cmds, "RCPT")
	require.Len(t, data, 1)
	assert.Contains(t, data[0], "Subject: Project Update: Dam")
}

func TestSMTPProbeFailsWhenRelayDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	m, err := NewSMTPMailer(SMTPConfig{Host: "127.0.0.1", Port: port, From: "noreply@county.example"}, nil)
	require.NoError(t, err)
	require.Error(t, m.Probe(context.Background()))
}
