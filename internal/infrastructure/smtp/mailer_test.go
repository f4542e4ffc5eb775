package smtp

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/leafbook/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer accepts one connection and speaks just enough SMTP for a plain delivery.
func fakeServer(t *testing.T) (host, port string, received chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	received = make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { conn.Write([]byte(s + "\r\n")) }

		write("220 localhost ESMTP")
		var data strings.Builder
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"):
				write("250-localhost")
				write("250 8BITMIME")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK")
			case cmd == "DATA":
				write("354 go ahead")
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					data.WriteString(l)
				}
				received <- data.String()
				write("250 queued")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("250 OK")
			}
		}
	}()

	host, port, err = net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port, received
}

func TestSendEmail_Delivers(t *testing.T) {
	host, port, received := fakeServer(t)
	m := NewMailer(&config.Config{SMTPHost: host, SMTPPort: port, MailFrom: "noreply@example.com", MailTimeout: 2 * time.Second})

	err := m.SendEmail(context.Background(), "ann@example.com", "Your Book verification code", "code 123456\nbye")
	require.NoError(t, err)

	msg := <-received
	assert.Contains(t, msg, "Subject: Your Book verification code\r\n")
	assert.Contains(t, msg, "To: ann@example.com\r\n")
	assert.Contains(t, msg, "code 123456\r\nbye")
}

func TestSendEmail_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()

	m := NewMailer(&config.Config{SMTPHost: host, SMTPPort: port, MailFrom: "noreply@example.com", MailTimeout: time.Second})
	assert.Error(t, m.SendEmail(context.Background(), "ann@example.com", "s", "b"))
}

func TestSendEmail_SilentServerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			time.Sleep(time.Second)
			conn.Close()
		}
	}()
	host, port, _ := net.SplitHostPort(ln.Addr().String())

	m := NewMailer(&config.Config{SMTPHost: host, SMTPPort: port, MailFrom: "noreply@example.com", MailTimeout: 100 * time.Millisecond})
	start := time.Now()
	assert.Error(t, m.SendEmail(context.Background(), "ann@example.com", "s", "b"))
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}
