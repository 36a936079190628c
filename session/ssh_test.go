package session

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

const testPrompt = "SW1#"

// Minimal IOS-like shell: echoes each line, answers from the handler and prints the prompt.
func startTestServer(t *testing.T, handler func(command string) string) Target {
	t.Helper()
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(privateKey)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(conn ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if conn.User() == "admin" && string(password) == "cisco" {
				return nil, nil
			}
			return nil, fmt.Errorf("password rejected for %q", conn.User())
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveTestConn(conn, config, handler)
		}
	}()

	host, rawPort, err := net.SplitHostPort(listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.ParseUint(rawPort, 10, 16)
	require.NoError(t, err)
	return Target{Address: host, Port: uint(port), Username: "admin", Password: "cisco"}
}

func serveTestConn(conn net.Conn, config *ssh.ServerConfig, handler func(command string) string) {
	serverConn, channels, requests, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	defer serverConn.Close()
	go ssh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			return
		}
		go func() {
			for request := range channelRequests {
				request.Reply(request.Type == "pty-req" || request.Type == "shell", nil)
			}
		}()
		go serveTestShell(channel, handler)
	}
}

func serveTestShell(channel ssh.Channel, handler func(command string) string) {
	defer channel.Close()
	io.WriteString(channel, "\r\nUser Access Verification\r\n\r\n"+testPrompt)
	reader := bufio.NewReader(channel)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		command := strings.TrimRight(line, "\r\n")
		if command == "exit" {
			return
		}
		output := ""
		if command != "" {
			output = handler(command)
		}
		io.WriteString(channel, command+"\r\n"+output+"\r\n"+testPrompt)
	}
}

func testDialer() SSHDialer {
	return SSHDialer{ConnectTimeout: 5 * time.Second, CommandTimeout: 5 * time.Second}
}

func TestSSHDialerRun(t *testing.T) {
	var mutex sync.Mutex
	var received []string
	target := startTestServer(t, func(command string) string {
		mutex.Lock()
		received = append(received, command)
		mutex.Unlock()
		if command == "show version" {
			return "SW1 uptime is 1 week\r\nProcessor board ID FOC1234X0AB"
		}
		return ""
	})

	session, err := testDialer().Dial(context.Background(), target)
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, "127.0.0.1", session.Address())

	output, err := session.Run(context.Background(), "show version")
	require.NoError(t, err)
	assert.Equal(t, "SW1 uptime is 1 week\nProcessor board ID FOC1234X0AB", output)

	output, err = session.Run(context.Background(), "show clock")
	require.NoError(t, err)
	assert.Empty(t, output)

	mutex.Lock()
	assert.Equal(t, []string{"terminal length 0", "terminal width 511", "show version", "show clock"}, received)
	mutex.Unlock()
	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}

func TestSSHDialerAuthenticationFailure(t *testing.T) {
	target := startTestServer(t, func(string) string { return "" })
	target.Password = "wrong"

	_, err := testDialer().Dial(context.Background(), target)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindAuthentication, kind)
}

func TestSSHDialerConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, rawPort, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(rawPort)
	listener.Close()

	_, err = testDialer().Dial(context.Background(), Target{Address: "127.0.0.1", Port: uint(port), Username: "admin", Password: "cisco"})
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTransport, kind)
}

func TestSSHDialerHandshakeTimeout(t *testing.T) {
	// Accepts but never speaks SSH
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	go func() {
		var conns []net.Conn
		defer func() {
			for _, conn := range conns {
				conn.Close()
			}
		}()
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conns = append(conns, conn)
		}
	}()
	_, rawPort, _ := net.SplitHostPort(listener.Addr().String())
	port, _ := strconv.Atoi(rawPort)

	dialer := SSHDialer{ConnectTimeout: 300 * time.Millisecond}
	_, err = dialer.Dial(context.Background(), Target{Address: "127.0.0.1", Port: uint(port), Username: "admin", Password: "cisco"})
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
}

func TestSSHDialerCommandTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	target := startTestServer(t, func(command string) string {
		if command == "show tech-support" {
			<-release
		}
		return ""
	})

	dialer := testDialer()
	dialer.CommandTimeout = 200 * time.Millisecond
	session, err := dialer.Dial(context.Background(), target)
	require.NoError(t, err)
	defer session.Close()

	_, err = session.Run(context.Background(), "show tech-support")
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
}

func TestSSHDialerContextCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	target := startTestServer(t, func(command string) string {
		<-release
		return ""
	})

	// Setup commands are answered only after release, so the connect phase stalls
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := testDialer().Dial(ctx, target)
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindTimeout, kind)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
