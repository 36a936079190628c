// Package session provides interactive command sessions to network devices.
package session

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

var promptRegex = regexp.MustCompile(`(?:^|\n)([^\s#>]{1,63}[>#])[ \t]*$`)

// Sent after the prompt is found, to get unpaged and unwrapped output.
var sessionSetupCommands = []string{
	"terminal length 0",
	"terminal width 511",
}

// Key exchanges and ciphers still used by old IOS images, on top of the defaults.
var legacyKeyExchanges = []string{
	"curve25519-sha256",
	"curve25519-sha256@libssh.org",
	"ecdh-sha2-nistp256",
	"ecdh-sha2-nistp384",
	"ecdh-sha2-nistp521",
	"diffie-hellman-group14-sha256",
	"diffie-hellman-group14-sha1",
	"diffie-hellman-group1-sha1",
}
var legacyCiphers = []string{
	"aes128-gcm@openssh.com",
	"aes256-gcm@openssh.com",
	"chacha20-poly1305@openssh.com",
	"aes128-ctr",
	"aes192-ctr",
	"aes256-ctr",
	"aes128-cbc",
	"3des-cbc",
}

// Target - Where and as whom to log in.
type Target struct {
	Address  string
	Port     uint
	Username string
	Password string
}

func (target Target) hostPort() string {
	port := uint(22)
	if target.Port > 0 {
		port = target.Port
	}
	return net.JoinHostPort(target.Address, strconv.FormatUint(uint64(port), 10))
}

// Session - An open command session on one host.
type Session interface {
	// Run - Run a command and return its output, without the echoed command and the trailing prompt.
	Run(ctx context.Context, command string) (string, error)
	Close() error
	Address() string
}

// Dialer - Opens sessions.
type Dialer interface {
	Dial(ctx context.Context, target Target) (Session, error)
}

// SSHDialer - Opens interactive shell sessions over SSH.
type SSHDialer struct {
	// Bounds TCP connect, SSH handshake, authentication and prompt discovery.
	ConnectTimeout time.Duration
	// Bounds each command. Zero means no bound other than the context.
	CommandTimeout time.Duration
	// Also offer old key exchanges and CBC ciphers.
	LegacyAlgorithms bool
}

// Dial - Connect, log in and wait for the first prompt.
func (dialer SSHDialer) Dial(ctx context.Context, target Target) (Session, error) {
	address := target.Address
	var deadline time.Time
	if dialer.ConnectTimeout > 0 {
		deadline = time.Now().Add(dialer.ConnectTimeout)
	}

	netDialer := net.Dialer{Deadline: deadline}
	conn, err := netDialer.DialContext(ctx, "tcp", target.hostPort())
	if err != nil {
		return nil, classify(address, "connect", err)
	}

	// The handshake doesn't take a context, so bound it by the connection deadline
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, classify(address, "connect", err)
	}
	sshConn, channels, requests, err := ssh.NewClientConn(conn, target.hostPort(), dialer.clientConfig(target))
	if err != nil {
		conn.Close()
		return nil, classify(address, "handshake", err)
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, classify(address, "handshake", err)
	}
	client := ssh.NewClient(sshConn, channels, requests)
	log.WithFields(log.Fields{
		"device": address,
	}).Trace("SSH connection established")

	shell, err := openShell(ctx, client, address, deadline, dialer.CommandTimeout)
	if err != nil {
		client.Close()
		return nil, err
	}
	return shell, nil
}

func (dialer SSHDialer) clientConfig(target Target) *ssh.ClientConfig {
	password := target.Password
	config := &ssh.ClientConfig{
		User:            target.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialer.ConnectTimeout,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
	}
	if dialer.LegacyAlgorithms {
		config.KeyExchanges = legacyKeyExchanges
		config.Ciphers = legacyCiphers
	}
	return config
}

type outputReaderStatus int

const (
	outputReaderOK outputReaderStatus = iota
	outputReaderDone
	outputReaderError
)

type outputReaderResult struct {
	Data   string
	Status outputReaderStatus
	Err    error
}

type shellSession struct {
	address        string
	commandTimeout time.Duration
	client         *ssh.Client
	session        *ssh.Session
	stdin          io.WriteCloser
	output         <-chan outputReaderResult
	closed         chan struct{}
	closeOnce      sync.Once
	prompt         string
	pending        string
	readErr        error
}

func openShell(ctx context.Context, client *ssh.Client, address string, deadline time.Time, commandTimeout time.Duration) (*shellSession, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, classify(address, "open session", err)
	}
	stdinWriter, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, classify(address, "open session", err)
	}
	stdoutReader, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, classify(address, "open session", err)
	}
	session.Stderr = io.Discard
	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := session.RequestPty("vt100", 0, 511, modes); err != nil {
		session.Close()
		return nil, classify(address, "request pty", err)
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, classify(address, "start shell", err)
	}

	shell := &shellSession{
		address:        address,
		commandTimeout: commandTimeout,
		client:         client,
		session:        session,
		stdin:          stdinWriter,
		closed:         make(chan struct{}),
	}
	shell.output = followOutput(stdoutReader, shell.closed)

	if err := shell.discoverPrompt(ctx, deadline); err != nil {
		shell.closeSession()
		return nil, err
	}
	for _, command := range sessionSetupCommands {
		if _, err := shell.exec(ctx, command, deadline); err != nil {
			shell.closeSession()
			return nil, err
		}
	}
	return shell, nil
}

// Reads the stream in the background and returns a channel for its chunks.
// Stops when the stream ends or the session is closed.
func followOutput(reader io.Reader, closed <-chan struct{}) <-chan outputReaderResult {
	outChannel := make(chan outputReaderResult, 64)
	send := func(result outputReaderResult) bool {
		select {
		case outChannel <- result:
			return true
		case <-closed:
			return false
		}
	}

	go func() {
		buffer := make([]byte, 4096)
		for {
			numBytes, err := reader.Read(buffer)
			if numBytes > 0 && !send(outputReaderResult{Data: string(buffer[:numBytes])}) {
				return
			}
			if err == io.EOF {
				send(outputReaderResult{Status: outputReaderDone})
				return
			} else if err != nil {
				send(outputReaderResult{Status: outputReaderError, Err: err})
				return
			}
		}
	}()

	return outChannel
}

func (shell *shellSession) Address() string {
	return shell.address
}

func (shell *shellSession) discoverPrompt(ctx context.Context, deadline time.Time) error {
	if _, err := io.WriteString(shell.stdin, "\n"); err != nil {
		return classify(shell.address, "discover prompt", err)
	}
	text, err := shell.readUntil(ctx, deadline, "discover prompt", promptRegex.MatchString)
	if err != nil {
		return err
	}
	shell.prompt = promptRegex.FindStringSubmatch(text)[1]
	log.WithFields(log.Fields{
		"device": shell.address,
		"prompt": shell.prompt,
	}).Trace("Found device prompt")
	return nil
}

// Run - Run a command, bounded by the command timeout and the context.
func (shell *shellSession) Run(ctx context.Context, command string) (string, error) {
	var deadline time.Time
	if shell.commandTimeout > 0 {
		deadline = time.Now().Add(shell.commandTimeout)
	}
	return shell.exec(ctx, command, deadline)
}

func (shell *shellSession) exec(ctx context.Context, command string, deadline time.Time) (string, error) {
	op := "run " + strconv.Quote(command)
	log.WithFields(log.Fields{
		"device":  shell.address,
		"command": command,
	}).Trace("Running command")

	if _, err := io.WriteString(shell.stdin, command+"\n"); err != nil {
		return "", classify(shell.address, op, err)
	}
	// Anything before the echo is left over from earlier prompts
	text, err := shell.readUntil(ctx, deadline, op, func(text string) bool {
		echoIndex := strings.Index(text, command)
		if echoIndex < 0 {
			return false
		}
		return strings.HasSuffix(strings.TrimRight(text[echoIndex+len(command):], " \t"), shell.prompt)
	})
	if err != nil {
		return "", err
	}

	text = text[strings.Index(text, command)+len(command):]
	text = strings.TrimSuffix(strings.TrimRight(text, " \t"), shell.prompt)
	return strings.Trim(text, "\n"), nil
}

// Consume output until done accepts everything received so far.
func (shell *shellSession) readUntil(ctx context.Context, deadline time.Time, op string, done func(string) bool) (string, error) {
	if shell.readErr != nil {
		return "", shell.readErr
	}
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		timer := time.NewTimer(time.Until(deadline))
		defer timer.Stop()
		timeout = timer.C
	}

	for !done(shell.pending) {
		select {
		case result := <-shell.output:
			switch result.Status {
			case outputReaderOK:
				shell.pending += strings.ReplaceAll(result.Data, "\r", "")
			case outputReaderDone:
				shell.readErr = &Error{Kind: KindTransport, Address: shell.address, Op: op, Err: io.ErrUnexpectedEOF}
				return "", shell.readErr
			case outputReaderError:
				shell.readErr = classify(shell.address, op, result.Err)
				return "", shell.readErr
			}
		case <-timeout:
			return "", &Error{Kind: KindTimeout, Address: shell.address, Op: op, Err: os.ErrDeadlineExceeded}
		case <-ctx.Done():
			return "", classify(shell.address, op, ctx.Err())
		}
	}

	text := shell.pending
	shell.pending = ""
	return text, nil
}

// Close - Log out and close the connection. Safe to call more than once.
func (shell *shellSession) Close() error {
	var err error
	shell.closeOnce.Do(func() {
		// Best effort, the device may already be gone
		io.WriteString(shell.stdin, "exit\n")
		err = shell.closeSession()
	})
	return err
}

func (shell *shellSession) closeSession() error {
	select {
	case <-shell.closed:
	default:
		close(shell.closed)
	}
	shell.session.Close()
	err := shell.client.Close()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return classify(shell.address, "close", err)
	}
	log.WithFields(log.Fields{
		"device": shell.address,
	}).Trace("SSH connection closed")
	return nil
}
