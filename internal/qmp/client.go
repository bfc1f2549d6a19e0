// Package qmp drives a QEMU virtual machine over its QMP socket and exposes
// it as a device.Device: keyboard via send-key, pointer via input-send-event
// and screenshots via screendump.
package qmp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jeeftor/rowpilot/internal/constants"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
)

// Client is a QMP connection. Commands are serialized; one request is in
// flight at a time.
type Client struct {
	// Width and Height are the guest screen size used to scale pointer coordinates
	Width, Height int
	// KeyDelay is the pause between characters typed by TypeText
	KeyDelay time.Duration
	// ScreenshotDir is where QEMU writes screendump files; it must be
	// readable from this process. Empty means the system temp dir.
	ScreenshotDir string

	vmid       string
	socketPath string

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	log    *logging.ContextualLogger

	// last absolute pointer position sent, the start of the next glide
	pointer    macro.Point
	hasPointer bool
}

// New creates a client for a Proxmox VM id
func New(vmid string) *Client {
	return NewWithSocketPath(vmid, "")
}

// NewWithSocketPath creates a client with a custom socket path
func NewWithSocketPath(vmid, socketPath string) *Client {
	return &Client{
		Width:      constants.DefaultScreenWidth,
		Height:     constants.DefaultScreenHeight,
		KeyDelay:   constants.DefaultKeyDelay,
		vmid:       vmid,
		socketPath: SocketPath(vmid, socketPath),
		log:        logging.NewContextualLogger("qmp", "vmid", vmid),
	}
}

// SocketPath returns the socket the client dials
func (q *Client) SocketPath() string {
	return q.socketPath
}

// Connect dials the socket, reads the greeting and negotiates capabilities
func (q *Client) Connect(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, constants.GetTimeout("connect"))
	defer cancel()

	logging.ConnectTemplate.Log(q.socketPath)
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", q.socketPath)
	if err != nil {
		return fmt.Errorf("failed to connect to QMP socket: %w", err)
	}
	q.conn = conn
	q.reader = bufio.NewReader(conn)

	if err := q.setDeadline(ctx, "connect"); err != nil {
		q.closeLocked()
		return err
	}
	var greeting Response
	if err := q.readJSON(&greeting); err != nil {
		q.closeLocked()
		return fmt.Errorf("failed to read greeting: %w", err)
	}
	if greeting.QMP == nil {
		q.closeLocked()
		return fmt.Errorf("unexpected greeting from %s", q.socketPath)
	}

	if _, err := q.execLocked(ctx, Command{Execute: "qmp_capabilities"}); err != nil {
		q.closeLocked()
		return err
	}
	q.log.Info("Connected to QMP socket", "path", q.socketPath)
	return nil
}

// Close closes the connection
func (q *Client) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closeLocked()
}

func (q *Client) closeLocked() error {
	if q.conn == nil {
		return nil
	}
	q.log.Debug("Closing QMP connection")
	err := q.conn.Close()
	q.conn = nil
	q.reader = nil
	return err
}

// Execute sends a command and decodes its return value into out (which may be nil)
func (q *Client) Execute(ctx context.Context, execute string, args any, out any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	ret, err := q.execLocked(ctx, Command{Execute: execute, Arguments: args})
	if err != nil {
		return err
	}
	if out != nil && len(ret) > 0 {
		if err := json.Unmarshal(ret, out); err != nil {
			return fmt.Errorf("invalid %s response: %w", execute, err)
		}
	}
	return nil
}

// QueryStatus returns the VM run state
func (q *Client) QueryStatus(ctx context.Context) (*Status, error) {
	var st Status
	if err := q.Execute(ctx, "query-status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (q *Client) execLocked(ctx context.Context, cmd Command) (json.RawMessage, error) {
	if q.conn == nil {
		return nil, ErrNotConnected
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command: %w", err)
	}
	if err := q.setDeadline(ctx, cmd.Execute); err != nil {
		return nil, err
	}

	q.log.Debug("Sending command", "command", cmd.Execute, "json", string(data))
	if _, err := q.conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmd.Execute, err)
	}

	// Asynchronous events may arrive ahead of the reply
	for {
		var resp Response
		if err := q.readJSON(&resp); err != nil {
			return nil, fmt.Errorf("failed to read %s response: %w", cmd.Execute, err)
		}
		if resp.Event != "" {
			q.log.Debug("Event received", "event", resp.Event)
			continue
		}
		if resp.Error != nil {
			return nil, &CommandError{Command: cmd.Execute, Class: resp.Error.Class, Desc: resp.Error.Desc}
		}
		return resp.Return, nil
	}
}

// setDeadline bounds the next exchange by ctx or the operation's default timeout
func (q *Client) setDeadline(ctx context.Context, op string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(constants.GetTimeout(op))
	}
	return q.conn.SetDeadline(deadline)
}

func (q *Client) readJSON(v any) error {
	line, err := q.reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return err
	}
	q.log.Debug("Raw JSON received", "json", string(line))
	return json.Unmarshal(line, v)
}
