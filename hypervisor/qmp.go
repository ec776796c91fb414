package hypervisor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
)

const qmpIOTimeout = 5 * time.Second

// qmpClient is a minimal synchronous QMP client: JSON lines over the qemu
// control socket. Asynchronous event lines are skipped while waiting for a
// command response, matched by id.
type qmpClient struct {
	conn net.Conn
	r    *bufio.Reader
}

// dialQMP connects to the QMP socket, consumes the greeting, and negotiates
// capabilities so subsequent commands are accepted.
func dialQMP(ctx context.Context, socketPath string) (*qmpClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial QMP %s: %w", socketPath, err)
	}
	c := &qmpClient{conn: conn, r: bufio.NewReader(conn)}

	// Greeting: {"QMP": {...}}
	if _, err := c.readLine(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("QMP greeting: %w", err)
	}
	if err := c.execute("qmp_capabilities"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *qmpClient) close() error { return c.conn.Close() }

// execute runs a QMP command and waits for its response.
func (c *qmpClient) execute(command string) error {
	id := uuid.NewString()
	req, err := json.Marshal(map[string]any{"execute": command, "id": id})
	if err != nil {
		return err
	}
	req = append(req, '\n')

	_ = c.conn.SetDeadline(time.Now().Add(qmpIOTimeout))
	if _, err := c.conn.Write(req); err != nil {
		return fmt.Errorf("QMP %s: %w", command, err)
	}

	for {
		line, err := c.readLine()
		if err != nil {
			return fmt.Errorf("QMP %s: %w", command, err)
		}
		var resp struct {
			ID    string `json:"id"`
			Event string `json:"event"`
			Error *struct {
				Class string `json:"class"`
				Desc  string `json:"desc"`
			} `json:"error"`
		}
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("QMP %s: parse response: %w", command, err)
		}
		if resp.Event != "" || resp.ID != id {
			continue // interleaved event or stale response
		}
		if resp.Error != nil {
			return fmt.Errorf("QMP %s: %s", command, resp.Error.Desc)
		}
		return nil
	}
}

func (c *qmpClient) readLine() ([]byte, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(qmpIOTimeout))
	return c.r.ReadBytes('\n')
}
