package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

// Client talks to the engine control socket using JSON-RPC 2.0.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs a JSON-RPC call and unmarshals the result into dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID

	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}

	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

func (c *Client) Status() (StatusInfo, error) {
	var result StatusInfo
	err := c.call("Status", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) RecentEvents(limit int, severities []string) ([]model.WireEvent, error) {
	var result []model.WireEvent
	err := c.call("RecentEvents", map[string]interface{}{
		"Limit":      limit,
		"Severities": severities,
	}, &result)
	return result, err
}

func (c *Client) Pause() error {
	return c.call("Pause", map[string]interface{}{}, nil)
}

func (c *Client) Resume() error {
	return c.call("Resume", map[string]interface{}{}, nil)
}

func (c *Client) FlushBuffer() error {
	return c.call("FlushBuffer", map[string]interface{}{}, nil)
}

func (c *Client) Plugins() ([]plugin.Status, error) {
	var result []plugin.Status
	err := c.call("Plugins", map[string]interface{}{}, &result)
	return result, err
}

func (c *Client) EnablePlugin(name string) error {
	return c.call("EnablePlugin", map[string]interface{}{"Name": name}, nil)
}

func (c *Client) DisablePlugin(name string) error {
	return c.call("DisablePlugin", map[string]interface{}{"Name": name}, nil)
}
