package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 15 * time.Second
	challengeTimeout = 5 * time.Second
	readLimit        = 512 * 1024
)

type reqFrame struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type wireFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

type wireError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Event is a server-pushed gateway event.
type Event struct {
	Name    string
	Payload json.RawMessage
}

// Client maintains an operator connection to a gateway over WebSocket. RPC
// calls are correlated by request id; server events are delivered on the
// Events channel.
type Client struct {
	url      string
	token    string
	name     string
	dataDir  string
	identity *DeviceIdentity
	logger   *slog.Logger

	seq       atomic.Uint64
	mu        sync.Mutex
	conn      *websocket.Conn
	pending   map[string]chan result
	events    chan Event
	challenge chan string
	done      chan struct{}
	closed    bool
}

type result struct {
	payload json.RawMessage
	err     error
}

// Config carries everything a gateway connection needs.
type Config struct {
	URL     string
	Token   string
	Name    string
	DataDir string
}

func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	identity, err := LoadOrCreateIdentity(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("load device identity: %w", err)
	}
	return &Client{
		url:       cfg.URL,
		token:     cfg.Token,
		name:      cfg.Name,
		dataDir:   cfg.DataDir,
		identity:  identity,
		logger:    logger,
		pending:   map[string]chan result{},
		events:    make(chan Event, 64),
		challenge: make(chan string, 1),
		done:      make(chan struct{}),
	}, nil
}

func (c *Client) nextID() string {
	return fmt.Sprintf("ctrl-%d", c.seq.Add(1))
}

// Events delivers server-pushed events. The channel closes when the
// connection drops.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Connect dials the gateway and runs the operator handshake: wait briefly
// for a connect.challenge nonce, sign it with the device key, send connect,
// and confirm the hello-ok response. The read loop starts as soon as the
// socket is up so the challenge and response frames arrive through the
// normal dispatch path.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	conn.SetReadLimit(readLimit)

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	go c.readLoop(conn)

	// Gateways that do not require device auth never send a challenge, so a
	// timeout here just means connect without a signature.
	var nonce string
	select {
	case nonce = <-c.challenge:
	case <-time.After(challengeTimeout):
	case <-ctx.Done():
		c.teardown()
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("connection closed during handshake")
	}

	params, err := c.connectParams(nonce)
	if err != nil {
		c.teardown()
		return err
	}

	hello, err := c.Call(ctx, "connect", params)
	if err != nil {
		c.teardown()
		return fmt.Errorf("handshake: %w", err)
	}

	var helloPayload struct {
		Protocol int `json:"protocol"`
		Server   struct {
			ConnID  string `json:"connId"`
			Version string `json:"version"`
		} `json:"server"`
		Auth struct {
			DeviceToken string `json:"deviceToken"`
		} `json:"auth"`
	}
	if len(hello) > 0 {
		if err := json.Unmarshal(hello, &helloPayload); err != nil {
			c.logger.Warn("unparseable hello-ok payload", "error", err)
		}
	}
	if helloPayload.Auth.DeviceToken != "" {
		if err := c.identity.StoreToken(c.dataDir, c.url, helloPayload.Auth.DeviceToken); err != nil {
			c.logger.Warn("failed to store device token", "error", err)
		}
	}

	c.logger.Info("gateway connected",
		"url", c.url,
		"conn_id", helloPayload.Server.ConnID,
		"protocol", helloPayload.Protocol,
		"server_version", helloPayload.Server.Version,
	)
	return nil
}

func (c *Client) connectParams(nonce string) (map[string]any, error) {
	params := map[string]any{
		"minProtocol": 3,
		"maxProtocol": 5,
		"client": map[string]any{
			"id":          clientID,
			"displayName": c.name,
			"version":     "1.0.0",
			"platform":    runtime.GOOS,
			"mode":        "ui",
		},
		"role":   "operator",
		"scopes": []string{"operator.read", "operator.write", "operator.admin", "operator.approvals"},
	}

	token := c.token
	if token == "" {
		if entry, ok := c.identity.GatewayTokens[c.url]; ok {
			token = entry.Token
		}
	}
	if token != "" {
		params["auth"] = map[string]any{"token": token}
	}

	if nonce != "" {
		device, err := c.identity.signChallenge(nonce, c.token, time.Now().UnixMilli())
		if err != nil {
			return nil, fmt.Errorf("sign challenge: %w", err)
		}
		params["device"] = device
	}

	return params, nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	// The read loop is the only sender on events, so it alone may close it.
	defer close(c.events)
	defer c.teardown()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("gateway read error", "error", err)
			}
			return
		}

		var frame wireFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("unparseable gateway frame", "error", err)
			continue
		}

		switch frame.Type {
		case "res":
			c.mu.Lock()
			ch, ok := c.pending[frame.ID]
			if ok {
				delete(c.pending, frame.ID)
			}
			c.mu.Unlock()
			if !ok {
				continue
			}
			if frame.OK {
				ch <- result{payload: frame.Payload}
			} else {
				ch <- result{err: rpcError(frame.Error)}
			}
		case "event":
			if frame.Event == "connect.challenge" {
				var payload struct {
					Nonce string `json:"nonce"`
				}
				if err := json.Unmarshal(frame.Payload, &payload); err == nil {
					select {
					case c.challenge <- payload.Nonce:
					default:
					}
				}
				continue
			}
			select {
			case c.events <- Event{Name: frame.Event, Payload: frame.Payload}:
			default:
				c.logger.Warn("dropping gateway event, buffer full", "event", frame.Event)
			}
		}
	}
}

func rpcError(e *wireError) error {
	if e == nil {
		return fmt.Errorf("RPC error")
	}
	if e.Code == "PAIRING_REQUIRED" || e.Code == "1008" {
		return fmt.Errorf("device pairing required")
	}
	if e.Message != "" {
		return fmt.Errorf("%s", e.Message)
	}
	return fmt.Errorf("RPC error")
}

func (c *Client) teardown() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	pending := c.pending
	c.pending = map[string]chan result{}
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- result{err: fmt.Errorf("connection closed")}
	}

	if !alreadyClosed {
		close(c.done)
	}
}

// Call sends an RPC request and waits for the correlated response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("not connected")
	}
	id := c.nextID()
	ch := make(chan result, 1)
	c.pending[id] = ch
	err := conn.WriteJSON(reqFrame{Type: "req", ID: id, Method: method, Params: params})
	if err != nil {
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	c.mu.Unlock()

	select {
	case res := <-ch:
		return res.payload, res.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("connection closed")
	}
}

// History fetches the raw chat history for a session as the gateway stores
// it, ready for normalization.
func (c *Client) History(ctx context.Context, sessionKey string) ([]map[string]any, error) {
	payload, err := c.Call(ctx, "chat.history", map[string]any{"sessionKey": sessionKey})
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	var resp struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(payload, &resp); err == nil && resp.Messages != nil {
		return resp.Messages, nil
	}
	var messages []map[string]any
	if err := json.Unmarshal(payload, &messages); err != nil {
		return nil, fmt.Errorf("decode history payload: %w", err)
	}
	return messages, nil
}

// DeviceID returns the stable identity hash used for pairing.
func (c *Client) DeviceID() string {
	return c.identity.DeviceID
}

func (c *Client) Close() {
	c.teardown()
}
