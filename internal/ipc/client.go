package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping probes daemon liveness.
func (c *Client) Ping() error {
	var resp PingResponse
	return c.client.Call("Reel.Ping", PingRequest{}, &resp)
}

// Start resolves a capture stream for target and returns its token.
func (c *Client) Start(target string) (*StartResponse, error) {
	var resp StartResponse
	req := StartRequest{Target: target}
	if err := c.client.Call("Reel.Start", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartWithToken redeems a token and begins buffering audio.
func (c *Client) StartWithToken(token StreamToken) (*StartWithTokenResponse, error) {
	var resp StartWithTokenResponse
	req := StartWithTokenRequest{Token: token}
	if err := c.client.Call("Reel.StartWithToken", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop finalizes the active capture and persists the recording.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Reel.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// State retrieves the reconciled capture session state.
func (c *Client) State() (*StateResponse, error) {
	var resp StateResponse
	if err := c.client.Call("Reel.State", StateRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Clear discards the session buffer and durable session row.
func (c *Client) Clear() (*ClearResponse, error) {
	var resp ClearResponse
	if err := c.client.Call("Reel.Clear", ClearRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Reel.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingsList returns all stored recordings, newest first.
func (c *Client) RecordingsList() (*RecordingsListResponse, error) {
	var resp RecordingsListResponse
	if err := c.client.Call("Reel.RecordingsList", RecordingsListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingsDescribe returns details for a single recording.
func (c *Client) RecordingsDescribe(id string) (*RecordingsDescribeResponse, error) {
	var resp RecordingsDescribeResponse
	req := RecordingsDescribeRequest{ID: id}
	if err := c.client.Call("Reel.RecordingsDescribe", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingsRemove deletes the given recordings.
func (c *Client) RecordingsRemove(ids []string) (*RecordingsRemoveResponse, error) {
	var resp RecordingsRemoveResponse
	req := RecordingsRemoveRequest{IDs: ids}
	if err := c.client.Call("Reel.RecordingsRemove", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RecordingsRename updates a recording's display name.
func (c *Client) RecordingsRename(id, name string) (*RecordingsRenameResponse, error) {
	var resp RecordingsRenameResponse
	req := RecordingsRenameRequest{ID: id, Name: name}
	if err := c.client.Call("Reel.RecordingsRename", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
