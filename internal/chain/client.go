// Package chain provides the local-chain height source for the relay layer.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Client reads the local block height over JSON-RPC.
type Client struct {
	rpcURL     string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	RPCURL  string
	Timeout time.Duration
}

// NewClient creates a height client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		rpcURL: cfg.RPCURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var parsed rpcResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("rpc %s: decode response: %w", method, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("rpc %s: %s (code %d)", method, parsed.Error.Message, parsed.Error.Code)
	}
	return json.Unmarshal(parsed.Result, result)
}

// BlockCount returns the number of blocks on the chain.
func (c *Client) BlockCount(ctx context.Context) (uint64, error) {
	var count uint64
	if err := c.call(ctx, "getblockcount", []interface{}{}, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// Height returns the current block height (block count minus one).
func (c *Client) Height(ctx context.Context) (uint64, error) {
	count, err := c.BlockCount(ctx)
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	return count - 1, nil
}

// StaticSource is a height source with a manually managed value. It serves
// tests and deployments without an RPC endpoint.
type StaticSource struct {
	mu     sync.RWMutex
	height uint64
}

// NewStaticSource creates a static source at the given height.
func NewStaticSource(height uint64) *StaticSource {
	return &StaticSource{height: height}
}

// Height implements the relay height source.
func (s *StaticSource) Height(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

// Set updates the height.
func (s *StaticSource) Set(height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.height = height
}
