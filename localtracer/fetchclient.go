package localtracer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// fetchClient is a minimal JSON-RPC client used to lazily pull code and
// storage a probe execution touches but the in-memory state doesn't have
// yet. Adapted from the teacher's hand-rolled rpc.Client: same wire format,
// context-aware and narrowed to the three methods lazyStateDB needs.
type fetchClient struct {
	endpoint string
	http     *http.Client
}

func newFetchClient(endpoint string) *fetchClient {
	return &fetchClient{endpoint: endpoint, http: http.DefaultClient}
}

func (c *fetchClient) GetCode(ctx context.Context, addr common.Address, blockTag string) ([]byte, error) {
	var result string
	if err := c.call(ctx, "eth_getCode", []interface{}{addr.Hex(), blockTag}, &result); err != nil {
		return nil, err
	}
	return hexutil.Decode(result)
}

func (c *fetchClient) GetStorageAt(ctx context.Context, addr common.Address, slot common.Hash, blockTag string) (common.Hash, error) {
	var result string
	if err := c.call(ctx, "eth_getStorageAt", []interface{}{addr.Hex(), slot.Hex(), blockTag}, &result); err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(result), nil
}

func (c *fetchClient) GetBalance(ctx context.Context, addr common.Address, blockTag string) (*big.Int, error) {
	var result string
	if err := c.call(ctx, "eth_getBalance", []interface{}{addr.Hex(), blockTag}, &result); err != nil {
		return nil, err
	}
	balance, ok := new(big.Int).SetString(result[2:], 16)
	if !ok {
		return nil, fmt.Errorf("localtracer: invalid balance in response: %s", result)
	}
	return balance, nil
}

type rpcRequest struct {
	ID      int           `json:"id"`
	JSONRpc string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("localtracer: rpc error %d: %s", e.Code, e.Message)
}

func (c *fetchClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	payload, err := json.Marshal(rpcRequest{ID: 1, JSONRpc: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	return json.Unmarshal(rpcResp.Result, out)
}
