// Package backendrpc is the concrete JSON-RPC 2.0 client for the backend
// collaborator named throughout spec.md: the rollup execution node
// exposing a native (non-Ethereum-shaped) RPC.
package backendrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"

	"github.com/godwoken-web3/gw-gateway/internal/gwtypes"
)

// Client talks to the backend's JSON-RPC endpoint. Separate writer/reader
// URLs mirror spec.md §6's configuration contract (writes and state-
// changing calls go to the writer; reads may be load-balanced to a reader).
type Client struct {
	httpClient *http.Client
	writerURL  string
	readerURL  string
	log        log.Logger
	id         atomic.Int64
}

// New builds a Client with the given outbound deadline as the HTTP
// client's default timeout; callers still pass a context per call so a
// tighter request deadline (spec.md §5) overrides it.
func New(writerURL, readerURL string, timeout time.Duration, logger log.Logger) *Client {
	if logger == nil {
		logger = log.Root()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		writerURL:  writerURL,
		readerURL:  readerURL,
		log:        logger,
	}
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonrpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type jsonrpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *jsonrpcError   `json:"error,omitempty"`
}

// Error wraps a backend-reported JSON-RPC error so callers can map it to
// the gateway's own error taxonomy (spec.md §7: "Backend RPC errors:
// parsed from the backend's wrapped error envelope and re-emitted").
type Error struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func (e *Error) Error() string { return fmt.Sprintf("backend rpc error %d: %s", e.Code, e.Message) }

// call performs one JSON-RPC request against either the writer or reader
// endpoint. id is incremented atomically since one Client is shared across
// every concurrently-served JSON-RPC request (spec.md §5).
func (c *Client) call(ctx context.Context, url, method string, params []any, result any) error {
	id := c.id.Add(1)
	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal backend request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build backend request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Connection errors become internal errors so clients can retry
		// (spec.md §7).
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	var rpcResp jsonrpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	if rpcResp.Error != nil {
		return &Error{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message, Data: rpcResp.Error.Data}
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return fmt.Errorf("unmarshal backend result: %w", err)
	}
	return nil
}

func (c *Client) callRead(ctx context.Context, method string, params []any, result any) error {
	return c.call(ctx, c.readerURL, method, params, result)
}

func (c *Client) callWrite(ctx context.Context, method string, params []any, result any) error {
	return c.call(ctx, c.writerURL, method, params, result)
}

// ExecuteRawL2Transaction calls the backend's execute_raw_l2transaction,
// the read-only execution entry point behind eth_call/eth_estimateGas
// (spec.md §1, §4.8).
func (c *Client) ExecuteRawL2Transaction(ctx context.Context, nativeTxMolecule []byte, registry gwtypes.EthRegistryAddress, blockParam string) (returnData []byte, rawLogs [][]byte, err error) {
	var result struct {
		ReturnData hexutil.Bytes   `json:"return_data"`
		Logs       []hexutil.Bytes `json:"logs"`
	}
	params := []any{hexutil.Bytes(nativeTxMolecule), blockParam}
	if err := c.callRead(ctx, "gw_execute_raw_l2transaction", params, &result); err != nil {
		return nil, nil, err
	}
	logs := make([][]byte, len(result.Logs))
	for i, l := range result.Logs {
		logs[i] = l
	}
	return result.ReturnData, logs, nil
}

// SubmitL2Transaction calls the backend's submit_l2transaction, accepting a
// signed NativeTx into the mempool (spec.md §4.8: eth_sendRawTransaction).
func (c *Client) SubmitL2Transaction(ctx context.Context, nativeTxMolecule []byte) (common.Hash, error) {
	var result hexutil.Bytes
	if err := c.callWrite(ctx, "gw_submit_l2transaction", []any{hexutil.Bytes(nativeTxMolecule)}, &result); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(result), nil
}

// GetAccountIdByScriptHash calls the backend's get_account_id_by_script_hash
// (spec.md §4.2). ok is false when the account has not been created yet;
// that case is never an error.
func (c *Client) GetAccountIdByScriptHash(ctx context.Context, scriptHash common.Hash) (gwtypes.AccountId, bool, error) {
	var result *hexutil.Uint32
	if err := c.callRead(ctx, "gw_get_account_id_by_script_hash", []any{scriptHash}, &result); err != nil {
		return 0, false, err
	}
	if result == nil {
		return 0, false, nil
	}
	return uint32(*result), true, nil
}

// HasTransaction checks whether the backend's mempool or store knows about
// a given native transaction hash (spec.md §4.6: ACA reconciliation).
func (c *Client) HasTransaction(ctx context.Context, nativeHash common.Hash) (bool, error) {
	var result *struct{}
	if err := c.callRead(ctx, "gw_get_transaction", []any{nativeHash}, &result); err != nil {
		return false, err
	}
	return result != nil, nil
}

// GetBalance calls the backend's get_balance for a registry address and
// sUDT account (spec.md §4.8: eth_getBalance).
func (c *Client) GetBalance(ctx context.Context, registry gwtypes.EthRegistryAddress, sudtID gwtypes.AccountId) (*hexutil.Big, error) {
	var result *hexutil.Big
	params := []any{hexutil.Bytes(encodeRegistryAddress(registry)), hexutil.Uint32(sudtID)}
	if err := c.callRead(ctx, "gw_get_balance", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return (*hexutil.Big)(nil), nil
	}
	return result, nil
}

// GetStorageAt calls the backend's get_storage_at (spec.md §4.8:
// eth_getStorageAt).
func (c *Client) GetStorageAt(ctx context.Context, accountID gwtypes.AccountId, key common.Hash) (common.Hash, error) {
	var result hexutil.Bytes
	params := []any{hexutil.Uint32(accountID), key}
	if err := c.callRead(ctx, "gw_get_storage_at", params, &result); err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(result), nil
}

// GetData calls the backend's get_data, used for both the code-hash lookup
// and the code blob fetch of eth_getCode (spec.md §4.8).
func (c *Client) GetData(ctx context.Context, key common.Hash) ([]byte, error) {
	var result hexutil.Bytes
	if err := c.callRead(ctx, "gw_get_data", []any{key}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GetTipBlockHash calls the backend's get_tip_block_hash.
func (c *Client) GetTipBlockHash(ctx context.Context) (common.Hash, error) {
	var result common.Hash
	if err := c.callRead(ctx, "gw_get_tip_block_hash", nil, &result); err != nil {
		return common.Hash{}, err
	}
	return result, nil
}

// encodeRegistryAddress serialises the (registryId, len, bytes) tuple
// spec.md's glossary defines for EthRegistryAddress.
func encodeRegistryAddress(r gwtypes.EthRegistryAddress) []byte {
	out := make([]byte, 0, 4+4+20)
	out = append(out, uint32ToLE(r.RegistryId)...)
	out = append(out, uint32ToLE(uint32(len(r.Address)))...)
	out = append(out, r.Address[:]...)
	return out
}

func uint32ToLE(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
