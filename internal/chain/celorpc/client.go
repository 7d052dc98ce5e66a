// Package celorpc is a minimal read-only JSON-RPC client for a Celo-compatible
// endpoint. It covers exactly the calls the bot needs: block number, donation
// log queries, and two view-function calls.
package celorpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"

	"flamekeeper/bot/internal/chain"
)

const donationEventSignature = "DonationProcessed(address,uint256,address)"

type Client struct {
	rpcURL           string
	donationContract string
	registryContract string
	healthIDContract string
	httpClient       *http.Client
	pollInterval     time.Duration
	donationTopic    string
	nextID           atomic.Int64
}

func New(rpcURL, donationContract, registryContract, healthIDContract string) *Client {
	return &Client{
		rpcURL:           rpcURL,
		donationContract: donationContract,
		registryContract: registryContract,
		healthIDContract: healthIDContract,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
		pollInterval:     15 * time.Second,
		donationTopic:    eventTopic(donationEventSignature),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var parsed rpcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("%s: %w", method, parsed.Error)
	}
	if result != nil {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) LatestBlock(ctx context.Context) (uint64, error) {
	var hexNum string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &hexNum); err != nil {
		return 0, err
	}
	return parseHexUint(hexNum)
}

type logEntry struct {
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber string   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    string   `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

func (c *Client) DonationsBetween(ctx context.Context, from, to uint64) ([]chain.Donation, error) {
	filter := map[string]any{
		"address":   c.donationContract,
		"topics":    []any{c.donationTopic},
		"fromBlock": hexUint(from),
		"toBlock":   hexUint(to),
	}
	var logs []logEntry
	if err := c.call(ctx, "eth_getLogs", []any{filter}, &logs); err != nil {
		return nil, err
	}

	donations := make([]chain.Donation, 0, len(logs))
	for _, entry := range logs {
		if entry.Removed {
			continue
		}
		donation, err := decodeDonation(entry)
		if err != nil {
			return nil, err
		}
		donations = append(donations, donation)
	}
	return donations, nil
}

// SubscribeDonations polls for new donation logs until ctx is cancelled.
func (c *Client) SubscribeDonations(ctx context.Context, handler func(chain.Donation)) error {
	last, err := c.LatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("subscribe donations: %w", err)
	}

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			latest, err := c.LatestBlock(ctx)
			if err != nil || latest <= last {
				continue
			}
			donations, err := c.DonationsBetween(ctx, last+1, latest)
			if err != nil {
				continue
			}
			last = latest
			for _, d := range donations {
				handler(d)
			}
		}
	}()
	return nil
}

func (c *Client) IsVerified(ctx context.Context, addr string) (bool, error) {
	out, err := c.viewCall(ctx, c.registryContract, "isVerified(address)", addr)
	if err != nil {
		return false, err
	}
	return out.Sign() != 0, nil
}

func (c *Client) HealthIDBalance(ctx context.Context, addr string) (*big.Int, error) {
	return c.viewCall(ctx, c.healthIDContract, "balanceOf(address)", addr)
}

func (c *Client) viewCall(ctx context.Context, contract, signature, addr string) (*big.Int, error) {
	data := methodSelector(signature) + padAddress(addr)
	params := []any{
		map[string]any{"to": contract, "data": data},
		"latest",
	}
	var result string
	if err := c.call(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}
	value, ok := new(big.Int).SetString(strings.TrimPrefix(result, "0x"), 16)
	if !ok {
		return nil, fmt.Errorf("eth_call: malformed result %q", result)
	}
	return value, nil
}

func decodeDonation(entry logEntry) (chain.Donation, error) {
	if len(entry.Topics) != 3 {
		return chain.Donation{}, fmt.Errorf("donation log: expected 3 topics, got %d", len(entry.Topics))
	}
	amountHex := strings.TrimPrefix(entry.Data, "0x")
	amount, ok := new(big.Int).SetString(amountHex, 16)
	if !ok {
		return chain.Donation{}, fmt.Errorf("donation log: malformed amount %q", entry.Data)
	}
	block, err := parseHexUint(entry.BlockNumber)
	if err != nil {
		return chain.Donation{}, fmt.Errorf("donation log: %w", err)
	}
	logIndex, err := parseHexUint(entry.LogIndex)
	if err != nil {
		return chain.Donation{}, fmt.Errorf("donation log: %w", err)
	}
	return chain.Donation{
		Donor:       topicAddress(entry.Topics[1]),
		Beneficiary: topicAddress(entry.Topics[2]),
		AmountWei:   amount,
		TxHash:      entry.TxHash,
		LogIndex:    uint(logIndex),
		Block:       block,
	}, nil
}

// topicAddress extracts a checksummed address from a 32-byte indexed topic.
func topicAddress(topic string) string {
	body := strings.TrimPrefix(topic, "0x")
	if len(body) >= 40 {
		body = body[len(body)-40:]
	}
	return chain.ChecksumAddress("0x" + body)
}

func eventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak(signature))
}

func methodSelector(signature string) string {
	return "0x" + hex.EncodeToString(keccak(signature)[:4])
}

func keccak(s string) []byte {
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(s))
	return hash.Sum(nil)
}

func padAddress(addr string) string {
	body := strings.ToLower(strings.TrimPrefix(addr, "0x"))
	return strings.Repeat("0", 64-len(body)) + body
}

func hexUint(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func parseHexUint(s string) (uint64, error) {
	value, ok := new(big.Int).SetString(strings.TrimPrefix(s, "0x"), 16)
	if !ok || !value.IsUint64() {
		return 0, fmt.Errorf("malformed hex quantity %q", s)
	}
	return value.Uint64(), nil
}
