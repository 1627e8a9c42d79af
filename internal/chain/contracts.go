package chain

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/CakeLotto/purchase_layer/internal/app/domain/lottery"
)

// UnlimitedAllowance is the conventional "infinite" approval amount, the
// maximum unsigned 256-bit integer.
var UnlimitedAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// TokenContract binds the payment token's transfer-approval interface.
type TokenContract struct {
	client   *Client
	hash     string
	decimals int32
}

// NewTokenContract creates a binding for the payment token at the given
// script hash. decimals is the token's on-chain precision.
func NewTokenContract(client *Client, hash string, decimals int32) *TokenContract {
	return &TokenContract{client: client, hash: hash, decimals: decimals}
}

// ToUnits converts a token amount into integer base units.
func (t *TokenContract) ToUnits(amount decimal.Decimal) *big.Int {
	return amount.Shift(t.decimals).BigInt()
}

// FromUnits converts integer base units into a token amount.
func (t *TokenContract) FromUnits(units *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -t.decimals)
}

// BalanceOf returns the token balance of an account.
func (t *TokenContract) BalanceOf(ctx context.Context, account string) (decimal.Decimal, error) {
	result, err := t.client.InvokeFunction(ctx, t.hash, "balanceOf", []ContractParam{
		{Type: "Hash160", Value: account},
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("balanceOf: %w", err)
	}
	units, err := firstInteger(result, "balanceOf")
	if err != nil {
		return decimal.Zero, err
	}
	return t.FromUnits(units), nil
}

// Allowance returns the amount the spender may transfer on behalf of the
// owner, in token units.
func (t *TokenContract) Allowance(ctx context.Context, owner, spender string) (decimal.Decimal, error) {
	result, err := t.client.InvokeFunction(ctx, t.hash, "allowance", []ContractParam{
		{Type: "Hash160", Value: owner},
		{Type: "Hash160", Value: spender},
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("allowance: %w", err)
	}
	units, err := firstInteger(result, "allowance")
	if err != nil {
		return decimal.Zero, err
	}
	return t.FromUnits(units), nil
}

// Approve grants the spender an allowance of the given base-unit amount and
// waits for the transaction to execute.
func (t *TokenContract) Approve(ctx context.Context, owner, spender string, amount *big.Int) (*TxResult, error) {
	result, err := t.client.InvokeFunctionAndWait(ctx, t.hash, "approve", []ContractParam{
		{Type: "Hash160", Value: owner},
		{Type: "Hash160", Value: spender},
		{Type: "Integer", Value: amount.String()},
	}, true)
	if err != nil {
		return result, err
	}
	if returnedFalse(result) {
		return result, fmt.Errorf("approve rejected by token contract")
	}
	return result, nil
}

func firstInteger(result *InvokeResult, method string) (*big.Int, error) {
	if result.State != "HALT" {
		return nil, fmt.Errorf("%s faulted: %s", method, result.Exception)
	}
	if len(result.Stack) == 0 {
		return nil, fmt.Errorf("%s: empty result stack", method)
	}
	n, err := ParseInteger(result.Stack[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return n, nil
}

// LotteryContract binds the lottery contract's round and purchase interface.
type LotteryContract struct {
	client   *Client
	hash     string
	decimals int32
}

// NewLotteryContract creates a binding for the lottery contract. decimals is
// the payment token precision used for price fields in round views.
func NewLotteryContract(client *Client, hash string, decimals int32) *LotteryContract {
	return &LotteryContract{client: client, hash: hash, decimals: decimals}
}

// Round status codes as stored by the contract.
const (
	roundStatusPending   = 0
	roundStatusOpen      = 1
	roundStatusClosed    = 2
	roundStatusClaimable = 3
)

// ViewCurrentRound fetches the active round's pricing snapshot. The round is
// returned by the contract as a struct of
// [id, status, price, discountDivisor, maxTicketsPerBuy, endTime].
func (l *LotteryContract) ViewCurrentRound(ctx context.Context) (*lottery.RoundPricing, error) {
	raw, err := l.client.Call(ctx, "invokefunction", []interface{}{l.hash, "viewCurrentRound", []ContractParam{}})
	if err != nil {
		return nil, fmt.Errorf("viewCurrentRound: %w", err)
	}

	doc := gjson.ParseBytes(raw)
	if doc.Get("state").String() != "HALT" {
		return nil, fmt.Errorf("viewCurrentRound faulted: %s", doc.Get("exception").String())
	}

	fields := doc.Get("stack.0.value").Array()
	if len(fields) < 6 {
		return nil, fmt.Errorf("viewCurrentRound: expected 6 round fields, got %d", len(fields))
	}

	idBytes, err := hex.DecodeString(fields[0].Get("value").String())
	if err != nil {
		return nil, fmt.Errorf("viewCurrentRound: round id: %w", err)
	}

	price, ok := new(big.Int).SetString(fields[2].Get("value").String(), 10)
	if !ok {
		return nil, fmt.Errorf("viewCurrentRound: malformed price %q", fields[2].Get("value").String())
	}
	divisor, ok := new(big.Int).SetString(fields[3].Get("value").String(), 10)
	if !ok {
		return nil, fmt.Errorf("viewCurrentRound: malformed divisor %q", fields[3].Get("value").String())
	}

	round := &lottery.RoundPricing{
		RoundID:          string(idBytes),
		Status:           roundStatusFromCode(fields[1].Get("value").Int()),
		TicketPrice:      decimal.NewFromBigInt(price, -l.decimals),
		DiscountDivisor:  decimal.NewFromBigInt(divisor, 0),
		MaxTicketsPerBuy: int(fields[4].Get("value").Int()),
		EndsAt:           time.UnixMilli(fields[5].Get("value").Int()).UTC(),
		FetchedAt:        time.Now().UTC(),
	}
	if round.MaxTicketsPerBuy <= 0 {
		round.MaxTicketsPerBuy = lottery.DefaultMaxTicketsPerBuy
	}
	return round, nil
}

func roundStatusFromCode(code int64) lottery.RoundStatus {
	switch code {
	case roundStatusOpen:
		return lottery.RoundStatusOpen
	case roundStatusClosed:
		return lottery.RoundStatusClosed
	case roundStatusClaimable:
		return lottery.RoundStatusClaimable
	default:
		return lottery.RoundStatusPending
	}
}

// BuyTickets submits a ticket purchase for the buyer and waits for the
// transaction to execute.
func (l *LotteryContract) BuyTickets(ctx context.Context, buyer string, tickets []lottery.TicketNumber) (*TxResult, error) {
	numbers := make([]ContractParam, len(tickets))
	for i, n := range tickets {
		numbers[i] = ContractParam{Type: "Integer", Value: fmt.Sprintf("%d", n)}
	}
	result, err := l.client.InvokeFunctionAndWait(ctx, l.hash, "buyTickets", []ContractParam{
		{Type: "Hash160", Value: buyer},
		{Type: "Array", Value: numbers},
	}, true)
	if err != nil {
		return result, err
	}
	if returnedFalse(result) {
		return result, fmt.Errorf("buyTickets rejected by lottery contract")
	}
	return result, nil
}

// returnedFalse reports whether a halted execution left an explicit Boolean
// false on the result stack. Contracts signal a rejected call this way
// without faulting the VM.
func returnedFalse(result *TxResult) bool {
	if result == nil || result.AppLog == nil || len(result.AppLog.Executions) == 0 {
		return false
	}
	stack := result.AppLog.Executions[0].Stack
	if len(stack) == 0 {
		return false
	}
	ok, err := ParseBoolean(stack[0])
	return err == nil && !ok
}
