package solana

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/go-playground/validator/v10"
)

// ValidateAddress checks that s is a base58 encoded 32 byte public key.
func ValidateAddress(s string) error {
	if _, err := solana.PublicKeyFromBase58(s); err != nil {
		return fmt.Errorf("invalid solana address %q: %w", s, err)
	}
	return nil
}

// AddressValidator backs the `solana_address` binding tag. Surrounding
// whitespace is tolerated, callers trim after binding.
func AddressValidator(fl validator.FieldLevel) bool {
	return ValidateAddress(strings.TrimSpace(fl.Field().String())) == nil
}

// HolderChecker reads SPL token balances over RPC.
type HolderChecker struct {
	client *rpc.Client
}

func NewHolderChecker(endpoint string, httpClient *http.Client) *HolderChecker {
	rpcClient := jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{HTTPClient: httpClient})
	return &HolderChecker{client: rpc.NewWithCustomRPCClient(rpcClient)}
}

// Balance sums the raw amount of mint held across the wallet's token accounts.
func (h *HolderChecker) Balance(ctx context.Context, wallet, mint string) (uint64, error) {
	owner, err := solana.PublicKeyFromBase58(wallet)
	if err != nil {
		return 0, fmt.Errorf("invalid wallet: %w", err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint: %w", err)
	}

	out, err := h.client.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to get token accounts: %w", err)
	}

	var total uint64
	for _, raw := range out.Value {
		if raw == nil || raw.Account.Data == nil {
			continue
		}

		var tokAcc token.Account
		if err := bin.NewBinDecoder(raw.Account.Data.GetBinary()).Decode(&tokAcc); err != nil {
			return 0, fmt.Errorf("failed to decode token account %s: %w", raw.Pubkey, err)
		}
		if tokAcc.Mint.Equals(mintKey) {
			total += tokAcc.Amount
		}
	}

	return total, nil
}
