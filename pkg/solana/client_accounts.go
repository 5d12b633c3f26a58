package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"strconv"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

// AccountInfo is a raw Solana account, not to be confused with a token
// account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// KeyedAccountInfo is an AccountInfo along with the address it was loaded from.
type KeyedAccountInfo struct {
	PublicKey ed25519.PublicKey
	AccountInfo
}

type TokenAmount struct {
	Amount   string `json:"amount"`
	Decimals uint64 `json:"decimals"`
}

// rawAccount is the base64 encoded account shape returned by the RPC.
type rawAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [value, encoding]
	Executable bool     `json:"executable"`
}

func (r *rawAccount) decode() (AccountInfo, error) {
	owner, err := base58.Decode(r.Owner)
	if err != nil {
		return AccountInfo{}, errors.Wrap(err, "invalid base58 encoded owner")
	}

	var data []byte
	if len(r.Data) > 0 {
		if data, err = base64.StdEncoding.DecodeString(r.Data[0]); err != nil {
			return AccountInfo{}, errors.Wrap(err, "invalid base64 encoded data")
		}
	}

	return AccountInfo{
		Data:       data,
		Owner:      owner,
		Lamports:   r.Lamports,
		Executable: r.Executable,
	}, nil
}

func (c *client) GetAccountInfo(account ed25519.PublicKey, commitment Commitment) (AccountInfo, error) {
	var resp struct {
		Value *rawAccount `json:"value"`
	}

	config := rpcConfig{Commitment: commitment.Commitment, Encoding: "base64"}
	if err := c.call(&resp, "getAccountInfo", base58.Encode(account), config); err != nil {
		return AccountInfo{}, errors.Wrap(err, "getAccountInfo() failed to send request")
	}

	if resp.Value == nil {
		return AccountInfo{}, ErrNoAccountInfo
	}
	return resp.Value.decode()
}

// GetBalance returns the lamport balance of account. ErrNoBalance is returned
// when the node rejects the address.
func (c *client) GetBalance(account ed25519.PublicKey) (uint64, error) {
	var resp struct {
		Value *uint64 `json:"value"`
	}

	config := rpcConfig{Commitment: confirmationStatusConfirmed}
	if err := c.call(&resp, "getBalance", base58.Encode(account), config); err != nil {
		if isInvalidParam(err) {
			return 0, ErrNoBalance
		}
		return 0, errors.Wrap(err, "getBalance() failed to send request")
	}

	if resp.Value == nil {
		return 0, errors.New("invalid value in response")
	}
	return *resp.Value, nil
}

// GetTokenAccountBalance returns the raw token amount held by account along
// with the slot it was observed at.
func (c *client) GetTokenAccountBalance(account ed25519.PublicKey) (uint64, uint64, error) {
	var resp struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value TokenAmount `json:"value"`
	}

	config := rpcConfig{Commitment: confirmationStatusConfirmed}
	if err := c.call(&resp, "getTokenAccountBalance", base58.Encode(account), config); err != nil {
		if isInvalidParam(err) {
			return 0, 0, ErrNoBalance
		}
		return 0, 0, errors.Wrap(err, "getTokenAccountBalance() failed to send request")
	}

	amount, err := strconv.ParseUint(resp.Value.Amount, 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid token amount %q in response", resp.Value.Amount)
	}
	return amount, resp.Context.Slot, nil
}

// GetTokenAccountsByOwner returns every token account owned by owner under
// the given token program, with raw account data.
func (c *client) GetTokenAccountsByOwner(owner, program ed25519.PublicKey) ([]KeyedAccountInfo, error) {
	filter := map[string]string{"programId": base58.Encode(program)}
	config := rpcConfig{Commitment: confirmationStatusConfirmed, Encoding: "base64"}

	var resp struct {
		Value []struct {
			PubKey  string     `json:"pubkey"`
			Account rawAccount `json:"account"`
		} `json:"value"`
	}
	if err := c.call(&resp, "getTokenAccountsByOwner", base58.Encode(owner), filter, config); err != nil {
		return nil, errors.Wrap(err, "getTokenAccountsByOwner() failed to send request")
	}

	accounts := make([]KeyedAccountInfo, 0, len(resp.Value))
	for _, v := range resp.Value {
		key, err := ParsePublicKey(v.PubKey)
		if err != nil {
			return nil, errors.Wrap(err, "invalid token account address")
		}

		info, err := v.Account.decode()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid token account %s", v.PubKey)
		}

		accounts = append(accounts, KeyedAccountInfo{PublicKey: key, AccountInfo: info})
	}
	return accounts, nil
}
