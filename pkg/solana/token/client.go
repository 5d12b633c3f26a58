package token

import (
	"bytes"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/gideon-vouchers/voucher-server/pkg/solana"
)

var (
	// ErrAccountNotFound indicates there is no account for the given address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTokenAccount indicates that a Solana account exists at the
	// given address, but it is either not initialized, or not configured correctly.
	ErrInvalidTokenAccount = errors.New("invalid token account")
	// ErrInvalidMint indicates the account exists but isn't a mint of the
	// configured program.
	ErrInvalidMint = errors.New("invalid mint")
)

// Client provides utilities for accessing token and mint accounts owned by a
// single token program.
type Client struct {
	sc      solana.Client
	program ed25519.PublicKey
}

// NewClient creates a new Client.
func NewClient(sc solana.Client, program ed25519.PublicKey) *Client {
	return &Client{
		sc:      sc,
		program: program,
	}
}

func (c *Client) Program() ed25519.PublicKey {
	return c.program
}

// GetAccount returns the token account info for the specified account.
//
// If the account is not initialized, or is owned by a different program,
// then ErrInvalidTokenAccount is returned.
func (c *Client) GetAccount(accountID ed25519.PublicKey, commitment solana.Commitment) (*Account, error) {
	accountInfo, err := c.sc.GetAccountInfo(accountID, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(accountInfo.Owner, c.program) {
		return nil, ErrInvalidTokenAccount
	}

	var account Account
	if !account.Unmarshal(accountInfo.Data) {
		return nil, ErrInvalidTokenAccount
	}
	if account.State == AccountStateUninitialized {
		return nil, ErrInvalidTokenAccount
	}

	return &account, nil
}

// GetMint returns the decoded base mint along with the raw account data, so
// callers can inspect extensions.
func (c *Client) GetMint(mint ed25519.PublicKey, commitment solana.Commitment) (*Mint, []byte, error) {
	accountInfo, err := c.sc.GetAccountInfo(mint, commitment)
	if err == solana.ErrNoAccountInfo {
		return nil, nil, ErrAccountNotFound
	} else if err != nil {
		return nil, nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(accountInfo.Owner, c.program) {
		return nil, nil, ErrInvalidMint
	}

	var m Mint
	if !m.Unmarshal(accountInfo.Data) || !m.IsInitialized {
		return nil, nil, ErrInvalidMint
	}

	return &m, accountInfo.Data, nil
}
