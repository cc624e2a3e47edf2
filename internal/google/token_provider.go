package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// TokenProvider looks up the stored OAuth token of a named account. Calendar
// clients are created lazily per account through it.
type TokenProvider interface {
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)
	HasTokenForAccount(account string) bool
}

// FileTokenProvider reads the token files written by SaveTokenForAccount.
type FileTokenProvider struct{}

func NewFileTokenProvider() *FileTokenProvider { return &FileTokenProvider{} }

func (*FileTokenProvider) GetTokenForAccount(_ context.Context, account string) (*oauth2.Token, error) {
	if err := validateAccountName(account); err != nil {
		return nil, err
	}
	tok, err := readToken(getTokenFilePath(account))
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", account, err)
	}
	return tok, nil
}

func (*FileTokenProvider) HasTokenForAccount(account string) bool {
	return HasTokenForAccount(account)
}

// StaticTokenProvider serves tokens held in memory. A nil or empty map has
// no tokens.
type StaticTokenProvider map[string]*oauth2.Token

func (p StaticTokenProvider) GetTokenForAccount(_ context.Context, account string) (*oauth2.Token, error) {
	tok, ok := p[account]
	if !ok || tok == nil {
		return nil, fmt.Errorf("account %s: %w", account, ErrNoToken)
	}
	return tok, nil
}

func (p StaticTokenProvider) HasTokenForAccount(account string) bool {
	return p[account] != nil
}
