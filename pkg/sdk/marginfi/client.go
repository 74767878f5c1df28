// Package marginfi is the HTTP client for the margin-protocol bridge. The bridge
// wraps the protocol and venue SDKs: reads return account state, writes return an
// unsigned transaction message that this package signs and lands through a
// Sender.
package marginfi

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/utpunwind/internal/domain"
	sdkhttp "github.com/betbot/utpunwind/pkg/sdk/http"
)

var clientLog = logrus.WithField("component", "marginfi")

// EnvironmentHeader selects the protocol deployment on the bridge.
const EnvironmentHeader = "X-Marginfi-Environment"

// Sender lands transaction messages built for its fee payer.
type Sender interface {
	FeePayer() string
	LatestBlockhash(ctx context.Context) (string, error)
	Submit(ctx context.Context, message []byte) (string, error)
}

// Client implements the margin-protocol side; Mango and Zo return the venue
// clients sharing its transport.
type Client struct {
	http   *sdkhttp.Client
	sender Sender
}

func NewClient(baseURL, environment string, sender Sender, opts ...sdkhttp.ClientOption) *Client {
	if environment != "" {
		opts = append([]sdkhttp.ClientOption{sdkhttp.WithHeader(EnvironmentHeader, environment)}, opts...)
	}
	return &Client{
		http:   sdkhttp.NewClient(baseURL, opts...),
		sender: sender,
	}
}

func (c *Client) Mango() *MangoClient { return &MangoClient{c: c} }
func (c *Client) Zo() *ZoClient       { return &ZoClient{c: c} }

type accountsResponse struct {
	Accounts []string `json:"accounts"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// OwnAccounts lists margin accounts whose authority is the wallet.
func (c *Client) OwnAccounts(ctx context.Context) ([]string, error) {
	var out accountsResponse
	path := fmt.Sprintf("/v1/authorities/%s/accounts", url.PathEscape(c.sender.FeePayer()))
	if err := c.get(ctx, path, &out); err != nil {
		return nil, errors.Wrap(err, "list margin accounts")
	}
	return out.Accounts, nil
}

func (c *Client) LoadAccount(ctx context.Context, account string) (*domain.MarginAccount, error) {
	var out domain.MarginAccount
	if err := c.get(ctx, accountPath(account, ""), &out); err != nil {
		return nil, errors.Wrapf(err, "load margin account %s", account)
	}
	if out.Address == "" {
		out.Address = account
	}
	return &out, nil
}

// Withdraw moves amount of margin collateral to the wallet.
func (c *Client) Withdraw(ctx context.Context, account string, amount decimal.Decimal) (string, error) {
	sig, err := c.execute(ctx, accountPath(account, "/withdraw"), map[string]any{"amount": amount})
	return sig, errors.Wrapf(err, "withdraw %s from %s", amount, account)
}

func accountPath(account, suffix string) string {
	return "/v1/accounts/" + url.PathEscape(account) + suffix
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.http.Do(ctx, http.MethodGet, path, nil, out)
}

// execute asks the bridge to build a transaction for our fee payer, then signs
// and submits it.
func (c *Client) execute(ctx context.Context, path string, body map[string]any) (string, error) {
	blockhash, err := c.sender.LatestBlockhash(ctx)
	if err != nil {
		return "", errors.Wrap(err, "recent blockhash")
	}
	if body == nil {
		body = map[string]any{}
	}
	body["feePayer"] = c.sender.FeePayer()
	body["recentBlockhash"] = blockhash

	var out messageResponse
	if err := c.http.Do(ctx, http.MethodPost, path, &sdkhttp.RequestOptions{Data: body}, &out); err != nil {
		return "", errors.Wrap(err, "build transaction")
	}
	msg, err := base64.StdEncoding.DecodeString(out.Message)
	if err != nil {
		return "", errors.Wrap(err, "decode transaction message")
	}
	if len(msg) == 0 {
		return "", errors.New("bridge returned an empty transaction message")
	}
	sig, err := c.sender.Submit(ctx, msg)
	if err != nil {
		return sig, err
	}
	clientLog.WithField("path", path).Debugf("landed %s", sig)
	return sig, nil
}
