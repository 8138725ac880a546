// Package posclient talks to a remote velvetpos server so that a terminal can
// run its cart locally and submit finished sales over HTTP.
package posclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guonaihong/gout"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/velvetpos/velvetpos/internal/checkout"
	"github.com/velvetpos/velvetpos/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const DefaultTimeout = 15 * time.Second

// ErrProductNotFound is returned by Product when the server has no active product with that id.
var ErrProductNotFound = errors.New("product not found")

// APIError is a non-2xx response that carries the server's error body.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Client is safe for concurrent use once logged in.
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		token:   token,
		timeout: DefaultTimeout,
		http:    &http.Client{},
	}
}

// Token returns the bearer token in use.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) call(ctx context.Context, method, path string, body interface{}) (int, []byte, error) {
	var (
		code int
		raw  []byte
	)
	flow := gout.New(c.http).SetMethod(method).SetURL(c.baseURL + path)
	if c.token != "" {
		flow = flow.SetHeader(gout.H{"Authorization": "Bearer " + c.token})
	}
	if body != nil {
		flow = flow.SetJSON(body)
	}
	err := flow.WithContext(ctx).
		SetTimeout(c.timeout).
		BindBody(&raw).
		Code(&code).
		Do()
	if err != nil {
		return 0, nil, errors.Wrapf(err, "%s %s", method, path)
	}
	return code, raw, nil
}

func decodeError(code int, raw []byte) *APIError {
	var body errorBody
	_ = json.Unmarshal(raw, &body)
	if body.Error == "" {
		body.Error = http.StatusText(code)
	}
	return &APIError{Status: code, Code: body.Code, Message: body.Error}
}

// Login exchanges credentials for a token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	code, raw, err := c.call(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return decodeError(code, raw)
	}
	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return errors.Wrap(err, "decode login response")
	}
	if resp.Data.Token == "" {
		return errors.New("login response has no token")
	}
	c.token = resp.Data.Token
	return nil
}

// Product looks up an item for scanning into a local session.
func (c *Client) Product(ctx context.Context, id string) (checkout.Product, error) {
	code, raw, err := c.call(ctx, http.MethodGet, "/inventory/"+url.PathEscape(id), nil)
	if err != nil {
		return checkout.Product{}, err
	}
	if code == http.StatusNotFound {
		return checkout.Product{}, ErrProductNotFound
	}
	if code != http.StatusOK {
		return checkout.Product{}, decodeError(code, raw)
	}
	var resp struct {
		Data domain.Product `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return checkout.Product{}, errors.Wrap(err, "decode product")
	}
	if !resp.Data.Active {
		return checkout.Product{}, ErrProductNotFound
	}
	return checkout.Product{
		ID:       resp.Data.ID,
		Name:     resp.Data.Name,
		Price:    resp.Data.Price,
		Stock:    resp.Data.Stock,
		Category: resp.Data.Category,
	}, nil
}

// Submit posts a finished sale. Business rejections come back as an unsuccessful
// Result; only transport and server faults are errors.
func (c *Client) Submit(ctx context.Context, req *checkout.Request) (*checkout.Result, error) {
	code, raw, err := c.call(ctx, http.MethodPost, "/transactions", req)
	if err != nil {
		return nil, err
	}
	switch {
	case code == http.StatusCreated || code == http.StatusOK:
		var resp struct {
			Data checkout.Result `json:"data"`
		}
		if err := json.Unmarshal(raw, &resp); err != nil {
			return nil, errors.Wrap(err, "decode transaction result")
		}
		return &resp.Data, nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, decodeError(code, raw)
	case code >= 400 && code < 500:
		apiErr := decodeError(code, raw)
		return &checkout.Result{Success: false, Error: apiErr.Message, Code: apiErr.Code}, nil
	default:
		return nil, decodeError(code, raw)
	}
}

// TaxRate returns the tax rate configured for the caller's store.
func (c *Client) TaxRate(ctx context.Context) (decimal.Decimal, error) {
	code, raw, err := c.call(ctx, http.MethodGet, "/store/config", nil)
	if err != nil {
		return decimal.Zero, err
	}
	if code != http.StatusOK {
		return decimal.Zero, decodeError(code, raw)
	}
	var resp struct {
		Data struct {
			TaxRate decimal.Decimal `json:"tax_rate"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return decimal.Zero, errors.Wrap(err, "decode store config")
	}
	return resp.Data.TaxRate, nil
}
