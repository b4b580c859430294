package regapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alex65536/formgate/internal/util/backoff"
	"github.com/alex65536/formgate/internal/util/httputil"
)

type ClientOptions struct {
	Endpoint string          `toml:"endpoint"`
	Backoff  backoff.Options `toml:"backoff"`
}

type client struct {
	o      ClientOptions
	client *http.Client
}

func NewClient(o ClientOptions, httpClient *http.Client) (API, error) {
	if err := o.Backoff.Validate(); err != nil {
		return nil, fmt.Errorf("backoff: %w", err)
	}
	o.Backoff.FillDefaults()
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &client{o: o, client: httpClient}, nil
}

func (c *client) decodeError(rsp *http.Response) error {
	if 200 <= rsp.StatusCode && rsp.StatusCode <= 299 {
		return nil
	}
	var b bytes.Buffer
	_, err := io.Copy(&b, rsp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if rsp.Header.Get("Content-Type") == "application/json" {
		var apiErr *Error
		if err := json.Unmarshal(b.Bytes(), &apiErr); err != nil {
			return fmt.Errorf("unmarshal json: %w", err)
		}
		if apiErr == nil || apiErr.Code == ErrInvalidCode {
			return fmt.Errorf("bad error json")
		}
		return apiErr
	}
	return httputil.MakeError(rsp.StatusCode, b.String())
}

// transient tells whether a failed attempt is worth repeating.
func transient(err error) bool {
	if MatchesError(err, ErrRateLimited) {
		return true
	}
	if apiErr := (*Error)(nil); errors.As(err, &apiErr) {
		return false
	}
	if httpErr := (*httputil.Error)(nil); errors.As(err, &httpErr) {
		return httpErr.Code() >= 500
	}
	return true
}

func doClientRequest[Req any, Rsp any](ctx context.Context, c *client, path string, req *Req) (*Rsp, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	b, err := backoff.New(c.o.Backoff)
	if err != nil {
		return nil, fmt.Errorf("backoff: %w", err)
	}
	var rsp *Rsp
	err = b.Do(ctx, func() error {
		var err error
		rsp, err = doClientAttempt[Rsp](ctx, c, path, data)
		if err != nil && (!transient(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rsp, nil
}

func doClientAttempt[Rsp any](ctx context.Context, c *client, path string, data []byte) (*Rsp, error) {
	hReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.o.Endpoint+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	hReq.Header.Set("Content-Type", "application/json")
	hRsp, err := c.client.Do(hReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, hRsp.Body)
		_ = hRsp.Body.Close()
	}()
	if err := c.decodeError(hRsp); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	rspBytes, err := io.ReadAll(hRsp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var rsp *Rsp
	if err := json.Unmarshal(rspBytes, &rsp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rsp == nil {
		return nil, fmt.Errorf("empty response")
	}
	return rsp, nil
}

func (c *client) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	return doClientRequest[RegisterRequest, RegisterResponse](ctx, c, "/register", req)
}

func (c *client) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	return doClientRequest[LoginRequest, LoginResponse](ctx, c, "/login", req)
}

func (c *client) Rules(ctx context.Context, req *RulesRequest) (*RulesResponse, error) {
	return doClientRequest[RulesRequest, RulesResponse](ctx, c, "/rules", req)
}
