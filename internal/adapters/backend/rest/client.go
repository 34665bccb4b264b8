// Package rest implementa el puerto backend.Client sobre el
// helper HTTP de plataforma.
package rest

import (
	"context"
	"net/http"
	"strings"

	"vet-clinic-manager/internal/platform/httpclient"
	"vet-clinic-manager/internal/ports/backend"
)

const apiPrefix = "/api/v1"

type Client struct {
	http *httpclient.Client
}

var _ backend.Client = (*Client)(nil)

// New arma el cliente REST. tokens firma cada request; si tokens devuelve
// error (sin sesión), el request nunca sale a la red.
func New(baseURL string, tokens httpclient.TokenSource) (*Client, error) {
	hc, err := httpclient.New(httpclient.Config{
		BaseURL: baseURL,
		Tokens:  tokens,
	})
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

// NewWithHTTP permite inyectar el httpclient ya armado (tests).
func NewWithHTTP(hc *httpclient.Client) *Client {
	return &Client{http: hc}
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.http.DoJSON(ctx, http.MethodGet, withPrefix(path), nil, out)
}

func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.http.DoJSON(ctx, http.MethodPost, withPrefix(path), in, out)
}

func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.http.DoJSON(ctx, http.MethodPut, withPrefix(path), in, out)
}

func (c *Client) Delete(ctx context.Context, path string) error {
	return c.http.DoJSON(ctx, http.MethodDelete, withPrefix(path), nil, nil)
}

func withPrefix(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return apiPrefix + path
}
