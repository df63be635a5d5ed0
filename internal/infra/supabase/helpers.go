package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers
// ============================================================

// send performs one request and returns the body of a 2xx response.
// apiKey selects the key used for both apikey and bearer headers.
func (c *Client) send(ctx context.Context, method, url, logPath string, payload any, apiKey string, prefer string) ([]byte, http.Header, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", method),
			zap.String("path", logPath),
			zap.Error(err),
		)
		return nil, nil, err
	}

	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	req.Header.Set("Content-Type", "application/json")
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", method),
			zap.String("path", logPath),
			zap.Error(err),
		)
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", method),
			zap.String("path", logPath),
			zap.Int("status", resp.StatusCode),
		)
		return body, resp.Header, statusErr(method, logPath, resp.StatusCode, body)
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", method),
		zap.String("path", logPath),
		zap.Int("status", resp.StatusCode),
	)
	return body, resp.Header, nil
}

// doRequest executes a PostgREST request without a body.
func (c *Client) doRequest(ctx context.Context, method, path string) ([]byte, error) {
	body, _, err := c.send(ctx, method, c.restURL(path), path, nil, c.serviceRoleKey, "return=representation")
	if err != nil {
		return nil, err
	}
	if len(body) == 0 || string(body) == "[]" {
		return nil, nil
	}
	return body, nil
}

// doCount executes a GET asking PostgREST for the exact total.
func (c *Client) doCount(ctx context.Context, path string) ([]byte, int, error) {
	body, hdr, err := c.send(ctx, http.MethodGet, c.restURL(path), path, nil, c.serviceRoleKey, "count=exact")
	if err != nil {
		return nil, 0, err
	}
	return body, parseContentRange(hdr.Get("Content-Range")), nil
}

func (c *Client) doPost(ctx context.Context, table string, data any) ([]byte, error) {
	body, _, err := c.send(ctx, http.MethodPost, c.restURL(table), table, data, c.serviceRoleKey, "return=representation")
	return body, err
}

// doUpsert inserts or merges on the table's primary key.
func (c *Client) doUpsert(ctx context.Context, table string, data any) ([]byte, error) {
	body, _, err := c.send(ctx, http.MethodPost, c.restURL(table), table, data, c.serviceRoleKey, "resolution=merge-duplicates,return=representation")
	return body, err
}

func (c *Client) doPatch(ctx context.Context, path string, data any) ([]byte, error) {
	body, _, err := c.send(ctx, http.MethodPatch, c.restURL(path), path, data, c.serviceRoleKey, "return=representation")
	return body, err
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, _, err := c.send(ctx, http.MethodDelete, c.restURL(path), path, nil, c.serviceRoleKey, "")
	return err
}

// doRPC calls a Postgres function exposed by PostgREST.
func (c *Client) doRPC(ctx context.Context, fn string, args any) ([]byte, error) {
	path := "rpc/" + fn
	body, _, err := c.send(ctx, http.MethodPost, c.restURL(path), path, args, c.serviceRoleKey, "")
	return body, err
}

// doFunction invokes an edge function.
func (c *Client) doFunction(ctx context.Context, name string, payload any) ([]byte, error) {
	url := fmt.Sprintf("%s/functions/v1/%s", c.baseURL, name)
	body, _, err := c.send(ctx, http.MethodPost, url, "functions/"+name, payload, c.serviceRoleKey, "")
	return body, err
}

// doAuth calls GoTrue with the anon key, as the browser would.
func (c *Client) doAuth(ctx context.Context, path string, payload any) ([]byte, error) {
	url := fmt.Sprintf("%s/auth/v1/%s", c.baseURL, path)
	body, _, err := c.send(ctx, http.MethodPost, url, "auth/"+path, payload, c.anonKey, "")
	return body, err
}

func (c *Client) restURL(path string) string {
	return fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeFirst decodes a PostgREST array and returns its first element,
// or nil when the array is empty.
func decodeFirst[T any](body []byte) (*T, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
