package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Client is an HTTP client for the envvaultd API.
type Client struct {
	addr  string
	token string
	http  *http.Client
}

// newClient creates a Client from the current config.
func newClient() *Client {
	addr := cfg.Address
	if v := os.Getenv("ENVVAULT_ADDR"); v != "" {
		addr = v
	}
	return &Client{
		addr:  strings.TrimRight(addr, "/"),
		token: resolveToken(),
		http:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.addr+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("X-Vault-Token", c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot reach envvaultd at %s: %w", c.addr, err)
	}
	return resp, nil
}

func (c *Client) doJSON(method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(data)
	}
	return c.do(method, path, "application/json", r)
}

func (c *Client) get(path string) (map[string]any, error) {
	resp, err := c.do(http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

// getInto decodes the "data" member of a JSON response into dst.
func (c *Client) getInto(path string, dst any) error {
	resp, err := c.do(http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return responseError(resp)
	}
	envelope := struct {
		Data any `json:"data"`
	}{Data: dst}
	return json.NewDecoder(resp.Body).Decode(&envelope)
}

func (c *Client) getText(path string) (string, error) {
	resp, err := c.do(http.MethodGet, path, "", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", responseError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	return string(data), err
}

func (c *Client) post(path string, body any) (map[string]any, error) {
	resp, err := c.doJSON(http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (c *Client) postText(path, text string) (map[string]any, error) {
	resp, err := c.do(http.MethodPost, path, "text/plain", strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (c *Client) put(path string, body any) (map[string]any, error) {
	resp, err := c.doJSON(http.MethodPut, path, body)
	if err != nil {
		return nil, err
	}
	return parseResponse(resp)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return responseError(resp)
	}
	return nil
}

func parseResponse(resp *http.Response) (map[string]any, error) {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, responseError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, data)
	}
	return result, nil
}

func responseError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var result struct {
		Errors []string `json:"errors"`
	}
	if json.Unmarshal(data, &result) == nil && len(result.Errors) > 0 {
		return fmt.Errorf("%s", result.Errors[0])
	}
	return fmt.Errorf("HTTP %d", resp.StatusCode)
}
