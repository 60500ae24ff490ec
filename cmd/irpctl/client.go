package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

type Client struct {
	baseURL string
	token   string
}

func NewClient(baseURL, token string) *Client {
	return &Client{baseURL: baseURL, token: token}
}

// apiClient builds a client using the flag, environment, or saved token,
// in that order.
func apiClient() *Client {
	return NewClient(apiURL, resolveToken())
}

func resolveToken() string {
	if token != "" {
		return token
	}
	if env := os.Getenv("IRP_TOKEN"); env != "" {
		return env
	}
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func tokenPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "irpctl", "token")
}

func saveToken(tok string) error {
	path := tokenPath()
	if path == "" {
		return fmt.Errorf("cannot determine home directory")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(tok+"\n"), 0o600)
}

func (c *Client) Get(path string, out interface{}) error {
	return c.do("GET", path, nil, out, nil)
}

func (c *Client) Post(path string, body interface{}, out interface{}) error {
	return c.do("POST", path, body, out, nil)
}

func (c *Client) Delete(path string, out interface{}) error {
	return c.do("DELETE", path, nil, out, nil)
}

func (c *Client) do(method, path string, body interface{}, out interface{}, headers map[string]string) error {
	var reqBody io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return parseResponse(resp, out)
}

func parseResponse(resp *http.Response, out interface{}) error {
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		var errResp struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		json.Unmarshal(b, &errResp)
		return fmt.Errorf("%s: %s", errResp.Code, errResp.Message)
	}
	if out != nil && len(b) > 0 {
		return json.Unmarshal(b, out)
	}
	return nil
}
