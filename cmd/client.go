// Package main provides CLI commands for the wakesentry host.
// This file holds the shared client plumbing used by the commands that talk
// to a running daemon.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wakesentry/host/internal/auth"
	"github.com/wakesentry/host/internal/config"
	"github.com/wakesentry/host/internal/server"
)

// Error kind constants for client command output.
const (
	errKindInvalidArgs = "invalid_args"
	errKindAuth        = "auth"
	errKindUnreachable = "unreachable"
	errKindTimeout     = "timeout"
	errKindHostError   = "host_error"
	errKindDecode      = "decode_error"
)

// Testability seams (function variables).
var (
	readControlToken = func(tokenPath string) (string, error) {
		if tokenPath == "" {
			var err error
			tokenPath, err = auth.DefaultControlTokenPath()
			if err != nil {
				return "", err
			}
		}
		data, err := os.ReadFile(tokenPath)
		if err != nil {
			return "", err
		}
		token := strings.TrimSpace(string(data))
		if token == "" {
			return "", fmt.Errorf("control token file is empty")
		}
		return token, nil
	}

	newHTTPClient = func() *http.Client {
		return &http.Client{Timeout: 5 * time.Second}
	}

	loadClientConfig = func(path string) (*config.Config, error) {
		return config.Load(path)
	}
)

// clientTarget resolves the daemon address and token path from flags and the
// config file. An explicit --addr wins over the file value.
func clientTarget(configPath, addrFlag string, stderr io.Writer) (addr, tokenPath string) {
	cfg, err := loadClientConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v (using defaults)\n", err)
		addr = config.DefaultAddr
	} else {
		addr = cfg.Addr
		tokenPath = cfg.TokenFile
	}
	if addrFlag != "" {
		addr = addrFlag
	}
	return addr, tokenPath
}

type mutationResult struct {
	OK         bool
	Target     string
	Response   server.MutationResponse
	Kind       string
	Message    string
	ErrorCode  string
	StatusCode int
}

// postMutation calls a daemon mutation endpoint. The daemon binds loopback
// plain HTTP, so there is no scheme fallback to worry about.
func postMutation(addr, path, token string, body interface{}) mutationResult {
	client := newHTTPClient()
	target := addr
	url := fmt.Sprintf("http://%s%s", addr, path)

	data, err := json.Marshal(body)
	if err != nil {
		return mutationResult{Kind: errKindInvalidArgs, Message: err.Error(), Target: target}
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return mutationResult{Kind: errKindInvalidArgs, Message: fmt.Sprintf("invalid target %q", addr), Target: target}
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		if isTimeoutError(err) {
			return mutationResult{Kind: errKindTimeout, Message: fmt.Sprintf("request to %s timed out", target), Target: target}
		}
		return mutationResult{Kind: errKindUnreachable, Message: fmt.Sprintf("host is not reachable: %s", target), Target: target}
	}
	defer resp.Body.Close()

	var mutation server.MutationResponse
	if err := json.NewDecoder(resp.Body).Decode(&mutation); err != nil {
		return mutationResult{
			Kind:       errKindDecode,
			Message:    fmt.Sprintf("failed to decode response from %s: %v", target, err),
			StatusCode: resp.StatusCode,
			Target:     target,
		}
	}

	if resp.StatusCode == http.StatusOK && mutation.OK {
		return mutationResult{OK: true, Target: target, Response: mutation}
	}

	result := mutationResult{
		Kind:       errKindHostError,
		Message:    mutation.Error,
		ErrorCode:  mutation.ErrorCode,
		StatusCode: resp.StatusCode,
		Target:     target,
		Response:   mutation,
	}
	if resp.StatusCode == http.StatusUnauthorized {
		result.Kind = errKindAuth
	}
	if result.Message == "" {
		result.Message = fmt.Sprintf("host returned HTTP %d", resp.StatusCode)
	}
	return result
}

type statusError struct {
	Kind    string
	Message string
	Target  string
}

func queryStatus(addr string) (*server.StatusResponse, statusError) {
	client := newHTTPClient()
	url := fmt.Sprintf("http://%s/status", addr)

	resp, err := client.Get(url)
	if err != nil {
		if isTimeoutError(err) {
			return nil, statusError{Kind: errKindTimeout, Message: fmt.Sprintf("request to %s timed out", addr), Target: addr}
		}
		return nil, statusError{Kind: errKindUnreachable, Message: fmt.Sprintf("host is not reachable: %s", addr), Target: addr}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError{
			Kind:    errKindHostError,
			Message: fmt.Sprintf("host returned HTTP %d", resp.StatusCode),
			Target:  addr,
		}
	}

	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, statusError{
			Kind:    errKindDecode,
			Message: fmt.Sprintf("failed to decode status response from %s: %v", addr, err),
			Target:  addr,
		}
	}
	return &status, statusError{}
}

// isTimeoutError checks if an error is a network timeout.
func isTimeoutError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// writeIndentedJSON writes a JSON object to the writer with indentation.
func writeIndentedJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
