// Package ollama 是本地 Ollama 服务的 HTTP 客户端，只覆盖 worker 需要的接口
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/ThinkChat/internal/utils"
)

// DefaultHost Ollama 默认地址
const DefaultHost = "http://127.0.0.1:11434"

// 全局共享的HTTP客户端，流式响应不设置整体超时
var (
	sharedHTTPClient *http.Client
	httpClientOnce   sync.Once
)

func getSharedHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		sharedHTTPClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	})
	return sharedHTTPClient
}

// Client Ollama 客户端
type Client struct {
	baseURL string
	doer    utils.Doer
}

// Option 客户端选项
type Option func(*Client)

// WithDoer 替换 HTTP 执行器
func WithDoer(d utils.Doer) Option {
	return func(c *Client) { c.doer = d }
}

// New 创建指向 baseURL 的客户端，baseURL 为空时使用 DefaultHost
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultHost
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    getSharedHTTPClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Version 返回服务版本，用于能力检查
func (c *Client) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/api/version", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var v versionResponse
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decoding version: %w", err)
	}
	return v.Version, nil
}

// HasModel 本地是否已有该模型，名称不带 tag 时匹配任意 tag
func (c *Client) HasModel(ctx context.Context, name string) (bool, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/tags", nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, fmt.Errorf("decoding tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == name || strings.HasPrefix(m.Name, name+":") {
			return true, nil
		}
	}
	return false, nil
}

// Pull 下载模型，逐行回调进度直到流结束
func (c *Client) Pull(ctx context.Context, model string, onProgress func(PullProgress)) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/pull", pullRequest{Model: model, Stream: true})
	if err != nil {
		return fmt.Errorf("pulling %s: %w", model, err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var p PullProgress
		if err := dec.Decode(&p); errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("reading pull progress: %w", err)
		}
		if p.Error != "" {
			return &APIError{Message: p.Error}
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
}

// Load 发送空消息列表让服务把模型装入内存
func (c *Client) Load(ctx context.Context, model string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/chat", ChatRequest{Model: model, Messages: []Message{}})
	if err != nil {
		return fmt.Errorf("loading %s: %w", model, err)
	}
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}

// ChatStream 流式对话，每个响应行回调一次；回调返回错误时停止读取
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, onChunk func(ChatChunk) error) error {
	req.Stream = true
	resp, err := c.do(ctx, http.MethodPost, "/api/chat", req)
	if err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	for {
		var chunk ChatChunk
		if err := dec.Decode(&chunk); errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("reading chat stream: %w", err)
		}
		if chunk.Error != "" {
			return &APIError{Message: chunk.Error}
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
		if chunk.Done {
			return nil
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(data))
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			msg = er.Error
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return resp, nil
}
