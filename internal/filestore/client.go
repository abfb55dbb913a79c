// Package filestore は外部オブジェクトストレージコラボレーターへのクライアントを提供する。
// バケット内のオブジェクト操作（アップロード・削除・公開URL生成）のみを扱い、
// バケット自体の管理は行わない。
package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config はストレージクライアントの設定。
type Config struct {
	BaseURL    string
	ServiceKey string
	Bucket     string
	Timeout    time.Duration
}

// Client はストレージコラボレーターへのHTTPクライアント。
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Upload はオブジェクトをアップロードする。既存のオブジェクトは上書きする。
// POST {base}/object/{bucket}/{path}
func (c *Client) Upload(ctx context.Context, path, contentType string, body io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(path), body)
	if err != nil {
		return fmt.Errorf("アップロードリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.ServiceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ストレージへのアップロードに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ストレージがアップロードを拒否しました: status=%d", resp.StatusCode)
	}
	return nil
}

// Remove はオブジェクトを削除する。存在しない場合もエラーにしない。
// DELETE {base}/object/{bucket}/{path}
func (c *Client) Remove(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.objectURL(path), nil)
	if err != nil {
		return fmt.Errorf("削除リクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.ServiceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ストレージからの削除に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ストレージが削除を拒否しました: status=%d", resp.StatusCode)
	}
	return nil
}

// PublicURL はオブジェクトの公開URLを返す。
func (c *Client) PublicURL(path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.Bucket, escapePath(path))
}

func (c *Client) objectURL(path string) string {
	return fmt.Sprintf("%s/object/%s/%s",
		strings.TrimRight(c.config.BaseURL, "/"), c.config.Bucket, escapePath(path))
}

// escapePath はパス区切りを保持したままセグメントをエスケープする。
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
