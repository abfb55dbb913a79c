// Package logofetch は教室WebサイトからのロゴバックグラウンドFetch処理を提供する。
// スケジューラとフェッチャーを含む。取得したロゴは教室レコードに保存され、
// 検索結果と教室詳細の表示に使用される。
package logofetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/minami/naraigoto/internal/model"
)

// LogoStore はロゴの保存に必要なインターフェース。
// repository.ProviderRepositoryの部分集合として定義する。
type LogoStore interface {
	UpdateLogo(ctx context.Context, id string, data []byte, mime string, fetchedAt time.Time) error
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// Recorder はロゴ取得メトリクスの記録インターフェース。
type Recorder interface {
	RecordLogoFetchSuccess()
	RecordLogoFetchFailure(reason string)
	RecordLogoFetchLatency(duration time.Duration)
}

// Fetcher は個別教室のロゴ取得を行う。
// WebサイトのHTMLからlink rel=iconを探し、見つからない場合は/favicon.icoに
// フォールバックする。すべてのHTTPアクセスはSSRF検証付きクライアントで行う。
type Fetcher struct {
	store       LogoStore
	ssrfGuard   SSRFValidator
	recorder    Recorder
	logger      *slog.Logger
	timeout     time.Duration
	maxLogoSize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	store LogoStore,
	ssrfGuard SSRFValidator,
	recorder Recorder,
	logger *slog.Logger,
	timeout time.Duration,
	maxLogoSize int64,
) *Fetcher {
	return &Fetcher{
		store:       store,
		ssrfGuard:   ssrfGuard,
		recorder:    recorder,
		logger:      logger,
		timeout:     timeout,
		maxLogoSize: maxLogoSize,
	}
}

// Fetch は教室のWebサイトからロゴを取得し、レコードに保存する。
// 取得に失敗した場合もnilデータで保存して試行日時を記録し、
// 次回のサイクルで再試行の対象にならないようにする。
func (f *Fetcher) Fetch(ctx context.Context, rec *model.ProviderRecord) error {
	start := time.Now()

	data, mime, err := f.fetchLogo(ctx, rec.WebsiteURL)

	f.recorder.RecordLogoFetchLatency(time.Since(start))

	if err != nil {
		f.logger.Warn("ロゴ取得に失敗しました",
			slog.String("provider_id", rec.ID),
			slog.String("website_url", rec.WebsiteURL),
			slog.String("error", err.Error()),
		)
		f.recorder.RecordLogoFetchFailure(failureReason(err))

		// 失敗も記録して取得済み扱いにする
		if updateErr := f.store.UpdateLogo(ctx, rec.ID, nil, "", time.Now()); updateErr != nil {
			return fmt.Errorf("ロゴ状態の更新に失敗: %w", updateErr)
		}
		return nil
	}

	if err := f.store.UpdateLogo(ctx, rec.ID, data, mime, time.Now()); err != nil {
		return fmt.Errorf("ロゴの保存に失敗: %w", err)
	}

	f.recorder.RecordLogoFetchSuccess()
	f.logger.Info("ロゴ取得が完了しました",
		slog.String("provider_id", rec.ID),
		slog.String("mime", mime),
		slog.Int("size_bytes", len(data)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// failureReason はメトリクスラベル用にエラーを分類する。
func failureReason(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ssrf"), strings.Contains(msg, "プライベート"):
		return "ssrf_blocked"
	case strings.Contains(msg, "context deadline"), strings.Contains(msg, "Timeout"):
		return "timeout"
	case strings.Contains(msg, "サイズ"):
		return "too_large"
	default:
		return "fetch_error"
	}
}

// fetchLogo はWebサイトからロゴデータを取得する。
func (f *Fetcher) fetchLogo(ctx context.Context, websiteURL string) ([]byte, string, error) {
	if websiteURL == "" {
		return nil, "", fmt.Errorf("webサイトURLが未設定です")
	}

	if err := f.ssrfGuard.ValidateURL(websiteURL); err != nil {
		return nil, "", fmt.Errorf("ssrf検証に失敗: %w", err)
	}

	client := f.ssrfGuard.NewSafeClient(f.timeout)

	iconURL, err := f.discoverIconURL(ctx, client, websiteURL)
	if err != nil || iconURL == "" {
		// HTMLからの発見に失敗した場合は/favicon.icoにフォールバック
		iconURL, err = faviconURL(websiteURL)
		if err != nil {
			return nil, "", err
		}
	}

	if err := f.ssrfGuard.ValidateURL(iconURL); err != nil {
		return nil, "", fmt.Errorf("ssrf検証に失敗: %w", err)
	}

	return f.downloadIcon(ctx, client, iconURL)
}

// discoverIconURL はWebサイトのHTMLからlink rel=iconのURLを探す。
func (f *Fetcher) discoverIconURL(ctx context.Context, client *http.Client, websiteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, websiteURL, nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Naraigoto/1.0 LogoFetcher")
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("webサイトの取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webサイトがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxLogoSize))
	if err != nil {
		return "", fmt.Errorf("レスポンス読み取りに失敗: %w", err)
	}

	href := findIconHref(body)
	if href == "" {
		return "", nil
	}

	return resolveURL(websiteURL, href)
}

// findIconHref はHTMLのlink要素からアイコンのhrefを探す。
// rel属性に"icon"を含む最初のlinkを採用する。
func findIconHref(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "link" {
				continue
			}
			var rel, href string
			for _, attr := range token.Attr {
				switch attr.Key {
				case "rel":
					rel = strings.ToLower(attr.Val)
				case "href":
					href = attr.Val
				}
			}
			if strings.Contains(rel, "icon") && href != "" {
				return href
			}
		}
	}
}

// resolveURL は相対URLをベースURLに対して解決する。
func resolveURL(baseURL, href string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("ベースURLの解析に失敗: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("アイコンURLの解析に失敗: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// faviconURL はWebサイトのルート直下の/favicon.icoのURLを返す。
func faviconURL(websiteURL string) (string, error) {
	base, err := url.Parse(websiteURL)
	if err != nil {
		return "", fmt.Errorf("webサイトURLの解析に失敗: %w", err)
	}
	base.Path = "/favicon.ico"
	base.RawQuery = ""
	base.Fragment = ""
	return base.String(), nil
}

// downloadIcon はアイコンをダウンロードし、画像であることを確認する。
func (f *Fetcher) downloadIcon(ctx context.Context, client *http.Client, iconURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Naraigoto/1.0 LogoFetcher")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("アイコンの取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("アイコン取得がステータス %d を返しました", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxLogoSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("アイコン読み取りに失敗: %w", err)
	}
	if int64(len(data)) > f.maxLogoSize {
		return nil, "", fmt.Errorf("アイコンサイズが上限を超えています: %d bytes", len(data))
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("アイコンが空です")
	}

	mime := resp.Header.Get("Content-Type")
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", fmt.Errorf("画像ではないコンテンツタイプです: %s", mime)
	}

	return data, mime, nil
}
