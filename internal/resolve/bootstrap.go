package resolve

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/minami/naraigoto/internal/authgw"
	"github.com/minami/naraigoto/internal/model"
)

// defaultResolveTimeout は1回の解決試行の上限時間。
const defaultResolveTimeout = 15 * time.Second

// ResolverService はプロフィール解決の実行インターフェース。
type ResolverService interface {
	Resolve(ctx context.Context, identity *model.Identity) (*model.User, error)
}

// entry はidentityごとの解決状態を保持する。
type entry struct {
	user    *model.User
	loading bool

	// gen は単調増加する解決世代。古い解決が新しい解決の結果を
	// 上書きすることを防ぐ（last-write-winsの競合を排除する）。
	gen uint64
}

// Bootstrapper はセッション変更通知を購読し、identityごとの解決済みUserを
// 維持するセッションブートストラッパー。
//
// 保証:
//   - 通知1件につき解決は1回起動され、セッション消滅の通知ではUserをクリアする
//   - 解決試行ごとにloading終了は必ず1回だけ起きる（エラー経路を含む）。
//     依存側が読み込み中のまま待ち続けることはない
//   - 解決中に新しい通知が来た場合、古い解決の結果は世代ゲートで破棄される
//   - セッション失効は強制ログアウト（エントリ削除+フック呼び出し）となる
type Bootstrapper struct {
	resolver ResolverService
	logger   *slog.Logger
	timeout  time.Duration

	// onForcedLogout はセッション失効時に呼ばれるフック。nil可。
	onForcedLogout func(identityID string)

	// recordOutcome は解決結果の計測フック。nil可。
	recordOutcome func(outcome string)

	mu      sync.Mutex
	entries map[string]*entry
}

// NewBootstrapper はBootstrapperを生成する。
func NewBootstrapper(resolver ResolverService, logger *slog.Logger, onForcedLogout func(identityID string)) *Bootstrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bootstrapper{
		resolver:       resolver,
		logger:         logger,
		timeout:        defaultResolveTimeout,
		onForcedLogout: onForcedLogout,
		entries:        make(map[string]*entry),
	}
}

// SetResolutionRecorder は解決結果（resolved / placeholder / forced_logout）の
// 計測フックを設定する。解決開始前に一度だけ呼ぶこと。
func (b *Bootstrapper) SetResolutionRecorder(record func(outcome string)) {
	b.recordOutcome = record
}

// SessionChanged はauthgw.Notifierを実装する。
// セッションが存在する通知ではプロフィール解決を起動し、
// 消滅の通知ではローカルのUserをクリアする。
func (b *Bootstrapper) SessionChanged(event authgw.SessionEvent) {
	switch event.Type {
	case authgw.EventSignedIn, authgw.EventTokenRefreshed:
		if event.Identity == nil {
			return
		}
		// 通知処理をブロックしない。結果は世代ゲートで調停される。
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()
			b.resolveLatest(ctx, event.Identity)
		}()
	case authgw.EventSignedOut:
		if event.Identity != nil {
			b.Clear(event.Identity.ID)
		}
	}
}

// UserFor は指定identityの解決済みUserを返す。
// キャッシュ済みであればそれを返し、未解決であれば同期的に解決する。
// 返り値のエラーはセッション失効の場合のみ非nil。
func (b *Bootstrapper) UserFor(ctx context.Context, identity *model.Identity) (*model.User, error) {
	b.mu.Lock()
	if e, ok := b.entries[identity.ID]; ok && e.user != nil && !e.loading {
		user := e.user
		b.mu.Unlock()
		return user, nil
	}
	b.mu.Unlock()

	return b.resolveLatest(ctx, identity)
}

// CurrentUser はキャッシュ済みのUserと読み込み中フラグを返す。
// エントリが存在しない場合はokがfalseとなる。
func (b *Bootstrapper) CurrentUser(identityID string) (user *model.User, loading bool, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, exists := b.entries[identityID]
	if !exists {
		return nil, false, false
	}
	return e.user, e.loading, true
}

// Clear は指定identityのローカル状態を破棄する。
// ログアウトおよびプロフィール更新後のキャッシュ無効化に使用する。
func (b *Bootstrapper) Clear(identityID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, identityID)
}

// resolveLatest は世代ゲート付きでプロフィール解決を1回実行する。
// 実行中により新しい解決が開始された場合、この試行の結果は破棄される。
func (b *Bootstrapper) resolveLatest(ctx context.Context, identity *model.Identity) (*model.User, error) {
	// 世代を採番して読み込み中に遷移する
	b.mu.Lock()
	e, ok := b.entries[identity.ID]
	if !ok {
		e = &entry{}
		b.entries[identity.ID] = e
	}
	e.gen++
	gen := e.gen
	e.loading = true
	b.mu.Unlock()

	user, err := b.resolver.Resolve(ctx, identity)

	b.mu.Lock()
	defer b.mu.Unlock()

	current, ok := b.entries[identity.ID]
	if !ok || current.gen != gen {
		// より新しい解決に追い越された。結果は破棄し、状態はその解決に委ねる。
		b.logger.Debug("stale profile resolution discarded",
			slog.String("identity_id", identity.ID),
			slog.Uint64("generation", gen),
		)
		return user, err
	}

	if err != nil {
		// セッション失効: 読み込み中のまま放置せず強制ログアウトする
		delete(b.entries, identity.ID)
		b.logger.Warn("session invalid during resolution, forcing logout",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
		if b.onForcedLogout != nil {
			go b.onForcedLogout(identity.ID)
		}
		b.record("forced_logout")
		return nil, err
	}

	current.user = user
	current.loading = false
	if user.Placeholder {
		b.record("placeholder")
	} else {
		b.record("resolved")
	}
	return user, nil
}

func (b *Bootstrapper) record(outcome string) {
	if b.recordOutcome != nil {
		b.recordOutcome(outcome)
	}
}
