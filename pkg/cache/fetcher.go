package cache

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMemoryTTL       = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Fetcher は、キャッシュの背後で実際の取得を行う機能です。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// CachingFetcher は、メモリ → ディスク → 実取得の順にレスポンスを探す Fetcher です。
// 同じURLへの同時リクエストは1回の取得にまとめられます。
// ディスクキャッシュの読み書きエラーはログに記録するだけで、取得は継続します。
type CachingFetcher struct {
	next   Fetcher
	memory *gocache.Cache
	disk   *DiskStore
	group  singleflight.Group
	logger zerolog.Logger

	memoryTTL time.Duration
}

// Option は CachingFetcher の設定を行うための関数型です。
type Option func(*CachingFetcher)

// WithMemoryTTL はメモリキャッシュの保持期間を設定します。
func WithMemoryTTL(ttl time.Duration) Option {
	return func(c *CachingFetcher) {
		c.memoryTTL = ttl
	}
}

// WithDiskStore はディスクキャッシュを有効にします。
func WithDiskStore(disk *DiskStore) Option {
	return func(c *CachingFetcher) {
		c.disk = disk
	}
}

// WithLogger はログ出力先を設定します。
func WithLogger(logger zerolog.Logger) Option {
	return func(c *CachingFetcher) {
		c.logger = logger
	}
}

// NewCachingFetcher は next をラップした CachingFetcher を生成します。
func NewCachingFetcher(next Fetcher, opts ...Option) (*CachingFetcher, error) {
	if next == nil {
		return nil, fmt.Errorf("cache.NewCachingFetcher: Fetcher cannot be nil")
	}

	c := &CachingFetcher{
		next:      next,
		logger:    log.Logger,
		memoryTTL: DefaultMemoryTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.memory = gocache.New(c.memoryTTL, DefaultCleanupInterval)
	return c, nil
}

// FetchBytes はキャッシュ済みであればそれを返し、なければ next から取得して保存します。
// 取得時のエラーはキャッシュせず、そのまま返します。
func (c *CachingFetcher) FetchBytes(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.memory.Get(url); ok {
		c.logger.Debug().Str("url", url).Msg("メモリキャッシュを使用します")
		return body.([]byte), nil
	}

	// 取得は同じURLを待つ全員で共有するため、最初の呼び出し元のキャンセルから切り離す。
	// 取得時間の上限は next (HTTPクライアントのタイムアウト) に任せる
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(url, func() (interface{}, error) {
		// 直前に完了した取得の結果が入っている場合がある
		if body, ok := c.memory.Get(url); ok {
			return body, nil
		}
		if body, ok := c.loadDisk(url); ok {
			c.memory.Set(url, body, gocache.DefaultExpiration)
			return body, nil
		}

		body, err := c.next.FetchBytes(flightCtx, url)
		if err != nil {
			return nil, err
		}

		c.memory.Set(url, body, gocache.DefaultExpiration)
		c.saveDisk(url, body)
		return body, nil
	})

	// 待機は呼び出し元ごとの ctx で打ち切る
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug().Str("url", url).Msg("同時リクエストの取得結果を共有しました")
		}
		return res.Val.([]byte), nil
	}
}

// Len はメモリキャッシュに保持している件数を返します。
func (c *CachingFetcher) Len() int {
	return c.memory.ItemCount()
}

func (c *CachingFetcher) loadDisk(url string) ([]byte, bool) {
	if c.disk == nil {
		return nil, false
	}
	body, ok, err := c.disk.Load(url)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("ディスクキャッシュの読み込みに失敗しました")
		return nil, false
	}
	if ok {
		c.logger.Debug().Str("url", url).Msg("ディスクキャッシュを使用します")
	}
	return body, ok
}

func (c *CachingFetcher) saveDisk(url string, body []byte) {
	if c.disk == nil {
		return
	}
	if err := c.disk.Save(url, body); err != nil {
		c.logger.Warn().Err(err).Str("url", url).Msg("ディスクキャッシュの書き込みに失敗しました")
	}
}
