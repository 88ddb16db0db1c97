package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, uint64(DefaultMaxRetries), cfg.MaxRetries)
	require.Equal(t, InitialBackoffInterval, cfg.InitialInterval)
	require.Equal(t, MaxBackoffInterval, cfg.MaxInterval)
}

func TestNewBackOffPolicy(t *testing.T) {
	cfg := Config{
		MaxRetries:      5,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}

	bo := newBackOffPolicy(context.Background(), cfg)
	require.NotNil(t, bo)
}

func TestDo(t *testing.T) {
	// テスト用の高速な設定
	testCfg := Config{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 10 * time.Millisecond}
	errRetryable := errors.New("retryable error")
	errFatal := errors.New("fatal error")

	t.Run("successful operation", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), testCfg, "test_operation", func() error {
			calls++
			return nil
		}, func(error) bool { return true })

		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("retryable error and success within max retries", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), testCfg, "test_operation", func() error {
			calls++
			if calls < 3 {
				return errRetryable
			}
			return nil
		}, func(err error) bool { return errors.Is(err, errRetryable) })

		require.NoError(t, err)
		require.Equal(t, 3, calls)
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), testCfg, "test_operation", func() error {
			calls++
			return errFatal
		}, func(error) bool { return false })

		require.Error(t, err)
		require.ErrorIs(t, err, errFatal)
		require.Equal(t, "test_operationに失敗しました (リトライ対象外): fatal error", err.Error())
		require.Equal(t, 1, calls)
	})

	t.Run("max retries exceeded", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), testCfg, "test_operation", func() error {
			calls++
			return errRetryable
		}, func(error) bool { return true })

		require.Error(t, err)
		require.ErrorIs(t, err, errRetryable)
		require.Equal(t, "test_operationに失敗しました: 最大リトライ回数 (3回) に到達。最終エラー: retryable error", err.Error())
		// 初回 + 3回のリトライ
		require.Equal(t, 4, calls)
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Do(ctx, testCfg, "test_operation", func() error {
			return errRetryable
		}, func(error) bool { return true })

		require.Error(t, err)
		require.ErrorIs(t, err, context.Canceled)
		require.Contains(t, err.Error(), "test_operationに失敗しました: コンテキストタイムアウト/キャンセル")
	})
}
