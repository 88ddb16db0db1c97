package browser

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/rs/zerolog/log"
)

// Runner はコマンドを起動し、終了を待たずに戻る関数です。
type Runner func(name string, args ...string) error

// SystemOpener は、OS標準の方法でURLをブラウザに渡します。
type SystemOpener struct {
	goos string
	run  Runner
}

// New は実行中のOS向けの SystemOpener を生成します。
func New() *SystemOpener {
	return &SystemOpener{goos: runtime.GOOS, run: startDetached}
}

// commandFor は OS ごとの起動コマンドを返します。
func commandFor(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

// Open は target をブラウザで開きます。起動後の終了は待ちません。
// http / https 以外のURLは受け付けません。
func (o *SystemOpener) Open(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("URLのパースエラー: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("無効なURLスキームです。httpまたはhttpsを指定してください: %s", target)
	}

	name, args := commandFor(o.goos, target)
	log.Debug().Str("command", name).Str("url", target).Msg("ブラウザを起動します")
	if err := o.run(name, args...); err != nil {
		return fmt.Errorf("ブラウザの起動に失敗しました (%s): %w", name, err)
	}
	return nil
}

// startDetached はプロセスを起動し、終了はバックグラウンドで回収します。
func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}
