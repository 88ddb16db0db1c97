package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Entry は、ディスク上に保存したレスポンスのメタデータです。
type Entry struct {
	URL     string    `json:"url"`
	Size    int       `json:"size"`
	SavedAt time.Time `json:"saved_at"`
}

// DiskStore は、レスポンスボディを <key>.body、メタデータを <key>.meta.json として保存します。
// key は sha256(url) です。TTL が 0 以下の場合、保存済みのエントリは期限切れになりません。
type DiskStore struct {
	Dir string
	TTL time.Duration

	now func() time.Time
}

// NewDiskStore はディレクトリを作成して DiskStore を返します。
func NewDiskStore(dir string, ttl time.Duration) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("キャッシュディレクトリが指定されていません")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("キャッシュディレクトリの作成に失敗しました (%s): %w", dir, err)
	}
	return &DiskStore{Dir: dir, TTL: ttl, now: time.Now}, nil
}

func (d *DiskStore) key(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])
}

func (d *DiskStore) metaPath(key string) string { return filepath.Join(d.Dir, key+".meta.json") }
func (d *DiskStore) bodyPath(key string) string { return filepath.Join(d.Dir, key+".body") }

// Load は有効なエントリがあればボディを返します。存在しない・期限切れの場合は ok=false です。
func (d *DiskStore) Load(url string) (body []byte, ok bool, err error) {
	key := d.key(url)

	metaBytes, err := os.ReadFile(d.metaPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("メタデータの読み込みに失敗しました: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(metaBytes, &entry); err != nil {
		return nil, false, fmt.Errorf("メタデータの解析に失敗しました: %w", err)
	}
	if entry.URL != url {
		return nil, false, nil
	}
	if d.TTL > 0 && d.now().Sub(entry.SavedAt) > d.TTL {
		return nil, false, nil
	}

	body, err = os.ReadFile(d.bodyPath(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("キャッシュボディの読み込みに失敗しました: %w", err)
	}
	return body, true, nil
}

// Save はボディを書き込んだ後にメタデータを一時ファイル経由で置き換えます。
// メタデータが存在するエントリだけが有効とみなされます。
func (d *DiskStore) Save(url string, body []byte) error {
	key := d.key(url)

	if err := os.WriteFile(d.bodyPath(key), body, 0o644); err != nil {
		return fmt.Errorf("キャッシュボディの書き込みに失敗しました: %w", err)
	}

	meta, err := json.Marshal(Entry{URL: url, Size: len(body), SavedAt: d.now().UTC()})
	if err != nil {
		return fmt.Errorf("メタデータのシリアライズに失敗しました: %w", err)
	}
	tmp := d.metaPath(key) + ".tmp"
	if err := os.WriteFile(tmp, meta, 0o644); err != nil {
		return fmt.Errorf("メタデータの書き込みに失敗しました: %w", err)
	}
	return os.Rename(tmp, d.metaPath(key))
}
