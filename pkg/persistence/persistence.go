package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrNotExists 持久化文件不存在
var ErrNotExists = errors.New("persistence: file does not exist")

// Store 持久化存储接口
type Store interface {
	// Save 原子化保存对象
	Save(v interface{}) error
	// Load 加载对象；文件不存在时返回 ErrNotExists
	Load(v interface{}) error
	// Exists 检查存储是否已有数据
	Exists() bool
	// Path 返回底层文件路径
	Path() string
}

// JSONFileStore 基于单个 JSON 文件的存储实现
//
// 写入先落临时文件再 rename，保证进程被杀时文件不会只写了一半。
type JSONFileStore struct {
	path   string
	indent bool
}

// NewJSONFileStore 创建 JSON 文件存储
func NewJSONFileStore(path string) *JSONFileStore {
	return &JSONFileStore{path: path, indent: true}
}

// Path 返回底层文件路径
func (s *JSONFileStore) Path() string { return s.path }

// Exists 检查文件是否存在
func (s *JSONFileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Save 原子化保存：写临时文件 + rename
func (s *JSONFileStore) Save(v interface{}) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create state dir")
	}

	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return errors.Wrap(err, "marshal state")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "close temp file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "rename temp file")
	}
	return nil
}

// Load 加载 JSON 文件到 v
func (s *JSONFileStore) Load(v interface{}) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotExists
		}
		return errors.Wrap(err, "read state file")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrap(err, "unmarshal state")
	}
	return nil
}
