package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vietddude/cycler/internal/core/domain"
)

// LoopConfig is the persisted auto-loop record.
type LoopConfig struct {
	AutoLoop AutoLoop `json:"autoLoop"`
}

// AutoLoop controls the supervisor between runs.
type AutoLoop struct {
	Enabled       bool       `json:"enabled"`
	IntervalHours int        `json:"intervalHours"`
	EnableStaking bool       `json:"enableStaking"`
	EnableFaucet  bool       `json:"enableFaucet"`
	LastRun       *time.Time `json:"lastRun"`
}

// DefaultLoopConfig is used when no record exists.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{AutoLoop: AutoLoop{
		Enabled:       false,
		IntervalHours: 24,
		EnableStaking: true,
		EnableFaucet:  false,
	}}
}

// Validate rejects intervals shorter than one hour.
func (l LoopConfig) Validate() error {
	if l.AutoLoop.IntervalHours < 1 {
		return fmt.Errorf("%w: intervalHours must be at least 1, got %d", domain.ErrConfiguration, l.AutoLoop.IntervalHours)
	}
	return nil
}

// Interval is the cooldown between cycles.
func (l LoopConfig) Interval() time.Duration {
	return time.Duration(l.AutoLoop.IntervalHours) * time.Hour
}

// NextRun is lastRun + interval, or now when that moment has passed or no
// cycle ever ran.
func (l LoopConfig) NextRun(now time.Time) time.Time {
	if l.AutoLoop.LastRun == nil {
		return now
	}
	next := l.AutoLoop.LastRun.Add(l.Interval())
	if next.Before(now) {
		return now
	}
	return next
}

// DecodeLoopConfig parses a record on top of the defaults.
func DecodeLoopConfig(data []byte) (LoopConfig, error) {
	cfg := DefaultLoopConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return LoopConfig{}, fmt.Errorf("%w: invalid loop config: %w", domain.ErrConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return LoopConfig{}, err
	}
	return cfg, nil
}

// EncodeLoopConfig renders the record as indented JSON.
func EncodeLoopConfig(cfg LoopConfig) ([]byte, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return json.MarshalIndent(cfg, "", "  ")
}

// LoopStore persists the single loop record.
type LoopStore interface {
	// Load returns the defaults when no record exists.
	Load(ctx context.Context) (LoopConfig, error)
	Save(ctx context.Context, cfg LoopConfig) error
}

// FileStore keeps the record in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements LoopStore.
func (s *FileStore) Load(ctx context.Context) (LoopConfig, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultLoopConfig(), nil
	}
	if err != nil {
		return LoopConfig{}, fmt.Errorf("read loop config: %w", err)
	}
	return DecodeLoopConfig(data)
}

// Save implements LoopStore. The file is replaced atomically.
func (s *FileStore) Save(ctx context.Context, cfg LoopConfig) error {
	data, err := EncodeLoopConfig(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create loop config dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".loop-config-*.json")
	if err != nil {
		return fmt.Errorf("create temp loop config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write loop config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close loop config: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace loop config: %w", err)
	}
	return nil
}
