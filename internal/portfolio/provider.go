package portfolio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tribune/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Provider hands out the current read-only snapshot.
type Provider interface {
	Snapshot() *Snapshot
}

// snapshotFile is the on-disk YAML shape.
type snapshotFile struct {
	AsOf      time.Time `yaml:"as_of"`
	Cash      float64   `yaml:"cash"`
	Positions []struct {
		Symbol   string  `yaml:"symbol"`
		Quantity float64 `yaml:"quantity"`
		Price    float64 `yaml:"price"`
		Sector   string  `yaml:"sector"`
	} `yaml:"positions"`
	Prices       map[string]float64            `yaml:"prices"`
	Sectors      map[string]string             `yaml:"sectors"`
	Volatility   map[string]float64            `yaml:"volatility"`
	Correlations map[string]map[string]float64 `yaml:"correlations"`
}

// FileProvider loads the snapshot from a YAML file and, when watching, swaps
// in a new snapshot on every file change. A bad reload keeps the last good
// snapshot in place.
type FileProvider struct {
	path string

	mu   sync.RWMutex
	snap *Snapshot
}

func NewFileProvider(path string) (*FileProvider, error) {
	p := &FileProvider{path: path}
	snap, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	p.snap = snap
	return p, nil
}

func (p *FileProvider) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Reload re-reads the file, replacing the snapshot only when it validates.
func (p *FileProvider) Reload() error {
	snap, err := loadFile(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	return nil
}

// Watch blocks until ctx is done, reloading the snapshot whenever the file is
// rewritten.
func (p *FileProvider) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return err
	}
	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := p.Reload(); err != nil {
				logger.Warnf("portfolio snapshot reload failed, keeping previous: %v", err)
				continue
			}
			logger.Infof("portfolio snapshot reloaded (as_of=%s)", p.Snapshot().AsOf.Format(time.RFC3339))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("portfolio snapshot watcher: %v", err)
		}
	}
}

func loadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading portfolio snapshot: %w", err)
	}
	var file snapshotFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing portfolio snapshot: %w", err)
	}
	snap := &Snapshot{
		AsOf:         file.AsOf,
		Cash:         decimal.NewFromFloat(file.Cash),
		Sectors:      file.Sectors,
		Volatility:   file.Volatility,
		Correlations: file.Correlations,
	}
	for _, pos := range file.Positions {
		snap.Positions = append(snap.Positions, Position{
			Symbol:   pos.Symbol,
			Quantity: decimal.NewFromFloat(pos.Quantity),
			Price:    decimal.NewFromFloat(pos.Price),
			Sector:   pos.Sector,
		})
	}
	if len(file.Prices) > 0 {
		snap.Prices = make(map[string]decimal.Decimal, len(file.Prices))
		for sym, px := range file.Prices {
			snap.Prices[sym] = decimal.NewFromFloat(px)
		}
	}
	snap.normalize()
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid portfolio snapshot: %w", err)
	}
	return snap, nil
}

// StaticProvider serves one fixed snapshot, mainly for tests.
type StaticProvider struct{ Snap *Snapshot }

func (p StaticProvider) Snapshot() *Snapshot { return p.Snap }
