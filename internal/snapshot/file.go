package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

const (
	filePrefix = "ztna_"
	fileExt    = ".json"
	// Нечитаемый снимок переименовывается и больше не читается; Prune удалит его со сменой дня
	corruptExt = ".corrupt"
)

var errCorrupt = errors.New("corrupt snapshot")

// FileStore пишет снимки в каталог файлами ztna_YYYYMMDD_HH.json.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

func NewFileStore(dir string, logger *zap.Logger) *FileStore {
	return &FileStore{dir: dir, logger: logger.Named("snapshot")}
}

func (s *FileStore) fileName(at time.Time) string {
	return filepath.Join(s.dir, filePrefix+at.Format("20060102_15")+fileExt)
}

// entries возвращает имена файлов каталога. Отсутствующий каталог — пустой список.
func (s *FileStore) entries() ([]string, error) {
	list, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read dir %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(list))
	for _, e := range list {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) Prune(_ context.Context, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entries()
	if err != nil {
		return err
	}

	keep := filePrefix + dayKey(day)
	for _, name := range names {
		if strings.HasPrefix(name, keep) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("snapshot: remove %s: %w", name, err)
		}
		s.logger.Debug("stale snapshot removed", zap.String("file", name))
	}
	return nil
}

// Load склеивает снимки дня. Битый файл откладывается в сторону с предупреждением,
// остальные события дня остаются доступны.
func (s *FileStore) Load(_ context.Context, day time.Time) ([]secureaccess.ZTNAEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.entries()
	if err != nil {
		return nil, err
	}

	prefix := filePrefix + dayKey(day)
	var events []secureaccess.ZTNAEvent
	for _, name := range names {
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, fileExt) {
			continue
		}
		path := filepath.Join(s.dir, name)
		chunk, err := readEvents(path)
		if errors.Is(err, errCorrupt) {
			s.quarantine(path, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		events = append(events, chunk...)
	}
	return events, nil
}

func (s *FileStore) quarantine(path string, cause error) {
	s.logger.Warn("corrupt snapshot skipped", zap.String("file", filepath.Base(path)), zap.Error(cause))
	if err := os.Rename(path, path+corruptExt); err != nil {
		s.logger.Error("failed to move corrupt snapshot aside", zap.String("file", filepath.Base(path)), zap.Error(err))
	}
}

// Save дописывает события к уже сохраненным за этот час, а не перезаписывает файл:
// в течение часа страница может собирать данные несколько раз.
func (s *FileStore) Save(_ context.Context, at time.Time, events []secureaccess.ZTNAEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create dir %s: %w", s.dir, err)
	}

	path := s.fileName(at)
	existing, err := readEvents(path)
	switch {
	case errors.Is(err, errCorrupt):
		s.quarantine(path, err)
		existing = nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return err
	}

	data, err := json.Marshal(append(existing, events...))
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}

	// Пишем во временный файл и переименовываем, чтобы не оставить обрезанный JSON
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", path, err)
	}
	return nil
}

func readEvents(path string) ([]secureaccess.ZTNAEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}

	var events []secureaccess.ZTNAEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("snapshot: decode %s: %w: %w", path, errCorrupt, err)
	}
	return events, nil
}
