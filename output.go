package mdbatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alnah/go-mdbatch/internal/dateutil"
)

// File permission constants.
const (
	dirPermissions = 0o750 // rwxr-x---: owner full, group read+execute
)

// OutputManager computes collision-free output paths for a batch run and
// creates output directories. One manager serves one run; collision state
// is first-seen order over that run's inputs. All methods are
// goroutine-safe.
type OutputManager struct {
	cfg     *BatchConfig
	baseDir string // base input dir for structure mirroring ("" = flatten)
	now     func() time.Time

	mu       sync.Mutex
	owners   map[string]string // output path -> input path that claimed it
	counters map[string]int    // base output path -> next collision counter
}

// NewOutputManager creates a manager for cfg. baseInputDir is the root
// used to mirror subdirectories when cfg.PreserveDirs is set; pass ""
// when the inputs have no common base.
func NewOutputManager(cfg *BatchConfig, baseInputDir string) *OutputManager {
	return &OutputManager{
		cfg:      cfg,
		baseDir:  baseInputDir,
		now:      time.Now,
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Resolve computes the output PDF path for inputPath according to the
// naming policy. When directory structure is flattened, identical stems
// from different source directories get numeric suffixes in first-seen
// order rather than overwriting each other.
func (m *OutputManager) Resolve(inputPath string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	name, err := m.formatName(stem)
	if err != nil {
		return "", err
	}

	dir := m.cfg.OutputDir
	if m.cfg.PreserveDirs && m.baseDir != "" {
		rel, err := filepath.Rel(m.baseDir, inputPath)
		if err == nil {
			dir = filepath.Join(m.cfg.OutputDir, filepath.Dir(rel))
		}
	}

	requested := filepath.Join(dir, name+".pdf")
	if m.cfg.PreserveDirs {
		// Mirrored trees cannot collide: each input keeps its own subdir.
		return requested, nil
	}
	return m.claim(inputPath, requested), nil
}

// formatName applies the filename format to a stem.
func (m *OutputManager) formatName(stem string) (string, error) {
	switch m.cfg.Format {
	case FormatOriginal, "":
		return stem, nil
	case FormatWithTimestamp:
		return stem + "_" + strconv.FormatInt(m.now().UnixMilli(), 10), nil
	case FormatWithDate:
		return stem + "_" + m.dateStamp(), nil
	case FormatCustom:
		name := strings.ReplaceAll(m.cfg.CustomPattern, "{name}", stem)
		name = strings.ReplaceAll(name, "{timestamp}", strconv.FormatInt(m.now().UnixMilli(), 10))
		name = strings.ReplaceAll(name, "{date}", m.dateStamp())
		return name, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, m.cfg.Format)
}

// dateStamp renders today's date in the default YYYY-MM-DD format.
func (m *OutputManager) dateStamp() string {
	goFmt, err := dateutil.ParseDateFormat(dateutil.DefaultDateFormat)
	if err != nil {
		goFmt = "2006-01-02"
	}
	return m.now().Format(goFmt)
}

// claim registers requested for input, resolving collisions with numeric
// suffixes (_2, _3, ...) in first-seen order.
func (m *OutputManager) claim(input, requested string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner, exists := m.owners[requested]
	if !exists || owner == input {
		m.owners[requested] = input
		return requested
	}

	dir := filepath.Dir(requested)
	base := filepath.Base(requested)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	counter := m.counters[requested]
	if counter < 2 {
		counter = 2
	}
	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		cOwner, cExists := m.owners[candidate]
		if !cExists || cOwner == input {
			m.counters[requested] = counter + 1
			m.owners[candidate] = input
			return candidate
		}
		counter++
	}
}

// EnsureDirectory creates path and missing parents. Idempotent: an
// existing directory is not an error.
func (m *OutputManager) EnsureDirectory(path string) error {
	if err := os.MkdirAll(path, dirPermissions); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}
