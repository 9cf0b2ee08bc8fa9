package action

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/nickicker/internal/domain"
	"github.com/hamed0406/nickicker/internal/repo"
)

var ErrNothingToBundle = errors.New("none of the log files exist")

const (
	bundlePrefix        = "nickicker_logs_"
	bundleTimeLayout    = "20060102_150405"
	defaultMaxFileBytes = 16 << 20
	manifestCycles      = 64
)

// LogBundleAction archives the tail of each configured log file together with
// a state.json manifest describing the outage.
type LogBundleAction struct {
	Logger       *zap.Logger
	Dir          string
	Files        []string
	MaxFileBytes int64
	History      repo.CycleStore // optional
	Now          func() time.Time
}

func NewLogBundle(logger *zap.Logger, dir string, files []string, history repo.CycleStore) *LogBundleAction {
	if dir == "" {
		dir = os.TempDir()
	}
	return &LogBundleAction{
		Logger:       logger,
		Dir:          dir,
		Files:        files,
		MaxFileBytes: defaultMaxFileBytes,
		History:      history,
		Now:          time.Now,
	}
}

type manifest struct {
	CreatedAt   time.Time          `json:"created_at"`
	Hostname    string             `json:"hostname,omitempty"`
	Transition  domain.Transition  `json:"transition"`
	EpisodeID   string             `json:"episode_id"`
	OutageStart time.Time          `json:"outage_start"`
	Files       []string           `json:"files"`
	Missing     []string           `json:"missing,omitempty"`
	Cycles      []repo.CycleRecord `json:"recent_cycles,omitempty"`
}

func (a *LogBundleAction) Run(ctx context.Context, ev domain.Event) (err error) {
	var present, missing []string
	for _, f := range a.Files {
		if st, serr := os.Stat(f); serr == nil && st.Mode().IsRegular() {
			present = append(present, f)
		} else {
			missing = append(missing, f)
		}
	}
	if len(present) == 0 {
		a.Logger.Warn("logbundle_no_files", zap.Strings("files", a.Files))
		return ErrNothingToBundle
	}

	now := a.Now()
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return err
	}
	final := filepath.Join(a.Dir, bundlePrefix+now.Format(bundleTimeLayout)+".tar.gz")

	tmp, err := os.CreateTemp(a.Dir, ".bundle-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	gz := gzip.NewWriter(tmp)
	tw := tar.NewWriter(gz)

	for _, f := range present {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = a.addTail(tw, f); err != nil {
			return fmt.Errorf("add %s: %w", f, err)
		}
	}

	m := manifest{
		CreatedAt:   now.UTC(),
		Transition:  ev.Transition,
		EpisodeID:   ev.EpisodeID,
		OutageStart: ev.OutageStart,
		Files:       present,
		Missing:     missing,
	}
	m.Hostname, _ = os.Hostname()
	if a.History != nil {
		m.Cycles, _ = a.History.RecentCycles(ctx, manifestCycles)
	}
	body, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err = addBytes(tw, "state.json", body, now); err != nil {
		return err
	}

	err = multierr.Combine(tw.Close(), gz.Close(), tmp.Close())
	if err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), final); err != nil {
		return err
	}

	var size uint64
	if st, serr := os.Stat(final); serr == nil {
		size = uint64(st.Size())
	}
	a.Logger.Info("logbundle_written",
		zap.String("path", final),
		zap.String("size", humanize.Bytes(size)),
		zap.Int("files", len(present)),
		zap.Strings("missing", missing),
	)
	return nil
}

// addTail stores at most MaxFileBytes from the end of path.
func (a *LogBundleAction) addTail(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	size := st.Size()
	if a.MaxFileBytes > 0 && size > a.MaxFileBytes {
		if _, err := f.Seek(size-a.MaxFileBytes, io.SeekStart); err != nil {
			return err
		}
		size = a.MaxFileBytes
	}

	hdr := &tar.Header{
		Name:    filepath.Join("logs", filepath.Base(path)),
		Mode:    int64(st.Mode().Perm() & fs.ModePerm),
		Size:    size,
		ModTime: st.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	// the file may still be growing; copy exactly the announced size
	_, err = io.CopyN(tw, f, size)
	return err
}

func addBytes(tw *tar.Writer, name string, b []byte, mod time.Time) error {
	hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(b)), ModTime: mod}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(b)
	return err
}
