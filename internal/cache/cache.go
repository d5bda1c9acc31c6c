// Package cache persists assembled kernel programs between runs and
// between processes.
//
// Artifacts are keyed by fingerprint and stored one file per program
// under a platform-scoped directory, so caches produced by different
// architectures or configuration salts never collide:
//
//	<root>/v1-linux-amd64-9f86d081/<fingerprint>.lkp
//
// Concurrent builders are collapsed with singleflight inside a process
// and, when locking is enabled, with an advisory file lock across
// processes. Artifacts are written to a temporary file and renamed into
// place, so a reader observes either nothing or a whole artifact.
package cache

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"golang.org/x/sync/singleflight"
)

const (
	artifactExt = ".lkp"
	lockName    = "lock"
)

// Config controls where and how a Cache stores artifacts.
type Config struct {
	// Fs is the backing filesystem. Nil means the operating system.
	Fs afero.Fs

	// Root is the cache root directory. Platform directories live
	// beneath it.
	Root string

	// Salt is a canonical configuration string folded into the
	// directory key, keeping artifacts built under different
	// configurations apart.
	Salt string

	// Locking guards builds with an advisory file lock so processes
	// sharing the root build each artifact once. It requires an
	// operating-system filesystem.
	Locking bool

	Log *logrus.Logger
}

// Cache stores assembled programs, one file per fingerprint. All
// methods are safe for concurrent use.
type Cache struct {
	fs      afero.Fs
	dir     string
	locking bool
	log     *logrus.Logger

	group singleflight.Group
}

// New opens the artifact directory for this platform under cfg.Root,
// creating it if needed.
func New(cfg Config) (*Cache, error) {
	if cfg.Root == "" {
		return nil, ErrNoRoot
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	dir := filepath.Join(cfg.Root, PlatformKey(cfg.Salt))
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating cache directory")
	}
	return &Cache{fs: fs, dir: dir, locking: cfg.Locking, log: log}, nil
}

// Dir returns the artifact directory.
func (c *Cache) Dir() string { return c.dir }

// Path returns where the artifact for fp lives, whether or not it
// exists yet.
func (c *Cache) Path(fp string) string {
	return filepath.Join(c.dir, fp+artifactExt)
}

// Get returns the stored artifact for fp, or ok=false when absent.
func (c *Cache) Get(fp string) (data []byte, ok bool, err error) {
	data, err = afero.ReadFile(c.fs, c.Path(fp))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading artifact %s", fp)
	}
	return data, true, nil
}

// GetOrBuild returns the artifact for fp, invoking build at most once
// per process (and, with locking enabled, once across processes
// sharing the root) when it is absent. A failed build writes nothing.
func (c *Cache) GetOrBuild(fp string, build func() ([]byte, error)) ([]byte, error) {
	if data, ok, err := c.Get(fp); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}
	v, err, _ := c.group.Do(fp, func() (interface{}, error) {
		return c.buildLocked(fp, build)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) buildLocked(fp string, build func() ([]byte, error)) ([]byte, error) {
	// Another goroutine may have finished while this one queued.
	if data, ok, err := c.Get(fp); err != nil {
		return nil, err
	} else if ok {
		return data, nil
	}

	if c.locking {
		lock := flock.New(filepath.Join(c.dir, lockName))
		if err := lock.Lock(); err != nil {
			return nil, errors.Wrap(err, "taking cache lock")
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				c.log.WithError(err).Warn("releasing cache lock")
			}
		}()

		// Another process may have built while this one waited.
		if data, ok, err := c.Get(fp); err != nil {
			return nil, err
		} else if ok {
			return data, nil
		}
	}

	c.log.WithField("fingerprint", short(fp)).Debug("cache miss, building artifact")
	data, err := build()
	if err != nil {
		return nil, &BuildError{Fingerprint: fp, Err: err}
	}
	if err := c.put(fp, data); err != nil {
		return nil, err
	}
	return data, nil
}

// put writes data to a temporary file and renames it over the final
// path.
func (c *Cache) put(fp string, data []byte) error {
	tmp := filepath.Join(c.dir, fp+"."+uuid.NewString()+".tmp")
	f, err := c.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "creating artifact temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		c.fs.Remove(tmp)
		return errors.Wrap(err, "writing artifact")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		c.fs.Remove(tmp)
		return errors.Wrap(err, "syncing artifact")
	}
	if err := f.Close(); err != nil {
		c.fs.Remove(tmp)
		return errors.Wrap(err, "closing artifact")
	}
	if err := c.fs.Rename(tmp, c.Path(fp)); err != nil {
		c.fs.Remove(tmp)
		return errors.Wrap(err, "publishing artifact")
	}
	return nil
}

// Purge deletes every stored artifact and returns how many were
// removed. Temporary files and the lock file are left alone.
func (c *Cache) Purge() (int, error) {
	infos, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		return 0, errors.Wrap(err, "listing cache directory")
	}
	n := 0
	for _, fi := range infos {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), artifactExt) {
			continue
		}
		if err := c.fs.Remove(filepath.Join(c.dir, fi.Name())); err != nil {
			return n, errors.Wrapf(err, "removing %s", fi.Name())
		}
		n++
	}
	return n, nil
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
