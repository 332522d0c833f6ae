package health

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck reports whether the database answers a ping.
func PingCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// WritableDirCheck fails when a file cannot be created in dir. Used for the
// image directory.
func WritableDirCheck(dir string) CheckFunc {
	return func(context.Context) error {
		f, err := os.CreateTemp(dir, ".probe-*")
		if err != nil {
			return errors.Wrapf(err, "create probe in %q", filepath.Clean(dir))
		}
		name := f.Name()
		_ = f.Close()
		return os.Remove(name)
	}
}
