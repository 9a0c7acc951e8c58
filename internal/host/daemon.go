package host

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/niklasschaeffer/open-mem/internal/config"
	"github.com/niklasschaeffer/open-mem/internal/logging"
)

// lockRecord is the lock file's body: enough to tell a second daemon
// whether the holder is still alive without it having to answer back.
type lockRecord struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
	Heartbeat time.Time `json:"heartbeat"`
}

// Daemon holds the singleton lock a long-running host process takes out
// on a project so a second daemon never claims the same store. The lock
// is a heartbeat file rather than an flock: liveness is judged by
// heartbeat age against Config.Daemon.LivenessTimeoutSeconds, which
// survives the holder being killed without a chance to clean up.
type Daemon struct {
	path     string
	timeout  time.Duration
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
}

func lockPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".open-mem", "daemon.lock")
}

// AcquireDaemonLock takes out the lock for projectRoot, stealing it from
// a stale holder (heartbeat older than Config.Daemon.LivenessTimeoutSeconds)
// but refusing if a live holder is found.
func AcquireDaemonLock(projectRoot string, cfg config.DaemonConfig) (*Daemon, error) {
	timeout := time.Duration(cfg.LivenessTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	path := lockPath(projectRoot)

	if existing, err := readLockRecord(path); err == nil {
		if time.Since(existing.Heartbeat) < timeout {
			return nil, fmt.Errorf("daemon already running (pid %d, last heartbeat %s ago)", existing.PID, time.Since(existing.Heartbeat).Round(time.Second))
		}
		logging.Get(logging.CategoryHost).Warn("stealing daemon lock from stale holder pid %d, last heartbeat %s ago", existing.PID, time.Since(existing.Heartbeat).Round(time.Second))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	d := &Daemon{path: path, timeout: timeout, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	if err := d.writeHeartbeat(); err != nil {
		return nil, err
	}
	return d, nil
}

func readLockRecord(path string) (*lockRecord, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec lockRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (d *Daemon) writeHeartbeat() error {
	rec := lockRecord{PID: os.Getpid(), StartedAt: time.Now().UTC(), Heartbeat: time.Now().UTC()}
	if existing, err := readLockRecord(d.path); err == nil && existing.PID == os.Getpid() {
		rec.StartedAt = existing.StartedAt
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return os.WriteFile(d.path, body, 0644)
}

// Watch starts the heartbeat loop and an fsnotify watch on the lock
// file's directory, logging a warning if the lock file is removed or
// rewritten out from under this process (another daemon raced it, or an
// operator cleared it by hand). The loop runs in the background and Watch
// returns at once; the loop ends when ctx is cancelled or Release is called.
func (d *Daemon) Watch(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	d.watcher = watcher
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		watcher.Close()
		return err
	}

	go d.run(ctx)
	return nil
}

func (d *Daemon) run(ctx context.Context) {
	defer close(d.doneCh)
	defer d.watcher.Close()

	heartbeat := time.NewTicker(d.timeout / 2)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case <-heartbeat.C:
			if err := d.writeHeartbeat(); err != nil {
				logging.Get(logging.CategoryHost).Error("daemon heartbeat write failed: %v", err)
			}
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Name != d.path {
				continue
			}
			if event.Op&fsnotify.Remove != 0 || event.Op&fsnotify.Rename != 0 {
				logging.Get(logging.CategoryHost).Warn("daemon lock file disappeared out from under pid %d", os.Getpid())
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryHost).Error("daemon lock watcher error: %v", err)
		}
	}
}

// Release stops the watch loop and removes the lock file if this process
// still owns it.
func (d *Daemon) Release() error {
	d.mu.Lock()
	running := d.running
	d.running = false
	d.mu.Unlock()

	if running {
		close(d.stopCh)
		<-d.doneCh
	}

	if existing, err := readLockRecord(d.path); err == nil && existing.PID != os.Getpid() {
		return nil
	}
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
