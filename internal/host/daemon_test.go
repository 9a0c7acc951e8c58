package host

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/niklasschaeffer/open-mem/internal/config"
)

func TestAcquireDaemonLockWritesRecord(t *testing.T) {
	dir := t.TempDir()
	d, err := AcquireDaemonLock(dir, config.DaemonConfig{LivenessTimeoutSeconds: 10})
	if err != nil {
		t.Fatalf("AcquireDaemonLock: %v", err)
	}
	defer d.Release()

	rec, err := readLockRecord(lockPath(dir))
	if err != nil {
		t.Fatalf("readLockRecord: %v", err)
	}
	if rec.PID != os.Getpid() {
		t.Fatalf("PID=%d, want %d", rec.PID, os.Getpid())
	}
}

func TestAcquireDaemonLockRefusesLiveHolder(t *testing.T) {
	dir := t.TempDir()
	d, err := AcquireDaemonLock(dir, config.DaemonConfig{LivenessTimeoutSeconds: 10})
	if err != nil {
		t.Fatalf("AcquireDaemonLock: %v", err)
	}
	defer d.Release()

	if _, err := AcquireDaemonLock(dir, config.DaemonConfig{LivenessTimeoutSeconds: 10}); err == nil {
		t.Fatalf("expected second AcquireDaemonLock to fail against a live holder")
	}
}

func TestAcquireDaemonLockStealsStaleHolder(t *testing.T) {
	dir := t.TempDir()
	d, err := AcquireDaemonLock(dir, config.DaemonConfig{LivenessTimeoutSeconds: 10})
	if err != nil {
		t.Fatalf("AcquireDaemonLock: %v", err)
	}

	rec, err := readLockRecord(lockPath(dir))
	if err != nil {
		t.Fatalf("readLockRecord: %v", err)
	}
	rec.Heartbeat = time.Now().Add(-time.Hour)
	body, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := os.WriteFile(lockPath(dir), body, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	second, err := AcquireDaemonLock(dir, config.DaemonConfig{LivenessTimeoutSeconds: 10})
	if err != nil {
		t.Fatalf("expected stale lock to be stolen, got error: %v", err)
	}
	defer second.Release()
}
