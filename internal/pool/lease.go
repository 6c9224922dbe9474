package pool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bl4ck0w1/sitelynx/pkg/models"
)

// ErrNoSlotAvailable means every pool slot is held by a live worker.
var ErrNoSlotAvailable = errors.New("pool: no worker slot available")

// SlotPool hands out at most maxSlots concurrent worker slots on one
// host using lease files. A slot is free when its lease file is absent,
// unreadable, owned by a dead process, or older than staleAfter. The
// filesystem's exclusive-create is the only lock involved, so processes
// that crash without cleanup never wedge the pool.
type SlotPool struct {
	dir        string
	maxSlots   int
	staleAfter time.Duration
	logger     *logrus.Logger
}

func NewSlotPool(dir string, maxSlots int, staleAfter time.Duration, logger *logrus.Logger) (*SlotPool, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if maxSlots <= 0 {
		maxSlots = 40
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lease directory: %w", err)
	}
	return &SlotPool{dir: dir, maxSlots: maxSlots, staleAfter: staleAfter, logger: logger}, nil
}

func (p *SlotPool) leasePath(slot int) string {
	return filepath.Join(p.dir, fmt.Sprintf("worker-%d.lease", slot))
}

// Acquire claims the lowest free slot for pid. It returns
// ErrNoSlotAvailable when maxSlots live workers already hold leases.
func (p *SlotPool) Acquire(pid int) (int, error) {
	now := time.Now().UTC()
	for slot := 1; slot <= p.maxSlots; slot++ {
		path := p.leasePath(slot)
		if p.tryCreate(path, slot, pid, now) {
			p.logger.WithFields(logrus.Fields{"slot": slot, "pid": pid}).Info("worker slot acquired")
			return slot, nil
		}

		lease, err := p.readLease(path)
		if err == nil && p.leaseLive(lease, now) {
			continue
		}
		// Dead or garbled lease. Remove it and race for the slot; losing
		// the race just moves us to the next slot.
		if err != nil {
			p.logger.WithError(err).WithField("slot", slot).Warn("removing unreadable lease")
		} else {
			p.logger.WithFields(logrus.Fields{
				"slot":      slot,
				"owner_pid": lease.OwnerPID,
				"age":       now.Sub(lease.Timestamp).String(),
			}).Warn("reclaiming dead worker lease")
		}
		_ = os.Remove(path)
		if p.tryCreate(path, slot, pid, now) {
			p.logger.WithFields(logrus.Fields{"slot": slot, "pid": pid}).Info("worker slot acquired")
			return slot, nil
		}
	}
	return 0, ErrNoSlotAvailable
}

// Heartbeat refreshes the lease timestamp for a held slot. The write is
// atomic (temp file plus rename) so a reader never sees a torn lease.
func (p *SlotPool) Heartbeat(slot, pid int) error {
	lease, err := p.readLease(p.leasePath(slot))
	if err != nil {
		return fmt.Errorf("heartbeat slot %d: %w", slot, err)
	}
	if lease.OwnerPID != pid {
		return fmt.Errorf("heartbeat slot %d: lease owned by pid %d, not %d", slot, lease.OwnerPID, pid)
	}
	return p.writeLease(p.leasePath(slot), &models.WorkerLease{
		Slot:      slot,
		OwnerPID:  pid,
		Timestamp: time.Now().UTC(),
	})
}

// Release drops the lease if this pid still owns it. Releasing a slot
// that was already reclaimed is not an error.
func (p *SlotPool) Release(slot, pid int) error {
	path := p.leasePath(slot)
	lease, err := p.readLease(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("release slot %d: %w", slot, err)
	}
	if lease.OwnerPID != pid {
		p.logger.WithFields(logrus.Fields{"slot": slot, "owner_pid": lease.OwnerPID}).
			Warn("skipping release of lease owned by another process")
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release slot %d: %w", slot, err)
	}
	p.logger.WithFields(logrus.Fields{"slot": slot, "pid": pid}).Info("worker slot released")
	return nil
}

// ActiveSlots returns the slots currently held by live workers.
func (p *SlotPool) ActiveSlots() []models.WorkerLease {
	now := time.Now().UTC()
	var active []models.WorkerLease
	for slot := 1; slot <= p.maxSlots; slot++ {
		lease, err := p.readLease(p.leasePath(slot))
		if err != nil {
			continue
		}
		if p.leaseLive(lease, now) {
			active = append(active, *lease)
		}
	}
	return active
}

func (p *SlotPool) MaxSlots() int { return p.maxSlots }

func (p *SlotPool) tryCreate(path string, slot, pid int, now time.Time) bool {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return false
	}
	lease := &models.WorkerLease{Slot: slot, OwnerPID: pid, Timestamp: now}
	if err := json.NewEncoder(f).Encode(lease); err != nil {
		f.Close()
		_ = os.Remove(path)
		return false
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return false
	}
	return true
}

func (p *SlotPool) readLease(path string) (*models.WorkerLease, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lease models.WorkerLease
	if err := json.Unmarshal(data, &lease); err != nil {
		return nil, fmt.Errorf("parse lease %s: %w", path, err)
	}
	return &lease, nil
}

// leaseLive reports whether a lease still protects its slot: the owner
// process must exist and the heartbeat must be fresh.
func (p *SlotPool) leaseLive(lease *models.WorkerLease, now time.Time) bool {
	if lease.OwnerPID <= 0 {
		return false
	}
	if !processAlive(lease.OwnerPID) {
		return false
	}
	return now.Sub(lease.Timestamp) <= p.staleAfter
}

// processAlive checks for the process with signal 0. EPERM still means
// the pid exists, just under another user.
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

func (p *SlotPool) writeLease(path string, lease *models.WorkerLease) error {
	tmp, err := os.CreateTemp(p.dir, ".lease-*")
	if err != nil {
		return fmt.Errorf("create temp lease: %w", err)
	}
	if err := json.NewEncoder(tmp).Encode(lease); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode lease: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace lease: %w", err)
	}
	return nil
}
