package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	hid "github.com/sstallion/go-hid"
	"golang.org/x/sys/unix"
)

// ============================================================================
// Crown device
// ============================================================================
// The crown speaks raw HID reports on the keyboard's hidraw node. This file
// owns the handle: discovery by VID/PID, the epoll read loop producing
// timestamped RawReports, the ratchet mode switch, and the bounded reconnect
// policy when the device drops.
// ============================================================================

// Output reports switching the crown between ratcheted (detented) and
// free-spinning rotation.
var (
	ratchetOnReport = []byte{
		0x11, 0x03, 0x12, 0x21, 0x02, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	ratchetOffReport = []byte{
		0x11, 0x03, 0x12, 0x2a, 0x02, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

var errReattachTimeout = errors.New("timed out waiting for a new hidraw node")

// CrownDevice owns the hidraw handle for the crown's keyboard.
type CrownDevice struct {
	cfg       DeviceConfig
	ratcheted bool
	logger    *slog.Logger

	mu sync.Mutex
	f  *os.File // nil while detached
}

func newCrownDevice(cfg DeviceConfig, ratcheted bool, logger *slog.Logger) *CrownDevice {
	return &CrownDevice{cfg: cfg, ratcheted: ratcheted, logger: logger}
}

// locate finds the crown's hidraw devnode, either from an explicit config
// path or by hidapi enumeration.
func (d *CrownDevice) locate() (string, error) {
	if d.cfg.Path != "" {
		return d.cfg.Path, nil
	}

	if err := hid.Init(); err != nil {
		return "", fmt.Errorf("hidapi init: %w", err)
	}

	var path string
	_ = hid.Enumerate(d.cfg.VendorID, d.cfg.ProductID, func(info *hid.DeviceInfo) error {
		if path == "" {
			path = info.Path
		}
		return nil
	})
	if path == "" {
		return "", fmt.Errorf("no HID device %04x:%04x found", d.cfg.VendorID, d.cfg.ProductID)
	}
	return path, nil
}

// ApplyRatchet writes the mode switch report to the device. Called after
// every attach and whenever the crown announces a reconnect; safe to call
// while detached (no-op).
func (d *CrownDevice) ApplyRatchet() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return
	}

	report := ratchetOffReport
	if d.ratcheted {
		report = ratchetOnReport
	}
	if _, err := d.f.Write(report); err != nil {
		d.logger.Warn("ratchet switch write failed", "ratcheted", d.ratcheted, "error", err)
		return
	}
	d.logger.Debug("ratchet mode applied", "ratcheted", d.ratcheted)
}

// Run opens the device and pumps raw reports until ctx is canceled. When the
// device drops it retries up to cfg.ReconnectAttempts times, waiting for a
// new hidraw node between attempts. Returns nil on clean shutdown; the last
// device error once retries are exhausted.
func (d *CrownDevice) Run(ctx context.Context, reports chan<- RawReport) error {
	attempt := 0

	for {
		path, err := d.locate()
		if err == nil {
			d.logger.Info("crown attached", "path", path)
			err = d.session(ctx, path, reports)
		}
		if ctx.Err() != nil {
			return nil
		}

		attempt++
		if attempt > d.cfg.ReconnectAttempts {
			return fmt.Errorf("crown device unavailable (attempt %d): %w", attempt, err)
		}
		d.logger.Warn("crown device lost",
			"error", err, "attempt", attempt, "max_attempts", d.cfg.ReconnectAttempts)

		if werr := d.waitForReattach(ctx); werr != nil {
			if ctx.Err() != nil {
				return nil
			}
			// A timeout here is not fatal by itself; the node may already
			// exist again, so fall through and retry locate.
			d.logger.Debug("reattach wait ended", "reason", werr)
		}
	}
}

// session reads reports from one attachment of the device. Returns nil when
// ctx is canceled, the device error otherwise.
func (d *CrownDevice) session(ctx context.Context, path string, reports chan<- RawReport) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("open %s: %w (add your user to the input group or run as root)", path, err)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}

	d.mu.Lock()
	d.f = f
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.f = nil
		d.mu.Unlock()
		f.Close()
	}()

	d.ApplyRatchet()

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fd := int(f.Fd())
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl_add: %w", err)
	}

	events := make([]unix.EpollEvent, 4)
	buf := make([]byte, rawReportMax)

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Bounded wait so shutdown is noticed even with the crown idle.
		n, err := unix.EpollWait(epfd, events, 500)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			if events[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return fmt.Errorf("device hangup on %s", path)
			}

			nr, err := f.Read(buf)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if nr == 0 {
				continue
			}

			data := make([]byte, nr)
			copy(data, buf[:nr])

			select {
			case reports <- RawReport{Data: data, At: time.Now()}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// waitForReattach blocks until a new hidraw node appears under /dev, the
// per-attempt timeout expires, or ctx is canceled.
func (d *CrownDevice) waitForReattach(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer w.Close()

	if err := w.Add("/dev"); err != nil {
		return fmt.Errorf("watch /dev: %w", err)
	}

	timeout := time.After(time.Duration(d.cfg.ReconnectWaitMS) * time.Millisecond)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timeout:
			return errReattachTimeout

		case ev := <-w.Events:
			if ev.Has(fsnotify.Create) && strings.HasPrefix(filepath.Base(ev.Name), "hidraw") {
				// Give udev a moment to set up permissions on the new node.
				time.Sleep(100 * time.Millisecond)
				return nil
			}

		case err := <-w.Errors:
			return err
		}
	}
}
