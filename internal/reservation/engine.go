// Package reservation implements the device checkout state machine:
//
//	Available --Lock--> InUse --Unlock--> Available
//
// Every state change runs in one store transaction together with the paired
// usage log write, so no reader ever sees a device InUse without its open log
// entry or vice versa. After each committed mutation the configured Exporter
// is synced; its failure is logged and never returned.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"device-reservation/internal/storage"
)

const DefaultMaxReservation = 30 * 24 * time.Hour

// Exporter receives a signal after each committed mutation.
type Exporter interface {
	Sync(ctx context.Context) error
}

type ETAStatus string

const (
	ETANone   ETAStatus = ""
	ETAActive ETAStatus = "Active"
	ETAPassed ETAStatus = "Passed"
)

// DeviceView is a device with its derived ETA status at read time.
type DeviceView struct {
	storage.Device
	ETAStatus ETAStatus
}

type Options struct {
	// Longest accepted reservation, counted from now.
	MaxReservation time.Duration
	// Wall clock zone for ETA parsing.
	Location *time.Location
	// Defaults to time.Now.
	Clock    func() time.Time
	Exporter Exporter
}

type Engine struct {
	store    storage.Provider
	maxAhead time.Duration
	loc      *time.Location
	clock    func() time.Time
	exporter Exporter
	logger   *slog.Logger
}

func NewEngine(store storage.Provider, opts Options) *Engine {
	e := &Engine{
		store:    store,
		maxAhead: opts.MaxReservation,
		loc:      opts.Location,
		clock:    opts.Clock,
		exporter: opts.Exporter,
		logger:   slog.With("component", "reservation"),
	}
	if e.maxAhead <= 0 {
		e.maxAhead = DefaultMaxReservation
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

func (e *Engine) Location() *time.Location {
	return e.loc
}

// MaxReservation is the longest accepted distance between now and an ETA.
func (e *Engine) MaxReservation() time.Duration {
	return e.maxAhead
}

// Now returns the engine clock in the engine location.
func (e *Engine) Now() time.Time {
	return e.clock().In(e.loc)
}

// stamp is the minute precision time written to the log.
func (e *Engine) stamp() time.Time {
	return e.Now().Truncate(time.Minute)
}

// Lock reserves an Available device for user until eta.
func (e *Engine) Lock(ctx context.Context, deviceID int64, user string, eta string) error {
	user = NormalizeUser(user)
	if user == "" {
		return ErrUserRequired
	}
	etaTime, err := ParseETA(eta, e.loc)
	if err != nil {
		return err
	}

	// Bounds use the unrounded clock; the log keeps minute precision.
	current := e.Now()
	if etaTime.Before(current) {
		return ErrETAInPast
	}
	if etaTime.After(current.Add(e.maxAhead)) {
		return ErrETATooFar
	}
	now := e.stamp()

	err = e.store.WithTx(ctx, func(tx storage.Tx) error {
		device, err := tx.GetDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if device.InUse() {
			return ErrDeviceInUse
		}

		// An Available device should have no open entry. Close a stale one
		// rather than let the unique open-entry index reject the lock.
		if stale, err := tx.CloseLatestOpenLogEntry(ctx, deviceID, now); err != nil {
			return err
		} else if stale {
			e.logger.Warn("Closed stale open log entry", "device_id", deviceID)
		}

		ok, err := tx.MarkInUse(ctx, deviceID, user, etaTime)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDeviceInUse
		}
		_, err = tx.OpenLogEntry(ctx, deviceID, user, now)
		return err
	})
	if err != nil {
		e.logger.Debug("Lock rejected", "device_id", deviceID, "user", user, "error", err)
		return mapStoreError(err)
	}

	e.logger.Info("Device locked", "device_id", deviceID, "user", user, "eta", etaTime.Format(storage.TimeLayout))
	e.sync(ctx)
	return nil
}

// Unlock releases a device. It reports whether the device changed state;
// unlocking an Available device is a successful no-op.
func (e *Engine) Unlock(ctx context.Context, deviceID int64) (bool, error) {
	now := e.stamp()
	changed := false

	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		device, err := tx.GetDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if !device.InUse() {
			return nil
		}

		if err := tx.MarkAvailable(ctx, deviceID); err != nil {
			return err
		}
		closed, err := tx.CloseLatestOpenLogEntry(ctx, deviceID, now)
		if err != nil {
			return err
		}
		if !closed {
			e.logger.Warn("Unlocked device had no open log entry", "device_id", deviceID)
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, mapStoreError(err)
	}

	if changed {
		e.logger.Info("Device unlocked", "device_id", deviceID)
		e.sync(ctx)
	}
	return changed, nil
}

// Add creates a device, reusing the smallest free ID. If the chosen ID is
// taken or the transaction fails, the database assigns the next ID instead.
func (e *Engine) Add(ctx context.Context, name string) (int64, error) {
	name = normalizeName(name)
	if name == "" {
		return 0, ErrNameRequired
	}

	var id int64
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		ids, err := tx.DeviceIDs(ctx)
		if err != nil {
			return err
		}
		candidate := FindSmallestMissingID(ids)
		err = tx.InsertDevice(ctx, candidate, name)
		if errors.Is(err, storage.ErrDuplicateID) {
			e.logger.Warn("Recycled device id taken, using auto increment", "device_id", candidate)
			id, err = tx.InsertDeviceAuto(ctx, name)
			return err
		}
		if err != nil {
			return err
		}
		id = candidate
		return nil
	})
	if err != nil {
		e.logger.Warn("Device id allocation failed, using auto increment", "error", err)
		id, err = e.store.InsertDeviceAuto(ctx, name)
		if err != nil {
			return 0, fmt.Errorf("add device: %w", err)
		}
	}

	e.logger.Info("Device added", "device_id", id, "name", name)
	e.sync(ctx)
	return id, nil
}

// Rename changes a device name. No state machine interaction.
func (e *Engine) Rename(ctx context.Context, deviceID int64, name string) error {
	name = normalizeName(name)
	if name == "" {
		return ErrNameRequired
	}

	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.RenameDevice(ctx, deviceID, name)
	})
	if err != nil {
		return mapStoreError(err)
	}

	e.logger.Info("Device renamed", "device_id", deviceID, "name", name)
	e.sync(ctx)
	return nil
}

// Delete removes an Available device. Its log entries are kept.
func (e *Engine) Delete(ctx context.Context, deviceID int64) error {
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		device, err := tx.GetDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		if device.InUse() {
			return ErrDeviceInUse
		}
		return tx.DeleteDevice(ctx, deviceID)
	})
	if err != nil {
		return mapStoreError(err)
	}

	e.logger.Info("Device deleted", "device_id", deviceID)
	e.sync(ctx)
	return nil
}

// Recover fills every gap in [1, max ID] with a placeholder device, or seeds
// Device 1 into an empty table. It returns the created IDs; a second run
// creates none.
func (e *Engine) Recover(ctx context.Context) ([]int64, error) {
	var created []int64
	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		created = nil

		ids, err := tx.DeviceIDs(ctx)
		if err != nil {
			return err
		}
		missing := MissingIDs(ids)
		if len(ids) == 0 {
			missing = []int64{1}
		}

		for _, id := range missing {
			err := tx.InsertDevice(ctx, id, placeholderName(id))
			if errors.Is(err, storage.ErrDuplicateID) {
				continue
			}
			if err != nil {
				return err
			}
			created = append(created, id)
		}
		return nil
	})
	if err != nil {
		return nil, mapStoreError(err)
	}

	if len(created) > 0 {
		e.logger.Info("Recovered missing devices", "device_ids", created)
		e.sync(ctx)
	}
	return created, nil
}

func placeholderName(id int64) string {
	return fmt.Sprintf("Device %d", id)
}

// ListDevices returns all devices ordered by ID with their ETA status.
func (e *Engine) ListDevices(ctx context.Context) ([]DeviceView, error) {
	devices, err := e.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, DeviceView{Device: d, ETAStatus: etaStatus(d, now)})
	}
	return views, nil
}

func etaStatus(d storage.Device, now time.Time) ETAStatus {
	if !d.InUse() || d.ETA == nil {
		return ETANone
	}
	if !d.ETA.After(now) {
		return ETAPassed
	}
	return ETAActive
}

// RecentHistory returns the newest log entries first.
func (e *Engine) RecentHistory(ctx context.Context, limit int) ([]storage.LogEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	return e.store.RecentLogEntries(ctx, limit)
}

func (e *Engine) sync(ctx context.Context) {
	if e.exporter == nil {
		return
	}
	if err := e.exporter.Sync(ctx); err != nil {
		e.logger.Error("Log export failed", "error", err)
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, storage.ErrDeviceNotFound) {
		return fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	return err
}
