package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"device-reservation/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T) Provider {
	t.Helper()
	cfg := &config.Storage{
		SQLite: &config.SQLiteStorage{Path: filepath.Join(t.TempDir(), "devices.db")},
	}
	p, err := NewProvider(cfg, time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

func at(s string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMigrationsSeedDevices(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	version, err := p.GetSchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	devices, err := p.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 15)
	for i, d := range devices {
		assert.Equal(t, int64(i+1), d.ID)
		assert.Equal(t, DeviceStatusAvailable, d.Status)
		assert.Nil(t, d.CurrentUser)
		assert.Nil(t, d.ETA)
	}
	assert.Equal(t, "Device 1", devices[0].Name)
}

func TestMigrationsAreNotReapplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.db")
	cfg := &config.Storage{SQLite: &config.SQLiteStorage{Path: path}}
	ctx := context.Background()

	p, err := NewProvider(cfg, time.UTC)
	require.NoError(t, err)
	require.NoError(t, p.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteDevice(ctx, 3)
	}))
	require.NoError(t, p.Close())

	p, err = NewProvider(cfg, time.UTC)
	require.NoError(t, err)
	defer p.Close()

	devices, err := p.ListDevices(ctx)
	require.NoError(t, err)
	assert.Len(t, devices, 14, "seed must not run again")
}

func TestGetDeviceNotFound(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.GetDevice(context.Background(), 99)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestMarkInUseAndAvailable(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	eta := at("2024-01-01T12:00")

	err := p.WithTx(ctx, func(tx Tx) error {
		ok, err := tx.MarkInUse(ctx, 2, "ALICE", eta)
		require.NoError(t, err)
		assert.True(t, ok)

		// Second lock is refused by the status guard
		ok, err = tx.MarkInUse(ctx, 2, "BOB", eta)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	d, err := p.GetDevice(ctx, 2)
	require.NoError(t, err)
	assert.True(t, d.InUse())
	require.NotNil(t, d.CurrentUser)
	assert.Equal(t, "ALICE", *d.CurrentUser)
	require.NotNil(t, d.ETA)
	assert.True(t, eta.Equal(*d.ETA))

	require.NoError(t, p.WithTx(ctx, func(tx Tx) error {
		return tx.MarkAvailable(ctx, 2)
	}))
	d, err = p.GetDevice(ctx, 2)
	require.NoError(t, err)
	assert.False(t, d.InUse())
	assert.Nil(t, d.CurrentUser)
	assert.Nil(t, d.ETA)
}

func TestWithTxRollsBack(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := p.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.MarkInUse(ctx, 1, "ALICE", at("2024-01-01T12:00")); err != nil {
			return err
		}
		if _, err := tx.OpenLogEntry(ctx, 1, "ALICE", at("2024-01-01T10:00")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	d, err := p.GetDevice(ctx, 1)
	require.NoError(t, err)
	assert.False(t, d.InUse())

	entries, err := p.RecentLogEntries(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestInsertDeviceDuplicateID(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	err := p.WithTx(ctx, func(tx Tx) error {
		return tx.InsertDevice(ctx, 5, "Again")
	})
	assert.ErrorIs(t, err, ErrDuplicateID)

	id, err := p.InsertDeviceAuto(ctx, "Scope")
	require.NoError(t, err)
	assert.Equal(t, int64(16), id)
}

func TestRenameAndDeleteMissingDevice(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	err := p.WithTx(ctx, func(tx Tx) error {
		return tx.RenameDevice(ctx, 42, "Nope")
	})
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	err = p.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteDevice(ctx, 42)
	})
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestOneOpenEntryPerDevice(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.WithTx(ctx, func(tx Tx) error {
		_, err := tx.OpenLogEntry(ctx, 1, "ALICE", at("2024-01-01T09:00"))
		return err
	}))

	err := p.WithTx(ctx, func(tx Tx) error {
		_, err := tx.OpenLogEntry(ctx, 1, "BOB", at("2024-01-01T09:30"))
		return err
	})
	assert.Error(t, err)
}

func TestCloseLatestOpenLogEntry(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.WithTx(ctx, func(tx Tx) error {
		_, err := tx.OpenLogEntry(ctx, 1, "ALICE", at("2024-01-01T09:00"))
		require.NoError(t, err)
		_, err = tx.OpenLogEntry(ctx, 2, "BOB", at("2024-01-01T09:05"))
		require.NoError(t, err)

		closed, err := tx.CloseLatestOpenLogEntry(ctx, 1, at("2024-01-01T11:10"))
		require.NoError(t, err)
		assert.True(t, closed)

		// Nothing left open for device 1
		closed, err = tx.CloseLatestOpenLogEntry(ctx, 1, at("2024-01-01T11:20"))
		require.NoError(t, err)
		assert.False(t, closed)
		return nil
	}))

	entries, err := p.RecentLogEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// Newest first
	assert.Equal(t, int64(2), entries[0].DeviceID)
	assert.True(t, entries[0].Ongoing())
	assert.Equal(t, "Device 2", entries[0].DeviceName)

	assert.Equal(t, int64(1), entries[1].DeviceID)
	require.NotNil(t, entries[1].EndTime)
	assert.Equal(t, "2024-01-01T11:10", entries[1].EndTime.Format(TimeLayout))
}

func TestQueryLogEntriesOrderAndRange(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	// Inserted out of order on purpose
	starts := []struct {
		device int64
		start  string
	}{
		{3, "2024-01-02T08:00"},
		{1, "2024-01-01T10:00"},
		{2, "2024-01-01T09:00"},
		{4, "2024-01-03T07:00"},
	}
	require.NoError(t, p.WithTx(ctx, func(tx Tx) error {
		for _, s := range starts {
			if _, err := tx.OpenLogEntry(ctx, s.device, "ALICE", at(s.start)); err != nil {
				return err
			}
		}
		return nil
	}))

	all, err := p.QueryLogEntries(ctx, DateRange{})
	require.NoError(t, err)
	var got []int64
	for _, e := range all {
		got = append(got, e.DeviceID)
	}
	assert.Equal(t, []int64{2, 1, 3, 4}, got)

	from := at("2024-01-02T00:00")
	to := at("2024-01-02T00:00")
	some, err := p.QueryLogEntries(ctx, DateRange{Start: &from, End: &to})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, int64(3), some[0].DeviceID)

	some, err = p.QueryLogEntries(ctx, DateRange{Start: &from})
	require.NoError(t, err)
	assert.Len(t, some, 2)
}

func TestLogEntriesOutliveDevice(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.WithTx(ctx, func(tx Tx) error {
		if _, err := tx.OpenLogEntry(ctx, 7, "ALICE", at("2024-01-01T09:00")); err != nil {
			return err
		}
		if _, err := tx.CloseLatestOpenLogEntry(ctx, 7, at("2024-01-01T10:00")); err != nil {
			return err
		}
		return tx.DeleteDevice(ctx, 7)
	}))

	entries, err := p.QueryLogEntries(ctx, DateRange{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].DeviceID)
	assert.Empty(t, entries[0].DeviceName)
}
