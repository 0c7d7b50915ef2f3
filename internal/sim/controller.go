package sim

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetsim/fleetsim-core/internal/device"
	"github.com/fleetsim/fleetsim-core/internal/telemetry"
)

// Controller composes the registry, scheduler, hub and repository into the
// fleet-level operations the API exposes. It owns the create/remove
// lifecycle; the scheduler owns the per-device tick loops.
type Controller struct {
	registry  *device.Registry
	scheduler *Scheduler
	hub       *telemetry.Hub
	repo      device.Repository
	logger    Logger

	// maxDevices caps the fleet size. 0 means unlimited.
	maxDevices int

	// historyLimit caps readings returned per history query.
	historyLimit int
}

// ControllerConfig holds controller tuning parameters.
type ControllerConfig struct {
	MaxDevices   int
	HistoryLimit int
}

// DeviceView is a device summary extended with its task status.
type DeviceView struct {
	device.Summary
	Status Status `json:"status"`
}

// NewController creates a controller over the given collaborators.
func NewController(reg *device.Registry, sched *Scheduler, hub *telemetry.Hub, repo device.Repository, logger Logger, cfg ControllerConfig) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 1000
	}

	return &Controller{
		registry:     reg,
		scheduler:    sched,
		hub:          hub,
		repo:         repo,
		logger:       logger,
		maxDevices:   cfg.MaxDevices,
		historyLimit: cfg.HistoryLimit,
	}
}

// CreateDevice constructs a device from the create spec, registers it, persists
// its config and starts its simulation task.
func (c *Controller) CreateDevice(ctx context.Context, spec device.CreateSpec) (DeviceView, error) {
	if c.maxDevices > 0 && c.registry.Count() >= c.maxDevices {
		return DeviceView{}, fmt.Errorf("%w: limit %d", ErrFleetFull, c.maxDevices)
	}

	dev, err := device.New(device.GenerateID(), spec)
	if err != nil {
		return DeviceView{}, err
	}

	if err := c.registry.Add(dev); err != nil {
		return DeviceView{}, err
	}

	rec, err := device.ToRecord(dev)
	if err == nil {
		err = c.repo.SaveDeviceConfig(ctx, rec)
	}
	if err != nil {
		// Roll back: a device we cannot persist would silently vanish
		// on restart.
		_ = c.registry.Remove(dev.ID()) //nolint:errcheck
		return DeviceView{}, fmt.Errorf("persisting device config: %w", err)
	}

	if err := c.scheduler.Start(dev.ID()); err != nil {
		_ = c.registry.Remove(dev.ID())              //nolint:errcheck
		_ = c.repo.DeleteDeviceConfig(ctx, dev.ID()) //nolint:errcheck
		return DeviceView{}, fmt.Errorf("starting device task: %w", err)
	}

	c.logger.Debug("device created",
		"device_id", dev.ID(),
		"kind", dev.Kind(),
		"name", dev.Name())

	return c.view(dev.Summary()), nil
}

// GetDevice returns a single device view.
func (c *Controller) GetDevice(id string) (DeviceView, error) {
	sum, err := c.registry.Summary(id)
	if err != nil {
		return DeviceView{}, err
	}
	return c.view(sum), nil
}

// ListDevices returns views of all live devices ordered by name.
func (c *Controller) ListDevices() []DeviceView {
	sums := c.registry.List()
	views := make([]DeviceView, 0, len(sums))
	for _, sum := range sums {
		views = append(views, c.view(sum))
	}
	return views
}

// Command applies a control command to a device under its serialization
// token, so it never interleaves with a tick.
func (c *Controller) Command(_ context.Context, id string, cmd device.Command) (device.State, error) {
	var state device.State
	err := c.registry.WithDevice(id, func(d device.Device) error {
		var applyErr error
		state, applyErr = d.Apply(cmd)
		return applyErr
	})
	return state, err
}

// Configure applies a config delta to a device and persists the updated
// config.
func (c *Controller) Configure(ctx context.Context, id string, delta map[string]any) (device.State, error) {
	var (
		state device.State
		rec   device.Record
	)
	err := c.registry.WithDevice(id, func(d device.Device) error {
		var cfgErr error
		state, cfgErr = d.Configure(delta)
		if cfgErr != nil {
			return cfgErr
		}
		rec, cfgErr = device.ToRecord(d)
		return cfgErr
	})
	if err != nil {
		return nil, err
	}

	if err := c.repo.SaveDeviceConfig(ctx, rec); err != nil {
		// The live device already carries the new config; losing the
		// persisted copy is a restart-survival problem, not a failure
		// of the operation itself.
		c.logger.Error("persisting updated config failed", "device_id", id, "error", err)
	}

	return state, nil
}

// RemoveDevice stops the device's simulation task, waits for it to exit,
// then unregisters the device and deletes its persisted config. When this
// returns, no further readings from the device will be published.
func (c *Controller) RemoveDevice(ctx context.Context, id string) error {
	// Existence check first so a bogus ID is NotFound, not NotRunning.
	if _, err := c.registry.Summary(id); err != nil {
		return err
	}

	if err := c.scheduler.Stop(id); err != nil && !errors.Is(err, ErrNotRunning) {
		return err
	}

	if err := c.registry.Remove(id); err != nil {
		return err
	}

	if err := c.repo.DeleteDeviceConfig(ctx, id); err != nil && !errors.Is(err, device.ErrNotFound) {
		c.logger.Error("deleting device config failed", "device_id", id, "error", err)
	}

	c.logger.Debug("device removed", "device_id", id)
	return nil
}

// Readings returns the most recent persisted readings for a device, newest
// first. The device must currently exist.
func (c *Controller) Readings(ctx context.Context, id string, limit int) ([]device.Reading, error) {
	if _, err := c.registry.Summary(id); err != nil {
		return nil, err
	}
	if limit < 1 || limit > c.historyLimit {
		limit = c.historyLimit
	}
	return c.repo.ListReadings(ctx, id, limit)
}

// SetAllSwitches applies turn_on or turn_off to every active switch in the
// fleet and returns how many switches changed. Sensors and passive
// switches are skipped.
func (c *Controller) SetAllSwitches(_ context.Context, on bool) int {
	cmd := device.Command{Name: device.CmdTurnOff}
	if on {
		cmd.Name = device.CmdTurnOn
	}

	changed := 0
	for _, id := range c.registry.IDs() {
		err := c.registry.WithDevice(id, func(d device.Device) error {
			if d.Kind() != device.KindSwitch {
				return device.ErrInvalidCommand
			}
			_, applyErr := d.Apply(cmd)
			return applyErr
		})
		if err == nil {
			changed++
		}
	}
	return changed
}

// Restore repopulates the registry from persisted configs and starts a
// task per device. Invalid records are logged and skipped so one bad row
// cannot keep the fleet down.
func (c *Controller) Restore(ctx context.Context) error {
	records, err := c.repo.LoadAllDeviceConfigs(ctx)
	if err != nil {
		return fmt.Errorf("loading device configs: %w", err)
	}

	for _, rec := range records {
		dev, err := device.FromRecord(rec)
		if err != nil {
			c.logger.Error("skipping unrestorable device", "device_id", rec.ID, "error", err)
			continue
		}
		if err := c.registry.Add(dev); err != nil {
			c.logger.Error("skipping duplicate device", "device_id", rec.ID, "error", err)
			continue
		}
		if err := c.scheduler.Start(dev.ID()); err != nil {
			c.logger.Error("starting restored device failed", "device_id", rec.ID, "error", err)
		}
	}

	c.logger.Debug("fleet restored", "devices", c.registry.Count())
	return nil
}

// Close stops all device tasks and waits for them.
func (c *Controller) Close() {
	c.scheduler.StopAll()
}

func (c *Controller) view(sum device.Summary) DeviceView {
	return DeviceView{
		Summary: sum,
		Status:  c.scheduler.Status(sum.ID),
	}
}
