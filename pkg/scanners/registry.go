package scanners

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pyneda/sukyan/pkg/model"
)

// Registry resolves a model.ScannerID to its Driver implementation.
type Registry struct {
	drivers map[model.ScannerID]Driver
}

// NewRegistry builds the default registry from viper configuration. When
// scanners.simulate is set, every scanner ID is backed by the deterministic
// SimulateDriver instead of its real implementation, which is how scanner
// behavior is exercised in tests and offline demos.
func NewRegistry() *Registry {
	r := &Registry{drivers: make(map[model.ScannerID]Driver)}

	if viper.GetBool("scanners.simulate") {
		for _, id := range []model.ScannerID{model.ScannerAxe, model.ScannerPa11y, model.ScannerWave, model.ScannerLighthouse} {
			r.drivers[id] = NewSimulateDriver(id)
		}
		return r
	}

	r.drivers[model.ScannerAxe] = NewSubprocessDriver(model.ScannerAxe, viper.GetString("scanners.axe.binary"))
	r.drivers[model.ScannerPa11y] = NewSubprocessDriver(model.ScannerPa11y, viper.GetString("scanners.pa11y.binary"))
	r.drivers[model.ScannerLighthouse] = NewSubprocessDriver(model.ScannerLighthouse, viper.GetString("scanners.lighthouse.binary"))
	r.drivers[model.ScannerWave] = NewWaveDriver()

	return r
}

// Get returns the driver for id, or an error if none is registered.
func (r *Registry) Get(id model.ScannerID) (Driver, error) {
	d, ok := r.drivers[id]
	if !ok {
		return nil, fmt.Errorf("no driver registered for scanner %q", id)
	}
	return d, nil
}

// Register overrides (or adds) the driver for id. Used by tests.
func (r *Registry) Register(id model.ScannerID, d Driver) {
	r.drivers[id] = d
}
