// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package station

import (
	"sync"
	"time"

	"github.com/qbridge/qbridge/internal/drivers/cryomag"
	"github.com/qbridge/qbridge/internal/drivers/decadac"
	"github.com/qbridge/qbridge/internal/drivers/rcspdt"
	"github.com/qbridge/qbridge/internal/instrument"
)

// BuildFunc constructs a driver on a prepared base.
type BuildFunc func(base *instrument.Base, cfg InstrumentConfig) (instrument.Instrument, error)

var (
	driverMu sync.RWMutex
	drivers  = map[string]BuildFunc{}
	aliases  = map[string]string{}
)

func init() {
	Register("decadac", buildDecadac)
	Register("rcspdt", buildRCSPDT)
	Register("cryomag", buildCryomag)

	// Model-style names accepted in configs.
	RegisterAlias("harvard_decadac", "decadac")
	RegisterAlias("minicircuits_rc_spdt", "rcspdt")
	RegisterAlias("rc_spdt", "rcspdt")
}

// Register adds a driver under its canonical name.
func Register(name string, fn BuildFunc) {
	driverMu.Lock()
	defer driverMu.Unlock()
	drivers[NormalizeName(name)] = fn
}

// RegisterAlias maps an alternate driver name onto a canonical one.
func RegisterAlias(alias, canonical string) {
	driverMu.Lock()
	defer driverMu.Unlock()
	aliases[NormalizeName(alias)] = NormalizeName(canonical)
}

func lookupDriver(name string) (BuildFunc, bool) {
	driverMu.RLock()
	defer driverMu.RUnlock()
	key := NormalizeName(name)
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	fn, ok := drivers[key]
	return fn, ok
}

// DriverNames lists canonical driver names, sorted.
func DriverNames() []string {
	driverMu.RLock()
	defer driverMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	return sortedCopy(names)
}

func buildDecadac(base *instrument.Base, cfg InstrumentConfig) (instrument.Instrument, error) {
	var opts []decadac.Option
	if minV, okMin := optFloat(cfg.Options, "min_volt"); okMin {
		if maxV, okMax := optFloat(cfg.Options, "max_volt"); okMax {
			opts = append(opts, decadac.WithRange(minV, maxV))
		}
	}
	return decadac.New(base, opts...), nil
}

func buildRCSPDT(base *instrument.Base, _ InstrumentConfig) (instrument.Instrument, error) {
	return rcspdt.New(base), nil
}

func buildCryomag(base *instrument.Base, cfg InstrumentConfig) (instrument.Instrument, error) {
	var opts []cryomag.Option
	if maxField, ok := optFloat(cfg.Options, "max_field"); ok {
		opts = append(opts, cryomag.WithMaxField(maxField))
	}
	if settle, ok := optFloat(cfg.Options, "heater_settle_seconds"); ok {
		opts = append(opts, cryomag.WithSettle(time.Duration(settle*float64(time.Second))))
	}
	return cryomag.New(base, opts...), nil
}

// optFloat reads a numeric option. YAML hands numbers over as int or
// float64 depending on how they were written.
func optFloat(opts map[string]any, key string) (float64, bool) {
	v, ok := opts[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
