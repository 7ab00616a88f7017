/*Package modules implements the physics pipeline that runs over each
friends-of-friends group after the halo tracker persists it. The core
knows nothing about baryonic physics: modules are registered by name,
enabled and ordered through the configuration file, and interact with
the tracker only through the halo.GroupProcessor interface and the
GalaxyData payload attached to each tracked halo.

A module may read any tracked halo field, but must restrict its writes
to GalaxyData. The one exception is merger bookkeeping: a merger-style
module owns the MergTime countdown of orphaned halos and ends a
lineage by setting MergeStatus, MergeIntoID, and MergeIntoSnapNum,
with MergeIntoID holding the arena index of the merger target.
*/
package modules

import (
	"fmt"
	"log"
	"strconv"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
)

// Context is handed to every module invocation. It describes the
// snapshot the group was persisted at.
type Context struct {
	Snap     int
	Redshift float64
	// Time is the lookback time to Snap in internal units.
	Time float64
	// Dt is the time elapsed since the previous snapshot in internal
	// units.
	Dt float64
	// GroupStart is the arena index of the first halo in the group.
	GroupStart int

	Cfg *config.MimicConfig
}

// Module is one physics component. Init is called once at startup in
// pipeline order, ProcessHalos once per persisted group, and Cleanup
// once at shutdown in reverse pipeline order.
type Module interface {
	Name() string
	Init(cfg *config.MimicConfig) error
	ProcessHalos(ctx *Context, halos []halo.Halo) error
	Cleanup() error
}

// A Registry holds every module compiled into the binary and the
// subset of them enabled by the configuration, in execution order. It
// implements halo.GroupProcessor.
type Registry struct {
	registered map[string]Module
	pipeline   []Module
	cfg        *config.MimicConfig
}

func NewRegistry() *Registry {
	return &Registry{registered: make(map[string]Module)}
}

// Add registers a module under its name. Registering two modules with
// the same name is a programming error.
func (r *Registry) Add(m Module) error {
	if _, ok := r.registered[m.Name()]; ok {
		return fmt.Errorf("module %q registered twice", m.Name())
	}
	r.registered[m.Name()] = m
	return nil
}

// InitPipeline builds the execution pipeline from cfg.EnabledModules
// and initializes each enabled module in order. An enabled module that
// was never registered, or a module whose Init fails, aborts startup.
func (r *Registry) InitPipeline(cfg *config.MimicConfig) error {
	r.cfg = cfg
	if len(cfg.EnabledModules) == 0 {
		log.Printf("No physics modules enabled.")
		return nil
	}
	for _, name := range cfg.EnabledModules {
		m, ok := r.registered[name]
		if !ok {
			return fmt.Errorf("module %q is enabled but not registered", name)
		}
		if err := m.Init(cfg); err != nil {
			return fmt.Errorf("module %q: init: %v", name, err)
		}
		r.pipeline = append(r.pipeline, m)
		log.Printf("Enabled physics module %q.", name)
	}
	return nil
}

// ProcessGroup runs the pipeline over one persisted group. The first
// module failure aborts the whole run.
func (r *Registry) ProcessGroup(gctx *halo.GroupContext) error {
	if len(r.pipeline) == 0 || len(gctx.Halos) == 0 {
		return nil
	}
	ctx := &Context{
		Snap:       gctx.Snap,
		Redshift:   gctx.Redshift,
		Time:       gctx.Time,
		Dt:         r.cfg.Ages.At(gctx.Snap-1) - r.cfg.Ages.At(gctx.Snap),
		GroupStart: gctx.GroupStart,
		Cfg:        r.cfg,
	}
	for _, m := range r.pipeline {
		if err := m.ProcessHalos(ctx, gctx.Halos); err != nil {
			return fmt.Errorf("module %q: %v", m.Name(), err)
		}
	}
	return nil
}

// Cleanup shuts the enabled modules down in reverse order. All
// cleanups run even if one fails; the first error is returned.
func (r *Registry) Cleanup() error {
	var firstErr error
	for i := len(r.pipeline) - 1; i >= 0; i-- {
		m := r.pipeline[i]
		if err := m.Cleanup(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("module %q: cleanup: %v", m.Name(), err)
		}
	}
	return firstErr
}

// Defaults returns a registry with every module shipped with the
// binary already registered.
func Defaults() *Registry {
	r := NewRegistry()
	for _, m := range []Module{
		&StellarMass{}, &SimpleCooling{}, &SimpleSFR{},
		&SageInfall{}, &SageCooling{}, &SageStarFormation{},
		&SageReincorporation{}, &SageMergers{},
	} {
		if err := r.Add(m); err != nil {
			panic(err)
		}
	}
	return r
}

// Parameter accessors. Module parameters live in the configuration
// file under the module's own section and fall back to the given
// default when absent. Malformed values are startup errors.

func ParamFloat(cfg *config.MimicConfig, module, name string, def float64) (float64, error) {
	s := cfg.Param(module, name, "")
	if s == "" {
		return def, nil
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s_%s = %q is not a number",
			module, name, s)
	}
	return x, nil
}

func ParamInt(cfg *config.MimicConfig, module, name string, def int) (int, error) {
	s := cfg.Param(module, name, "")
	if s == "" {
		return def, nil
	}
	x, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("parameter %s_%s = %q is not an integer",
			module, name, s)
	}
	return x, nil
}

func ParamBool(cfg *config.MimicConfig, module, name string, def bool) (bool, error) {
	s := cfg.Param(module, name, "")
	if s == "" {
		return def, nil
	}
	x, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("parameter %s_%s = %q is not a boolean",
			module, name, s)
	}
	return x, nil
}

// metallicity returns metals/gas, clamped to zero when either reservoir
// is empty.
func metallicity(gas, metals float32) float32 {
	if gas > 0 && metals > 0 {
		return metals / gas
	}
	return 0
}
