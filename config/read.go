package config

import (
	"fmt"
	"strings"

	"github.com/phil-mansfield/table"
	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/mimic/cosmo"
)

// ReadConfigFile reads and validates the parameter file at fname and
// returns the processed run configuration. Any missing or out-of-range
// parameter is an error: a run never starts from a partially valid
// configuration.
func ReadConfigFile(fname string) (*MimicConfig, error) {
	wrap := DefaultConfigWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, fmt.Errorf("cannot read parameter file %s: %v", fname, err)
	}
	return wrap.Process()
}

// Process validates a parsed parameter file and computes every derived
// quantity. It is split from ReadConfigFile so tests can build
// configurations without touching the filesystem.
func (wrap *ConfigWrapper) Process() (*MimicConfig, error) {
	if err := wrap.validate(); err != nil {
		return nil, err
	}

	cfg := &MimicConfig{
		FirstFile:          wrap.Files.FirstFile,
		LastFile:           wrap.Files.LastFile,
		SimulationDir:      wrap.Files.SimulationDir,
		TreeName:           wrap.Files.TreeName,
		TreeExtension:      wrap.Files.TreeExtension,
		FileWithSnapList:   wrap.Files.FileWithSnapList,
		OutputDir:          wrap.Files.OutputDir,
		OutputFileBaseName: wrap.Files.OutputFileBaseName,
		Overwrite:          wrap.Files.Overwrite,

		Omega:          wrap.Simulation.Omega,
		OmegaLambda:    wrap.Simulation.OmegaLambda,
		PartMass:       wrap.Simulation.PartMass,
		HubbleH:        wrap.Simulation.HubbleH,
		BoxSize:        wrap.Simulation.BoxSize,
		LastSnapshotNr: wrap.Simulation.LastSnapshotNr,

		UnitLengthInCm:       wrap.Units.UnitLengthInCm,
		UnitMassInG:          wrap.Units.UnitMassInG,
		UnitVelocityInCmPerS: wrap.Units.UnitVelocityInCmPerS,
	}

	switch strings.ToLower(wrap.Input.TreeType) {
	case "lhalo-binary":
		cfg.TreeType = LHaloBinary
	case "genesis-lhalo-hdf5":
		cfg.TreeType = GenesisLHaloHDF5
	}
	switch strings.ToLower(wrap.Output.Format) {
	case "binary":
		cfg.OutputFormat = OutputBinary
	case "hdf5":
		cfg.OutputFormat = OutputHDF5
	}

	cfg.SetUnits()

	aa, err := readSnapList(cfg.FileWithSnapList)
	if err != nil {
		return nil, err
	}
	if err := cfg.SetSnapshots(aa); err != nil {
		return nil, err
	}

	for _, snap := range wrap.Output.OutputSnap {
		if snap >= len(cfg.AA) {
			return nil, fmt.Errorf(
				"OutputSnap %d exceeds the %d snapshots listed in %s",
				snap, len(cfg.AA), cfg.FileWithSnapList,
			)
		}
		cfg.OutputSnaps = append(cfg.OutputSnaps, snap)
	}

	if err := cfg.setModules(wrap); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (wrap *ConfigWrapper) validate() error {
	files := &wrap.Files
	switch {
	case !files.ValidFileRange():
		return fmt.Errorf("invalid FirstFile/LastFile range [%d, %d]",
			files.FirstFile, files.LastFile)
	case !files.ValidSimulationDir():
		return fmt.Errorf("missing 'SimulationDir' value")
	case !files.ValidTreeName():
		return fmt.Errorf("missing 'TreeName' value")
	case !files.ValidFileWithSnapList():
		return fmt.Errorf("missing 'FileWithSnapList' value")
	case !files.ValidOutputDir():
		return fmt.Errorf("missing 'OutputDir' value")
	case !files.ValidOutputFileBaseName():
		return fmt.Errorf("missing 'OutputFileBaseName' value")
	}

	if !wrap.Input.ValidTreeType() {
		return fmt.Errorf("invalid 'TreeType' value '%s'", wrap.Input.TreeType)
	}
	if !wrap.Output.ValidFormat() {
		return fmt.Errorf("invalid output 'Format' value '%s'",
			wrap.Output.Format)
	}
	if !wrap.Output.ValidOutputSnap() {
		return fmt.Errorf("need at least one non-negative 'OutputSnap' value")
	}

	sim := &wrap.Simulation
	switch {
	case !sim.ValidOmega():
		return fmt.Errorf("invalid 'Omega' value %g", sim.Omega)
	case !sim.ValidOmegaLambda():
		return fmt.Errorf("invalid 'OmegaLambda' value %g", sim.OmegaLambda)
	case !sim.ValidPartMass():
		return fmt.Errorf("invalid 'PartMass' value %g", sim.PartMass)
	case !sim.ValidHubbleH():
		return fmt.Errorf("invalid 'HubbleH' value %g", sim.HubbleH)
	case !sim.ValidBoxSize():
		return fmt.Errorf("invalid 'BoxSize' value %g", sim.BoxSize)
	case !sim.ValidLastSnapshotNr():
		return fmt.Errorf("invalid 'LastSnapshotNr' value %d",
			sim.LastSnapshotNr)
	}

	if !wrap.Units.Valid() {
		return fmt.Errorf("all three unit parameters must be positive")
	}

	return nil
}

// SetUnits computes the derived unit system and the cosmological constants
// in internal units.
func (cfg *MimicConfig) SetUnits() {
	cfg.UnitTimeInS = cfg.UnitLengthInCm / cfg.UnitVelocityInCmPerS
	cfg.UnitTimeInMegayears = cfg.UnitTimeInS / cosmo.SecPerMegayear

	g := cosmo.Gravity / (cfg.UnitLengthInCm * cfg.UnitLengthInCm *
		cfg.UnitLengthInCm) * cfg.UnitMassInG *
		cfg.UnitTimeInS * cfg.UnitTimeInS
	hubble := cosmo.HubbleCGS * cfg.UnitTimeInS

	cfg.Cosmo = cosmo.Cosmology{
		OmegaM: cfg.Omega,
		OmegaL: cfg.OmegaLambda,
		Hubble: hubble,
		G:      g,
	}
}

// SetSnapshots installs the snapshot scale-factor list and computes the
// redshift and lookback-time tables. Exported so tests and synthetic-tree
// drivers can configure snapshots directly.
func (cfg *MimicConfig) SetSnapshots(aa []float64) error {
	if len(aa) == 0 {
		return fmt.Errorf("snapshot list is empty")
	}
	cfg.AA = aa
	cfg.ZZ = make([]float64, len(aa))
	for i, a := range aa {
		if a <= 0 || a > 1 {
			return fmt.Errorf("snapshot %d has invalid scale factor %g", i, a)
		}
		cfg.ZZ[i] = 1/a - 1
	}
	cfg.Ages = cfg.Cosmo.Ages(cfg.ZZ)
	return nil
}

// readSnapList reads the one-column text file listing the scale factor of
// every snapshot.
func readSnapList(fname string) ([]float64, error) {
	cols, err := table.ReadTable(fname, []int{0}, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot list %s: %v", fname, err)
	}
	return cols[0], nil
}

// setModules records the enabled-module order and splits each module
// section's Param lines into that module's name -> value map.
func (cfg *MimicConfig) setModules(wrap *ConfigWrapper) error {
	cfg.EnabledModules = wrap.Modules.Enable
	cfg.ModuleParams = map[string]map[string]string{}

	for name, sec := range wrap.Module {
		params := map[string]string{}
		for _, line := range sec.Param {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				return fmt.Errorf(
					"module %s: Param line '%s' is not '<name> <value>'",
					name, line,
				)
			}
			params[fields[0]] = fields[1]
		}
		cfg.ModuleParams[name] = params
	}

	return nil
}

// Param returns the named parameter of the given module, or def if the
// parameter file does not set it.
func (cfg *MimicConfig) Param(module, name, def string) string {
	if params, ok := cfg.ModuleParams[module]; ok {
		if v, ok := params[name]; ok {
			return v
		}
	}
	return def
}
