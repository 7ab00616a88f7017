/*Package config loads and validates mimic parameter files. Parameter files
are gcfg-style ini files; see ExampleConfigFile for a complete annotated
example. The loaded configuration is post-processed into a MimicConfig,
which carries the derived unit system, the snapshot redshift and
lookback-time tables, and the per-module parameter namespaces consumed by
the physics-module pipeline.
*/
package config

import (
	"fmt"
	"strings"

	"github.com/phil-mansfield/mimic/cosmo"
)

const ExampleConfigFile = `[Files]

# First and last tree file number to process.
FirstFile = 0
LastFile  = 7

# Directory containing the input tree files, the shared base name of those
# files, and the extension appended after the file number. Tree files are
# named <SimulationDir>/<TreeName>.<n><TreeExtension>.
SimulationDir = path/to/treedir
TreeName      = trees_063
TreeExtension =

# Text file listing the scale factor of every snapshot, one per line.
FileWithSnapList = path/to/millennium.a_list

# Directory and base name for the output catalogues.
OutputDir          = path/to/output
OutputFileBaseName = model

# Set to false to skip tree files whose output already exists.
# Overwrite = true

[Input]

# Format of the input tree files. "lhalo-binary" is the only format
# supported without HDF5 support compiled in.
TreeType = lhalo-binary

[Output]

# "binary" or "hdf5". HDF5 output requires building with the hdf5 tag.
Format = binary

# Snapshots to write catalogues for. Repeat the line for each snapshot.
OutputSnap = 63

[Simulation]

Omega          = 0.25
OmegaLambda    = 0.75
PartMass       = 0.0860657
HubbleH        = 0.73
BoxSize        = 62.5
LastSnapshotNr = 63

[Units]

UnitLengthInCm       = 3.08568e24
UnitMassInG          = 1.989e43
UnitVelocityInCmPerS = 100000

[Modules]

# Physics modules to run, in execution order. Repeat the line for each
# module. Leave empty for a physics-free halo-tracking run.
# Enable = SimpleCooling
# Enable = StellarMass

# Each enabled module reads its own parameters from a section named after
# it. Parameter lines are "Param = <name> <value>".
# [Module "SimpleCooling"]
# Param = BaryonFraction 0.15`

// TreeType selects the input tree file format.
type TreeType int

const (
	LHaloBinary TreeType = iota
	GenesisLHaloHDF5
)

// OutputFormat selects the output catalogue format.
type OutputFormat int

const (
	OutputBinary OutputFormat = iota
	OutputHDF5
)

type FilesConfig struct {
	// Required
	FirstFile, LastFile                    int
	SimulationDir, TreeName, TreeExtension string
	FileWithSnapList                       string
	OutputDir, OutputFileBaseName          string
	// Optional
	Overwrite bool
}

func (con *FilesConfig) ValidFileRange() bool {
	return con.FirstFile >= 0 && con.LastFile >= con.FirstFile
}
func (con *FilesConfig) ValidSimulationDir() bool {
	return con.SimulationDir != ""
}
func (con *FilesConfig) ValidTreeName() bool {
	return con.TreeName != ""
}
func (con *FilesConfig) ValidFileWithSnapList() bool {
	return con.FileWithSnapList != ""
}
func (con *FilesConfig) ValidOutputDir() bool {
	return con.OutputDir != ""
}
func (con *FilesConfig) ValidOutputFileBaseName() bool {
	return con.OutputFileBaseName != ""
}

type InputConfig struct {
	TreeType string
}

func (con *InputConfig) ValidTreeType() bool {
	switch strings.ToLower(con.TreeType) {
	case "lhalo-binary", "genesis-lhalo-hdf5":
		return true
	}
	return false
}

type OutputConfig struct {
	Format     string
	OutputSnap []int
}

func (con *OutputConfig) ValidFormat() bool {
	switch strings.ToLower(con.Format) {
	case "binary", "hdf5":
		return true
	}
	return false
}
func (con *OutputConfig) ValidOutputSnap() bool {
	if len(con.OutputSnap) == 0 {
		return false
	}
	for _, s := range con.OutputSnap {
		if s < 0 {
			return false
		}
	}
	return true
}

type SimulationConfig struct {
	Omega, OmegaLambda, PartMass, HubbleH, BoxSize float64
	LastSnapshotNr                                 int
}

func (con *SimulationConfig) ValidOmega() bool {
	return con.Omega > 0 && con.Omega <= 1
}
func (con *SimulationConfig) ValidOmegaLambda() bool {
	return con.OmegaLambda >= 0 && con.OmegaLambda <= 1
}
func (con *SimulationConfig) ValidPartMass() bool {
	return con.PartMass > 0
}
func (con *SimulationConfig) ValidHubbleH() bool {
	return con.HubbleH > 0
}
func (con *SimulationConfig) ValidBoxSize() bool {
	return con.BoxSize > 0
}
func (con *SimulationConfig) ValidLastSnapshotNr() bool {
	return con.LastSnapshotNr >= 0
}

type UnitsConfig struct {
	UnitLengthInCm, UnitMassInG, UnitVelocityInCmPerS float64
}

func (con *UnitsConfig) Valid() bool {
	return con.UnitLengthInCm > 0 && con.UnitMassInG > 0 &&
		con.UnitVelocityInCmPerS > 0
}

type ModulesConfig struct {
	Enable []string
}

type ModuleConfig struct {
	Param []string
}

// ConfigWrapper matches the section layout of a parameter file.
type ConfigWrapper struct {
	Files      FilesConfig
	Input      InputConfig
	Output     OutputConfig
	Simulation SimulationConfig
	Units      UnitsConfig
	Modules    ModulesConfig
	Module     map[string]*ModuleConfig
}

func DefaultConfigWrapper() *ConfigWrapper {
	wrap := &ConfigWrapper{}
	wrap.Files.Overwrite = true
	wrap.Input.TreeType = "lhalo-binary"
	wrap.Output.Format = "binary"
	return wrap
}

// MimicConfig is the fully processed run configuration: the validated
// parameter-file contents plus every derived quantity the rest of the code
// needs. It is constructed once per process and read-only afterwards.
type MimicConfig struct {
	FirstFile, LastFile                    int
	SimulationDir, TreeName, TreeExtension string
	FileWithSnapList                       string
	OutputDir, OutputFileBaseName          string
	Overwrite                              bool

	TreeType     TreeType
	OutputFormat OutputFormat

	Omega, OmegaLambda, PartMass, HubbleH, BoxSize float64
	LastSnapshotNr                                 int

	// Unit system. Base units are length (cm), mass (g), velocity (cm/s);
	// everything else is derived.
	UnitLengthInCm, UnitMassInG, UnitVelocityInCmPerS float64
	UnitTimeInS, UnitTimeInMegayears                  float64

	Cosmo cosmo.Cosmology

	// Snapshot tables, indexed by snapshot number.
	AA, ZZ []float64
	Ages   cosmo.Ages

	// Snapshots written to the output catalogue, in file order.
	OutputSnaps []int

	// Physics modules to run, in execution order, and the per-module
	// parameter namespaces.
	EnabledModules []string
	ModuleParams   map[string]map[string]string
}

// MaxSnap returns the largest snapshot number a tree may contain.
func (cfg *MimicConfig) MaxSnap() int { return len(cfg.AA) - 1 }

// TreeFilePath returns the path of input tree file fileNr.
func (cfg *MimicConfig) TreeFilePath(fileNr int) string {
	return fmt.Sprintf("%s/%s.%d%s",
		cfg.SimulationDir, cfg.TreeName, fileNr, cfg.TreeExtension)
}

// OutputFilePath returns the path of the binary output catalogue for the
// given snapshot and file number. Binary output is one file per snapshot
// per tree file; HDF5 output is one file per tree file (see HDF5FilePath).
func (cfg *MimicConfig) OutputFilePath(snap, fileNr int) string {
	return fmt.Sprintf("%s/%s_z%1.3f_%d",
		cfg.OutputDir, cfg.OutputFileBaseName, cfg.ZZ[snap], fileNr)
}

// HDF5FilePath returns the path of the HDF5 output file for fileNr.
func (cfg *MimicConfig) HDF5FilePath(fileNr int) string {
	return fmt.Sprintf("%s/%s_%03d.hdf5",
		cfg.OutputDir, cfg.OutputFileBaseName, fileNr)
}
