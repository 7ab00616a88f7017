/*mimic builds halo catalogues from dark matter merger trees.

Usage:

	mimic [flags] parameter_file

mimic reads the gcfg-style parameter file, loads each merger tree file
in the configured range, walks every tree in snapshot order while
running the enabled physics modules, and writes the tracked halos to
binary or HDF5 catalogues. Missing input files are skipped so a single
parameter file can describe a sharded simulation box, and a file range
can be split across independent processes with the FirstFile/LastFile
settings.
*/
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/phil-mansfield/mimic/config"
	"github.com/phil-mansfield/mimic/halo"
	"github.com/phil-mansfield/mimic/modules"
	"github.com/phil-mansfield/mimic/output"
	"github.com/phil-mansfield/mimic/tree"
)

const treeProgressInterval = 100

func main() {
	var (
		skip        bool
		exampleFile bool
		logPath     string
	)
	flag.BoolVar(&skip, "skip", false,
		"Skip input files whose output already exists instead of "+
			"overwriting it.")
	flag.BoolVar(&exampleFile, "example-config", false,
		"Print an example parameter file and exit.")
	flag.StringVar(&logPath, "log", "",
		"Write logging output to the given file instead of stderr.")
	flag.Parse()

	if exampleFile {
		fmt.Print(config.ExampleConfigFile)
		return
	}

	if flag.NArg() != 1 {
		log.Fatalf("Usage: %s [flags] parameter_file", os.Args[0])
	}

	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			log.Fatalf("Could not create log file: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	cfg, err := config.ReadConfigFile(flag.Arg(0))
	if err != nil {
		log.Fatalf("Error reading parameter file %s: %v", flag.Arg(0), err)
	}

	reg := modules.Defaults()
	if err := reg.InitPipeline(cfg); err != nil {
		log.Fatalf("Error initializing physics modules: %v", err)
	}

	for fileNr := cfg.FirstFile; fileNr <= cfg.LastFile; fileNr++ {
		if err := processFile(cfg, reg, fileNr, skip); err != nil {
			log.Fatalf("Error processing file %d: %v", fileNr, err)
		}
	}

	if err := reg.Cleanup(); err != nil {
		log.Fatalf("Error shutting down physics modules: %v", err)
	}
	log.Printf("Done.")
}

// processFile runs the full walk-and-save cycle on one input tree
// file. Input files missing from disk are skipped: tree sets are
// usually sharded and not every shard exists on every machine.
func processFile(cfg *config.MimicConfig, reg *modules.Registry,
	fileNr int, skip bool) error {

	treePath := cfg.TreeFilePath(fileNr)
	if _, err := os.Stat(treePath); os.IsNotExist(err) {
		log.Printf("Missing tree file %s, skipping.", treePath)
		return nil
	}

	if skip && outputExists(cfg, fileNr) {
		log.Printf("Output for file %d already exists, skipping.", fileNr)
		return nil
	}

	r, err := newReader(cfg, treePath)
	if err != nil {
		return err
	}
	defer r.Close()

	nTrees, nPerTree, err := r.LoadTreeTable()
	if err != nil {
		return err
	}
	log.Printf("File %d: %d trees.", fileNr, nTrees)

	w, err := newWriter(cfg, fileNr, nTrees)
	if err != nil {
		return err
	}

	for treeNr := 0; treeNr < nTrees; treeNr++ {
		if treeNr%treeProgressInterval == 0 {
			log.Printf("Processing file %d, tree %d of %d.",
				fileNr, treeNr, nTrees)
		}

		raw, err := r.LoadTree(treeNr)
		if err != nil {
			return err
		}
		if len(raw) != int(nPerTree[treeNr]) {
			return fmt.Errorf("tree %d: expected %d halos, read %d",
				treeNr, nPerTree[treeNr], len(raw))
		}

		walker := halo.NewWalker(cfg, raw, reg, fileNr, treeNr)
		arena, err := walker.Run()
		if err != nil {
			return err
		}
		if err := w.SaveTree(treeNr, raw, arena); err != nil {
			return err
		}
		walker.Free()
	}

	if err := w.Finalize(); err != nil {
		return err
	}
	log.Printf("Completed file %d.", fileNr)
	return nil
}

func newReader(cfg *config.MimicConfig, path string) (tree.Reader, error) {
	switch cfg.TreeType {
	case config.GenesisLHaloHDF5:
		return tree.NewHDF5Reader(path)
	default:
		return tree.NewBinaryReader(path)
	}
}

func newWriter(cfg *config.MimicConfig, fileNr, nTrees int) (output.Writer, error) {
	switch cfg.OutputFormat {
	case config.OutputHDF5:
		return output.NewHDF5Writer(cfg, fileNr, nTrees)
	default:
		return output.NewBinaryWriter(cfg, fileNr, nTrees), nil
	}
}

// outputExists reports whether this input file's first catalogue is
// already on disk. Checking only the first output is enough: a run
// that died partway never finalized its headers, and rerunning it
// without -skip overwrites the partial files.
func outputExists(cfg *config.MimicConfig, fileNr int) bool {
	var path string
	if cfg.OutputFormat == config.OutputHDF5 {
		path = cfg.HDF5FilePath(fileNr)
	} else {
		path = cfg.OutputFilePath(cfg.OutputSnaps[0], fileNr)
	}
	_, err := os.Stat(path)
	return err == nil
}
