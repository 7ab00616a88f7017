package modules

import (
	"fmt"
	"math"

	"github.com/phil-mansfield/table"
)

// Sutherland & Dopita (1993) collisional ionization equilibrium
// cooling functions. Each table samples log10(Lambda / erg cm^3 s^-1)
// at 91 temperatures from log T = 4.0 to 8.5 in 0.05 dex steps, at a
// fixed [Fe/H].
const (
	coolTabSize     = 91
	coolLogTMin     = 4.0
	coolLogTSpacing = 0.05
)

var coolingFileNames = [8]string{
	"stripped_mzero.cie",
	"stripped_m-30.cie",
	"stripped_m-20.cie",
	"stripped_m-15.cie",
	"stripped_m-10.cie",
	"stripped_m-05.cie",
	"stripped_m-00.cie",
	"stripped_m+05.cie",
}

// Table metallicities as [Fe/H], primordial composition pinned at an
// effectively-zero -5.
var coolingFeH = [8]float64{-5.0, -3.0, -2.0, -1.5, -1.0, -0.5, 0.0, 0.5}

type coolingTables struct {
	// logZ is the absolute log10 metallicity of each table,
	// [Fe/H] + log10(Zsun) with Zsun = 0.02 by mass.
	logZ  [8]float64
	rates [8][]float64
}

// loadCoolingTables reads the eight cooling function files from dir.
// Only the normalized cooling rate column is kept; the other eleven
// columns of the Sutherland & Dopita file format are ignored.
func loadCoolingTables(dir string) (*coolingTables, error) {
	t := &coolingTables{}
	for i, name := range coolingFileNames {
		t.logZ[i] = coolingFeH[i] + math.Log10(0.02)

		path := fmt.Sprintf("%s/%s", dir, name)
		cols, err := table.ReadTable(path, []int{5}, nil)
		if err != nil {
			return nil, fmt.Errorf("cannot read cooling table %s: %v",
				path, err)
		}
		if len(cols[0]) != coolTabSize {
			return nil, fmt.Errorf(
				"cooling table %s has %d temperature points, expected %d",
				path, len(cols[0]), coolTabSize)
		}
		t.rates[i] = cols[0]
	}
	return t, nil
}

// rate linearly interpolates log10(Lambda) in log temperature within
// table tab, clamping to the tabulated temperature range.
func (t *coolingTables) rate(tab int, logT float64) float64 {
	if logT < coolLogTMin {
		logT = coolLogTMin
	}
	i := int((logT - coolLogTMin) / coolLogTSpacing)
	if i > coolTabSize-2 {
		i = coolTabSize - 2
	}
	logTi := coolLogTMin + coolLogTSpacing*float64(i)
	r1, r2 := t.rates[tab][i], t.rates[tab][i+1]
	return r1 + (r2-r1)/coolLogTSpacing*(logT-logTi)
}

// Lambda returns the cooling rate in erg cm^3 s^-1 at the given log
// temperature and absolute log metallicity, interpolating between the
// two bracketing metallicity tables.
func (t *coolingTables) Lambda(logT, logZ float64) float64 {
	if logZ < t.logZ[0] {
		logZ = t.logZ[0]
	}
	if logZ > t.logZ[7] {
		logZ = t.logZ[7]
	}

	i := 0
	for i < 6 && logZ > t.logZ[i+1] {
		i++
	}
	r1 := t.rate(i, logT)
	r2 := t.rate(i+1, logT)
	r := r1 + (r2-r1)/(t.logZ[i+1]-t.logZ[i])*(logZ-t.logZ[i])
	return math.Pow(10, r)
}
