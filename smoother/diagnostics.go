package smoother

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ghodss/yaml"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/goamg/InputParameters"
)

type diagnosticParams struct {
	NPDE     int  `json:"nPDE"`
	NumIters int  `json:"Nits"`
	SPD      bool `json:"SPD"`
}

// dumpDiagnostics writes each matrix densely to <FileOutput>/<name>.mat in
// gonum's binary format and the scalar parameters to ParamsEnMin.yaml.
// Failures are logged, they never affect the smoothing result.
func dumpDiagnostics(ip *InputParameters.SmootherParameters, numPDEs int, mats map[string]mat.Matrix) {
	var (
		dir = ip.FileOutput
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("energy smoother: unable to create diagnostic directory", "dir", dir, "err", err)
		return
	}
	names := make([]string, 0, len(mats))
	for name := range mats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writeDense(filepath.Join(dir, name+".mat"), mats[name]); err != nil {
			slog.Warn("energy smoother: unable to write diagnostic matrix", "name", name, "err", err)
		}
	}
	data, err := yaml.Marshal(diagnosticParams{NPDE: numPDEs, NumIters: ip.NumIters, SPD: ip.SPD})
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, "ParamsEnMin.yaml"), data, 0o644)
	}
	if err != nil {
		slog.Warn("energy smoother: unable to write diagnostic parameters", "err", err)
	}
}

func writeDense(path string, M mat.Matrix) (err error) {
	var (
		f *os.File
		D = mat.DenseCopyOf(M)
	)
	if f, err = os.Create(path); err != nil {
		return
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	_, err = D.MarshalBinaryTo(f)
	return
}

// ReadDense reads a matrix written by the diagnostic dump.
func ReadDense(path string) (D *mat.Dense, err error) {
	var f *os.File
	if f, err = os.Open(path); err != nil {
		return
	}
	defer f.Close()
	D = &mat.Dense{}
	_, err = D.UnmarshalBinaryFrom(f)
	return
}
