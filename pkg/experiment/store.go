package experiment

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/coexnet/coexnet/pkg/expr"
	"github.com/coexnet/coexnet/pkg/network"
	"github.com/klauspost/compress/gzip"
	"gonum.org/v1/gonum/mat"
)

// Only the TOM and the metacell expression matrix are persisted: they are
// the expensive artifacts. Everything else is recomputed on demand.
// Files are gzip-compressed little-endian binary with a short magic header.

var (
	tomMagic    = []byte("CXTOM1")
	matrixMagic = []byte("CXMAT1")
)

// TOMPath derives the storage path of a network's TOM inside dir.
func TOMPath(dir, experimentName, networkName string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s_TOM.bin.gz", experimentName, networkName))
}

// MetacellPath derives the storage path of the metacell matrix inside dir.
func MetacellPath(dir, experimentName string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_metacells.bin.gz", experimentName))
}

// SaveTOM writes a topological overlap matrix to path.
func SaveTOM(path string, tom *network.TOMMatrix) error {
	return writeArtifact(path, tomMagic, func(w io.Writer) error {
		n := tom.Data.SymmetricDim()
		if err := binary.Write(w, binary.LittleEndian, uint32(n)); err != nil {
			return err
		}
		for _, label := range tom.Labels {
			if err := writeString(w, label); err != nil {
				return err
			}
		}
		// Upper triangle including the diagonal.
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				if err := binary.Write(w, binary.LittleEndian, tom.Data.At(i, j)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// LoadTOM restores a matrix written by SaveTOM, bit-identical.
func LoadTOM(path string) (*network.TOMMatrix, error) {
	var tom *network.TOMMatrix
	err := readArtifact(path, tomMagic, func(r io.Reader) error {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return err
		}
		labels := make([]string, n)
		for i := range labels {
			s, err := readString(r)
			if err != nil {
				return err
			}
			labels[i] = s
		}
		data := mat.NewSymDense(int(n), nil)
		for i := 0; i < int(n); i++ {
			for j := i; j < int(n); j++ {
				var v float64
				if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
					return err
				}
				data.SetSym(i, j, v)
			}
		}
		tom = &network.TOMMatrix{Labels: labels, Data: data}
		return nil
	})
	return tom, err
}

// SaveMatrix writes an expression matrix to path.
func SaveMatrix(path string, m *expr.Matrix) error {
	return writeArtifact(path, matrixMagic, func(w io.Writer) error {
		if err := binary.Write(w, binary.LittleEndian, uint32(m.NumObs())); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(m.NumFeatures())); err != nil {
			return err
		}
		for _, o := range m.Obs() {
			if err := writeString(w, o); err != nil {
				return err
			}
		}
		for _, f := range m.Features() {
			if err := writeString(w, f); err != nil {
				return err
			}
		}
		for i := 0; i < m.NumObs(); i++ {
			if err := binary.Write(w, binary.LittleEndian, m.Row(i)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadMatrix restores a matrix written by SaveMatrix.
func LoadMatrix(path string) (*expr.Matrix, error) {
	var m *expr.Matrix
	err := readArtifact(path, matrixMagic, func(r io.Reader) error {
		var nObs, nFeat uint32
		if err := binary.Read(r, binary.LittleEndian, &nObs); err != nil {
			return err
		}
		if err := binary.Read(r, binary.LittleEndian, &nFeat); err != nil {
			return err
		}
		obs := make([]string, nObs)
		for i := range obs {
			s, err := readString(r)
			if err != nil {
				return err
			}
			obs[i] = s
		}
		features := make([]string, nFeat)
		for i := range features {
			s, err := readString(r)
			if err != nil {
				return err
			}
			features[i] = s
		}
		data := make([]float64, int(nObs)*int(nFeat))
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return err
		}
		var err error
		m, err = expr.NewMatrix(obs, features, data)
		return err
	})
	return m, err
}

// Persist writes the experiment's expensive artifacts (every network's TOM
// plus the metacell matrix) under dir.
func (e *Experiment) Persist(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if mc, ok := e.Metacells(); ok {
		if err := SaveMatrix(MetacellPath(dir, e.Name), mc.Matrix); err != nil {
			return fmt.Errorf("experiment %s: persisting metacell matrix: %w", e.Name, err)
		}
	}
	for _, name := range e.NetworkNames() {
		net, _ := e.Network(name)
		if err := SaveTOM(TOMPath(dir, e.Name, name), net.TOM); err != nil {
			return fmt.Errorf("experiment %s: persisting TOM %q: %w", e.Name, name, err)
		}
	}
	return nil
}

func writeArtifact(path string, magic []byte, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(magic); err != nil {
		return err
	}
	if err := fill(gz); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return f.Close()
}

func readArtifact(path string, magic []byte, parse func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	header := make([]byte, len(magic))
	if _, err := io.ReadFull(gz, header); err != nil {
		return err
	}
	if string(header) != string(magic) {
		return fmt.Errorf("experiment: %s is not a %s artifact", path, magic)
	}
	return parse(gz)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
