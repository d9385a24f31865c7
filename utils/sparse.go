package utils

import (
	"fmt"
	"math"
	"sort"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }

func (m DOK) Set(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

// Add accumulates val into (i,j), used when assembling operators.
func (m DOK) Add(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) ToCSR() CSR {
	var (
		c   = m.M.ToCSR()
		raw = c.RawMatrix()
	)
	// Map iteration order leaves rows unsorted
	sortRows(raw.Indptr, raw.Ind, raw.Data)
	return CSR{
		M:        c,
		readOnly: m.readOnly,
		name:     m.name,
	}
}

type CSR struct {
	M        *sparse.CSR
	readOnly bool
	name     string
}

// NewCSR takes ownership of the supplied arrays and sorts each row's column
// indices in place. Nil arrays produce an empty matrix.
func NewCSR(nr, nc int, indptr, ind []int, data []float64) (R CSR) {
	if indptr == nil {
		indptr = make([]int, nr+1)
	}
	if len(indptr) != nr+1 || len(ind) != indptr[nr] || len(data) != indptr[nr] {
		err := fmt.Errorf("inconsistent CSR storage: nr = %v, len(indptr) = %v, len(ind) = %v, len(data) = %v",
			nr, len(indptr), len(ind), len(data))
		panic(err)
	}
	if ind == nil {
		ind, data = []int{}, []float64{}
	}
	sortRows(indptr, ind, data)
	R = CSR{
		sparse.NewCSR(nr, nc, indptr, ind, data),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// NewCSRFromDense stores every nonzero of M.
func NewCSRFromDense(M mat.Matrix) (R CSR) {
	var (
		nr, nc = M.Dims()
		b      = newCSRBuilder(nr, nc, 0)
	)
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			b.appendValue(j, M.At(i, j))
		}
		b.indptr[i+1] = len(b.ind)
	}
	return b.build()
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)              { return m.M.Dims() }
func (m CSR) At(i, j int) float64           { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix                 { return m.M.T() }
func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }
func (m CSR) Data() []float64 {
	return m.RawMatrix().Data
}
func (m CSR) NNZ() int         { return m.M.NNZ() }
func (m CSR) Nodes() int       { nr, _ := m.Dims(); return nr }
func (m CSR) RowsPerNode() int { return 1 }

func (m *CSR) SetReadOnly(name ...string) CSR {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m CSR) NodeColumns(i int) Index {
	raw := m.RawMatrix()
	return Index(raw.Ind[raw.Indptr[i]:raw.Indptr[i+1]])
}

func (m CSR) SetNodeValues(i int, vals Matrix) (err error) { // Changes receiver
	var (
		raw   = m.RawMatrix()
		beg   = raw.Indptr[i]
		n, nc = vals.Dims()
	)
	m.checkWritable()
	if n != raw.Indptr[i+1]-beg || nc != 1 {
		return fmt.Errorf("%w: row %d has %d entries, got (%d,%d) values", ErrNodeShape, i, raw.Indptr[i+1]-beg, n, nc)
	}
	for c := 0; c < n; c++ {
		raw.Data[beg+c] = vals.At(c, 0)
	}
	return
}

func (m CSR) Copy() (R CSR) { // Does not change receiver
	var (
		raw    = m.RawMatrix()
		nr, nc = m.Dims()
		indptr = make([]int, len(raw.Indptr))
		ind    = make([]int, len(raw.Ind))
		data   = make([]float64, len(raw.Data))
	)
	copy(indptr, raw.Indptr)
	copy(ind, raw.Ind)
	copy(data, raw.Data)
	return NewCSR(nr, nc, indptr, ind, data)
}

func (m CSR) Abs() (R CSR) { // Does not change receiver
	R = m.Copy()
	data := R.Data()
	for i, val := range data {
		data[i] = math.Abs(val)
	}
	return
}

func (m CSR) Fill(val float64) CSR { // Changes receiver
	m.checkWritable()
	data := m.Data()
	for i := range data {
		data[i] = val
	}
	return m
}

// ScaleRows is diag(d) * m.
func (m CSR) ScaleRows(d []float64) (R CSR) { // Does not change receiver
	nr, _ := m.Dims()
	if len(d) != nr {
		panic(fmt.Errorf("ScaleRows: len(d) = %d, rows = %d", len(d), nr))
	}
	var C sparse.CSR
	C.Mul(sparse.NewDIA(nr, nr, d), m.M)
	return canonical(&C)
}

// Scale multiplies every stored value by alpha.
func (m CSR) Scale(alpha float64) CSR { // Changes receiver
	m.checkWritable()
	data := m.Data()
	for i := range data {
		data[i] *= alpha
	}
	return m
}

func (m CSR) Mul(b CSR) (R CSR) { // Does not change receiver
	var (
		nrA, ncA = m.Dims()
		nrB, ncB = b.Dims()
	)
	if ncA != nrB {
		panic(fmt.Errorf("Mul: dimension mismatch, (%d,%d) x (%d,%d)", nrA, ncA, nrB, ncB))
	}
	var C sparse.CSR
	C.Mul(m.M, b.M)
	return canonical(&C)
}

// ElMul is the element-wise (Hadamard) product.
func (m CSR) ElMul(b CSR) (R CSR) { // Does not change receiver
	m.checkSameShape(b, "ElMul")
	var (
		nr, nc = m.Dims()
		bld    = newCSRBuilder(nr, nc, m.NNZ())
	)
	for i := 0; i < nr; i++ {
		m.M.DoRowNonZero(i, func(i, j int, v float64) {
			if bv := b.M.At(i, j); bv != 0 {
				bld.appendValue(j, v*bv)
			}
		})
		bld.indptr[i+1] = len(bld.ind)
	}
	return bld.build()
}

// AddScaled returns m + alpha*b over the union of both patterns.
func (m CSR) AddScaled(alpha float64, b CSR) (R CSR) { // Does not change receiver
	m.checkSameShape(b, "AddScaled")
	var C sparse.CSR
	switch alpha {
	case 1:
		C.Add(m.M, b.M)
	case -1:
		C.Sub(m.M, b.M)
	default:
		C.Add(m.M, b.Copy().Scale(alpha).M)
	}
	return canonical(&C)
}

// FrobInner is sum_ij m_ij * b_ij.
func (m CSR) FrobInner(b CSR) (sum float64) {
	m.checkSameShape(b, "FrobInner")
	m.M.DoNonZero(func(i, j int, v float64) {
		sum += v * b.M.At(i, j)
	})
	return
}

// MaxAbs is the largest stored magnitude, NaN if any stored value is NaN.
func (m CSR) MaxAbs() (max float64) {
	for _, val := range m.Data() {
		val = math.Abs(val)
		if math.IsNaN(val) {
			return val
		}
		if val > max {
			max = val
		}
	}
	return
}

func (m CSR) MulDense(B Matrix) (R Matrix) { // Does not change receiver
	var (
		nr, nc   = m.Dims()
		nrB, ncB = B.Dims()
	)
	if nc != nrB {
		panic(fmt.Errorf("MulDense: dimension mismatch, (%d,%d) x (%d,%d)", nr, nc, nrB, ncB))
	}
	var C sparse.CSR
	C.Mul(m.M, B.M)
	return NewMatrixFromDense(C.ToDense())
}

func (m CSR) MulVec(x []float64) (y []float64) {
	nr, nc := m.Dims()
	if len(x) != nc {
		panic(fmt.Errorf("MulVec: len(x) = %d, cols = %d", len(x), nc))
	}
	y = make([]float64, nr)
	m.M.MulVecTo(y, false, x)
	return
}

func (m CSR) Diagonal() (d []float64) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	d = make([]float64, min(nr, nc))
	for i := range d {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			if raw.Ind[k] == i {
				d[i] += raw.Data[k]
			}
		}
	}
	return
}

func (m CSR) RowIsEmpty(i int) bool {
	raw := m.RawMatrix()
	for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
		if raw.Data[k] != 0 {
			return false
		}
	}
	return true
}

func (m CSR) ToDense() (R Matrix) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	R = NewMatrix(nr, nc)
	data := R.Data()
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			data[i*nc+raw.Ind[k]] += raw.Data[k]
		}
	}
	return
}

// ToBSR groups the entries into dense blocks of size br x bc. A block is
// stored when any of its scalar entries is stored.
func (m CSR) ToBSR(br, bc int) (R *BlockSparse) {
	var (
		nr, nc = m.Dims()
		raw    = m.RawMatrix()
	)
	if br < 1 || bc < 1 || nr%br != 0 || nc%bc != 0 {
		panic(fmt.Errorf("ToBSR: shape (%d,%d) is not divisible by blocksize (%d,%d)", nr, nc, br, bc))
	}
	var (
		nrb, ncb = nr / br, nc / bc
		slot     = make([]int, ncb)
		indptr   = make([]int, nrb+1)
		ind      []int
		data     []float64
		bsz      = br * bc
	)
	for J := range slot {
		slot[J] = -1
	}
	for I := 0; I < nrb; I++ {
		var blockCols []int
		for r := 0; r < br; r++ {
			i := I*br + r
			for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
				J := raw.Ind[k] / bc
				if slot[J] == -1 {
					slot[J] = 0
					blockCols = append(blockCols, J)
				}
			}
		}
		sort.Ints(blockCols)
		base := len(ind)
		for n, J := range blockCols {
			slot[J] = base + n
		}
		ind = append(ind, blockCols...)
		data = append(data, make([]float64, len(blockCols)*bsz)...)
		for r := 0; r < br; r++ {
			i := I*br + r
			for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
				j := raw.Ind[k]
				data[slot[j/bc]*bsz+r*bc+j%bc] += raw.Data[k]
			}
		}
		for _, J := range blockCols {
			slot[J] = -1
		}
		indptr[I+1] = len(ind)
	}
	return NewBlockSparse(nrb, ncb, br, bc, indptr, ind, data)
}

func (m CSR) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m CSR) checkSameShape(b CSR, op string) {
	var (
		nrA, ncA = m.Dims()
		nrB, ncB = b.Dims()
	)
	if nrA != nrB || ncA != ncB {
		panic(fmt.Errorf("%s: shape mismatch, (%d,%d) and (%d,%d)", op, nrA, ncA, nrB, ncB))
	}
}

type csrBuilder struct {
	nr, nc int
	indptr []int
	ind    []int
	data   []float64
}

func newCSRBuilder(nr, nc, capacity int) *csrBuilder {
	return &csrBuilder{
		nr:     nr,
		nc:     nc,
		indptr: make([]int, nr+1),
		ind:    make([]int, 0, capacity),
		data:   make([]float64, 0, capacity),
	}
}

func (b *csrBuilder) appendValue(j int, val float64) {
	if val != 0 {
		b.ind = append(b.ind, j)
		b.data = append(b.data, val)
	}
}

func (b *csrBuilder) build() CSR {
	return NewCSR(b.nr, b.nc, b.indptr, b.ind, b.data)
}

// canonical copies a product or sum computed by the sparse package into
// sorted rows, dropping entries that cancelled to zero.
func canonical(c *sparse.CSR) CSR {
	var (
		nr, nc = c.Dims()
		raw    = c.RawMatrix()
		b      = newCSRBuilder(nr, nc, len(raw.Ind))
	)
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			b.appendValue(raw.Ind[k], raw.Data[k])
		}
		b.indptr[i+1] = len(b.ind)
	}
	return b.build()
}

type rowSorter struct {
	ind  []int
	data []float64
}

func (s rowSorter) Len() int           { return len(s.ind) }
func (s rowSorter) Less(i, j int) bool { return s.ind[i] < s.ind[j] }
func (s rowSorter) Swap(i, j int) {
	s.ind[i], s.ind[j] = s.ind[j], s.ind[i]
	s.data[i], s.data[j] = s.data[j], s.data[i]
}

func sortRows(indptr, ind []int, data []float64) {
	for i := 0; i+1 < len(indptr); i++ {
		s := rowSorter{ind[indptr[i]:indptr[i+1]], data[indptr[i]:indptr[i+1]]}
		if !sort.IsSorted(s) {
			sort.Sort(s)
		}
	}
}
