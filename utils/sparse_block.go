package utils

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// BlockSparse represents a block compressed row (BSR) matrix. Only the blocks
// listed in Ind are allocated; all other blocks are implicitly zero. Every
// stored block is fully dense.
type BlockSparse struct {
	// Global block-matrix dimensions (in block counts).
	NrBlocks, NcBlocks int

	// Each block has dimensions blockRows x blockCols.
	blockRows, blockCols int

	// Block row k owns blocks Indptr[k]..Indptr[k+1]-1, Ind holds their block
	// column, sorted within a block row.
	Indptr, Ind []int

	// Contiguous storage for all allocated blocks, each row-major.
	data []float64
}

// NewBlockSparse takes ownership of the supplied arrays. Nil arrays produce a
// matrix with no stored blocks.
func NewBlockSparse(nrBlocks, ncBlocks, blockRows, blockCols int, indptr, ind []int, data []float64) *BlockSparse {
	if indptr == nil {
		indptr = make([]int, nrBlocks+1)
	}
	bsz := blockRows * blockCols
	if len(indptr) != nrBlocks+1 || len(ind) != indptr[nrBlocks] || len(data) != bsz*len(ind) {
		err := fmt.Errorf("inconsistent BSR storage: nrBlocks = %v, len(indptr) = %v, len(ind) = %v, len(data) = %v, blocksize = (%v,%v)",
			nrBlocks, len(indptr), len(ind), len(data), blockRows, blockCols)
		panic(err)
	}
	if ind == nil {
		ind, data = []int{}, []float64{}
	}
	bs := &BlockSparse{
		NrBlocks:  nrBlocks,
		NcBlocks:  ncBlocks,
		blockRows: blockRows,
		blockCols: blockCols,
		Indptr:    indptr,
		Ind:       ind,
		data:      data,
	}
	bs.sortIndices()
	return bs
}

// Unamalgamate expands a node matrix into a block matrix by replacing every
// stored entry with a dense blockRows x blockCols block of ones.
func Unamalgamate(A CSR, blockRows, blockCols int) *BlockSparse {
	var (
		nr, nc = A.Dims()
		raw    = A.RawMatrix()
		indptr = make([]int, nr+1)
		ind    = make([]int, len(raw.Ind))
	)
	copy(indptr, raw.Indptr)
	copy(ind, raw.Ind)
	return NewBlockSparse(nr, nc, blockRows, blockCols, indptr, ind,
		ConstArray(len(ind)*blockRows*blockCols, 1))
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (bs *BlockSparse) Dims() (r, c int) {
	return bs.NrBlocks * bs.blockRows, bs.NcBlocks * bs.blockCols
}

func (bs *BlockSparse) At(i, j int) float64 {
	var (
		I, r = i / bs.blockRows, i % bs.blockRows
		J, c = j / bs.blockCols, j % bs.blockCols
	)
	if k := bs.findBlock(I, J); k >= 0 {
		return bs.data[k*bs.blockSize()+r*bs.blockCols+c]
	}
	return 0
}

func (bs *BlockSparse) T() mat.Matrix { return mat.Transpose{Matrix: bs} }

func (bs *BlockSparse) BlockSize() (br, bc int) { return bs.blockRows, bs.blockCols }
func (bs *BlockSparse) Data() []float64         { return bs.data }
func (bs *BlockSparse) NNZ() int                { return len(bs.data) }
func (bs *BlockSparse) NumBlocks() int          { return len(bs.Ind) }
func (bs *BlockSparse) Nodes() int              { return bs.NrBlocks }
func (bs *BlockSparse) RowsPerNode() int        { return bs.blockRows }
func (bs *BlockSparse) blockSize() int          { return bs.blockRows * bs.blockCols }

// BlockView returns a Matrix view of the k-th stored block.
func (bs *BlockSparse) BlockView(k int) Matrix {
	bsz := bs.blockSize()
	return NewMatrix(bs.blockRows, bs.blockCols, bs.data[k*bsz:(k+1)*bsz])
}

// GetBlockView returns a Matrix view for the block at coordinate (i, j).
// If (i,j) is not allocated in this sparse matrix, the function panics.
func (bs *BlockSparse) GetBlockView(i, j int) Matrix {
	k := bs.findBlock(i, j)
	if k < 0 {
		panic(fmt.Sprintf("GetBlockView (%d,%d) not allocated", i, j))
	}
	return bs.BlockView(k)
}

func (bs *BlockSparse) findBlock(I, J int) int {
	var (
		beg, end = bs.Indptr[I], bs.Indptr[I+1]
	)
	k := beg + sort.SearchInts(bs.Ind[beg:end], J)
	if k < end && bs.Ind[k] == J {
		return k
	}
	return -1
}

func (bs *BlockSparse) NodeColumns(i int) (cols Index) {
	var (
		beg, end = bs.Indptr[i], bs.Indptr[i+1]
	)
	cols = make(Index, 0, (end-beg)*bs.blockCols)
	for k := beg; k < end; k++ {
		j0 := bs.Ind[k] * bs.blockCols
		cols = append(cols, NewRange(j0, j0+bs.blockCols-1)...)
	}
	return
}

func (bs *BlockSparse) SetNodeValues(i int, vals Matrix) (err error) { // Changes receiver
	var (
		beg, end = bs.Indptr[i], bs.Indptr[i+1]
		bsz      = bs.blockSize()
		n, nr    = vals.Dims()
	)
	if n != (end-beg)*bs.blockCols || nr != bs.blockRows {
		return fmt.Errorf("%w: node %d expects (%d,%d) values, got (%d,%d)",
			ErrNodeShape, i, (end-beg)*bs.blockCols, bs.blockRows, n, nr)
	}
	for k := beg; k < end; k++ {
		b := k - beg
		for r := 0; r < bs.blockRows; r++ {
			for c := 0; c < bs.blockCols; c++ {
				bs.data[k*bsz+r*bs.blockCols+c] = vals.At(b*bs.blockCols+c, r)
			}
		}
	}
	return
}

func (bs *BlockSparse) Copy() *BlockSparse { // Does not change receiver
	var (
		indptr = make([]int, len(bs.Indptr))
		ind    = make([]int, len(bs.Ind))
		data   = make([]float64, len(bs.data))
	)
	copy(indptr, bs.Indptr)
	copy(ind, bs.Ind)
	copy(data, bs.data)
	return NewBlockSparse(bs.NrBlocks, bs.NcBlocks, bs.blockRows, bs.blockCols, indptr, ind, data)
}

func (bs *BlockSparse) Abs() (R *BlockSparse) { // Does not change receiver
	R = bs.Copy()
	for i, val := range R.data {
		R.data[i] = math.Abs(val)
	}
	return
}

func (bs *BlockSparse) Fill(val float64) *BlockSparse { // Changes receiver
	for i := range bs.data {
		bs.data[i] = val
	}
	return bs
}

// Scale multiplies every stored value by alpha.
func (bs *BlockSparse) Scale(alpha float64) *BlockSparse { // Changes receiver
	for i := range bs.data {
		bs.data[i] *= alpha
	}
	return bs
}

// ScaleRows scales scalar row i by d[i].
func (bs *BlockSparse) ScaleRows(d []float64) (R *BlockSparse) { // Does not change receiver
	var (
		nr, _ = bs.Dims()
		bsz   = bs.blockSize()
	)
	if len(d) != nr {
		panic(fmt.Errorf("ScaleRows: len(d) = %d, rows = %d", len(d), nr))
	}
	R = bs.Copy()
	for I := 0; I < R.NrBlocks; I++ {
		for k := R.Indptr[I]; k < R.Indptr[I+1]; k++ {
			for r := 0; r < R.blockRows; r++ {
				scale := d[I*R.blockRows+r]
				row := R.data[k*bsz+r*R.blockCols : k*bsz+(r+1)*R.blockCols]
				for c := range row {
					row[c] *= scale
				}
			}
		}
	}
	return
}

// Mul multiplies bs (m x n blocks) by other (n x p blocks), using only the
// allocated blocks in each.
func (bs *BlockSparse) Mul(other *BlockSparse) *BlockSparse { // Does not change receiver
	if bs.NcBlocks != other.NrBlocks {
		panic("block matrix dimensions mismatch: bs.NcBlocks must equal other.NrBlocks")
	}
	if bs.blockCols != other.blockRows {
		panic("block size mismatch: bs.blockCols must equal other.blockRows")
	}
	var (
		bszA, bszB = bs.blockSize(), other.blockSize()
		bcB        = other.blockCols
		bld        = newBSRBuilder(bs.NrBlocks, other.NcBlocks, bs.blockRows, bcB)
		acc        = newBlockAccumulator(other.NcBlocks, bs.blockRows*bcB)
	)
	for I := 0; I < bs.NrBlocks; I++ {
		acc.reset()
		for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
			var (
				K  = bs.Ind[k]
				Ab = bs.data[k*bszA : (k+1)*bszA]
			)
			for l := other.Indptr[K]; l < other.Indptr[K+1]; l++ {
				var (
					Bb  = other.data[l*bszB : (l+1)*bszB]
					out = acc.block(other.Ind[l])
				)
				for r := 0; r < bs.blockRows; r++ {
					for s := 0; s < bs.blockCols; s++ {
						a := Ab[r*bs.blockCols+s]
						if a == 0 {
							continue
						}
						for c := 0; c < bcB; c++ {
							out[r*bcB+c] += a * Bb[s*bcB+c]
						}
					}
				}
			}
		}
		bld.appendRow(I, acc)
	}
	return bld.build()
}

// ElMul is the element-wise (Hadamard) product of two matrices with equal
// block sizes.
func (bs *BlockSparse) ElMul(other *BlockSparse) *BlockSparse { // Does not change receiver
	bs.checkSameShape(other, "ElMul")
	var (
		bsz = bs.blockSize()
		bld = newBSRBuilder(bs.NrBlocks, bs.NcBlocks, bs.blockRows, bs.blockCols)
		acc = newBlockAccumulator(bs.NcBlocks, bsz)
		bv  = newBlockAccumulator(bs.NcBlocks, bsz)
	)
	for I := 0; I < bs.NrBlocks; I++ {
		acc.reset()
		bv.reset()
		for l := other.Indptr[I]; l < other.Indptr[I+1]; l++ {
			copy(bv.block(other.Ind[l]), other.data[l*bsz:(l+1)*bsz])
		}
		for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
			J := bs.Ind[k]
			if !bv.has(J) {
				continue
			}
			var (
				out = acc.block(J)
				ob  = bv.block(J)
			)
			for n, val := range bs.data[k*bsz : (k+1)*bsz] {
				out[n] = val * ob[n]
			}
		}
		bld.appendRow(I, acc)
	}
	return bld.build()
}

// AddScaled returns bs + alpha*other over the union of both block patterns.
func (bs *BlockSparse) AddScaled(alpha float64, other *BlockSparse) *BlockSparse { // Does not change receiver
	bs.checkSameShape(other, "AddScaled")
	var (
		bsz = bs.blockSize()
		bld = newBSRBuilder(bs.NrBlocks, bs.NcBlocks, bs.blockRows, bs.blockCols)
		acc = newBlockAccumulator(bs.NcBlocks, bsz)
	)
	for I := 0; I < bs.NrBlocks; I++ {
		acc.reset()
		for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
			out := acc.block(bs.Ind[k])
			for n, val := range bs.data[k*bsz : (k+1)*bsz] {
				out[n] += val
			}
		}
		for l := other.Indptr[I]; l < other.Indptr[I+1]; l++ {
			out := acc.block(other.Ind[l])
			for n, val := range other.data[l*bsz : (l+1)*bsz] {
				out[n] += alpha * val
			}
		}
		bld.appendRow(I, acc)
	}
	return bld.build()
}

// FrobInner computes the Frobenius inner product, the sum over matching
// blocks of the element-wise products.
func (bs *BlockSparse) FrobInner(other *BlockSparse) (sum float64) {
	bs.checkSameShape(other, "FrobInner")
	var (
		bsz = bs.blockSize()
		bv  = newBlockAccumulator(bs.NcBlocks, bsz)
	)
	for I := 0; I < bs.NrBlocks; I++ {
		bv.reset()
		for l := other.Indptr[I]; l < other.Indptr[I+1]; l++ {
			copy(bv.block(other.Ind[l]), other.data[l*bsz:(l+1)*bsz])
		}
		for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
			J := bs.Ind[k]
			if !bv.has(J) {
				continue
			}
			ob := bv.block(J)
			for n, val := range bs.data[k*bsz : (k+1)*bsz] {
				sum += val * ob[n]
			}
		}
	}
	return
}

// FrobNorm computes the Frobenius norm of the stored values.
func (bs *BlockSparse) FrobNorm() (norm float64) {
	return math.Sqrt(bs.FrobInner(bs))
}

// MaxAbs is the largest stored magnitude, NaN if any stored value is NaN.
func (bs *BlockSparse) MaxAbs() (max float64) {
	for _, val := range bs.data {
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

func (bs *BlockSparse) MulDense(B Matrix) (R Matrix) { // Does not change receiver
	var (
		nr, nc   = bs.Dims()
		nrB, ncB = B.Dims()
		bsz      = bs.blockSize()
	)
	if nc != nrB {
		panic(fmt.Errorf("MulDense: dimension mismatch, (%d,%d) x (%d,%d)", nr, nc, nrB, ncB))
	}
	R = NewMatrix(nr, ncB)
	for I := 0; I < bs.NrBlocks; I++ {
		for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
			J := bs.Ind[k]
			for r := 0; r < bs.blockRows; r++ {
				row := R.M.RawRowView(I*bs.blockRows + r)
				for c := 0; c < bs.blockCols; c++ {
					a := bs.data[k*bsz+r*bs.blockCols+c]
					if a == 0 {
						continue
					}
					for j, bv := range B.M.RawRowView(J*bs.blockCols + c) {
						row[j] += a * bv
					}
				}
			}
		}
	}
	return
}

func (bs *BlockSparse) MulVec(x []float64) (y []float64) {
	var (
		nr, nc = bs.Dims()
		bsz    = bs.blockSize()
	)
	if len(x) != nc {
		panic(fmt.Errorf("MulVec: len(x) = %d, cols = %d", len(x), nc))
	}
	y = make([]float64, nr)
	for I := 0; I < bs.NrBlocks; I++ {
		for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
			J := bs.Ind[k]
			for r := 0; r < bs.blockRows; r++ {
				for c := 0; c < bs.blockCols; c++ {
					y[I*bs.blockRows+r] += bs.data[k*bsz+r*bs.blockCols+c] * x[J*bs.blockCols+c]
				}
			}
		}
	}
	return
}

func (bs *BlockSparse) Diagonal() (d []float64) {
	nr, nc := bs.Dims()
	d = make([]float64, min(nr, nc))
	for i := range d {
		d[i] = bs.At(i, i)
	}
	return
}

func (bs *BlockSparse) RowIsEmpty(i int) bool {
	var (
		I, r = i / bs.blockRows, i % bs.blockRows
		bsz  = bs.blockSize()
	)
	for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
		for _, val := range bs.data[k*bsz+r*bs.blockCols : k*bsz+(r+1)*bs.blockCols] {
			if val != 0 {
				return false
			}
		}
	}
	return true
}

func (bs *BlockSparse) ToDense() (R Matrix) {
	var (
		nr, nc = bs.Dims()
		bsz    = bs.blockSize()
	)
	R = NewMatrix(nr, nc)
	for I := 0; I < bs.NrBlocks; I++ {
		for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
			J := bs.Ind[k]
			for r := 0; r < bs.blockRows; r++ {
				for c := 0; c < bs.blockCols; c++ {
					R.M.Set(I*bs.blockRows+r, J*bs.blockCols+c, bs.data[k*bsz+r*bs.blockCols+c])
				}
			}
		}
	}
	return
}

// ToCSR stores every nonzero of the stored blocks as a scalar entry.
func (bs *BlockSparse) ToCSR() CSR {
	var (
		nr, nc = bs.Dims()
		bsz    = bs.blockSize()
		b      = newCSRBuilder(nr, nc, len(bs.data))
	)
	for I := 0; I < bs.NrBlocks; I++ {
		for r := 0; r < bs.blockRows; r++ {
			i := I*bs.blockRows + r
			for k := bs.Indptr[I]; k < bs.Indptr[I+1]; k++ {
				for c := 0; c < bs.blockCols; c++ {
					b.appendValue(bs.Ind[k]*bs.blockCols+c, bs.data[k*bsz+r*bs.blockCols+c])
				}
			}
			b.indptr[i+1] = len(b.ind)
		}
	}
	return b.build()
}

func (bs *BlockSparse) checkSameShape(other *BlockSparse, op string) {
	if bs.NrBlocks != other.NrBlocks || bs.NcBlocks != other.NcBlocks ||
		bs.blockRows != other.blockRows || bs.blockCols != other.blockCols {
		panic(fmt.Errorf("%s: dimension mismatch, %dx%d blocks of (%d,%d) and %dx%d blocks of (%d,%d)", op,
			bs.NrBlocks, bs.NcBlocks, bs.blockRows, bs.blockCols,
			other.NrBlocks, other.NcBlocks, other.blockRows, other.blockCols))
	}
}

func (bs *BlockSparse) sortIndices() {
	bsz := bs.blockSize()
	for I := 0; I < bs.NrBlocks; I++ {
		var (
			beg, end = bs.Indptr[I], bs.Indptr[I+1]
		)
		if sort.IntsAreSorted(bs.Ind[beg:end]) {
			continue
		}
		perm := make([]int, end-beg)
		for n := range perm {
			perm[n] = beg + n
		}
		sort.Slice(perm, func(a, b int) bool { return bs.Ind[perm[a]] < bs.Ind[perm[b]] })
		var (
			ind  = make([]int, end-beg)
			data = make([]float64, (end-beg)*bsz)
		)
		for n, k := range perm {
			ind[n] = bs.Ind[k]
			copy(data[n*bsz:(n+1)*bsz], bs.data[k*bsz:(k+1)*bsz])
		}
		copy(bs.Ind[beg:end], ind)
		copy(bs.data[beg*bsz:end*bsz], data)
	}
}

type bsrBuilder struct {
	nrb, ncb, br, bc int
	indptr, ind      []int
	data             []float64
}

func newBSRBuilder(nrb, ncb, br, bc int) *bsrBuilder {
	return &bsrBuilder{
		nrb: nrb, ncb: ncb, br: br, bc: bc,
		indptr: make([]int, nrb+1),
		ind:    []int{},
		data:   []float64{},
	}
}

// appendRow stores the accumulator's blocks as block row I, dropping blocks
// that are entirely zero.
func (b *bsrBuilder) appendRow(I int, acc *blockAccumulator) {
	sort.Ints(acc.cols)
	for _, J := range acc.cols {
		blk := acc.block(J)
		for _, val := range blk {
			if val != 0 {
				b.ind = append(b.ind, J)
				b.data = append(b.data, blk...)
				break
			}
		}
	}
	b.indptr[I+1] = len(b.ind)
}

func (b *bsrBuilder) build() *BlockSparse {
	return NewBlockSparse(b.nrb, b.ncb, b.br, b.bc, b.indptr, b.ind, b.data)
}

// blockAccumulator is a sparse accumulator holding one dense block per block
// column of a block row. Membership is tracked with a generation counter so
// reset is O(1).
type blockAccumulator struct {
	bsz  int
	vals []float64
	mark []int
	cols []int
	gen  int
}

func newBlockAccumulator(ncb, bsz int) *blockAccumulator {
	return &blockAccumulator{
		bsz:  bsz,
		vals: make([]float64, ncb*bsz),
		mark: make([]int, ncb),
		gen:  1,
	}
}

func (a *blockAccumulator) reset() {
	a.gen++
	a.cols = a.cols[:0]
}

func (a *blockAccumulator) has(J int) bool { return a.mark[J] == a.gen }

// block returns the accumulator block for column J, zeroed on first use in
// the current row.
func (a *blockAccumulator) block(J int) []float64 {
	blk := a.vals[J*a.bsz : (J+1)*a.bsz]
	if a.mark[J] != a.gen {
		a.mark[J] = a.gen
		for n := range blk {
			blk[n] = 0
		}
		a.cols = append(a.cols, J)
	}
	return blk
}
