package utils

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

type PartitionMap struct {
	MaxIndex       int // MaxIndex is partitioned into ParallelDegree partitions
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// This routine splits one dimension into c.ParallelDegree pieces, with a maximum imbalance of one item
	var (
		Npart            = pm.MaxIndex / (pm.ParallelDegree)
		startAdd, endAdd int
		remainder        int
	)
	remainder = pm.MaxIndex % pm.ParallelDegree
	if remainder != 0 { // spread the remainder over the first chunks evenly
		if threadNum+1 > remainder {
			startAdd = remainder
			endAdd = 0
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// ParallelDegree resolves a requested degree of parallelism, 0 meaning one
// goroutine per CPU, never exceeding the number of items.
func ParallelDegree(np, maxIndex int) int {
	if np <= 0 {
		np = runtime.NumCPU()
	}
	if np > maxIndex {
		np = maxIndex
	}
	if np < 1 {
		np = 1
	}
	return np
}

// ParallelFor partitions [0,maxIndex) into np buckets and runs fn on each
// bucket in its own goroutine. Buckets are disjoint, so fn may write to
// per-index storage without locking. The first error returned by fn is
// returned after all buckets finish.
func ParallelFor(np, maxIndex int, fn func(kMin, kMax int) error) error {
	if maxIndex == 0 {
		return nil
	}
	np = ParallelDegree(np, maxIndex)
	if np == 1 {
		return fn(0, maxIndex)
	}
	var (
		pm = NewPartitionMap(np, maxIndex)
		g  errgroup.Group
	)
	for bn := 0; bn < pm.ParallelDegree; bn++ {
		kMin, kMax := pm.GetBucketRange(bn)
		g.Go(func() error {
			return fn(kMin, kMax)
		})
	}
	return g.Wait()
}
