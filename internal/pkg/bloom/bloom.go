package bloom

import (
	"crypto/sha256"
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
)

// BloomFilter is an in-process filter. It never reports a false negative.
type BloomFilter struct {
	bitset    []uint64
	size      uint64
	hashCount uint64
	count     uint64
	mutex     sync.RWMutex
}

func NewBloomFilter(size, hashCount uint64) *BloomFilter {
	if size == 0 {
		size = 64
	}
	if hashCount == 0 {
		hashCount = 1
	}

	return &BloomFilter{
		bitset:    make([]uint64, (size+63)/64),
		size:      size,
		hashCount: hashCount,
	}
}

func NewBloomFilterWithExpectedItems(expectedItems uint64, falsePositiveProb float64) *BloomFilter {
	size, hashCount := OptimalParameters(expectedItems, falsePositiveProb)
	return NewBloomFilter(size, hashCount)
}

func (bf *BloomFilter) Add(item string) {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	for _, pos := range bf.positions(item) {
		bf.bitset[pos/64] |= 1 << (pos % 64)
	}
	bf.count++
}

func (bf *BloomFilter) Contains(item string) bool {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()

	for _, pos := range bf.positions(item) {
		if bf.bitset[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}

	return true
}

func (bf *BloomFilter) Clear() {
	bf.mutex.Lock()
	defer bf.mutex.Unlock()

	bf.bitset = make([]uint64, len(bf.bitset))
	bf.count = 0
}

func (bf *BloomFilter) Count() uint64 {
	bf.mutex.RLock()
	defer bf.mutex.RUnlock()
	return bf.count
}

func (bf *BloomFilter) positions(item string) []uint64 {
	return Positions(item, bf.size, bf.hashCount)
}

// Positions returns the k bit positions of item in a filter of m bits, using
// double hashing h1 + i*h2. Filters that share m and k agree on positions.
func Positions(item string, m, k uint64) []uint64 {
	h := fnv.New64a()
	h.Write([]byte(item))
	h1 := h.Sum64()

	sum := sha256.Sum256([]byte(item))
	h2 := binary.BigEndian.Uint64(sum[:8])

	out := make([]uint64, k)
	for i := uint64(0); i < k; i++ {
		out[i] = (h1 + i*h2) % m
	}
	return out
}

// OptimalParameters returns the bit count m and hash count k for n items at
// false positive rate p.
func OptimalParameters(n uint64, p float64) (m, k uint64) {
	if n == 0 {
		n = 1
	}

	m = uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	k = uint64(math.Round(float64(m) / float64(n) * math.Ln2))
	if k == 0 {
		k = 1
	}

	return m, k
}
