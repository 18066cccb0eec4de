// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package keycodec encodes and decodes the 64-bit PS keys used to address
// tensor partitions, peers, and physical nodes, and routes those keys to a
// server index using one of the hash functions historically supported by
// the parameter-server key space.
package keycodec

import (
	"strconv"
	"sync"

	"distcomm/internal/status"

	rendezvous "github.com/dgryski/go-rendezvous"
)

// OpType mirrors the four operation families that share the declared-id
// space carved out of the low 32 bits of a PS key.
type OpType uint8

const (
	PushPull OpType = iota
	P2P
	Alltoall
	Allgather
)

const (
	senderBits      = 16
	declaredIDBits  = 16
	opTypeBits      = 6
	partitionBits   = 10
	partitionMask   = (1 << partitionBits) - 1
	opTypeMask      = (1 << opTypeBits) - 1
	declaredIDMask  = (1 << declaredIDBits) - 1
	senderMask      = (1 << senderBits) - 1
	opTypeShift     = partitionBits
	declaredIDShift = opTypeShift + opTypeBits
	senderShift     = declaredIDShift + declaredIDBits
)

// Key is a decoded 64-bit PS key. Sender is only meaningful for P2P keys;
// PushPull/Allgather/Alltoall keys leave it zero.
type Key struct {
	Sender     uint16
	DeclaredID uint16
	OpType     OpType
	Partition  uint16
}

func encode(sender uint16, declaredID uint16, op OpType, partition uint16) uint64 {
	return uint64(sender&senderMask)<<senderShift |
		uint64(declaredID&declaredIDMask)<<declaredIDShift |
		uint64(op)&opTypeMask<<opTypeShift |
		uint64(partition&partitionMask)
}

// EncodePushPull packs a PUSH_PULL key: (declared id, partition).
func EncodePushPull(declaredID int32, partition int) uint64 {
	return encode(0, uint16(declaredID), PushPull, uint16(partition))
}

// EncodeP2P packs a P2P key: (sender, declared id, partition).
func EncodeP2P(sender int32, declaredID int32, partition int) uint64 {
	return encode(uint16(sender), uint16(declaredID), P2P, uint16(partition))
}

// EncodeAllgather packs an ALLGATHER key: one key per physical node, no
// partition dimension — the physical node id occupies the partition field.
func EncodeAllgather(phyNode int32, declaredID int32) uint64 {
	return encode(0, uint16(declaredID), Allgather, uint16(phyNode))
}

// EncodeAlltoall packs an ALLTOALL key with the peer rank in the low bits.
func EncodeAlltoall(declaredID int32, peerRank int32) uint64 {
	return encode(0, uint16(declaredID), Alltoall, uint16(peerRank))
}

// Decode splits a 64-bit PS key back into its four fields.
func Decode(key uint64) Key {
	return Key{
		Sender:     uint16((key >> senderShift) & senderMask),
		DeclaredID: uint16((key >> declaredIDShift) & declaredIDMask),
		OpType:     OpType((key >> opTypeShift) & opTypeMask),
		Partition:  uint16(key & partitionMask),
	}
}

// HashFn names the server-routing hash. The zero value is not a valid
// selector; callers must name one explicitly, matching the original
// BYTEPS_KEY_HASH_FN knob which has no default.
type HashFn string

const (
	HashDJB2          HashFn = "djb2"
	HashDJB2Colocate  HashFn = "djb2-colocate"
	HashSDBM          HashFn = "sdbm"
	HashNaive         HashFn = "naive"
	HashBuiltIn       HashFn = "built_in"
	HashMixed         HashFn = "mixed"
)

// hashDJB2 hashes the decimal representation of key. The original
// implementation read a dangling pointer from a temporary std::string;
// per spec §9 Open Questions, we resolve that by hashing a stable byte
// view of the decimal representation instead.
func hashDJB2(key uint64) uint64 {
	s := strconv.FormatUint(key, 10)
	var hash uint64 = 5381
	for i := 0; i < len(s); i++ {
		hash = ((hash << 5) + hash) + uint64(s[i])
	}
	return hash
}

// hashSDBM mirrors the original SDBM variant over the same decimal view.
func hashSDBM(key uint64) uint64 {
	s := strconv.FormatUint(key, 10)
	var hash uint64
	for i := 0; i < len(s); i++ {
		c := uint64(s[i])
		hash = c + (hash << 6) + (hash << 16) - hash
	}
	return hash
}

// hashNaive mirrors the original naive combiner: split the key into two
// 16-bit-ish halves, add, and scale by a small prime.
func hashNaive(key uint64) uint64 {
	return ((key >> 16) + (key % 65536)) * 9973
}

// builtInRing is the built_in hash's rendezvous ring over one synthetic
// node name per server index; server indices are small integers, so it
// is cheap to build, and Router caches one per server count rather than
// rebuilding it per Route call.
type builtInRing struct {
	r  *rendezvous.Rendezvous
	n  int
}

func newBuiltInRing(numServers int) *builtInRing {
	nodes := make([]string, numServers)
	for i := range nodes {
		nodes[i] = strconv.Itoa(i)
	}
	return &builtInRing{
		r: rendezvous.New(nodes, fnv1a64),
		n: numServers,
	}
}

func (b *builtInRing) route(key uint64) int {
	node := b.r.Lookup(strconv.FormatUint(key, 10))
	idx, err := strconv.Atoi(node)
	if err != nil {
		return 0
	}
	return idx
}

func fnv1a64(s string) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= prime64
	}
	return h
}

// Router routes PS keys to a server index using a configured hash. It
// caches the built_in rendezvous ring per server count so Route stays
// O(1) amortized on the hot path, mirroring how the teacher's Store
// (internal/ratelimiter/core) caches per-key state rather than rebuilding
// it on every access.
type Router struct {
	fn              HashFn
	mixedModeBound  int
	numWorkers      int
	numNonColocate  int
	localSize       int
	serverLocalRoot int

	ringMu sync.RWMutex
	rings  map[int]*builtInRing
}

// RouterOptions configures a Router. NumWorkers/NumNonColocate are only
// required for HashMixed; LocalSize/ServerLocalRoot only for
// HashDJB2Colocate.
type RouterOptions struct {
	MixedModeBound  int
	NumWorkers      int
	NumNonColocate  int
	LocalSize       int
	ServerLocalRoot int
}

// NewRouter constructs a Router for the named hash function.
func NewRouter(fn HashFn, opts RouterOptions) (*Router, *status.Status) {
	switch fn {
	case HashDJB2, HashDJB2Colocate, HashSDBM, HashNaive, HashBuiltIn, HashMixed:
	default:
		return nil, status.New(status.InvalidArgument, "unknown hash name: "+string(fn))
	}
	bound := opts.MixedModeBound
	if bound <= 0 {
		bound = 101
	}
	return &Router{
		fn:              fn,
		mixedModeBound:  bound,
		numWorkers:      opts.NumWorkers,
		numNonColocate:  opts.NumNonColocate,
		localSize:       opts.LocalSize,
		serverLocalRoot: opts.ServerLocalRoot,
		rings:           make(map[int]*builtInRing),
	}, nil
}

// Route maps key to a server index among numServers servers.
func (r *Router) Route(key uint64, numServers int) (int, *status.Status) {
	if numServers <= 0 {
		return 0, status.New(status.Precondition, "server count is zero")
	}
	switch r.fn {
	case HashNaive:
		return int(hashNaive(key) % uint64(numServers)), nil
	case HashBuiltIn:
		return r.builtIn(key, numServers), nil
	case HashDJB2:
		return int(hashDJB2(key) % uint64(numServers)), nil
	case HashDJB2Colocate:
		numPhyNode := numServers
		if r.localSize > 0 {
			numPhyNode = numServers / r.localSize
			if numPhyNode == 0 {
				numPhyNode = 1
			}
		}
		server := int(hashDJB2(key) % uint64(numPhyNode))
		return server*r.localSize + r.serverLocalRoot, nil
	case HashSDBM:
		return int(hashSDBM(key) % uint64(numServers)), nil
	case HashMixed:
		return r.mixed(key, numServers)
	default:
		return 0, status.New(status.InvalidArgument, "unknown hash name: "+string(r.fn))
	}
}

func (r *Router) builtIn(key uint64, numServers int) int {
	r.ringMu.RLock()
	ring, ok := r.rings[numServers]
	r.ringMu.RUnlock()
	if !ok {
		ring = newBuiltInRing(numServers)
		r.ringMu.Lock()
		r.rings[numServers] = ring
		r.ringMu.Unlock()
	}
	return ring.route(key)
}

// mixed implements spec §4.1's ratio formula:
//
//	ratio = 2·N_nc·(W−1) / (W·(W+N_nc) − 2·N_nc)
//
// keys whose scaled DJB2 hash lands below ratio·bound route to a
// non-colocated server; the rest route to a colocated one.
func (r *Router) mixed(key uint64, numServers int) (int, *status.Status) {
	numNonColocate := r.numNonColocate
	numColocate := numServers - numNonColocate
	if numNonColocate <= 0 || numColocate <= 0 {
		return 0, status.New(status.Precondition, "mixed mode requires both colocated and non-colocated servers")
	}
	w := r.numWorkers
	if w <= 1 {
		return 0, status.New(status.Precondition, "mixed mode requires at least 2 workers")
	}
	numerator := 2.0 * float64(numNonColocate) * float64(w-1)
	denominator := float64(w)*float64(w+numNonColocate) - 2.0*float64(numNonColocate)
	if denominator <= 0 {
		return 0, status.New(status.Precondition, "mixed mode ratio denominator is non-positive")
	}
	ratio := numerator / denominator
	threshold := ratio * float64(r.mixedModeBound)

	hashRes := hashDJB2(key) % uint64(r.mixedModeBound)
	if float64(hashRes) < threshold {
		return int(hashDJB2(hashRes) % uint64(numNonColocate)), nil
	}
	return numNonColocate + int(hashDJB2(hashRes)%uint64(numColocate)), nil
}
