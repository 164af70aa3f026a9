package configs

import (
	"crypto/sha256"
	"encoding/binary"
)

// Hash computes the stable, endianness-independent digest over exactly the
// fields that must match cluster-wide (spec §3): cluster name, ports,
// heartbeat rate, allowed misses, quorum, server list, and partition count.
// Fence binary path and verbosity are deliberately excluded. Every field is
// serialized as a big-endian-fixed-width or length-prefixed byte sequence
// before hashing, so two machines of opposite native byte order that agree
// on the logical configuration produce byte-identical output (I3).
func (c *Config) Hash() [32]byte {
	h := sha256.New()

	writeString(h, c.ClusterName)
	writeUint32(h, uint32(len(c.Servers)))
	for _, s := range c.Servers {
		writeString(h, s)
	}
	writeUint64(h, uint64(c.HeartbeatRate.Microseconds()))
	writeUint32(h, uint32(c.AllowedMisses))
	writeUint32(h, uint32(c.Quorum()))
	writeUint32(h, uint32(c.CorePort))
	writeUint32(h, uint32(c.LTPort))
	writeUint32(h, uint32(c.LTPXPort))
	writeUint32(h, uint32(c.LTPartitions))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeString(h interface{ Write([]byte) (int, error) }, s string) {
	writeUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func writeUint32(h interface{ Write([]byte) (int, error) }, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, _ = h.Write(b[:])
}

func writeUint64(h interface{ Write([]byte) (int, error) }, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	_, _ = h.Write(b[:])
}
