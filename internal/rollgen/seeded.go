package rollgen

import (
	"encoding/binary"
	rand "math/rand/v2"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// NewSeeded returns a Generator whose rolls are reproducible for seed. It is
// meant for replays and tests; rooms should use New.
func NewSeeded(seed int64) *Generator {
	u := uint64(seed)
	r := rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
	return &Generator{source: &pcgReader{r: r}}
}

// pcgReader exposes a math/rand/v2 source as an endless byte stream.
type pcgReader struct {
	r   *rand.Rand
	buf [8]byte
	n   int
}

func (p *pcgReader) Read(b []byte) (int, error) {
	for i := range b {
		if p.n == 0 {
			binary.LittleEndian.PutUint64(p.buf[:], p.r.Uint64())
			p.n = len(p.buf)
		}
		b[i] = p.buf[len(p.buf)-p.n]
		p.n--
	}
	return len(b), nil
}

// mix is the splitmix64 finalizer; it spreads nearby seeds apart.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
