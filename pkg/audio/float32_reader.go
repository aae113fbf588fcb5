package audio

import (
	"encoding/binary"
	"io"
	"math"
)

// float32Reader is the source side of oggvorbis.Reader and alike.
type float32Reader interface {
	Read(p []float32) (int, error)
}

type readerFromFloat32Reader struct {
	backend float32Reader
	buffer  []float32
}

var _ io.Reader = (*readerFromFloat32Reader)(nil)

func newReaderFromFloat32Reader(backend float32Reader) *readerFromFloat32Reader {
	return &readerFromFloat32Reader{
		backend: backend,
	}
}

// Read fills p with float32le samples; len(p) is rounded down to a multiple of 4.
func (r *readerFromFloat32Reader) Read(p []byte) (int, error) {
	count := len(p) / 4
	if count == 0 {
		return 0, nil
	}
	if cap(r.buffer) < count {
		r.buffer = make([]float32, count)
	}
	buf := r.buffer[:count]

	n, err := r.backend.Read(buf)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(buf[i]))
	}
	return n * 4, err
}

// Float32LEToSamples decodes interleaved float32le bytes. A trailing
// incomplete sample is ignored.
func Float32LEToSamples(dst []float32, data []byte) []float32 {
	count := len(data) / 4
	for i := 0; i < count; i++ {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
	}
	return dst
}

// SamplesToFloat32LE encodes samples as float32le bytes.
func SamplesToFloat32LE(dst []byte, samples []float32) []byte {
	for _, v := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
