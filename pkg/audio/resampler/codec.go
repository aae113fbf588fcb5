package resampler

import (
	"encoding/binary"
	"math"

	"github.com/xaionaro-go/lyricsync/pkg/audio/types"
)

// codec converts a single sample between its wire representation and
// a float64 in [-1, 1].
type codec struct {
	decode func(p []byte) float64
	encode func(p []byte, v float64)
}

func intScale(bits uint) float64 {
	return float64(uint64(1) << (bits - 1))
}

func quantize(v float64, bits uint) int64 {
	scale := intScale(bits)
	q := math.Round(v * scale)
	if q > scale-1 {
		q = scale - 1
	}
	if q < -scale {
		q = -scale
	}
	return int64(q)
}

func getInt24(p []byte, bo binary.ByteOrder) int32 {
	var v uint32
	if bo == binary.LittleEndian {
		v = uint32(p[0]) | uint32(p[1])<<8 | uint32(p[2])<<16
	} else {
		v = uint32(p[2]) | uint32(p[1])<<8 | uint32(p[0])<<16
	}
	if v&0x800000 != 0 {
		v |= 0xff000000
	}
	return int32(v)
}

func putInt24(p []byte, bo binary.ByteOrder, v int32) {
	if bo == binary.LittleEndian {
		p[0], p[1], p[2] = byte(v), byte(v>>8), byte(v>>16)
	} else {
		p[0], p[1], p[2] = byte(v>>16), byte(v>>8), byte(v)
	}
}

func intCodec16(bo binary.ByteOrder) codec {
	return codec{
		decode: func(p []byte) float64 { return float64(int16(bo.Uint16(p))) / intScale(16) },
		encode: func(p []byte, v float64) { bo.PutUint16(p, uint16(quantize(v, 16))) },
	}
}

func intCodec24(bo binary.ByteOrder) codec {
	return codec{
		decode: func(p []byte) float64 { return float64(getInt24(p, bo)) / intScale(24) },
		encode: func(p []byte, v float64) { putInt24(p, bo, int32(quantize(v, 24))) },
	}
}

func intCodec32(bo binary.ByteOrder) codec {
	return codec{
		decode: func(p []byte) float64 { return float64(int32(bo.Uint32(p))) / intScale(32) },
		encode: func(p []byte, v float64) { bo.PutUint32(p, uint32(quantize(v, 32))) },
	}
}

func intCodec64(bo binary.ByteOrder) codec {
	return codec{
		decode: func(p []byte) float64 { return float64(int64(bo.Uint64(p))) / intScale(64) },
		encode: func(p []byte, v float64) {
			switch {
			case v >= 1:
				bo.PutUint64(p, uint64(math.MaxInt64))
			case v <= -1:
				bo.PutUint64(p, 1<<63)
			default:
				bo.PutUint64(p, uint64(int64(v*intScale(64))))
			}
		},
	}
}

func floatCodec32(bo binary.ByteOrder) codec {
	return codec{
		decode: func(p []byte) float64 { return float64(math.Float32frombits(bo.Uint32(p))) },
		encode: func(p []byte, v float64) { bo.PutUint32(p, math.Float32bits(float32(v))) },
	}
}

func floatCodec64(bo binary.ByteOrder) codec {
	return codec{
		decode: func(p []byte) float64 { return math.Float64frombits(bo.Uint64(p)) },
		encode: func(p []byte, v float64) { bo.PutUint64(p, math.Float64bits(v)) },
	}
}

var codecs = map[types.PCMFormat]codec{
	types.PCMFormatU8: {
		decode: func(p []byte) float64 { return (float64(p[0]) - 128) / 128 },
		encode: func(p []byte, v float64) { p[0] = byte(quantize(v, 8) + 128) },
	},
	types.PCMFormatS16LE:     intCodec16(binary.LittleEndian),
	types.PCMFormatS16BE:     intCodec16(binary.BigEndian),
	types.PCMFormatS24LE:     intCodec24(binary.LittleEndian),
	types.PCMFormatS24BE:     intCodec24(binary.BigEndian),
	types.PCMFormatS32LE:     intCodec32(binary.LittleEndian),
	types.PCMFormatS32BE:     intCodec32(binary.BigEndian),
	types.PCMFormatS64LE:     intCodec64(binary.LittleEndian),
	types.PCMFormatS64BE:     intCodec64(binary.BigEndian),
	types.PCMFormatFloat32LE: floatCodec32(binary.LittleEndian),
	types.PCMFormatFloat32BE: floatCodec32(binary.BigEndian),
	types.PCMFormatFloat64LE: floatCodec64(binary.LittleEndian),
	types.PCMFormatFloat64BE: floatCodec64(binary.BigEndian),
}
