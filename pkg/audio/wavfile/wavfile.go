// Package wavfile reads WAV files into interleaved PCM and writes mono
// float32 buffers as 16-bit WAV files.
package wavfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/xaionaro-go/lyricsync/pkg/audio"
	"github.com/xaionaro-go/lyricsync/pkg/audio/resampler"
)

const writeBitDepth = 16

// Decode reads the whole WAV file and returns its samples as interleaved
// little-endian PCM of the file's bit depth.
func Decode(
	r io.ReadSeeker,
) (io.Reader, resampler.Format, error) {
	decoder := wav.NewDecoder(r)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		return nil, resampler.Format{}, fmt.Errorf("not a valid WAV file")
	}

	var pcmFormat audio.PCMFormat
	switch decoder.BitDepth {
	case 16:
		pcmFormat = audio.PCMFormatS16LE
	case 24:
		pcmFormat = audio.PCMFormatS24LE
	case 32:
		pcmFormat = audio.PCMFormatS32LE
	default:
		return nil, resampler.Format{}, fmt.Errorf("unsupported bit depth: %d", decoder.BitDepth)
	}
	format := resampler.Format{
		Channels:   audio.Channel(decoder.NumChans),
		SampleRate: audio.SampleRate(decoder.SampleRate),
		PCMFormat:  pcmFormat,
	}
	if err := format.Validate(); err != nil {
		return nil, resampler.Format{}, fmt.Errorf("invalid WAV format: %w", err)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, resampler.Format{}, fmt.Errorf("unable to decode the PCM data: %w", err)
	}

	sampleSize := int(pcmFormat.Size())
	out := make([]byte, len(buf.Data)*sampleSize)
	for idx, v := range buf.Data {
		putIntLE(out[idx*sampleSize:(idx+1)*sampleSize], v)
	}
	return bytes.NewReader(out), format, nil
}

func putIntLE(dst []byte, v int) {
	switch len(dst) {
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case 3:
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	}
}

// WriteMono writes the samples (expected in [-1, 1], clipped otherwise)
// as a mono 16-bit WAV file.
func WriteMono(
	w io.WriteSeeker,
	sampleRate int,
	samples []float32,
) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", sampleRate)
	}
	data := make([]int, len(samples))
	for idx, s := range samples {
		v := math.Round(float64(s) * math.MaxInt16)
		data[idx] = int(max(math.MinInt16, min(math.MaxInt16, v)))
	}

	enc := wav.NewEncoder(w, sampleRate, writeBitDepth, 1, 1)
	err := enc.Write(&goaudio.IntBuffer{
		Data: data,
		Format: &goaudio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		SourceBitDepth: writeBitDepth,
	})
	if err != nil {
		return fmt.Errorf("unable to write the samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("unable to finalize the WAV file: %w", err)
	}
	return nil
}
