// Package waveform packs sample arrays into the fixed-width blobs stored in
// the time and signal columns.
//
// Layout: one IEEE-754 float32 per sample, little-endian, concatenated in
// input order. A blob of n samples is exactly 4n bytes. Packing truncates
// float64 input to float32, so a round trip is exact at float32 precision.
package waveform

import (
	"encoding/binary"
	"math"

	"github.com/roach88/grdb/internal/ir"
)

// SampleSize is the encoded width of one sample in bytes.
const SampleSize = 4

// Pack encodes values. An empty input yields an empty, non-nil blob.
func Pack(values []float64) []byte {
	buf := make([]byte, len(values)*SampleSize)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*SampleSize:], math.Float32bits(float32(v)))
	}
	return buf
}

// Unpack decodes a blob produced by Pack.
// Returns a CorruptEncoding error if the length is not a multiple of SampleSize.
func Unpack(blob []byte) ([]float64, error) {
	if len(blob)%SampleSize != 0 {
		return nil, ir.CorruptEncodingf("waveform blob length %d is not a multiple of %d", len(blob), SampleSize)
	}
	values := make([]float64, len(blob)/SampleSize)
	for i := range values {
		bits := binary.LittleEndian.Uint32(blob[i*SampleSize:])
		values[i] = float64(math.Float32frombits(bits))
	}
	return values, nil
}
