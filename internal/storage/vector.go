package storage

import (
	"encoding/binary"
	"fmt"
	"math"
)

// serializeVector converts a float32 slice to a byte blob (little-endian).
// An empty vector yields nil so it is stored as NULL.
func serializeVector(vector []float32) []byte {
	if len(vector) == 0 {
		return nil
	}
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice.
// A nil blob is a NULL column and yields a nil vector.
func deserializeVector(blob []byte) ([]float32, error) {
	if blob == nil {
		return nil, nil
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("corrupt vector blob: %d bytes is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector, nil
}
