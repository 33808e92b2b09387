package store

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

const schemaVersion = 1

// encodeCalories serialises a calorie value:
//
//	version   uvarint  (=1)
//	calories  float64 LE
func encodeCalories(kcal float64) []byte {
	var buf bytes.Buffer
	var v [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(v[:], schemaVersion)
	buf.Write(v[:n])

	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(kcal))
	buf.Write(b[:])
	return buf.Bytes()
}

// decodeCalories parses a blob produced by encodeCalories.
func decodeCalories(data []byte) (float64, error) {
	r := bytes.NewReader(data)

	ver, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("read version: %w", err)
	}
	if ver != schemaVersion {
		return 0, fmt.Errorf("unsupported schema version %d", ver)
	}

	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read calories: %w", err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b[:])), nil
}
