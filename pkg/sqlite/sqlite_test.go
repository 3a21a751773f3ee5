package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"testing"
)

func TestVecExtensionLoaded(t *testing.T) {
	db, err := sql.Open("sqlite3_vec", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	var version string
	if err := db.QueryRow("SELECT vec_version()").Scan(&version); err != nil {
		t.Fatalf("vec_version() failed: %v — extension not loaded", err)
	}
	if version == "" {
		t.Error("expected a version string, got empty")
	}
}

func TestVecCosineDistance(t *testing.T) {
	db, err := sql.Open("sqlite3_vec", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	encode := func(vec []float32) []byte {
		buf := new(bytes.Buffer)
		if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
			t.Fatal(err)
		}
		return buf.Bytes()
	}

	var dist float64
	err = db.QueryRow(
		`SELECT vec_distance_cosine(?, ?)`,
		encode([]float32{1, 0, 0}), encode([]float32{1, 0, 0}),
	).Scan(&dist)
	if err != nil {
		t.Fatalf("vec_distance_cosine failed: %v", err)
	}
	if dist > 1e-6 {
		t.Errorf("expected zero distance for identical vectors, got %v", dist)
	}
}
