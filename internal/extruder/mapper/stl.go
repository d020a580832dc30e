package mapper

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"alprofile/internal/extruder/models"

	"gonum.org/v1/gonum/spatial/r3"
)

// ============================================================
// Binary STL writer
// ============================================================

const stlHeaderSize = 80

// WriteSTL пишет сетку тела в бинарный STL (little-endian, float32).
func WriteSTL(w io.Writer, s *models.Solid, name string) error {
	if s == nil || len(s.Triangles) == 0 {
		return fmt.Errorf("write stl: empty solid")
	}
	if uint64(len(s.Triangles)) > math.MaxUint32 {
		return fmt.Errorf("write stl: too many triangles: %d", len(s.Triangles))
	}

	bw := bufio.NewWriter(w)

	var header [stlHeaderSize]byte
	copy(header[:], "alprofile "+name)
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("write stl header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(s.Triangles))); err != nil {
		return fmt.Errorf("write stl count: %w", err)
	}

	var rec [50]byte
	for _, t := range s.Triangles {
		putVec(rec[0:], t.Normal)
		for i, v := range t.Vertices {
			putVec(rec[12+12*i:], v)
		}
		// attribute byte count
		rec[48], rec[49] = 0, 0
		if _, err := bw.Write(rec[:]); err != nil {
			return fmt.Errorf("write stl facet: %w", err)
		}
	}

	return bw.Flush()
}

func putVec(b []byte, v r3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(float32(v.Z)))
}
