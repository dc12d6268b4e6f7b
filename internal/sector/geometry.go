package sector

import (
	"fmt"

	"romident/internal/errkind"
)

const (
	// CookedSectorSize is the user-data size of every supported sector layout.
	CookedSectorSize = 2048
	// RawSectorSize is the physical size of a Mode-1 raw sector.
	RawSectorSize = 2352
	// rawSectorSizeLabel is the size some catalogs and tools quote for the
	// Mode-1 raw layout; it resolves to the same geometry as RawSectorSize.
	rawSectorSizeLabel = 2532
)

// Geometry describes the layout of one physical sector. All sizes are bytes.
type Geometry struct {
	HeaderSize int64
	FooterSize int64
	DataSize   int64
}

var (
	// Cooked is the 2048-byte pass-through layout.
	Cooked = Geometry{HeaderSize: 0, FooterSize: 0, DataSize: CookedSectorSize}
	// Mode1Raw models sync(12)+address(3)+mode(1), EDC(4)+zero(8)+ECC(276).
	Mode1Raw = Geometry{HeaderSize: 12 + 3 + 1, FooterSize: 4 + 8 + 276, DataSize: CookedSectorSize}
)

// UnsupportedGeometryError reports a sector size with no known layout.
type UnsupportedGeometryError struct {
	SectorSize int64
	Geometry   Geometry
}

func (e *UnsupportedGeometryError) Error() string {
	if e.SectorSize > 0 {
		return fmt.Sprintf("unsupported sector size %d", e.SectorSize)
	}
	return fmt.Sprintf("unsupported sector geometry header=%d footer=%d data=%d",
		e.Geometry.HeaderSize, e.Geometry.FooterSize, e.Geometry.DataSize)
}

func (e *UnsupportedGeometryError) Unwrap() error { return errkind.ErrUnsupportedGeometry }

func (e *UnsupportedGeometryError) ErrorKind() string { return "geometry" }

// ForSectorSize resolves a declared sector size to its geometry.
func ForSectorSize(size int64) (Geometry, error) {
	switch size {
	case CookedSectorSize:
		return Cooked, nil
	case RawSectorSize, rawSectorSizeLabel:
		return Mode1Raw, nil
	default:
		return Geometry{}, &UnsupportedGeometryError{SectorSize: size}
	}
}

// PhysicalSize is header + data + footer.
func (g Geometry) PhysicalSize() int64 {
	return g.HeaderSize + g.DataSize + g.FooterSize
}

// Validate rejects negative fields and a zero data region.
func (g Geometry) Validate() error {
	if g.HeaderSize < 0 || g.FooterSize < 0 || g.DataSize <= 0 {
		return &UnsupportedGeometryError{Geometry: g}
	}
	return nil
}

// IsPassThrough reports whether cooked and raw offsets coincide.
func (g Geometry) IsPassThrough() bool {
	return g.HeaderSize == 0 && g.FooterSize == 0
}

// CookedToRaw maps a logical offset to its physical offset:
// raw = cooked + header*(cooked/data+1) + footer*(cooked/data).
func (g Geometry) CookedToRaw(cooked int64) (int64, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	if cooked < 0 {
		return 0, fmt.Errorf("negative cooked offset %d", cooked)
	}
	sectors := cooked / g.DataSize
	return cooked + g.HeaderSize*(sectors+1) + g.FooterSize*sectors, nil
}

// CookedSize returns the logical size of a raw track of rawSize bytes. A
// trailing partial sector contributes only the data bytes it actually holds.
func (g Geometry) CookedSize(rawSize int64) int64 {
	if g.Validate() != nil || rawSize <= 0 {
		return 0
	}
	phys := g.PhysicalSize()
	whole := rawSize / phys
	size := whole * g.DataSize
	if rem := rawSize%phys - g.HeaderSize; rem > 0 {
		size += min(rem, g.DataSize)
	}
	return size
}
