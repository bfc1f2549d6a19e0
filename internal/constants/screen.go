package constants

import "fmt"

// Text-console grid used by the bitmap OCR
const (
	DefaultGridColumns = 160
	DefaultGridRows    = 50

	MinGridColumns = 20
	MinGridRows    = 10
	MaxGridColumns = 1000
	MaxGridRows    = 1000
)

// Pointer coordinate space
const (
	DefaultScreenWidth  = 1024
	DefaultScreenHeight = 768

	// QEMU absolute pointer axes run from 0 to 0x7fff
	AbsAxisMax = 0x7fff
)

// ValidateGrid checks that an OCR grid is within reasonable bounds
func ValidateGrid(columns, rows int) error {
	if columns <= 0 || rows <= 0 {
		return fmt.Errorf("grid dimensions must be positive integers")
	}
	if columns < MinGridColumns || rows < MinGridRows {
		return fmt.Errorf("grid too small: minimum %dx%d", MinGridColumns, MinGridRows)
	}
	if columns > MaxGridColumns || rows > MaxGridRows {
		return fmt.Errorf("grid too large: maximum %dx%d", MaxGridColumns, MaxGridRows)
	}
	return nil
}

// ScaleToAbs converts a pixel coordinate to the absolute pointer axis
func ScaleToAbs(v, extent int) int {
	if extent <= 1 {
		return 0
	}
	if v < 0 {
		v = 0
	}
	if v >= extent {
		v = extent - 1
	}
	return v * AbsAxisMax / (extent - 1)
}
