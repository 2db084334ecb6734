package layout

import (
	"math"

	"github.com/edirooss/streambed-server/internal/domain/flow"
)

const (
	// MaxCells bounds matrix width and height.
	MaxCells = 8
	// MaxGap is 100% in hundredths of a percent.
	MaxGap = 10000

	// resolvePasses bounds ResolveMatrix; each pass reverts at least one
	// present field and there are at most six.
	resolvePasses = 3
)

// ValidateMatrix reports one error per offending field. X and Y are only
// checked against a valid width and height.
func ValidateMatrix(m flow.Matrix) []*flow.ValidationError {
	var errs []*flow.ValidationError
	if m.Width < 1 || m.Width > MaxCells {
		errs = append(errs, flow.Invalid(flow.FieldMatrixWidth, "%d is outside [1,%d]", m.Width, MaxCells))
	} else if m.X >= m.Width {
		errs = append(errs, flow.Invalid(flow.FieldMatrixX, "%d is not below width %d", m.X, m.Width))
	}
	if m.Height < 1 || m.Height > MaxCells {
		errs = append(errs, flow.Invalid(flow.FieldMatrixHeight, "%d is outside [1,%d]", m.Height, MaxCells))
	} else if m.Y >= m.Height {
		errs = append(errs, flow.Invalid(flow.FieldMatrixY, "%d is not below height %d", m.Y, m.Height))
	}
	if m.HGap > MaxGap {
		errs = append(errs, flow.Invalid(flow.FieldMatrixHGap, "%d is above %d", m.HGap, MaxGap))
	}
	if m.VGap > MaxGap {
		errs = append(errs, flow.Invalid(flow.FieldMatrixVGap, "%d is above %d", m.VGap, MaxGap))
	}
	return errs
}

// ResolveMatrix merges proposed over prev so that the result is valid.
// An offending field that was present in the update is reverted to its
// previous value. When a field that was not updated becomes invalid
// (x against a narrowed width, y against a lowered height), the updated
// partner is reverted instead. prev must be valid.
func ResolveMatrix(prev, proposed flow.Matrix, present flow.FieldSet) (flow.Matrix, []error) {
	var errs []error
	cur := proposed
	for pass := 0; pass < resolvePasses; pass++ {
		verrs := ValidateMatrix(cur)
		if len(verrs) == 0 {
			return cur, errs
		}
		reverted := false
		for _, verr := range verrs {
			f, _ := flow.FieldByName(verr.Field)
			target := f
			if !present.Has(f) {
				target = partner(f)
				verr = flow.Invalid(target, "%s", verr.Reason)
			}
			if !present.Has(target) {
				continue
			}
			revertMatrix(&cur, prev, target)
			present = present.Without(target)
			errs = append(errs, verr)
			reverted = true
		}
		if !reverted {
			break
		}
	}
	if len(ValidateMatrix(cur)) == 0 {
		return cur, errs
	}
	return prev, errs
}

// partner is the field whose value bounds f.
func partner(f flow.Field) flow.Field {
	switch f {
	case flow.FieldMatrixX:
		return flow.FieldMatrixWidth
	case flow.FieldMatrixWidth:
		return flow.FieldMatrixX
	case flow.FieldMatrixY:
		return flow.FieldMatrixHeight
	case flow.FieldMatrixHeight:
		return flow.FieldMatrixY
	}
	return f
}

func revertMatrix(dst *flow.Matrix, prev flow.Matrix, f flow.Field) {
	switch f {
	case flow.FieldMatrixX:
		dst.X = prev.X
	case flow.FieldMatrixWidth:
		dst.Width = prev.Width
	case flow.FieldMatrixY:
		dst.Y = prev.Y
	case flow.FieldMatrixHeight:
		dst.Height = prev.Height
	case flow.FieldMatrixHGap:
		dst.HGap = prev.HGap
	case flow.FieldMatrixVGap:
		dst.VGap = prev.VGap
	}
}

// DefaultPlacement tiles a grid row-major into ceil(sqrt(grid)) columns.
// Slots are flow indices, so growing the grid keeps the order of the
// slots already placed and appends new ones. ok is false for slots
// outside the grid.
func DefaultPlacement(slot, grid int) (m flow.Matrix, ok bool) {
	if grid <= 0 || slot < 0 || slot >= grid {
		return flow.Matrix{Width: 1, Height: 1}, false
	}
	cols := int(math.Ceil(math.Sqrt(float64(grid))))
	rows := (grid + cols - 1) / cols
	return flow.Matrix{
		X:      uint8(slot % cols),
		Width:  uint8(cols),
		Y:      uint8(slot / cols),
		Height: uint8(rows),
	}, true
}

// Placement returns the effective placement of a flow: its pinned matrix,
// else its default grid tile, else the full frame.
func Placement(index int, g flow.GlobalConfig, c flow.FlowConfig) flow.Matrix {
	if c.PinnedMatrix {
		return c.Matrix
	}
	m, _ := DefaultPlacement(index, g.EffectiveGrid())
	return m
}

// IsCropped reports whether a placement shows only part of the frame.
func IsCropped(m flow.Matrix) bool {
	return m.Width > 1 || m.Height > 1
}

// Crop is the number of pixels trimmed from each edge of a frame so that
// only the placement's tile remains.
type Crop struct {
	Top, Bottom, Left, Right int
}

// CropFor computes the crop of a width x height frame for m. Gaps are
// split evenly between the two edges of the tile and are capped at half
// the tile so the result is never empty.
func CropFor(m flow.Matrix, width, height int) Crop {
	if m.Width == 0 || m.Height == 0 {
		return Crop{}
	}
	hgap := min(int(m.HGap), MaxGap/2)
	vgap := min(int(m.VGap), MaxGap/2)
	cols, rows := int(m.Width), int(m.Height)
	x, y := int(m.X), int(m.Y)
	hpad := width * hgap / (cols * MaxGap * 2)
	vpad := height * vgap / (rows * MaxGap * 2)
	return Crop{
		Top:    height*y/rows + vpad,
		Bottom: height*(rows-y-1)/rows + vpad,
		Left:   width*x/cols + hpad,
		Right:  width*(cols-x-1)/cols + hpad,
	}
}
