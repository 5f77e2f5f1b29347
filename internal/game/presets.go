package game

import "github.com/KDT2006/minewars/internal/protocol"

const (
	SizeSmall  = "small"
	SizeMedium = "medium"
	SizeLarge  = "large"
	SizeCustom = "custom"

	MinSide = 5
	MaxSide = 50
)

var presets = map[string]Dimensions{
	SizeSmall:  {Rows: 9, Cols: 9, Mines: 10},
	SizeMedium: {Rows: 16, Cols: 16, Mines: 40},
	SizeLarge:  {Rows: 16, Cols: 30, Mines: 99},
}

var customDefault = Dimensions{Rows: 20, Cols: 30, Mines: 100}

// Resolve turns a config into board dimensions. Custom sizes are clamped to
// MinSide..MaxSide and at most rows*cols-9 mines, so a forced 3x3 opening is
// always possible. Unknown preset names fall back to medium.
func Resolve(cfg protocol.GameConfig) Dimensions {
	if cfg.Size != SizeCustom {
		if dims, ok := presets[cfg.Size]; ok {
			return dims
		}
		return presets[SizeMedium]
	}

	dims := Dimensions{Rows: cfg.Rows, Cols: cfg.Cols, Mines: cfg.MineCount}
	if dims.Rows == 0 {
		dims.Rows = customDefault.Rows
	}
	if dims.Cols == 0 {
		dims.Cols = customDefault.Cols
	}
	if dims.Mines == 0 {
		dims.Mines = customDefault.Mines
	}

	dims.Rows = clamp(dims.Rows, MinSide, MaxSide)
	dims.Cols = clamp(dims.Cols, MinSide, MaxSide)
	dims.Mines = clamp(dims.Mines, 1, dims.Rows*dims.Cols-9)
	return dims
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
