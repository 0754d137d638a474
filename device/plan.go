package device

import (
	"fmt"

	"github.com/moffa90/go-stmflash/protocol"
)

// ErasePlan is the number of erase units, counted from unit 0, that must be
// cleared before an image is written.
type ErasePlan struct {
	// Units is the unit count, or protocol.EraseAll for a full-chip erase
	Units int

	// TopAddress is the last address covered by the erased units.
	// It is zero for a full-chip erase.
	TopAddress uint32

	// Full is set for a full-chip erase
	Full bool
}

// PlanErase computes the minimal number of erase units that cover length bytes
// written at load. With full set the plan is a full-chip erase and the layout
// is not consulted.
//
// Units are counted from the flash base, so load must equal p.FlashBase for a
// partial erase.
func PlanErase(p Profile, length int, load uint32, full bool) (ErasePlan, error) {
	if full {
		return ErasePlan{Units: protocol.EraseAll, Full: true}, nil
	}
	if length <= 0 {
		return ErasePlan{}, fmt.Errorf("cannot plan erase for %d bytes", length)
	}
	if load != p.FlashBase {
		return ErasePlan{}, fmt.Errorf("load address 0x%08X is not the flash base 0x%08X of %s: use a full-chip erase", load, p.FlashBase, p.Name)
	}

	switch g := p.Granularity.(type) {
	case Uniform:
		if g.PageSize <= 0 {
			return ErasePlan{}, fmt.Errorf("invalid page size %d for %s", g.PageSize, p.Name)
		}
		units := (length + g.PageSize - 1) / g.PageSize
		return ErasePlan{
			Units:      units,
			TopAddress: load + uint32(units*g.PageSize) - 1,
		}, nil

	case Sectored:
		last := load + uint32(length) - 1
		top := load - 1
		for i, size := range g.Sizes {
			top += uint32(size)
			if top >= last {
				return ErasePlan{Units: i + 1, TopAddress: top}, nil
			}
		}
		return ErasePlan{}, fmt.Errorf("image of %d bytes exceeds the %d sectors of %s", length, len(g.Sizes), p.Name)

	default:
		return ErasePlan{}, fmt.Errorf("unknown erase granularity %T for %s", p.Granularity, p.Name)
	}
}
