package device

import (
	"fmt"
	"sort"
)

// FlashBase is the start of main flash on every registered part.
const FlashBase = 0x08000000

// Granularity describes how a part's flash is divided into erase units.
// It is implemented by Uniform and Sectored only.
type Granularity interface {
	// UnitSize returns the size in bytes of erase unit i, or 0 past the end
	// of the known layout.
	UnitSize(i int) int

	granularity()
}

// Uniform is a flash made of equally sized pages.
type Uniform struct {
	PageSize int
}

func (u Uniform) UnitSize(int) int { return u.PageSize }

func (Uniform) granularity() {}

func (u Uniform) String() string {
	return fmt.Sprintf("%d-byte pages", u.PageSize)
}

// Sectored is a flash made of sectors of varying size, listed in address order.
type Sectored struct {
	Sizes []int
}

func (s Sectored) UnitSize(i int) int {
	if i < 0 || i >= len(s.Sizes) {
		return 0
	}
	return s.Sizes[i]
}

func (Sectored) granularity() {}

func (s Sectored) String() string {
	return fmt.Sprintf("%d sectors", len(s.Sizes))
}

// Profile describes one supported part.
type Profile struct {
	// ID is the product id returned by GET_ID
	ID uint16

	// Name is the product line
	Name string

	// FlashBase is the address of erase unit 0
	FlashBase uint32

	Granularity Granularity
}

func (p Profile) String() string {
	return fmt.Sprintf("0x%03X %s (%s)", p.ID, p.Name, p.Granularity)
}

const (
	k = 1024
)

var registry = map[uint16]Profile{
	0x410: {ID: 0x410, Name: "STM32F10xxx medium-density", FlashBase: FlashBase, Granularity: Uniform{PageSize: 1 * k}},
	0x414: {ID: 0x414, Name: "STM32F10xxx high-density", FlashBase: FlashBase, Granularity: Uniform{PageSize: 2 * k}},
	0x435: {ID: 0x435, Name: "STM32L43xxx/44xxx", FlashBase: FlashBase, Granularity: Uniform{PageSize: 2 * k}},
	0x462: {ID: 0x462, Name: "STM32L45xxx/46xxx", FlashBase: FlashBase, Granularity: Uniform{PageSize: 2 * k}},
	0x464: {ID: 0x464, Name: "STM32L41xxx/42xxx", FlashBase: FlashBase, Granularity: Uniform{PageSize: 2 * k}},
	0x452: {ID: 0x452, Name: "STM32F72xxx/73xxx", FlashBase: FlashBase, Granularity: Sectored{
		Sizes: []int{16 * k, 16 * k, 16 * k, 16 * k, 64 * k, 128 * k, 128 * k, 128 * k},
	}},
	0x413: {ID: 0x413, Name: "STM32F405xx/07xx/15xx/17xx", FlashBase: FlashBase, Granularity: Sectored{
		Sizes: []int{16 * k, 16 * k, 16 * k, 16 * k, 64 * k, 128 * k, 128 * k, 128 * k, 128 * k, 128 * k, 128 * k, 128 * k},
	}},
	0x449: {ID: 0x449, Name: "STM32F74xxx/75xxx", FlashBase: FlashBase, Granularity: Sectored{
		Sizes: []int{32 * k, 32 * k, 32 * k, 32 * k, 128 * k, 256 * k, 256 * k, 256 * k},
	}},
}

// Lookup returns the profile registered for a product id.
func Lookup(id uint16) (Profile, bool) {
	p, ok := registry[id]
	return p, ok
}

// All returns every registered profile ordered by id.
func All() []Profile {
	profiles := make([]Profile, 0, len(registry))
	for _, p := range registry {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID < profiles[j].ID
	})
	return profiles
}
