// Package device holds the static registry of supported STM32 parts and the
// erase planner that turns an image size into a count of erase units.
//
// # Profiles
//
// Each Profile carries the 12-bit product id reported by GET_ID, the flash base
// address and the erase granularity of the part. Granularity is either Uniform
// (every page has the same size) or Sectored (an ordered list of sector sizes
// from the flash base):
//
//	p, ok := device.Lookup(0x452)
//	if !ok {
//	    // unsupported part
//	}
//
// # Erase Planning
//
//	plan, err := device.PlanErase(p, len(data), p.FlashBase, false)
//	// plan.Units pages or sectors, starting at unit 0
//
// Plans always start at unit 0, so the load address must be the flash base
// unless the whole chip is erased.
package device
