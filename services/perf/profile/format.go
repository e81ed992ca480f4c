// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package profile

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatValue renders a weight in the profile's unit.
func (p *Profile) FormatValue(v float64) string {
	return FormatWeight(p.unit, v)
}

// FormatWeight renders v for display. Time units are scaled to the largest
// unit in which the value exceeds one; bytes use binary prefixes.
func FormatWeight(unit WeightUnit, v float64) string {
	switch unit {
	case UnitBytes:
		if v < 0 {
			return "-" + humanize.IBytes(uint64(-v))
		}
		return humanize.IBytes(uint64(v))
	case UnitNone:
		return humanize.Commaf(v)
	}

	factor, _ := unit.MillisecondFactor()
	ns := v * 1e6 / factor
	switch {
	case ns/1e9 > 1:
		return fmt.Sprintf("%.2fs", ns/1e9)
	case ns/1e6 > 1:
		return fmt.Sprintf("%.2fms", ns/1e6)
	case ns/1e3 > 1:
		return fmt.Sprintf("%.2fµs", ns/1e3)
	default:
		return fmt.Sprintf("%.0fns", ns)
	}
}

// FormatPercent renders a percentage with precision that grows as the value
// shrinks.
func FormatPercent(pct float64) string {
	switch {
	case pct == 100:
		return "100%"
	case pct > 99:
		return ">99%"
	case pct < 0.01:
		return "<0.01%"
	case pct < 1:
		return fmt.Sprintf("%.2f%%", pct)
	case pct < 10:
		return fmt.Sprintf("%.1f%%", pct)
	default:
		return fmt.Sprintf("%.0f%%", pct)
	}
}
