package srs

import (
	"math"
	"strconv"
	"time"
)

const (
	month = 30 * day
	year  = 365 * day
)

// FormatInterval renders an interval the way a rating button labels it:
// "45s", "10m", "3h", "1.2d", "3mo", "2.1y". Values are rounded to one
// decimal place and trailing zeros are dropped.
func FormatInterval(d time.Duration) string {
	switch {
	case d <= 0:
		return "now"
	case d < time.Minute:
		return formatUnit(d, time.Second, "s")
	case d < time.Hour:
		return formatUnit(d, time.Minute, "m")
	case d < day:
		return formatUnit(d, time.Hour, "h")
	case d < month:
		return formatUnit(d, day, "d")
	case d < year:
		return formatUnit(d, month, "mo")
	default:
		return formatUnit(d, year, "y")
	}
}

func formatUnit(d, unit time.Duration, suffix string) string {
	v := math.Round(float64(d)/float64(unit)*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64) + suffix
}
