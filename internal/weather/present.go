package weather

import (
	"math"
	"time"
)

const (
	// DateLayout renders e.g. "Friday, March 7, 2025".
	DateLayout = "Monday, January 2, 2006"
	// ClockLayout renders a 12-hour time such as "6:05 AM".
	ClockLayout = "3:04 PM"
)

// Present builds the single-city display record. Times are rendered in loc.
func Present(r Reading, units Units, now time.Time, loc *time.Location) CityReport {
	loc = orLocal(loc)
	return CityReport{
		Date:        now.In(loc).Format(DateLayout),
		City:        r.CityName,
		Description: r.Description,
		Temp:        r.Temperature,
		Humidity:    r.Humidity,
		WindSpeed:   r.WindSpeed,
		Sunrise:     r.Sunrise.In(loc).Format(ClockLayout),
		Sunset:      r.Sunset.In(loc).Format(ClockLayout),
		UnitsLetter: units.Letter(),
	}
}

// Compare derives the comparison view of two readings. The result's
// differences do not depend on argument order.
func Compare(a, b Reading, units Units, now time.Time, loc *time.Location) Comparison {
	loc = orLocal(loc)
	first := side(a, loc)
	second := side(b, loc)

	return Comparison{
		Date:             now.In(loc).Format(DateLayout),
		UnitsLetter:      units.Letter(),
		First:            first,
		Second:           second,
		AbsDiffTemp:      round2(math.Abs(a.Temperature - b.Temperature)),
		AbsDiffHumidity:  round2(math.Abs(a.Humidity - b.Humidity)),
		AbsDiffWindSpeed: round2(math.Abs(a.WindSpeed - b.WindSpeed)),
		AbsDiffSunset:    absInt(first.SunsetHour - second.SunsetHour),
	}
}

func side(r Reading, loc *time.Location) CitySide {
	return CitySide{
		City:       r.CityName,
		Temp:       r.Temperature,
		Humidity:   r.Humidity,
		WindSpeed:  r.WindSpeed,
		Sunrise:    r.Sunrise.In(loc),
		SunsetHour: r.Sunset.In(loc).Hour(),
	}
}

// round2 rounds a non-negative value half-up to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
