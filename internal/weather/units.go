package weather

// Letter returns the display abbreviation for the units selector.
// Standard (Kelvin) is the fallback for empty or unrecognized values.
func (u Units) Letter() string {
	switch u {
	case UnitsMetric:
		return "C"
	case UnitsImperial:
		return "F"
	default:
		return "K"
	}
}

// UnitsLetter maps a raw units query value to its display abbreviation.
func UnitsLetter(units string) string {
	return Units(units).Letter()
}
