package domain

// Bulletin is one river-information notice listed on the source page.
type Bulletin struct {
	// DateValue is the publication date as YYYYMMDD, used for ordering.
	DateValue int
	// DateText is the localized date exactly as it appeared on the page.
	DateText string
	Title    string
	URL      string
}

// MaxDateValue returns the highest DateValue in bulletins and false when the slice is empty.
func MaxDateValue(bulletins []Bulletin) (int, bool) {
	if len(bulletins) == 0 {
		return 0, false
	}

	highest := bulletins[0].DateValue
	for _, b := range bulletins[1:] {
		if b.DateValue > highest {
			highest = b.DateValue
		}
	}
	return highest, true
}
