package usecase

import "RiverWatch/internal/domain"

// FindNew keeps the bulletins dated strictly after lastDateValue, in input order.
// A bulletin dated on the watermark day was already reported by the run that set it.
func FindNew(bulletins []domain.Bulletin, lastDateValue int) []domain.Bulletin {
	fresh := make([]domain.Bulletin, 0, len(bulletins))
	for _, b := range bulletins {
		if b.DateValue > lastDateValue {
			fresh = append(fresh, b)
		}
	}
	return fresh
}
