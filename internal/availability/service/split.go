package service

import (
	"propbook/pkg/model"
	"time"
)

// SplitRange returns what is left of r once [start, end] is taken out of it.
// The result holds zero, one or two ranges, without ids or timestamps, and
// ends up ordered by start date. r must contain [start, end].
func SplitRange(r *model.ShortletAvailability, start, end time.Time) []*model.ShortletAvailability {
	start, end = model.DateOf(start), model.DateOf(end)

	var residuals []*model.ShortletAvailability
	if r.StartDate.Before(start) {
		residuals = append(residuals, &model.ShortletAvailability{
			LandlordID: r.LandlordID,
			PropertyID: r.PropertyID,
			StartDate:  r.StartDate,
			EndDate:    model.AddDays(start, -1),
		})
	}
	if r.EndDate.After(end) {
		residuals = append(residuals, &model.ShortletAvailability{
			LandlordID: r.LandlordID,
			PropertyID: r.PropertyID,
			StartDate:  model.AddDays(end, 1),
			EndDate:    r.EndDate,
		})
	}
	return residuals
}
