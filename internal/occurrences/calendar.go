package occurrences

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shepherd-hub/backend/internal/models"
)

var ErrInvalidMonth = errors.New("month must be 1-12 and year 1970-9999")

// Calendar is one month of occurrences laid out on a Sunday-first 6x7 grid.
type Calendar struct {
	Year  int                            `json:"year"`
	Month int                            `json:"month"`
	Weeks [6][7]string                   `json:"weeks"` // YYYY-MM-DD, including days of adjacent months
	Days  map[string][]models.Occurrence `json:"days"`
}

// MonthGrid returns the 42 dates shown for month, starting on the Sunday on or before the 1st.
func MonthGrid(year int, month time.Month) [6][7]time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	start := first.AddDate(0, 0, -int(first.Weekday()))
	var grid [6][7]time.Time
	for w := 0; w < 6; w++ {
		for d := 0; d < 7; d++ {
			grid[w][d] = start.AddDate(0, 0, w*7+d)
		}
	}
	return grid
}

// Calendar returns the month's occurrences grouped by date.
func (s *Service) Calendar(ctx context.Context, tenantID uuid.UUID, year, month int, ministryID *uuid.UUID) (*Calendar, error) {
	if month < 1 || month > 12 || year < 1970 || year > 9999 {
		return nil, ErrInvalidMonth
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	list, err := s.store.List(ctx, tenantID, models.OccurrenceFilter{
		MinistryID: ministryID,
		StartDate:  &from,
		EndDate:    &to,
	})
	if err != nil {
		return nil, err
	}

	cal := &Calendar{Year: year, Month: month, Days: map[string][]models.Occurrence{}}
	for w, week := range MonthGrid(year, time.Month(month)) {
		for d, day := range week {
			cal.Weeks[w][d] = day.Format(dateLayout)
		}
	}
	for _, o := range list {
		key := o.OccurrenceDate.Format(dateLayout)
		cal.Days[key] = append(cal.Days[key], o)
	}
	return cal, nil
}
