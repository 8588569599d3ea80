// Package dimension builds the calendar and channel dimensions of the
// warehouse star schema.
package dimension

import (
	"time"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/errors"
)

// DateKey encodes a calendar date as a YYYYMMDD integer, the surrogate key
// of the calendar dimension.
func DateKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// CalendarRange resolves the configured calendar window. The horizon is
// extended past "now" so facts loaded today always find their date row.
func CalendarRange(settings *conf.Settings, now time.Time) (from, to time.Time, err error) {
	from, err = time.Parse(conf.DateLayout, settings.Pipeline.Calendar.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New(err).
			Component("dimension").
			Category(errors.CategoryConfiguration).
			Context("start_date", settings.Pipeline.Calendar.StartDate).
			Build()
	}
	to = now.AddDate(0, 0, settings.Pipeline.Calendar.HorizonDays)
	return from, to, nil
}

// BuildCalendar generates one row per day in [from, to], inclusive. Both
// bounds are truncated to midnight UTC.
func BuildCalendar(from, to time.Time) []datastore.CalendarDay {
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)

	var days []datastore.CalendarDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		_, isoWeek := d.ISOWeek()
		weekday := int(d.Weekday())
		days = append(days, datastore.CalendarDay{
			DateKey:    DateKey(d),
			Date:       d,
			Year:       d.Year(),
			Quarter:    quarterName(d.Month()),
			Month:      int(d.Month()),
			MonthName:  d.Month().String(),
			ISOWeek:    isoWeek,
			DayOfMonth: d.Day(),
			DayOfWeek:  weekday,
			DayName:    d.Weekday().String(),
			IsWeekend:  weekday == 0 || weekday == 6,
		})
	}
	return days
}

func quarterName(m time.Month) string {
	switch {
	case m <= time.March:
		return "Q1"
	case m <= time.June:
		return "Q2"
	case m <= time.September:
		return "Q3"
	default:
		return "Q4"
	}
}
