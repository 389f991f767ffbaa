// Package dates holds the calendar helpers used to partition bookings by day.
// Dates travel as ISO 8601 strings (YYYY-MM-DD) so they compare lexicographically.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO 8601 calendar date layout used as the booking partition key.
const Layout = "2006-01-02"

var weekdayNames = map[time.Weekday]string{
	time.Monday:    "Måndag",
	time.Tuesday:   "Tisdag",
	time.Wednesday: "Onsdag",
	time.Thursday:  "Torsdag",
	time.Friday:    "Fredag",
	time.Saturday:  "Lördag",
	time.Sunday:    "Söndag",
}

var monthShortNames = [...]string{"jan", "feb", "mar", "apr", "maj", "jun", "jul", "aug", "sep", "okt", "nov", "dec"}

// WeekDate describes one weekday of a booking week.
type WeekDate struct {
	Date      string `json:"date"`
	DayName   string `json:"dayName"`
	DateLabel string `json:"dateLabel"`
	IsToday   bool   `json:"isToday"`
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return now.In(loc).Format(Layout)
}

// Parse reads a YYYY-MM-DD string as midnight UTC. Surrounding whitespace is
// rejected since the string itself is the stored day key.
func Parse(value string) (time.Time, error) {
	parsed, err := time.Parse(Layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return parsed, nil
}

// Valid reports whether value is a well-formed calendar date.
func Valid(value string) bool {
	_, err := Parse(value)
	return err == nil
}

// Format renders t as YYYY-MM-DD.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Compare orders two date strings; negative when a < b.
func Compare(a, b string) int {
	return strings.Compare(a, b)
}

// AddDays shifts a date string by n days (n may be negative).
func AddDays(value string, n int) (string, error) {
	parsed, err := Parse(value)
	if err != nil {
		return "", err
	}
	return Format(parsed.AddDate(0, 0, n)), nil
}

// WeekStart returns the Monday of the week containing value.
// Sunday belongs to the week that started on the previous Monday.
func WeekStart(value string) (string, error) {
	parsed, err := Parse(value)
	if err != nil {
		return "", err
	}
	offset := int(parsed.Weekday()) - int(time.Monday)
	if parsed.Weekday() == time.Sunday {
		offset = 6
	}
	return Format(parsed.AddDate(0, 0, -offset)), nil
}

// WeekDates returns Monday to Friday of the week containing value.
func WeekDates(value, today string) ([]WeekDate, error) {
	start, err := WeekStart(value)
	if err != nil {
		return nil, err
	}
	monday, _ := Parse(start)

	week := make([]WeekDate, 0, 5)
	for i := 0; i < 7; i++ {
		day := monday.AddDate(0, 0, i)
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		date := Format(day)
		week = append(week, WeekDate{
			Date:      date,
			DayName:   weekdayNames[day.Weekday()],
			DateLabel: fmt.Sprintf("%d %s", day.Day(), monthShortNames[day.Month()-1]),
			IsToday:   date == today,
		})
	}
	return week, nil
}

// WeekRange returns the Monday and Friday bounding the week containing value.
func WeekRange(value string) (string, string, error) {
	start, err := WeekStart(value)
	if err != nil {
		return "", "", err
	}
	end, err := AddDays(start, 4)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}
