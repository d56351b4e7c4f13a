package inventory

import (
	"sort"

	"github.com/aleister1102/waymirror/internal/wayback"
)

// CalendarTime is one capture moment within a day.
type CalendarTime struct {
	Timestamp string `json:"timestamp"`
	Label     string `json:"label"`
}

// CalendarDay aggregates the captures of one day.
type CalendarDay struct {
	Day       string         `json:"day"`
	Count     int            `json:"count"`
	Timestamp string         `json:"timestamp"`
	Times     []CalendarTime `json:"times"`
}

// CalendarMonth groups capture days inside one month.
type CalendarMonth struct {
	Month      string        `json:"month"`
	MonthLabel string        `json:"month_label"`
	Days       []CalendarDay `json:"days"`
}

// CalendarYear groups capture months inside one year.
type CalendarYear struct {
	Year   string          `json:"year"`
	Months []CalendarMonth `json:"months"`
}

var monthLabels = map[string]string{
	"01": "Jan", "02": "Feb", "03": "Mar", "04": "Apr",
	"05": "May", "06": "Jun", "07": "Jul", "08": "Aug",
	"09": "Sep", "10": "Oct", "11": "Nov", "12": "Dec",
}

// BuildCalendar folds a sorted timestamp list into a year/month/day
// browsing structure. Years and months are listed newest first, days
// ascending; each day remembers its last capture timestamp and every
// capture time of that day.
func BuildCalendar(snapshots []string) []CalendarYear {
	type dayKey struct{ year, month, day string }
	days := make(map[dayKey]*CalendarDay)

	for _, ts := range snapshots {
		if !wayback.IsTimestamp(ts) {
			continue
		}
		key := dayKey{year: ts[0:4], month: ts[4:6], day: ts[6:8]}
		entry, ok := days[key]
		if !ok {
			entry = &CalendarDay{Day: key.day}
			days[key] = entry
		}
		entry.Count++
		entry.Timestamp = ts
		entry.Times = append(entry.Times, CalendarTime{
			Timestamp: ts,
			Label:     ts[8:10] + ":" + ts[10:12] + ":" + ts[12:14],
		})
	}

	byYear := make(map[string]map[string][]CalendarDay)
	for key, entry := range days {
		if byYear[key.year] == nil {
			byYear[key.year] = make(map[string][]CalendarDay)
		}
		byYear[key.year][key.month] = append(byYear[key.year][key.month], *entry)
	}

	years := make([]string, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))

	var out []CalendarYear
	for _, year := range years {
		months := make([]string, 0, len(byYear[year]))
		for month := range byYear[year] {
			months = append(months, month)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(months)))

		yearOut := CalendarYear{Year: year}
		for _, month := range months {
			dayItems := byYear[year][month]
			sort.Slice(dayItems, func(i, j int) bool {
				return dayItems[i].Day < dayItems[j].Day
			})
			yearOut.Months = append(yearOut.Months, CalendarMonth{
				Month:      month,
				MonthLabel: monthLabel(month),
				Days:       dayItems,
			})
		}
		out = append(out, yearOut)
	}
	return out
}

func monthLabel(month string) string {
	if label, ok := monthLabels[month]; ok {
		return label
	}
	return month
}
