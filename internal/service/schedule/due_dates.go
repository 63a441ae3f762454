package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"installment-ledger/internal/pkg/common"
	"installment-ledger/internal/pkg/config"
	"installment-ledger/internal/pkg/consts"
	"installment-ledger/internal/pkg/error_handling"
	"installment-ledger/internal/pkg/store/models"
)

// Rules are the organisation-wide calendar constants.
type Rules struct {
	RestDay           time.Weekday
	DefaultWeekday    time.Weekday
	DefaultMonthlyDay int
	MonthlyPivotDay   int
}

func DefaultRules() Rules {
	return Rules{
		RestDay:           time.Friday,
		DefaultWeekday:    time.Saturday,
		DefaultMonthlyDay: 20,
		MonthlyPivotDay:   15,
	}
}

// RulesFromConfig falls back to DefaultRules for any weekday it cannot parse.
func RulesFromConfig(cfg config.LedgerConfig) Rules {
	rules := DefaultRules()
	if wd, ok := ParseWeekday(cfg.RestDay); ok {
		rules.RestDay = wd
	}
	if wd, ok := ParseWeekday(cfg.DefaultWeekday); ok {
		rules.DefaultWeekday = wd
	}
	if cfg.DefaultMonthlyDay > 0 {
		rules.DefaultMonthlyDay = cfg.DefaultMonthlyDay
	}
	if cfg.MonthlyPivotDay > 0 {
		rules.MonthlyPivotDay = cfg.MonthlyPivotDay
	}
	return rules
}

// CollectorCalendar is the visiting pattern of a collector. A nil calendar means none is available.
type CollectorCalendar struct {
	AssignedDay string
	VisitDates  []time.Time
}

// CalendarFromCollector returns nil when the collector has neither an assigned day nor visit dates.
func CalendarFromCollector(c *models.Collector) *CollectorCalendar {
	if c == nil || (strings.TrimSpace(c.AssignedDay) == "" && len(c.VisitDates) == 0) {
		return nil
	}
	return &CollectorCalendar{AssignedDay: strings.TrimSpace(c.AssignedDay), VisitDates: c.VisitDates}
}

type Input struct {
	InstallmentCount int
	Frequency        models.Frequency
	Calendar         *CollectorCalendar
	SaleDate         time.Time
	Now              time.Time
	Location         *time.Location
	Rules            Rules
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts full English weekday names in any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]
	return wd, ok
}

func isDailyCollector(assignedDay string) bool {
	return strings.EqualFold(assignedDay, consts.AssignedDayDaily)
}

// GenerateDueDates computes the due date of every installment in a series. Dates are midnight
// in the input location. The result depends only on the input.
func GenerateDueDates(in Input) ([]time.Time, error) {
	if in.InstallmentCount < 1 {
		return nil, error_handling.NewValidationError("installmentCount", "must be at least 1")
	}
	if !in.Frequency.Valid() {
		return nil, error_handling.NewValidationError("frequency", fmt.Sprintf("unsupported frequency %q", in.Frequency))
	}
	if in.SaleDate.IsZero() {
		return nil, error_handling.NewValidationError("saleDate", "is required")
	}
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	saleDate := common.StartOfDay(in.SaleDate, loc)

	var (
		dates []time.Time
		err   error
	)
	switch {
	case in.Frequency == models.FrequencyDaily:
		dates = dailyDueDates(saleDate, in.InstallmentCount, in.Rules.RestDay)
	case in.Calendar == nil:
		dates = fallbackDueDates(common.StartOfDay(in.Now, loc), in.InstallmentCount, in.Rules.DefaultWeekday)
	case in.Frequency == models.FrequencyWeekly:
		dates, err = weeklyDueDates(saleDate, in.InstallmentCount, in.Calendar.AssignedDay, in.Rules.RestDay)
	default:
		day := monthlyTargetDay(in.Calendar.VisitDates, loc, in.Rules)
		dates = monthlyDueDates(saleDate, in.InstallmentCount, day)
	}
	if err != nil {
		return nil, err
	}

	if err := ValidateSeries(dates, in.InstallmentCount); err != nil {
		return nil, err
	}
	return dates, nil
}

// dailyDueDates shifts past the rest day cumulatively so later dates keep the offset.
func dailyDueDates(saleDate time.Time, n int, restDay time.Weekday) []time.Time {
	dates := make([]time.Time, 0, n)
	shift := 0
	for i := 1; i <= n; i++ {
		due := saleDate.AddDate(0, 0, i+shift)
		for due.Weekday() == restDay {
			shift++
			due = due.AddDate(0, 0, 1)
		}
		dates = append(dates, due)
	}
	return dates
}

func weeklyDueDates(saleDate time.Time, n int, assignedDay string, restDay time.Weekday) ([]time.Time, error) {
	dates := make([]time.Time, 0, n)
	if isDailyCollector(assignedDay) {
		for i := 1; i <= n; i++ {
			due := saleDate.AddDate(0, 0, 7*i)
			for due.Weekday() == restDay {
				due = due.AddDate(0, 0, 1)
			}
			dates = append(dates, due)
		}
		return dates, nil
	}

	weekday, ok := ParseWeekday(assignedDay)
	if !ok {
		return nil, error_handling.NewValidationError("assignedDay", fmt.Sprintf("unknown collector day %q", assignedDay))
	}
	first := nextWeekdayAfter(saleDate, weekday)
	for i := 0; i < n; i++ {
		dates = append(dates, first.AddDate(0, 0, 7*i))
	}
	return dates, nil
}

// nextWeekdayAfter returns the first date strictly after d that falls on weekday.
func nextWeekdayAfter(d time.Time, weekday time.Weekday) time.Time {
	delta := (int(weekday) - int(d.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return d.AddDate(0, 0, delta)
}

// monthlyTargetDay is the smallest visit day after the pivot, or the default day when there is none.
func monthlyTargetDay(visits []time.Time, loc *time.Location, rules Rules) int {
	days := make([]int, 0, len(visits))
	for _, v := range visits {
		if d := v.In(loc).Day(); d > rules.MonthlyPivotDay {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return rules.DefaultMonthlyDay
	}
	sort.Ints(days)
	return days[0]
}

func monthlyDueDates(saleDate time.Time, n, day int) []time.Time {
	dates := make([]time.Time, 0, n)
	for i := 1; i <= n; i++ {
		firstOfMonth := time.Date(saleDate.Year(), saleDate.Month()+time.Month(i), 1, 0, 0, 0, 0, saleDate.Location())
		last := firstOfMonth.AddDate(0, 1, -1).Day()
		d := day
		if d > last {
			d = last
		}
		dates = append(dates, time.Date(firstOfMonth.Year(), firstOfMonth.Month(), d, 0, 0, 0, 0, saleDate.Location()))
	}
	return dates
}

// fallbackDueDates is a weekly series starting on the first default weekday from tomorrow on.
func fallbackDueDates(today time.Time, n int, weekday time.Weekday) []time.Time {
	first := nextWeekdayAfter(today, weekday)
	dates := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, first.AddDate(0, 0, 7*i))
	}
	return dates
}

// ValidateSeries checks that a generated series has the requested length and strictly increases.
func ValidateSeries(dates []time.Time, n int) error {
	if len(dates) != n {
		return error_handling.NewInconsistentLedgerStateError("",
			fmt.Sprintf("generated %d due dates, expected %d", len(dates), n), nil)
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return error_handling.NewInconsistentLedgerStateError("",
				fmt.Sprintf("due date %d (%s) does not follow %s", i+1,
					dates[i].Format(consts.DateFormat), dates[i-1].Format(consts.DateFormat)), nil)
		}
	}
	return nil
}
