// Package format turns cron schedule expressions into plain English.
package format

import (
	"fmt"
	"strconv"
	"strings"
)

// cronExpr carries the fields of a five-field cron expression that the
// renderers inspect. The month field is never rendered.
type cronExpr struct {
	minute string
	hour   string
	dom    string
	dow    string
}

// renderers are tried in order; the first one that recognises the
// expression wins.
var renderers = []func(cronExpr) (string, bool){
	everyMinute,
	minuteWise,
	minuteInterval,
	hourInterval,
	onTheHour,
	atHourList,
	atClockTime,
}

// CronDescription describes a five-field cron expression (minute, hour,
// day of month, month, day of week) in plain English, the syntax the
// maintenance scheduler accepts. Expressions the renderers do not
// recognise come back unchanged.
// Example: CronDescription("30 3 * * *") => "Daily at 3:30AM"
func CronDescription(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return expr
	}
	c := newCronExpr(fields)
	for _, render := range renderers {
		if desc, ok := render(c); ok {
			return desc
		}
	}
	return strings.Join(fields, " ")
}

func newCronExpr(fields []string) cronExpr {
	return cronExpr{minute: fields[0], hour: fields[1], dom: fields[2], dow: fields[4]}
}

func everyMinute(c cronExpr) (string, bool) {
	if c.minute == "*" && c.hour == "*" && c.dom == "*" && c.dow == "*" {
		return "Every minute", true
	}
	return "", false
}

// minuteWise covers "* H ..." forms where every minute of one or more
// hours matches.
func minuteWise(c cronExpr) (string, bool) {
	if c.minute != "*" || c.hour == "*" || strings.Contains(c.hour, "/") {
		return "", false
	}
	switch {
	case strings.Contains(c.hour, ","):
		return "Every minute at " + hourPhrase(c.hour), true
	case strings.Contains(c.hour, "-"):
		if lo, hi, ok := strings.Cut(c.hour, "-"); ok && !strings.Contains(hi, "-") {
			return fmt.Sprintf("Every minute from %s to %s", hourWord(lo), hourWord(hi)), true
		}
	default:
		if _, err := strconv.Atoi(c.hour); err == nil {
			return "Every minute during " + hourWord(c.hour) + " hour", true
		}
	}
	return "", false
}

// minuteInterval covers "*/N ..." minute steps.
func minuteInterval(c cronExpr) (string, bool) {
	_, every, ok := splitStep(c.minute)
	if !ok || every <= 0 {
		return "", false
	}
	if c.hour != "*" && !strings.Contains(c.hour, "/") {
		if strings.Contains(c.hour, ",") {
			return fmt.Sprintf("Every %d minutes at %s", every, hourPhrase(c.hour)), true
		}
		if _, err := strconv.Atoi(c.hour); err == nil {
			return fmt.Sprintf("Every %d minutes during %s hour", every, hourWord(c.hour)), true
		}
	}
	return fmt.Sprintf("Every %d minutes", every), true
}

// hourInterval covers "M N/S ..." hour steps, including the twice-daily
// special case. A minute field that is not a number counts as :00.
func hourInterval(c cronExpr) (string, bool) {
	start, every, ok := splitStep(c.hour)
	if !ok {
		return "", false
	}
	if start < 0 {
		start = 0
	}
	m, _ := strconv.Atoi(c.minute)
	from := fmt.Sprintf(" from %02d:%02d", start, m)
	if start == 0 && m == 0 {
		from = ""
	}
	switch every {
	case 1:
		return "Every hour" + from, true
	case 12:
		return "Twice daily" + from, true
	}
	return fmt.Sprintf("Every %d hours%s", every, from), true
}

// onTheHour covers "M * ..." where one minute repeats every hour.
func onTheHour(c cronExpr) (string, bool) {
	if c.hour != "*" {
		return "", false
	}
	m, err := strconv.Atoi(c.minute)
	if err != nil {
		return "", false
	}
	if m == 0 {
		return "Every hour", true
	}
	return fmt.Sprintf("Every hour at :%02d", m), true
}

// atHourList covers "M H1,H2 ..." schedules firing at several hours.
func atHourList(c cronExpr) (string, bool) {
	if !strings.Contains(c.hour, ",") {
		return "", false
	}
	m, err := strconv.Atoi(c.minute)
	if err != nil {
		return "", false
	}
	if m == 0 {
		return "Daily at " + hourPhrase(c.hour), true
	}
	return fmt.Sprintf("Daily at :%02d past %s", m, hourPhrase(c.hour)), true
}

// atClockTime covers fixed-time schedules, specialised by the weekday
// and day-of-month constraints.
func atClockTime(c cronExpr) (string, bool) {
	h, herr := strconv.Atoi(c.hour)
	m, merr := strconv.Atoi(c.minute)
	if herr != nil || merr != nil {
		return "", false
	}
	at := clock12(h, m)

	if c.dow != "*" && c.dom == "*" {
		return weekdayPhrase(c.dow) + " at " + at, true
	}
	if c.dom != "*" {
		if _, every, ok := splitStep(c.dom); ok && every > 0 {
			return fmt.Sprintf("Every %d days at %s", every, at), true
		}
		if d, err := strconv.Atoi(c.dom); err == nil {
			return fmt.Sprintf("%s of each month at %s", ordinal(d), at), true
		}
	}
	return "Daily at " + at, true
}

// splitStep parses "start/every" step syntax. A start of -1 stands for
// "*".
func splitStep(field string) (start, every int, ok bool) {
	lhs, rhs, found := strings.Cut(field, "/")
	if !found {
		return 0, 0, false
	}
	every, err := strconv.Atoi(rhs)
	if err != nil {
		return 0, 0, false
	}
	start = -1
	if lhs != "*" {
		if s, err := strconv.Atoi(lhs); err == nil {
			start = s
		}
	}
	return start, every, true
}

// hourWord renders an hour number in 12-hour words ("0" => "12AM").
// Anything that does not parse as a number comes back unchanged.
func hourWord(h string) string {
	n, err := strconv.Atoi(h)
	if err != nil {
		return h
	}
	switch {
	case n == 0:
		return "12AM"
	case n < 12:
		return fmt.Sprintf("%dAM", n)
	case n == 12:
		return "12PM"
	}
	return fmt.Sprintf("%dPM", n-12)
}

// hourPhrase renders a comma-separated hour list as prose.
func hourPhrase(field string) string {
	hours := strings.Split(field, ",")
	for i, h := range hours {
		hours[i] = hourWord(h)
	}
	return joinWords(hours)
}

// joinWords joins items the way a sentence would list them, with an
// Oxford comma from three items up.
func joinWords(items []string) string {
	switch len(items) {
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}

// clock12 renders a wall-clock time in 12-hour form, with midnight and
// noon spelled out.
func clock12(hour, minute int) string {
	switch {
	case hour == 0 && minute == 0:
		return "midnight"
	case hour == 12 && minute == 0:
		return "noon"
	}
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	switch {
	case hour == 0:
		hour = 12
	case hour > 12:
		hour -= 12
	}
	if minute == 0 {
		return fmt.Sprintf("%d%s", hour, suffix)
	}
	return fmt.Sprintf("%d:%02d%s", hour, minute, suffix)
}

var weekdays = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func weekdayPhrase(dow string) string {
	switch {
	case strings.Contains(dow, ","):
		days := strings.Split(dow, ",")
		for i, d := range days {
			days[i] = weekdayShort(d)
		}
		return strings.Join(days, ", ")
	case strings.Contains(dow, "-"):
		if lo, hi, ok := strings.Cut(dow, "-"); ok && !strings.Contains(hi, "-") {
			return weekdayShort(lo) + "-" + weekdayShort(hi)
		}
	}
	return weekdayName(dow) + "s"
}

func weekdayName(d string) string {
	if n, err := strconv.Atoi(d); err == nil && n >= 0 && n < len(weekdays) {
		return weekdays[n]
	}
	return d
}

func weekdayShort(d string) string {
	if n, err := strconv.Atoi(d); err == nil && n >= 0 && n < len(weekdays) {
		return weekdays[n][:3]
	}
	return d
}

// ordinal renders 1 as "1st", 2 as "2nd", 11 as "11th", and so on.
func ordinal(n int) string {
	switch {
	case n%100 >= 11 && n%100 <= 13:
		return fmt.Sprintf("%dth", n)
	case n%10 == 1:
		return fmt.Sprintf("%dst", n)
	case n%10 == 2:
		return fmt.Sprintf("%dnd", n)
	case n%10 == 3:
		return fmt.Sprintf("%drd", n)
	}
	return fmt.Sprintf("%dth", n)
}
