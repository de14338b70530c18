package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronSpec is a parsed five-field cron expression
// (minute hour day-of-month month day-of-week).
type CronSpec struct {
	minute fieldSet
	hour   fieldSet
	dom    fieldSet
	month  fieldSet
	dow    fieldSet
}

type fieldSet struct {
	any    bool
	values map[int]struct{}
}

func ParseCronSpec(expr string) (CronSpec, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return CronSpec{}, fmt.Errorf("expected 5 fields")
	}

	bounds := []struct {
		name     string
		min, max int
	}{
		{"minute", 0, 59},
		{"hour", 0, 23},
		{"day-of-month", 1, 31},
		{"month", 1, 12},
		{"day-of-week", 0, 6},
	}

	fields := make([]fieldSet, 5)
	for i, b := range bounds {
		f, err := parseField(parts[i], b.min, b.max)
		if err != nil {
			return CronSpec{}, fmt.Errorf("%s: %w", b.name, err)
		}
		fields[i] = f
	}

	return CronSpec{
		minute: fields[0],
		hour:   fields[1],
		dom:    fields[2],
		month:  fields[3],
		dow:    fields[4],
	}, nil
}

// Matches reports whether t (truncated to the minute) satisfies the spec.
func (s CronSpec) Matches(t time.Time) bool {
	return s.minute.has(t.Minute()) &&
		s.hour.has(t.Hour()) &&
		s.dom.has(t.Day()) &&
		s.month.has(int(t.Month())) &&
		s.dow.has(int(t.Weekday()))
}

func (f fieldSet) has(v int) bool {
	if f.any {
		return true
	}
	_, ok := f.values[v]
	return ok
}

func parseField(token string, min, max int) (fieldSet, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return fieldSet{}, fmt.Errorf("empty field")
	}
	if token == "*" {
		return fieldSet{any: true}, nil
	}

	set := make(map[int]struct{})
	for _, part := range strings.Split(token, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return fieldSet{}, fmt.Errorf("empty list element")
		}
		if err := parseElement(part, min, max, set); err != nil {
			return fieldSet{}, err
		}
	}

	if len(set) == 0 {
		return fieldSet{}, fmt.Errorf("no values")
	}
	return fieldSet{values: set}, nil
}

// parseElement handles a single list element: a value, a range a-b, or a
// stepped range */n and a-b/n.
func parseElement(part string, min, max int, set map[int]struct{}) error {
	step := 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		s, err := strconv.Atoi(part[i+1:])
		if err != nil || s <= 0 {
			return fmt.Errorf("invalid step %q", part)
		}
		step = s
		part = part[:i]
	}

	start, end := min, max
	switch {
	case part == "*":
		// full range
	case strings.Contains(part, "-"):
		ends := strings.SplitN(part, "-", 2)
		a, errA := strconv.Atoi(strings.TrimSpace(ends[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(ends[1]))
		if errA != nil || errB != nil {
			return fmt.Errorf("invalid range %q", part)
		}
		if a > b || a < min || b > max {
			return fmt.Errorf("range out of bounds %q", part)
		}
		start, end = a, b
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid value %q", part)
		}
		if v < min || v > max {
			return fmt.Errorf("value out of bounds %d", v)
		}
		if step != 1 {
			return fmt.Errorf("step requires a range %q", part)
		}
		set[v] = struct{}{}
		return nil
	}

	for v := start; v <= end; v += step {
		set[v] = struct{}{}
	}
	return nil
}
