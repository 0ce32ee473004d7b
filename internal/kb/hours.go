package kb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Span is an opening interval in 24h "HH:MM" form.
type Span struct {
	Start string `json:"start" yaml:"start" validate:"required,hhmm"`
	End   string `json:"end" yaml:"end" validate:"required,hhmm"`
}

// Minutes returns the start and end of the span as minutes after midnight.
func (s Span) Minutes() (start, end int, err error) {
	if start, err = parseHHMM(s.Start); err != nil {
		return 0, 0, err
	}
	if end, err = parseHHMM(s.End); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (s Span) valid() bool {
	start, end, err := s.Minutes()
	return err == nil && start < end
}

func parseHHMM(v string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, fmt.Errorf("time %q must be HH:MM", v)
	}
	h, err1 := strconv.Atoi(hh)
	m, err2 := strconv.Atoi(mm)
	if err1 != nil || err2 != nil || len(mm) != 2 || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q must be HH:MM", v)
	}
	return h*60 + m, nil
}

// WeeklyHours maps weekday (0=Monday .. 6=Sunday) to opening spans, with optional
// ISO-date keyed exceptions.
type WeeklyHours struct {
	Hours      map[int][]Span    `json:"hours" yaml:"hours"`
	Exceptions map[string][]Span `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
	Notes      map[string]string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Sanitize drops weekdays outside 0..6 and spans that are malformed or not start < end.
// It returns the number of dropped spans.
func (w *WeeklyHours) Sanitize() int {
	dropped := 0
	for dow, spans := range w.Hours {
		if dow < 0 || dow > 6 {
			dropped += len(spans)
			delete(w.Hours, dow)
			continue
		}
		kept := spans[:0]
		for _, s := range spans {
			if s.valid() {
				kept = append(kept, s)
			} else {
				dropped++
			}
		}
		w.Hours[dow] = kept
	}
	for day, spans := range w.Exceptions {
		kept := spans[:0]
		for _, s := range spans {
			if s.valid() {
				kept = append(kept, s)
			} else {
				dropped++
			}
		}
		w.Exceptions[day] = kept
	}
	return dropped
}

// Days returns the weekdays that have at least one span, ascending.
func (w WeeklyHours) Days() []int {
	var out []int
	for dow, spans := range w.Hours {
		if len(spans) > 0 {
			out = append(out, dow)
		}
	}
	sort.Ints(out)
	return out
}

// SpansOn returns the spans for t's date, honouring exceptions.
func (w WeeklyHours) SpansOn(t time.Time) []Span {
	if spans, ok := w.Exceptions[t.Format(time.DateOnly)]; ok {
		return spans
	}
	return w.Hours[Weekday(t)]
}

// Weekday converts Go's Sunday-first weekday to the Monday-first index used by WeeklyHours.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Pickup validation errors.
var (
	ErrPickupFormat  = fmt.Errorf("invalid time format, use YYYY-MM-DDTHH:MM")
	ErrPickupClosed  = fmt.Errorf("closed that day")
	ErrPickupOutside = fmt.Errorf("outside pickup hours")
)

// ParsePickup parses "YYYY-MM-DDTHH:MM" or "YYYY-MM-DD HH:MM".
func ParsePickup(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrPickupFormat
}

// ValidatePickup checks that iso falls inside the opening spans of its day.
func (w WeeklyHours) ValidatePickup(iso string) error {
	t, err := ParsePickup(iso)
	if err != nil {
		return err
	}
	spans := w.SpansOn(t)
	if len(spans) == 0 {
		return ErrPickupClosed
	}
	mins := t.Hour()*60 + t.Minute()
	for _, s := range spans {
		start, end, err := s.Minutes()
		if err != nil {
			continue
		}
		if start <= mins && mins <= end {
			return nil
		}
	}
	return ErrPickupOutside
}

// BlackoutRange is a calendar interval without pickups. When RepeatedAnnually is set,
// only month and day are compared and From/To may be given as "MM-DD".
type BlackoutRange struct {
	From             string `json:"from" yaml:"from"`
	To               string `json:"to" yaml:"to"`
	RepeatedAnnually bool   `json:"repeatedAnnually" yaml:"repeatedAnnually"`
}

// UnmarshalJSON accepts both from/to and the catalog's fromDate/toDate keys.
func (b *BlackoutRange) UnmarshalJSON(data []byte) error {
	var raw struct {
		From             string `json:"from"`
		FromDate         string `json:"fromDate"`
		To               string `json:"to"`
		ToDate           string `json:"toDate"`
		RepeatedAnnually bool   `json:"repeatedAnnually"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.From = firstNonEmpty(raw.From, raw.FromDate)
	b.To = firstNonEmpty(raw.To, raw.ToDate)
	b.RepeatedAnnually = raw.RepeatedAnnually
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

type ymd struct{ y, m, d int }

func parseYMD(s string) (ymd, bool) {
	// take the date part of timestamps such as "2025-12-24 00:00:00 +0000"
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	parts := strings.Split(s, "-")
	nums := make([]int, 0, 3)
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return ymd{}, false
		}
		nums = append(nums, n)
	}
	switch len(nums) {
	case 2:
		return ymd{0, nums[0], nums[1]}, validMD(nums[0], nums[1])
	case 3:
		return ymd{nums[0], nums[1], nums[2]}, validMD(nums[1], nums[2])
	}
	return ymd{}, false
}

func validMD(m, d int) bool { return m >= 1 && m <= 12 && d >= 1 && d <= 31 }

// Contains reports whether t's calendar date lies within the range, inclusive.
func (b BlackoutRange) Contains(t time.Time) bool {
	from, ok1 := parseYMD(b.From)
	to, ok2 := parseYMD(b.To)
	if !ok1 || !ok2 {
		return false
	}
	if b.RepeatedAnnually {
		md := int(t.Month())*100 + t.Day()
		lo, hi := from.m*100+from.d, to.m*100+to.d
		if lo <= hi {
			return lo <= md && md <= hi
		}
		// wraps the new year, e.g. 12-30 .. 01-02
		return md >= lo || md <= hi
	}
	if from.y == 0 || to.y == 0 {
		return false
	}
	day := t.Year()*10000 + int(t.Month())*100 + t.Day()
	return from.y*10000+from.m*100+from.d <= day && day <= to.y*10000+to.m*100+to.d
}

// IsBlackout reports whether any range contains t.
func IsBlackout(t time.Time, ranges []BlackoutRange) bool {
	for _, r := range ranges {
		if r.Contains(t) {
			return true
		}
	}
	return false
}
