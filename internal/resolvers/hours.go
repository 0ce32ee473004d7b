package resolvers

import (
	"fmt"
	"strings"

	"github.com/kotileipomo/faq-engine/internal/intent"
	"github.com/kotileipomo/faq-engine/internal/kb"
)

// The shop's regular opening days, Monday-first.
const (
	thursday = 3
	friday   = 4
	saturday = 5
)

// Hours describes the weekly opening hours. When Thursday, Friday and Saturday are all
// open it answers in a sentence, otherwise with a per-day list.
func (r *Resolver) Hours(lang string) Reply {
	lang = Lang(lang)
	hours := r.Data().Hours
	rep := Reply{Intent: intent.Hours}

	days := hours.Days()
	if len(days) == 0 {
		rep.Text = r.text("hours.none", lang)
		return rep
	}

	thu, fri, sat := hours.Hours[thursday], hours.Hours[friday], hours.Hours[saturday]
	if len(thu) > 0 && len(fri) > 0 && len(sat) > 0 {
		t, f, s := spanPhrase(thu, lang), spanPhrase(fri, lang), spanPhrase(sat, lang)
		if t == f {
			rep.Text = r.text("hours.merged", lang, "thu", t, "sat", s)
		} else {
			rep.Text = r.text("hours.split", lang, "thu", t, "fri", f, "sat", s)
		}
	} else {
		lines := []string{r.text("hours.list_title", lang)}
		for _, d := range days {
			lines = append(lines, fmt.Sprintf("%s: %s", r.locale.Weekday(lang, d), spanList(hours.Hours[d])))
		}
		rep.Text = strings.Join(lines, "\n")
	}

	if note := strings.TrimSpace(hours.Notes[lang]); note != "" {
		rep.Text += "\n" + note
	}
	return rep
}

// spanPhrase renders spans for a sentence: "11–17" in Finnish and Swedish, "11 am to 5 pm"
// in English.
func spanPhrase(spans []kb.Span, lang string) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		if lang == LangEN {
			parts = append(parts, ampm(s.Start)+" to "+ampm(s.End))
			continue
		}
		parts = append(parts, shortHour(s.Start)+"–"+shortHour(s.End))
	}
	return strings.Join(parts, ", ")
}

func spanList(spans []kb.Span) string {
	parts := make([]string, 0, len(spans))
	for _, s := range spans {
		parts = append(parts, s.Start+"–"+s.End)
	}
	return strings.Join(parts, ", ")
}

func shortHour(hhmm string) string {
	return strings.TrimSuffix(hhmm, ":00")
}

func ampm(hhmm string) string {
	var h, m int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil {
		return hhmm
	}
	suffix := "am"
	if h >= 12 {
		suffix = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	if m == 0 {
		return fmt.Sprintf("%d %s", h12, suffix)
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}
