package macro

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var datePattern = regexp.MustCompile(`\[\[%d\(([^)]*)\)\]\]`)

type unit int

const (
	unitNone unit = iota
	unitYear
	unitMonth
	unitDay
	unitHour
	unitMinute
	unitSecond
)

type dateToken struct {
	name string
	unit unit
}

// dateTokens is ordered longest first so "MMMM" wins over "MM" and "M".
var dateTokens = []dateToken{
	{"YYYY", unitYear}, {"MMMM", unitMonth}, {"dddd", unitDay},
	{"MMM", unitMonth}, {"ddd", unitDay},
	{"YY", unitYear}, {"MM", unitMonth}, {"Do", unitDay}, {"DD", unitDay},
	{"HH", unitHour}, {"hh", unitHour}, {"mm", unitMinute}, {"ss", unitSecond},
	{"M", unitMonth}, {"D", unitDay}, {"H", unitHour}, {"h", unitHour},
	{"m", unitMinute}, {"s", unitSecond}, {"a", unitNone}, {"A", unitNone},
}

// term is either literal text or a token with an optional offset in the
// token's own unit.
type term struct {
	literal string
	token   string
	unit    unit
	offset  int
}

var errBadArithmetic = errors.New("arithmetic on a token without a unit")

// parseDateExpr splits a format expression into terms. Text in square
// brackets is literal.
func parseDateExpr(expr string) ([]term, error) {
	var terms []term
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			terms = append(terms, term{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(expr); {
		if expr[i] == '[' {
			if end := strings.IndexByte(expr[i:], ']'); end > 0 {
				lit.WriteString(expr[i+1 : i+end])
				i += end + 1
				continue
			}
		}
		tok, ok := matchToken(expr[i:])
		if !ok {
			lit.WriteByte(expr[i])
			i++
			continue
		}
		flush()
		i += len(tok.name)
		t := term{token: tok.name, unit: tok.unit}
		if n, width := parseOffset(expr[i:]); width > 0 {
			if tok.unit == unitNone {
				return nil, fmt.Errorf("%s: %w", tok.name, errBadArithmetic)
			}
			t.offset = n
			i += width
		}
		terms = append(terms, t)
	}
	flush()
	return terms, nil
}

func matchToken(s string) (dateToken, bool) {
	for _, tok := range dateTokens {
		if strings.HasPrefix(s, tok.name) {
			return tok, true
		}
	}
	return dateToken{}, false
}

// parseOffset reads a leading +N or -N. width is 0 when there is none.
func parseOffset(s string) (n int, width int) {
	if len(s) < 2 || (s[0] != '+' && s[0] != '-') {
		return 0, 0
	}
	j := 1
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == 1 {
		return 0, 0
	}
	n, err := strconv.Atoi(s[1:j])
	if err != nil {
		return 0, 0
	}
	if s[0] == '-' {
		n = -n
	}
	return n, j
}

func (e *Expander) expandDates(text string) string {
	if !strings.Contains(text, "[[%d(") {
		return text
	}
	return datePattern.ReplaceAllStringFunc(text, func(token string) string {
		expr := datePattern.FindStringSubmatch(token)[1]
		out, err := evalDate(expr, e.clock.Now())
		if err != nil {
			e.logger.Debug("date macro skipped", "expr", expr, "error", err)
			return token
		}
		return out
	})
}

// evalDate renders expr at now. With a leading "!" every offset in the
// expression is applied to one shared instant, month shifts first; without
// it each token is rendered at now shifted by its own offset only.
func evalDate(expr string, now time.Time) (string, error) {
	shared := strings.HasPrefix(expr, "!")
	if shared {
		expr = expr[1:]
	}
	if strings.TrimSpace(expr) == "" {
		return "", errors.New("empty date expression")
	}
	terms, err := parseDateExpr(expr)
	if err != nil {
		return "", err
	}

	if shared {
		for _, t := range terms {
			if t.unit == unitMonth {
				now = shiftMonths(now, t.offset)
			}
		}
		for _, t := range terms {
			if t.unit != unitMonth {
				now = shift(now, t.unit, t.offset)
			}
		}
	}

	var b strings.Builder
	for _, t := range terms {
		if t.token == "" {
			b.WriteString(t.literal)
			continue
		}
		at := now
		if !shared {
			at = shift(now, t.unit, t.offset)
		}
		b.WriteString(render(t.token, at))
	}
	return b.String(), nil
}

func shift(t time.Time, u unit, n int) time.Time {
	if n == 0 {
		return t
	}
	switch u {
	case unitYear:
		return t.AddDate(n, 0, 0)
	case unitMonth:
		return shiftMonths(t, n)
	case unitDay:
		return t.AddDate(0, 0, n)
	case unitHour:
		return t.Add(time.Duration(n) * time.Hour)
	case unitMinute:
		return t.Add(time.Duration(n) * time.Minute)
	case unitSecond:
		return t.Add(time.Duration(n) * time.Second)
	}
	return t
}

// shiftMonths moves t by n months measured as n*30 days corrected by how far
// the months actually crossed deviate from 30 days.
func shiftMonths(t time.Time, n int) time.Time {
	if n == 0 {
		return t
	}
	days := 30 * n
	y, m := t.Year(), t.Month()
	if n > 0 {
		for k := 0; k < n; k++ {
			days += daysIn(y, m+time.Month(k)) - 30
		}
	} else {
		for k := 1; k <= -n; k++ {
			days -= daysIn(y, m-time.Month(k)) - 30
		}
	}
	return t.AddDate(0, 0, days)
}

// daysIn normalizes out-of-range months, so daysIn(2024, 13) is January 2025.
func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func render(token string, t time.Time) string {
	switch token {
	case "YYYY":
		return fmt.Sprintf("%04d", t.Year())
	case "YY":
		return fmt.Sprintf("%02d", t.Year()%100)
	case "MMMM":
		return t.Month().String()
	case "MMM":
		return t.Month().String()[:3]
	case "MM":
		return fmt.Sprintf("%02d", int(t.Month()))
	case "M":
		return strconv.Itoa(int(t.Month()))
	case "Do":
		return ordinal(t.Day())
	case "DD":
		return fmt.Sprintf("%02d", t.Day())
	case "D":
		return strconv.Itoa(t.Day())
	case "dddd":
		return t.Weekday().String()
	case "ddd":
		return t.Weekday().String()[:3]
	case "HH":
		return fmt.Sprintf("%02d", t.Hour())
	case "H":
		return strconv.Itoa(t.Hour())
	case "hh":
		return fmt.Sprintf("%02d", hour12(t))
	case "h":
		return strconv.Itoa(hour12(t))
	case "mm":
		return fmt.Sprintf("%02d", t.Minute())
	case "m":
		return strconv.Itoa(t.Minute())
	case "ss":
		return fmt.Sprintf("%02d", t.Second())
	case "s":
		return strconv.Itoa(t.Second())
	case "a":
		if t.Hour() < 12 {
			return "am"
		}
		return "pm"
	case "A":
		if t.Hour() < 12 {
			return "AM"
		}
		return "PM"
	}
	return token
}

func hour12(t time.Time) int {
	h := t.Hour() % 12
	if h == 0 {
		return 12
	}
	return h
}

func ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}
