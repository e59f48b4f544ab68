// Package review normalizes and validates raw review candidates before they are stored.
package review

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/target/review-harvester/internal/domain/model"
)

const (
	// MaxRating is the largest value the NUMERIC(3,2) rating column can hold.
	MaxRating = 9.99

	positiveThreshold = 4.5
	negativeThreshold = 2.5

	maxNicknameLen = 255
	// futureSkew tolerates portals that stamp reviews in a timezone ahead of UTC.
	futureSkew = 24 * time.Hour
)

var (
	// ErrInvalidRecord is returned when a candidate carries no usable signal.
	ErrInvalidRecord = errors.New("invalid review record")
	// ErrUnparseableDate is returned when a review date is missing or ambiguous.
	// Such records are skipped, never defaulted to the current day.
	ErrUnparseableDate = fmt.Errorf("%w: unparseable review date", ErrInvalidRecord)
)

var (
	numericDate = regexp.MustCompile(
		`^(\d{4}|\d{2})\s*[.\-/]\s*(\d{1,2})\s*[.\-/]\s*(\d{1,2})` +
			`(?:\s*\.?\s*(?:\([^)]*\)|[월화수목금토일](?:요일)?|(?i:mon|tue|wed|thu|fri|sat|sun)[a-z]*))?\s*\.?$`,
	)
	koreanDate = regexp.MustCompile(`^(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일(?:\s*\([^)]*\))?$`)
)

// ParseReviewDate parses a portal date string into a UTC calendar day.
// Inputs without an explicit year, with impossible components, or more than a day in the
// future relative to now are rejected with ErrUnparseableDate.
func ParseReviewDate(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnparseableDate
	}

	day, ok := parseCalendarDay(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableDate, raw)
	}
	if !now.IsZero() && day.After(now.UTC().Add(futureSkew)) {
		return time.Time{}, fmt.Errorf("%w: %q is in the future", ErrUnparseableDate, raw)
	}
	return day, nil
}

func parseCalendarDay(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return truncateDay(t), true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return truncateDay(t), true
	}

	var parts []string
	if m := numericDate.FindStringSubmatch(s); m != nil {
		parts = m[1:4]
	} else if m := koreanDate.FindStringSubmatch(s); m != nil {
		parts = m[1:4]
	} else {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(parts[0])
	month, _ := strconv.Atoi(parts[1])
	day, _ := strconv.Atoi(parts[2])
	if len(parts[0]) == 2 {
		year += 2000
	}
	return calendarDay(year, month, day)
}

// calendarDay rejects components that time.Date would silently normalize (e.g. Feb 30).
func calendarDay(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ClampRating maps a raw rating into the storable range.
// Nil, NaN and negative values become nil; anything at or above 10 is capped at 9.99.
func ClampRating(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := *v
	if math.IsNaN(r) || r < 0 {
		return nil
	}
	if r >= 10 {
		out := MaxRating
		return &out
	}
	r = math.Round(r*100) / 100
	if r > MaxRating {
		r = MaxRating
	}
	return &r
}

// EmotionBucket derives the coarse sentiment from a clamped rating.
func EmotionBucket(rating *float64) *model.Emotion {
	if rating == nil {
		return nil
	}
	var e model.Emotion
	switch r := *rating; {
	case r >= positiveThreshold:
		e = model.EmotionPositive
	case r <= negativeThreshold:
		e = model.EmotionNegative
	default:
		e = model.EmotionNeutral
	}
	return &e
}

// Normalize validates a raw candidate and converts it into a storable record.
func Normalize(raw model.RawReview, now time.Time) (model.ReviewRecord, error) {
	company := strings.TrimSpace(raw.Company)
	if company == "" {
		return model.ReviewRecord{}, fmt.Errorf("%w: company is required", ErrInvalidRecord)
	}
	if !raw.Portal.Valid() {
		return model.ReviewRecord{}, fmt.Errorf("%w: invalid portal %q", ErrInvalidRecord, raw.Portal)
	}

	content := strings.TrimSpace(raw.Content)
	nickname := truncateRunes(strings.TrimSpace(raw.Nickname), maxNicknameLen)
	rating := ClampRating(raw.Rating)
	if content == "" && rating == nil && nickname == "" {
		return model.ReviewRecord{}, fmt.Errorf("%w: no content, rating or nickname", ErrInvalidRecord)
	}

	day, err := ParseReviewDate(raw.Date, now)
	if err != nil {
		return model.ReviewRecord{}, err
	}

	return model.ReviewRecord{
		Portal:         raw.Portal,
		CompanyName:    company,
		ReviewDate:     day,
		Content:        content,
		Rating:         rating,
		Nickname:       nickname,
		VisitKeyword:   trimmedOrNil(raw.VisitKeyword),
		ReviewKeyword:  trimmedOrNil(raw.ReviewKeyword),
		VisitType:      trimmedOrNil(raw.VisitType),
		Emotion:        trimmedOrNil(raw.Emotion),
		RevisitFlag:    raw.Revisit,
		NRating:        copyFloat(rating),
		NEmotion:       EmotionBucket(rating),
		NCharCount:     utf8.RuneCountInString(content),
		Title:          trimmedOrNil(raw.Title),
		AdditionalInfo: trimmedOrNil(raw.AdditionalInfo),
	}, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit])
}
