//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import "time"

// Emotion is the coarse sentiment bucket derived from a rating.
type Emotion string

const (
	EmotionPositive Emotion = "positive"
	EmotionNeutral  Emotion = "neutral"
	EmotionNegative Emotion = "negative"
)

// SaveOutcome reports what the persistence gateway did with a candidate record.
type SaveOutcome string

const (
	// SaveOutcomeInserted means a new row was written.
	SaveOutcomeInserted SaveOutcome = "inserted"
	// SaveOutcomeDuplicate means the dedup key already existed; this is a success.
	SaveOutcomeDuplicate SaveOutcome = "duplicate"
	// SaveOutcomeRejected means the record failed validation and was skipped.
	SaveOutcomeRejected SaveOutcome = "rejected"
)

// RawReview is a candidate record as yielded by a source adapter, before normalization.
type RawReview struct {
	Company        string   `json:"company"`
	Portal         Portal   `json:"portal"`
	Date           string   `json:"date"`
	Content        string   `json:"content"`
	Rating         *float64 `json:"rating,omitempty"`
	Nickname       string   `json:"nickname"`
	VisitKeyword   *string  `json:"visit_keyword,omitempty"`
	ReviewKeyword  *string  `json:"review_keyword,omitempty"`
	VisitType      *string  `json:"visit_type,omitempty"`
	Emotion        *string  `json:"emotion,omitempty"`
	Revisit        bool     `json:"revisit"`
	Title          *string  `json:"title,omitempty"`
	AdditionalInfo *string  `json:"additional_info,omitempty"`
}

// ReviewRecord is a normalized review ready to be stored.
// The tuple (CompanyName, ReviewDate, Nickname, Portal) is the dedup key.
type ReviewRecord struct {
	ID             string    `json:"id"                        db:"id"`
	Portal         Portal    `json:"portal"                    db:"portal"`
	CompanyName    string    `json:"company_name"              db:"company_name"`
	ReviewDate     time.Time `json:"review_date"               db:"review_date"`
	Content        string    `json:"content"                   db:"content"`
	Rating         *float64  `json:"rating,omitempty"          db:"rating"`
	Nickname       string    `json:"nickname"                  db:"nickname"`
	VisitKeyword   *string   `json:"visit_keyword,omitempty"   db:"visit_keyword"`
	ReviewKeyword  *string   `json:"review_keyword,omitempty"  db:"review_keyword"`
	VisitType      *string   `json:"visit_type,omitempty"      db:"visit_type"`
	Emotion        *string   `json:"emotion,omitempty"         db:"emotion"`
	RevisitFlag    bool      `json:"revisit_flag"              db:"revisit_flag"`
	NRating        *float64  `json:"n_rating,omitempty"        db:"n_rating"`
	NEmotion       *Emotion  `json:"n_emotion,omitempty"       db:"n_emotion"`
	NCharCount     int       `json:"n_char_count"              db:"n_char_count"`
	Title          *string   `json:"title,omitempty"           db:"title"`
	AdditionalInfo *string   `json:"additional_info,omitempty" db:"additional_info"`
	CreatedAt      time.Time `json:"created_at"                db:"created_at"`
}

// DedupKey returns the natural key that uniquely identifies a review.
func (r *ReviewRecord) DedupKey() ReviewKey {
	return ReviewKey{
		CompanyName: r.CompanyName,
		ReviewDate:  r.ReviewDate.Format(time.DateOnly),
		Nickname:    r.Nickname,
		Portal:      r.Portal,
	}
}

// ReviewKey is the (target, review_date, nickname, portal) dedup tuple.
type ReviewKey struct {
	CompanyName string
	ReviewDate  string
	Nickname    string
	Portal      Portal
}
