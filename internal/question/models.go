package question

type AnswerOption struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// CleanedQuestion is the validated, serialization-safe snapshot of an upstream
// question document. Everything downstream of the sanitizer operates on this
// shape only.
type CleanedQuestion struct {
	ExternalID    string         `json:"external_id"`
	Stem          string         `json:"stem"`
	Stimulus      string         `json:"stimulus,omitempty"`
	Type          string         `json:"type"` // mcq | spr
	Domain        string         `json:"domain"`
	CorrectAnswer []string       `json:"correct_answer"`
	Rationale     string         `json:"rationale"`
	Image         string         `json:"image,omitempty"`
	AnswerOptions []AnswerOption `json:"answerOptions,omitempty"`

	// FallbackAnswer marks records whose correct answer could not be derived
	// from the source document and was defaulted. Such records should not be
	// scored as ground truth.
	FallbackAnswer bool `json:"fallback_answer,omitempty"`
}

// WrongQuestion is one locally recorded miss, keyed by ExternalID.
type WrongQuestion struct {
	ExternalID    string           `json:"externalId"`
	Question      *CleanedQuestion `json:"question"`
	UserAnswer    string           `json:"userAnswer"`
	CorrectAnswer string           `json:"correctAnswer"`
	Timestamp     int64            `json:"timestamp"` // epoch millis of the last miss
	Attempts      int              `json:"attempts"`
	IsSynced      bool             `json:"is_synced"`
	SyncTime      string           `json:"sync_time,omitempty"` // RFC3339
}

// Progress is the per-question attempt state, right or wrong, keyed by QuestionID.
type Progress struct {
	QuestionID string `json:"questionId"`
	Answered   bool   `json:"answered"`
	IsCorrect  bool   `json:"isCorrect"`
	UserAnswer string `json:"userAnswer"`
	Timestamp  int64  `json:"timestamp"`
	Checked    bool   `json:"checked,omitempty"`
}
