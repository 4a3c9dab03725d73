package cloudstore

// QuestionMaster is canonical question content shared by all users, keyed by
// external id so per-user wrongness stays decoupled from content.
type QuestionMaster struct {
	ExternalID      string `json:"external_id"`
	QuestionData    string `json:"question_data"` // opaque JSON blob
	Domain          string `json:"domain"`
	Type            string `json:"type"`
	DifficultyLevel *int   `json:"difficulty_level,omitempty"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// UserWrongAnswer is the server-side mirror of one local wrong-answer record,
// unique on (user_id, question_external_id). All writes go through upsert or
// targeted update, never blind insert.
type UserWrongAnswer struct {
	UserID             string `json:"user_id"`
	QuestionExternalID string `json:"question_external_id"`
	UserAnswer         string `json:"user_answer"`
	CorrectAnswer      string `json:"correct_answer"`
	Attempts           int    `json:"attempts"`
	FirstWrongAt       int64  `json:"first_wrong_at"` // epoch millis
	LastWrongAt        int64  `json:"last_wrong_at"`  // epoch millis
	IsSynced           bool   `json:"is_synced"`
	SyncTime           int64  `json:"sync_time,omitempty"`
}

// DownloadedAnswer pairs a wrong-answer row with its master question content,
// pulled in one joined round trip.
type DownloadedAnswer struct {
	Answer   UserWrongAnswer `json:"answer"`
	Question QuestionMaster  `json:"question"`
}
