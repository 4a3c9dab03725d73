// Package syncsvc reconciles the device-local wrong-question cache with the
// shared per-user store. Records carry enough ordering metadata (attempts,
// last-wrong timestamps) for most divergence to resolve automatically; only
// near-simultaneous contradictory answers surface as conflicts for the user.
package syncsvc

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepsync/practice-sync/internal/cloudstore"
	"github.com/prepsync/practice-sync/internal/question"
	"github.com/prepsync/practice-sync/internal/ratelimit"
)

type Clock func() time.Time

// LocalStore is the slice of the device cache the syncer needs.
type LocalStore interface {
	WrongQuestions(ctx context.Context) []question.WrongQuestion
	UnsyncedWrongQuestions(ctx context.Context) []question.WrongQuestion
	WrongQuestion(ctx context.Context, externalID string) (question.WrongQuestion, bool)
	SaveWrongQuestion(ctx context.Context, raw any, userAnswer string) *question.WrongQuestion
	MarkSynced(ctx context.Context, externalID string)
	AppendSyncLog(ctx context.Context, kind string, synced, conflicts int, errMsg string)
}

// RemoteStore is the shared multi-device store.
type RemoteStore interface {
	WrongAnswersByUser(ctx context.Context, userID string) ([]cloudstore.UserWrongAnswer, error)
	WrongAnswer(ctx context.Context, userID, questionID string) (cloudstore.UserWrongAnswer, bool, error)
	UpsertWrongAnswers(ctx context.Context, answers []cloudstore.UserWrongAnswer) error
	UpdateWrongAnswer(ctx context.Context, a cloudstore.UserWrongAnswer) error
	DeleteWrongAnswer(ctx context.Context, userID, questionID string) error
	ExistingMasterIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	InsertMasters(ctx context.Context, masters []cloudstore.QuestionMaster) error
	MasterByID(ctx context.Context, externalID string) (cloudstore.QuestionMaster, bool, error)
	WrongAnswersWithQuestions(ctx context.Context, userID string) ([]cloudstore.DownloadedAnswer, error)
}

// SessionProvider resolves the authenticated user for a request context.
type SessionProvider interface {
	CurrentUserID(ctx context.Context) string
}

// SessionFunc adapts a plain function to SessionProvider.
type SessionFunc func(ctx context.Context) string

func (f SessionFunc) CurrentUserID(ctx context.Context) string { return f(ctx) }

// RateLimiter gates how often a user may run a full upload sync.
type RateLimiter interface {
	Check(ctx context.Context, identifier, action string) ratelimit.Decision
}

type ConflictType string

const (
	ConflictDifferentAnswer    ConflictType = "different_answer"
	ConflictDifferentAttempts  ConflictType = "different_attempts"
	ConflictDifferentTimestamp ConflictType = "different_timestamp"
)

// SyncConflict pairs the two divergent copies of one record.
type SyncConflict struct {
	Local question.WrongQuestion     `json:"localQuestion"`
	Cloud cloudstore.UserWrongAnswer `json:"cloudQuestion"`
	Type  ConflictType               `json:"conflictType"`
}

type SyncResult struct {
	Success     bool           `json:"success"`
	Conflicts   []SyncConflict `json:"conflicts"`
	Synced      int            `json:"synced"`
	Errors      []string       `json:"errors"`
	RateLimited bool           `json:"rateLimited,omitempty"`
}

type Resolution string

const (
	KeepLocal Resolution = "keep_local"
	KeepCloud Resolution = "keep_cloud"
	Merge     Resolution = "merge"
)

type ConflictResolution struct {
	QuestionID string     `json:"questionId"`
	Resolution Resolution `json:"resolution"`
}

type CloudStatus struct {
	HasCloudData bool `json:"hasCloudData"`
	CloudCount   int  `json:"cloudCount"`
	LocalCount   int  `json:"localCount"`
}

const (
	defaultAutoResolveWindow = time.Minute
	defaultConflictWindow    = 5 * time.Minute
)

// Syncer reconciles one user's local cache against the shared store.
type Syncer struct {
	Local    LocalStore
	Remote   RemoteStore
	Sessions SessionProvider
	Limiter  RateLimiter
	Now      Clock
	Log      logrus.FieldLogger

	// AutoResolveWindow is how much newer a local record must be for its
	// divergence to resolve without user input. ConflictWindow is the
	// proximity within which contradictory answers count as simultaneous.
	AutoResolveWindow time.Duration
	ConflictWindow    time.Duration

	mu         sync.Mutex
	inProgress bool
}

func New(local LocalStore, remote RemoteStore, sessions SessionProvider, limiter RateLimiter, now Clock, log logrus.FieldLogger) *Syncer {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Syncer{
		Local:             local,
		Remote:            remote,
		Sessions:          sessions,
		Limiter:           limiter,
		Now:               now,
		Log:               log,
		AutoResolveWindow: defaultAutoResolveWindow,
		ConflictWindow:    defaultConflictWindow,
	}
}

func (s *Syncer) tryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inProgress {
		return false
	}
	s.inProgress = true
	return true
}

func (s *Syncer) end() {
	s.mu.Lock()
	s.inProgress = false
	s.mu.Unlock()
}

// CheckCloudStatus reports record counts on both sides. Failures degrade to
// an all-zero status.
func (s *Syncer) CheckCloudStatus(ctx context.Context) CloudStatus {
	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		return CloudStatus{}
	}
	cloud, err := s.Remote.WrongAnswersByUser(ctx, userID)
	if err != nil {
		s.Log.WithError(err).Warn("cloud status check failed")
		return CloudStatus{}
	}
	local := s.Local.WrongQuestions(ctx)
	return CloudStatus{
		HasCloudData: len(cloud) > 0,
		CloudCount:   len(cloud),
		LocalCount:   len(local),
	}
}

// BidirectionalSync compares every record on both sides. New local records
// upload, new cloud records download, automatically resolvable divergence
// updates the cloud copy, and only real conflicts are returned for the user
// to resolve.
func (s *Syncer) BidirectionalSync(ctx context.Context) SyncResult {
	if !s.tryBegin() {
		return SyncResult{Errors: []string{"sync already in progress"}}
	}
	defer s.end()

	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		return SyncResult{Errors: []string{"user not authenticated"}}
	}

	local := s.Local.WrongQuestions(ctx)
	cloud, err := s.Remote.WrongAnswersByUser(ctx, userID)
	if err != nil {
		s.Local.AppendSyncLog(ctx, "full", 0, 0, err.Error())
		return SyncResult{Errors: []string{err.Error()}}
	}
	s.Log.WithFields(logrus.Fields{"local": len(local), "cloud": len(cloud)}).Info("starting bidirectional sync")

	localByID := make(map[string]question.WrongQuestion, len(local))
	for _, q := range local {
		localByID[q.ExternalID] = q
	}
	cloudByID := make(map[string]cloudstore.UserWrongAnswer, len(cloud))
	for _, a := range cloud {
		cloudByID[a.QuestionExternalID] = a
	}

	var (
		conflicts []SyncConflict
		toUpload  []question.WrongQuestion
		toUpdate  []updatePair
		synced    int
	)

	for _, localQ := range local {
		cloudQ, ok := cloudByID[localQ.ExternalID]
		if !ok {
			toUpload = append(toUpload, localQ)
			continue
		}
		if !s.shouldUpdateCloud(localQ, cloudQ) {
			if !localQ.IsSynced {
				s.Local.MarkSynced(ctx, localQ.ExternalID)
				synced++
			}
			continue
		}
		if s.hasRealConflict(localQ, cloudQ) {
			if c := s.detectConflict(localQ, cloudQ); c != nil {
				conflicts = append(conflicts, *c)
			}
			continue
		}
		toUpdate = append(toUpdate, updatePair{local: localQ, cloud: cloudQ})
	}

	var toDownload []cloudstore.UserWrongAnswer
	for _, cloudQ := range cloud {
		if _, ok := localByID[cloudQ.QuestionExternalID]; !ok {
			toDownload = append(toDownload, cloudQ)
		}
	}

	var errs []string
	if len(toUpload) > 0 {
		n, err := s.uploadBatch(ctx, userID, toUpload)
		synced += n
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	for _, pair := range toUpdate {
		if err := s.updateExisting(ctx, userID, pair.local, pair.cloud); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		synced++
	}
	for _, cloudQ := range toDownload {
		if err := s.downloadOne(ctx, cloudQ); err != nil {
			// A bad record must not abort the rest of the download.
			s.Log.WithError(err).WithField("question", cloudQ.QuestionExternalID).Warn("download failed")
			errs = append(errs, err.Error())
			continue
		}
		synced++
	}

	errMsg := ""
	if len(errs) > 0 {
		errMsg = errs[0]
	}
	s.Local.AppendSyncLog(ctx, "full", synced, len(conflicts), errMsg)
	s.Log.WithFields(logrus.Fields{"synced": synced, "conflicts": len(conflicts)}).Info("bidirectional sync completed")

	return SyncResult{Success: len(errs) == 0, Conflicts: conflicts, Synced: synced, Errors: errs}
}

type updatePair struct {
	local question.WrongQuestion
	cloud cloudstore.UserWrongAnswer
}

// shouldUpdateCloud reports whether the local copy carries anything the
// cloud copy lacks.
func (s *Syncer) shouldUpdateCloud(localQ question.WrongQuestion, cloudQ cloudstore.UserWrongAnswer) bool {
	if localQ.Attempts > cloudQ.Attempts {
		return true
	}
	if localQ.Timestamp > cloudQ.LastWrongAt {
		return true
	}
	return localQ.UserAnswer != cloudQ.UserAnswer
}

// hasRealConflict reports whether divergence needs user input. A local copy
// that is strictly ahead (more attempts, or newer by more than the
// auto-resolve window) wins automatically. Contradictory answers recorded
// within the conflict window of each other are genuinely ambiguous.
func (s *Syncer) hasRealConflict(localQ question.WrongQuestion, cloudQ cloudstore.UserWrongAnswer) bool {
	if localQ.Attempts > cloudQ.Attempts {
		return false
	}
	if localQ.Timestamp > cloudQ.LastWrongAt+s.AutoResolveWindow.Milliseconds() {
		return false
	}
	if localQ.UserAnswer != cloudQ.UserAnswer && absMillis(localQ.Timestamp-cloudQ.LastWrongAt) < s.ConflictWindow.Milliseconds() {
		return true
	}
	return false
}

func (s *Syncer) detectConflict(localQ question.WrongQuestion, cloudQ cloudstore.UserWrongAnswer) *SyncConflict {
	if localQ.UserAnswer != cloudQ.UserAnswer {
		return &SyncConflict{Local: localQ, Cloud: cloudQ, Type: ConflictDifferentAnswer}
	}
	if localQ.Attempts != cloudQ.Attempts {
		return &SyncConflict{Local: localQ, Cloud: cloudQ, Type: ConflictDifferentAttempts}
	}
	if absMillis(localQ.Timestamp-cloudQ.LastWrongAt) > s.AutoResolveWindow.Milliseconds() {
		return &SyncConflict{Local: localQ, Cloud: cloudQ, Type: ConflictDifferentTimestamp}
	}
	return nil
}

func absMillis(d int64) int64 {
	if d < 0 {
		return -d
	}
	return d
}

// SyncToCloud uploads unsynced local records, skipping any whose cloud copy
// diverges. It is the only operation gated by the rate limiter.
func (s *Syncer) SyncToCloud(ctx context.Context) SyncResult {
	if !s.tryBegin() {
		return SyncResult{Errors: []string{"sync already in progress"}}
	}
	defer s.end()

	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		return SyncResult{Errors: []string{"user not authenticated"}}
	}
	if s.Limiter != nil {
		if d := s.Limiter.Check(ctx, userID, "sync"); !d.Allowed {
			return SyncResult{
				Errors:      []string{"rate limit exceeded, please try again later"},
				RateLimited: true,
			}
		}
	}

	unsynced := s.Local.UnsyncedWrongQuestions(ctx)
	if len(unsynced) == 0 {
		return SyncResult{Success: true}
	}

	cloud, err := s.Remote.WrongAnswersByUser(ctx, userID)
	if err != nil {
		s.Local.AppendSyncLog(ctx, "upload", 0, 0, err.Error())
		return SyncResult{Errors: []string{err.Error()}}
	}
	cloudByID := make(map[string]cloudstore.UserWrongAnswer, len(cloud))
	for _, a := range cloud {
		cloudByID[a.QuestionExternalID] = a
	}

	var conflicts []SyncConflict
	var toSync []question.WrongQuestion
	for _, localQ := range unsynced {
		if cloudQ, ok := cloudByID[localQ.ExternalID]; ok {
			if c := s.detectConflict(localQ, cloudQ); c != nil {
				conflicts = append(conflicts, *c)
				continue
			}
		}
		toSync = append(toSync, localQ)
	}

	synced := 0
	if len(toSync) > 0 {
		synced, err = s.uploadBatch(ctx, userID, toSync)
		if err != nil {
			s.Local.AppendSyncLog(ctx, "upload", synced, len(conflicts), err.Error())
			return SyncResult{Conflicts: conflicts, Synced: synced, Errors: []string{err.Error()}}
		}
	}
	s.Local.AppendSyncLog(ctx, "upload", synced, len(conflicts), "")
	return SyncResult{Success: true, Conflicts: conflicts, Synced: synced}
}

// ForceUploadAll pushes every local record regardless of sync state.
func (s *Syncer) ForceUploadAll(ctx context.Context) SyncResult {
	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		return SyncResult{Errors: []string{"user not authenticated"}}
	}
	local := s.Local.WrongQuestions(ctx)
	if len(local) == 0 {
		return SyncResult{Success: true}
	}
	synced, err := s.uploadBatch(ctx, userID, local)
	if err != nil {
		s.Local.AppendSyncLog(ctx, "upload", synced, 0, err.Error())
		return SyncResult{Synced: synced, Errors: []string{err.Error()}}
	}
	s.Local.AppendSyncLog(ctx, "upload", synced, 0, "")
	return SyncResult{Success: true, Synced: synced}
}

// uploadBatch ensures master rows exist, then upserts the user's answers
// and marks the local copies synced.
func (s *Syncer) uploadBatch(ctx context.Context, userID string, qs []question.WrongQuestion) (int, error) {
	if len(qs) == 0 {
		return 0, nil
	}
	if err := s.ensureMasters(ctx, qs); err != nil {
		return 0, err
	}

	now := s.Now().UnixMilli()
	answers := make([]cloudstore.UserWrongAnswer, 0, len(qs))
	for _, q := range qs {
		answers = append(answers, cloudstore.UserWrongAnswer{
			UserID:             userID,
			QuestionExternalID: q.ExternalID,
			UserAnswer:         q.UserAnswer,
			CorrectAnswer:      q.CorrectAnswer,
			Attempts:           q.Attempts,
			FirstWrongAt:       q.Timestamp,
			LastWrongAt:        q.Timestamp,
			IsSynced:           true,
			SyncTime:           now,
		})
	}
	if err := s.Remote.UpsertWrongAnswers(ctx, answers); err != nil {
		return 0, err
	}
	for _, q := range qs {
		s.Local.MarkSynced(ctx, q.ExternalID)
	}
	return len(qs), nil
}

// ensureMasters inserts master rows for any questions the shared store has
// not seen yet. Existence is checked in one batched query.
func (s *Syncer) ensureMasters(ctx context.Context, qs []question.WrongQuestion) error {
	ids := make([]string, 0, len(qs))
	for _, q := range qs {
		ids = append(ids, q.ExternalID)
	}
	existing, err := s.Remote.ExistingMasterIDs(ctx, ids)
	if err != nil {
		return err
	}

	now := s.Now().UnixMilli()
	var masters []cloudstore.QuestionMaster
	for _, q := range qs {
		if _, ok := existing[q.ExternalID]; ok {
			continue
		}
		masters = append(masters, masterFromQuestion(q, now))
	}
	if len(masters) == 0 {
		return nil
	}
	s.Log.WithField("count", len(masters)).Info("inserting new master questions")
	return s.Remote.InsertMasters(ctx, masters)
}

func masterFromQuestion(q question.WrongQuestion, now int64) cloudstore.QuestionMaster {
	m := cloudstore.QuestionMaster{
		ExternalID: q.ExternalID,
		Type:       "mcq",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if q.Question != nil {
		m.Domain = q.Question.Domain
		if q.Question.Type != "" {
			m.Type = q.Question.Type
		}
		if data, err := json.Marshal(q.Question); err == nil {
			m.QuestionData = string(data)
		}
	}
	if m.QuestionData == "" {
		id, _ := json.Marshal(q.ExternalID)
		m.QuestionData = `{"external_id":` + string(id) + `}`
	}
	return m
}

// updateExisting merges the two copies and writes the result with a
// targeted update. An upsert here could resurrect a row another device
// deleted between the read and the write.
func (s *Syncer) updateExisting(ctx context.Context, userID string, localQ question.WrongQuestion, cloudQ cloudstore.UserWrongAnswer) error {
	merged := s.merge(userID, localQ, cloudQ)
	if err := s.Remote.UpdateWrongAnswer(ctx, merged); err != nil {
		return err
	}
	s.Local.MarkSynced(ctx, localQ.ExternalID)
	return nil
}

// merge keeps the local answer, the larger attempt count, and the widest
// first/last timestamp span.
func (s *Syncer) merge(userID string, localQ question.WrongQuestion, cloudQ cloudstore.UserWrongAnswer) cloudstore.UserWrongAnswer {
	correct := localQ.CorrectAnswer
	if correct == "" {
		correct = cloudQ.CorrectAnswer
	}
	return cloudstore.UserWrongAnswer{
		UserID:             userID,
		QuestionExternalID: localQ.ExternalID,
		UserAnswer:         localQ.UserAnswer,
		CorrectAnswer:      correct,
		Attempts:           maxInt(localQ.Attempts, cloudQ.Attempts),
		FirstWrongAt:       minInt64(localQ.Timestamp, cloudQ.FirstWrongAt),
		LastWrongAt:        maxInt64(localQ.Timestamp, cloudQ.LastWrongAt),
		IsSynced:           true,
		SyncTime:           s.Now().UnixMilli(),
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// downloadOne fetches the master copy of a cloud answer and saves it into
// the local cache.
func (s *Syncer) downloadOne(ctx context.Context, cloudQ cloudstore.UserWrongAnswer) error {
	master, ok, err := s.Remote.MasterByID(ctx, cloudQ.QuestionExternalID)
	if err != nil {
		return err
	}
	if !ok {
		s.Log.WithField("question", cloudQ.QuestionExternalID).Warn("cloud answer has no master row")
		return nil
	}
	return s.saveDownloaded(ctx, master.QuestionData, cloudQ)
}

func (s *Syncer) saveDownloaded(ctx context.Context, questionData string, cloudQ cloudstore.UserWrongAnswer) error {
	var raw any
	if err := json.Unmarshal([]byte(questionData), &raw); err != nil {
		return err
	}
	s.Local.SaveWrongQuestion(ctx, raw, cloudQ.UserAnswer)
	s.Local.MarkSynced(ctx, cloudQ.QuestionExternalID)
	return nil
}

// SyncFromCloud downloads every cloud record in one joined query. A record
// that fails to save is logged and skipped.
func (s *Syncer) SyncFromCloud(ctx context.Context) bool {
	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		return false
	}
	rows, err := s.Remote.WrongAnswersWithQuestions(ctx, userID)
	if err != nil {
		s.Log.WithError(err).Error("fetch cloud questions")
		s.Local.AppendSyncLog(ctx, "download", 0, 0, err.Error())
		return false
	}
	if len(rows) == 0 {
		return true
	}

	saved := 0
	for _, row := range rows {
		if err := s.saveDownloaded(ctx, row.Question.QuestionData, row.Answer); err != nil {
			s.Log.WithError(err).WithField("question", row.Answer.QuestionExternalID).Warn("download failed")
			continue
		}
		saved++
	}
	s.Local.AppendSyncLog(ctx, "download", saved, 0, "")
	return true
}

// SyncSingleImmediately pushes one just-recorded miss to the cloud, best
// effort. It reports whether the record made it.
func (s *Syncer) SyncSingleImmediately(ctx context.Context, raw any, userAnswer string) bool {
	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		s.Log.Debug("not authenticated, skipping immediate sync")
		return false
	}

	q := question.Clean(raw)
	if q == nil || q.ExternalID == "" {
		return false
	}

	now := s.Now().UnixMilli()
	if _, ok, err := s.Remote.MasterByID(ctx, q.ExternalID); err != nil {
		s.Log.WithError(err).Warn("immediate sync master check")
		return false
	} else if !ok {
		data, _ := json.Marshal(q)
		m := cloudstore.QuestionMaster{
			ExternalID:   q.ExternalID,
			QuestionData: string(data),
			Domain:       q.Domain,
			Type:         q.Type,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if m.Type == "" {
			m.Type = "mcq"
		}
		if err := s.Remote.InsertMasters(ctx, []cloudstore.QuestionMaster{m}); err != nil {
			s.Log.WithError(err).Warn("immediate sync master insert")
			return false
		}
	}

	correct := "A"
	if len(q.CorrectAnswer) > 0 {
		correct = q.CorrectAnswer[0]
	}
	err := s.Remote.UpsertWrongAnswers(ctx, []cloudstore.UserWrongAnswer{{
		UserID:             userID,
		QuestionExternalID: q.ExternalID,
		UserAnswer:         userAnswer,
		CorrectAnswer:      correct,
		Attempts:           1,
		FirstWrongAt:       now,
		LastWrongAt:        now,
		IsSynced:           true,
		SyncTime:           now,
	}})
	if err != nil {
		s.Log.WithError(err).Warn("immediate sync failed")
		return false
	}
	s.Local.MarkSynced(ctx, q.ExternalID)
	return true
}

// DeleteCloudWrongAnswer removes the user's cloud copy of one question.
func (s *Syncer) DeleteCloudWrongAnswer(ctx context.Context, questionExternalID string) bool {
	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		return false
	}
	if err := s.Remote.DeleteWrongAnswer(ctx, userID, questionExternalID); err != nil {
		s.Log.WithError(err).WithField("question", questionExternalID).Error("cloud deletion failed")
		return false
	}
	return true
}

// ResolveConflicts applies user decisions. Both copies are re-fetched per
// resolution so a decision made against stale data never overwrites newer
// writes blindly.
func (s *Syncer) ResolveConflicts(ctx context.Context, resolutions []ConflictResolution) bool {
	userID := s.Sessions.CurrentUserID(ctx)
	if userID == "" {
		return false
	}

	resolved := 0
	for _, res := range resolutions {
		localQ, ok := s.Local.WrongQuestion(ctx, res.QuestionID)
		if !ok {
			continue
		}
		cloudQ, ok, err := s.Remote.WrongAnswer(ctx, userID, res.QuestionID)
		if err != nil {
			s.Log.WithError(err).WithField("question", res.QuestionID).Error("conflict resolution fetch")
			return false
		}
		if !ok {
			continue
		}

		switch res.Resolution {
		case KeepLocal:
			err = s.updateExisting(ctx, userID, localQ, cloudQ)
		case KeepCloud:
			err = s.downloadOne(ctx, cloudQ)
		case Merge:
			err = s.resolveMerge(ctx, userID, localQ, cloudQ)
		default:
			continue
		}
		if err != nil {
			s.Log.WithError(err).WithField("question", res.QuestionID).Error("conflict resolution failed")
			return false
		}
		resolved++
	}
	s.Local.AppendSyncLog(ctx, "resolve", resolved, 0, "")
	return true
}

func (s *Syncer) resolveMerge(ctx context.Context, userID string, localQ question.WrongQuestion, cloudQ cloudstore.UserWrongAnswer) error {
	merged := s.merge(userID, localQ, cloudQ)
	if err := s.Remote.UpdateWrongAnswer(ctx, merged); err != nil {
		return err
	}
	var raw any
	if localQ.Question != nil {
		// Round-trip through JSON so the sanitizer sees a plain document.
		if data, err := json.Marshal(localQ.Question); err == nil {
			_ = json.Unmarshal(data, &raw)
		}
	}
	s.Local.SaveWrongQuestion(ctx, raw, localQ.UserAnswer)
	s.Local.MarkSynced(ctx, localQ.ExternalID)
	return nil
}
