package syncsvc_test

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prepsync/practice-sync/internal/cloudstore"
	"github.com/prepsync/practice-sync/internal/question"
	"github.com/prepsync/practice-sync/internal/ratelimit"
	"github.com/prepsync/practice-sync/internal/syncsvc"
)

/* ---------------- In-memory fakes satisfying syncsvc.LocalStore & syncsvc.RemoteStore ---------------- */

type fakeLocal struct {
	records   map[string]question.WrongQuestion
	nowMillis int64
	logKinds  []string
}

func newFakeLocal(now int64) *fakeLocal {
	return &fakeLocal{records: map[string]question.WrongQuestion{}, nowMillis: now}
}

func (f *fakeLocal) WrongQuestions(context.Context) []question.WrongQuestion {
	out := make([]question.WrongQuestion, 0, len(f.records))
	for _, q := range f.records {
		out = append(out, q)
	}
	return out
}

func (f *fakeLocal) UnsyncedWrongQuestions(ctx context.Context) []question.WrongQuestion {
	var out []question.WrongQuestion
	for _, q := range f.records {
		if !q.IsSynced {
			out = append(out, q)
		}
	}
	return out
}

func (f *fakeLocal) WrongQuestion(_ context.Context, id string) (question.WrongQuestion, bool) {
	q, ok := f.records[id]
	return q, ok
}

func (f *fakeLocal) SaveWrongQuestion(_ context.Context, raw any, userAnswer string) *question.WrongQuestion {
	q := question.Clean(raw)
	if q == nil || q.ExternalID == "" {
		return nil
	}
	attempts := 1
	if prev, ok := f.records[q.ExternalID]; ok {
		attempts = prev.Attempts + 1
	}
	correct := ""
	if len(q.CorrectAnswer) > 0 {
		correct = q.CorrectAnswer[0]
	}
	wq := question.WrongQuestion{
		ExternalID:    q.ExternalID,
		Question:      q,
		UserAnswer:    userAnswer,
		CorrectAnswer: correct,
		Timestamp:     f.nowMillis,
		Attempts:      attempts,
	}
	f.records[q.ExternalID] = wq
	return &wq
}

func (f *fakeLocal) MarkSynced(_ context.Context, id string) {
	if q, ok := f.records[id]; ok {
		q.IsSynced = true
		f.records[id] = q
	}
}

func (f *fakeLocal) AppendSyncLog(_ context.Context, kind string, synced, conflicts int, errMsg string) {
	f.logKinds = append(f.logKinds, kind)
}

type fakeRemote struct {
	answers map[string]cloudstore.UserWrongAnswer // key: user|question
	masters map[string]cloudstore.QuestionMaster

	listCalls         int
	upsertCalls       int
	updateCalls       int
	insertMasterCalls int

	// When set, WrongAnswersByUser re-enters the syncer to observe the
	// in-progress guard.
	reenter     *syncsvc.Syncer
	reenterSeen *syncsvc.SyncResult
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		answers: map[string]cloudstore.UserWrongAnswer{},
		masters: map[string]cloudstore.QuestionMaster{},
	}
}

func akey(user, qid string) string { return user + "|" + qid }

func (f *fakeRemote) WrongAnswersByUser(ctx context.Context, userID string) ([]cloudstore.UserWrongAnswer, error) {
	f.listCalls++
	if f.reenter != nil {
		r := f.reenter.BidirectionalSync(ctx)
		f.reenterSeen = &r
		f.reenter = nil
	}
	var out []cloudstore.UserWrongAnswer
	for _, a := range f.answers {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRemote) WrongAnswer(_ context.Context, userID, qid string) (cloudstore.UserWrongAnswer, bool, error) {
	a, ok := f.answers[akey(userID, qid)]
	return a, ok, nil
}

func (f *fakeRemote) UpsertWrongAnswers(_ context.Context, answers []cloudstore.UserWrongAnswer) error {
	f.upsertCalls++
	for _, a := range answers {
		f.answers[akey(a.UserID, a.QuestionExternalID)] = a
	}
	return nil
}

func (f *fakeRemote) UpdateWrongAnswer(_ context.Context, a cloudstore.UserWrongAnswer) error {
	f.updateCalls++
	k := akey(a.UserID, a.QuestionExternalID)
	if _, ok := f.answers[k]; ok {
		f.answers[k] = a
	}
	return nil
}

func (f *fakeRemote) DeleteWrongAnswer(_ context.Context, userID, qid string) error {
	delete(f.answers, akey(userID, qid))
	return nil
}

func (f *fakeRemote) ExistingMasterIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := f.masters[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeRemote) InsertMasters(_ context.Context, masters []cloudstore.QuestionMaster) error {
	f.insertMasterCalls++
	for _, m := range masters {
		if _, ok := f.masters[m.ExternalID]; !ok {
			f.masters[m.ExternalID] = m
		}
	}
	return nil
}

func (f *fakeRemote) MasterByID(_ context.Context, id string) (cloudstore.QuestionMaster, bool, error) {
	m, ok := f.masters[id]
	return m, ok, nil
}

func (f *fakeRemote) WrongAnswersWithQuestions(_ context.Context, userID string) ([]cloudstore.DownloadedAnswer, error) {
	var out []cloudstore.DownloadedAnswer
	for _, a := range f.answers {
		if a.UserID != userID {
			continue
		}
		m, ok := f.masters[a.QuestionExternalID]
		if !ok {
			continue
		}
		out = append(out, cloudstore.DownloadedAnswer{Answer: a, Question: m})
	}
	return out, nil
}

type fakeLimiter struct {
	allowed bool
	calls   int
}

func (f *fakeLimiter) Check(context.Context, string, string) ratelimit.Decision {
	f.calls++
	return ratelimit.Decision{Allowed: f.allowed}
}

/* ------------------------------------------ Helpers ------------------------------------------ */

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newSyncer(local *fakeLocal, remote *fakeRemote, limiter syncsvc.RateLimiter) *syncsvc.Syncer {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	sessions := syncsvc.SessionFunc(func(context.Context) string { return "u1" })
	return syncsvc.New(local, remote, sessions, limiter, func() time.Time { return testNow }, log)
}

func localQ(id, answer string, attempts int, ts int64, synced bool) question.WrongQuestion {
	return question.WrongQuestion{
		ExternalID: id,
		Question: &question.CleanedQuestion{
			ExternalID:    id,
			Stem:          "stem " + id,
			Type:          "mcq",
			Domain:        "algebra",
			CorrectAnswer: []string{"B"},
		},
		UserAnswer:    answer,
		CorrectAnswer: "B",
		Timestamp:     ts,
		Attempts:      attempts,
		IsSynced:      synced,
	}
}

func cloudQ(id, answer string, attempts int, lastWrongAt int64) cloudstore.UserWrongAnswer {
	return cloudstore.UserWrongAnswer{
		UserID:             "u1",
		QuestionExternalID: id,
		UserAnswer:         answer,
		CorrectAnswer:      "B",
		Attempts:           attempts,
		FirstWrongAt:       lastWrongAt,
		LastWrongAt:        lastWrongAt,
		IsSynced:           true,
		SyncTime:           lastWrongAt,
	}
}

func masterFor(id string) cloudstore.QuestionMaster {
	return cloudstore.QuestionMaster{
		ExternalID:   id,
		QuestionData: `{"external_id":"` + id + `","stem":"stem ` + id + `","type":"mcq","domain":"algebra","correct_answer":["B"]}`,
		Domain:       "algebra",
		Type:         "mcq",
	}
}

/* ------------------------------------------ Tests ------------------------------------------ */

func TestBidirectionalSyncUploadsAndDownloads(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	local.records["q-local"] = localQ("q-local", "o1", 1, nowMillis, false)
	remote.masters["q-cloud"] = masterFor("q-cloud")
	remote.answers[akey("u1", "q-cloud")] = cloudQ("q-cloud", "o3", 2, nowMillis)

	s := newSyncer(local, remote, nil)
	res := s.BidirectionalSync(ctx)
	if !res.Success {
		t.Fatalf("sync failed: %v", res.Errors)
	}
	if len(res.Conflicts) != 0 {
		t.Fatalf("unexpected conflicts: %+v", res.Conflicts)
	}
	if res.Synced != 2 {
		t.Fatalf("expected 2 synced, got %d", res.Synced)
	}

	// Local record went up, with its master row created first.
	if _, ok := remote.answers[akey("u1", "q-local")]; !ok {
		t.Fatal("local record was not uploaded")
	}
	if _, ok := remote.masters["q-local"]; !ok {
		t.Fatal("master row was not created for uploaded record")
	}
	// Cloud record came down, carrying the cloud answer.
	got, ok := local.records["q-cloud"]
	if !ok {
		t.Fatal("cloud record was not downloaded")
	}
	if got.UserAnswer != "o3" || got.Question == nil || got.Question.Stem != "stem q-cloud" {
		t.Fatalf("downloaded record wrong: %+v", got)
	}
	if !got.IsSynced {
		t.Fatal("downloaded record should be marked synced")
	}
}

func TestBidirectionalSyncAutoResolvesStrictlyAheadLocal(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	// More local attempts: divergent answers resolve without user input.
	local.records["q-1"] = localQ("q-1", "o2", 5, nowMillis, false)
	remote.masters["q-1"] = masterFor("q-1")
	remote.answers[akey("u1", "q-1")] = cloudQ("q-1", "o4", 2, nowMillis)

	s := newSyncer(local, remote, nil)
	res := s.BidirectionalSync(ctx)
	if !res.Success || len(res.Conflicts) != 0 {
		t.Fatalf("expected clean auto-resolve, got %+v", res)
	}
	if remote.updateCalls != 1 || remote.upsertCalls != 0 {
		t.Fatalf("expected exactly one targeted update, got update=%d upsert=%d", remote.updateCalls, remote.upsertCalls)
	}
	merged := remote.answers[akey("u1", "q-1")]
	if merged.UserAnswer != "o2" || merged.Attempts != 5 {
		t.Fatalf("merge kept wrong values: %+v", merged)
	}
	if !local.records["q-1"].IsSynced {
		t.Fatal("local record should be marked synced after auto-resolve")
	}
}

func TestConflictClassification(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	ctx := context.Background()

	t.Run("simultaneous different answers conflict", func(t *testing.T) {
		local := newFakeLocal(nowMillis)
		remote := newFakeRemote()
		local.records["q-1"] = localQ("q-1", "o2", 2, nowMillis, false)
		remote.answers[akey("u1", "q-1")] = cloudQ("q-1", "o4", 2, nowMillis+30_000)

		res := newSyncer(local, remote, nil).BidirectionalSync(ctx)
		if len(res.Conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
		}
		if res.Conflicts[0].Type != syncsvc.ConflictDifferentAnswer {
			t.Fatalf("wrong conflict type: %s", res.Conflicts[0].Type)
		}
		if remote.updateCalls+remote.upsertCalls != 0 {
			t.Fatal("conflicting record must not be written")
		}
	})

	t.Run("local newer by more than a minute auto-resolves", func(t *testing.T) {
		local := newFakeLocal(nowMillis)
		remote := newFakeRemote()
		local.records["q-1"] = localQ("q-1", "o2", 2, nowMillis, false)
		remote.answers[akey("u1", "q-1")] = cloudQ("q-1", "o4", 2, nowMillis-2*60_000)

		res := newSyncer(local, remote, nil).BidirectionalSync(ctx)
		if len(res.Conflicts) != 0 {
			t.Fatalf("expected auto-resolve, got conflicts %+v", res.Conflicts)
		}
		if remote.updateCalls != 1 {
			t.Fatalf("expected 1 update, got %d", remote.updateCalls)
		}
	})

	t.Run("answers far apart in time auto-resolve", func(t *testing.T) {
		local := newFakeLocal(nowMillis)
		remote := newFakeRemote()
		// Cloud is six minutes ahead: outside the conflict window.
		local.records["q-1"] = localQ("q-1", "o2", 2, nowMillis, false)
		remote.answers[akey("u1", "q-1")] = cloudQ("q-1", "o4", 2, nowMillis+6*60_000)

		res := newSyncer(local, remote, nil).BidirectionalSync(ctx)
		if len(res.Conflicts) != 0 {
			t.Fatalf("expected no conflict, got %+v", res.Conflicts)
		}
	})

	t.Run("identical records just mark synced", func(t *testing.T) {
		local := newFakeLocal(nowMillis)
		remote := newFakeRemote()
		local.records["q-1"] = localQ("q-1", "o2", 2, nowMillis, false)
		remote.answers[akey("u1", "q-1")] = cloudQ("q-1", "o2", 2, nowMillis)

		res := newSyncer(local, remote, nil).BidirectionalSync(ctx)
		if !res.Success || res.Synced != 1 {
			t.Fatalf("expected one mark-synced, got %+v", res)
		}
		if remote.upsertCalls+remote.updateCalls != 0 {
			t.Fatal("no remote writes expected")
		}
		if !local.records["q-1"].IsSynced {
			t.Fatal("record should be marked synced")
		}
	})
}

func TestSecondPassWritesNothing(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	local.records["q-1"] = localQ("q-1", "o1", 1, nowMillis, false)
	remote.masters["q-2"] = masterFor("q-2")
	remote.answers[akey("u1", "q-2")] = cloudQ("q-2", "o3", 1, nowMillis)

	s := newSyncer(local, remote, nil)
	if res := s.BidirectionalSync(ctx); !res.Success {
		t.Fatalf("first pass failed: %v", res.Errors)
	}

	upserts, updates, inserts := remote.upsertCalls, remote.updateCalls, remote.insertMasterCalls
	res := s.BidirectionalSync(ctx)
	if !res.Success {
		t.Fatalf("second pass failed: %v", res.Errors)
	}
	if remote.upsertCalls != upserts || remote.updateCalls != updates || remote.insertMasterCalls != inserts {
		t.Fatalf("second pass wrote to remote: upserts %d->%d updates %d->%d inserts %d->%d",
			upserts, remote.upsertCalls, updates, remote.updateCalls, inserts, remote.insertMasterCalls)
	}
	if res.Synced != 0 {
		t.Fatalf("second pass should sync nothing, got %d", res.Synced)
	}
}

func TestSyncToCloudRateLimited(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	limiter := &fakeLimiter{allowed: false}
	ctx := context.Background()

	local.records["q-1"] = localQ("q-1", "o1", 1, nowMillis, false)

	res := newSyncer(local, remote, limiter).SyncToCloud(ctx)
	if res.Success || !res.RateLimited {
		t.Fatalf("expected rate-limited failure, got %+v", res)
	}
	if limiter.calls != 1 {
		t.Fatalf("expected 1 limiter check, got %d", limiter.calls)
	}
	// The denial must short-circuit before any remote traffic.
	if remote.listCalls+remote.upsertCalls+remote.updateCalls+remote.insertMasterCalls != 0 {
		t.Fatal("rate-limited sync must not touch the remote store")
	}
	if local.records["q-1"].IsSynced {
		t.Fatal("record must stay unsynced")
	}
}

func TestConcurrentFullSyncRejected(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	s := newSyncer(local, remote, nil)
	remote.reenter = s

	if res := s.BidirectionalSync(ctx); !res.Success {
		t.Fatalf("outer sync failed: %v", res.Errors)
	}
	if remote.reenterSeen == nil {
		t.Fatal("re-entrant sync never ran")
	}
	if remote.reenterSeen.Success || len(remote.reenterSeen.Errors) == 0 {
		t.Fatalf("re-entrant sync should be rejected, got %+v", remote.reenterSeen)
	}
}

func TestSyncToCloudSkipsConflictingRecords(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	limiter := &fakeLimiter{allowed: true}
	ctx := context.Background()

	local.records["q-clean"] = localQ("q-clean", "o1", 1, nowMillis, false)
	local.records["q-conflict"] = localQ("q-conflict", "o2", 2, nowMillis, false)
	remote.answers[akey("u1", "q-conflict")] = cloudQ("q-conflict", "o4", 3, nowMillis)

	res := newSyncer(local, remote, limiter).SyncToCloud(ctx)
	if !res.Success {
		t.Fatalf("sync failed: %v", res.Errors)
	}
	if res.Synced != 1 || len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 synced + 1 conflict, got %+v", res)
	}
	if local.records["q-conflict"].IsSynced {
		t.Fatal("conflicting record must stay unsynced")
	}
	if !local.records["q-clean"].IsSynced {
		t.Fatal("clean record should be synced")
	}
}

func TestResolveConflicts(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	ctx := context.Background()

	seed := func() (*fakeLocal, *fakeRemote, *syncsvc.Syncer) {
		local := newFakeLocal(nowMillis)
		remote := newFakeRemote()
		local.records["q-1"] = localQ("q-1", "o2", 2, nowMillis, false)
		remote.masters["q-1"] = masterFor("q-1")
		remote.answers[akey("u1", "q-1")] = cloudQ("q-1", "o4", 3, nowMillis-10_000)
		return local, remote, newSyncer(local, remote, nil)
	}

	t.Run("keep_local pushes the local copy", func(t *testing.T) {
		local, remote, s := seed()
		if !s.ResolveConflicts(ctx, []syncsvc.ConflictResolution{{QuestionID: "q-1", Resolution: syncsvc.KeepLocal}}) {
			t.Fatal("resolution failed")
		}
		got := remote.answers[akey("u1", "q-1")]
		if got.UserAnswer != "o2" || got.Attempts != 3 {
			t.Fatalf("cloud copy after keep_local: %+v", got)
		}
		if !local.records["q-1"].IsSynced {
			t.Fatal("local record should be marked synced")
		}
	})

	t.Run("keep_cloud overwrites the local copy", func(t *testing.T) {
		local, _, s := seed()
		if !s.ResolveConflicts(ctx, []syncsvc.ConflictResolution{{QuestionID: "q-1", Resolution: syncsvc.KeepCloud}}) {
			t.Fatal("resolution failed")
		}
		if got := local.records["q-1"]; got.UserAnswer != "o4" {
			t.Fatalf("local copy after keep_cloud: %+v", got)
		}
	})

	t.Run("merge widens the span on both sides", func(t *testing.T) {
		local, remote, s := seed()
		if !s.ResolveConflicts(ctx, []syncsvc.ConflictResolution{{QuestionID: "q-1", Resolution: syncsvc.Merge}}) {
			t.Fatal("resolution failed")
		}
		got := remote.answers[akey("u1", "q-1")]
		if got.Attempts != 3 || got.FirstWrongAt != nowMillis-10_000 || got.LastWrongAt != nowMillis {
			t.Fatalf("merged cloud copy: %+v", got)
		}
		if got.UserAnswer != "o2" {
			t.Fatal("merge keeps the local answer")
		}
		if !local.records["q-1"].IsSynced {
			t.Fatal("local record should be marked synced")
		}
	})

	t.Run("unknown ids are skipped", func(t *testing.T) {
		_, _, s := seed()
		if !s.ResolveConflicts(ctx, []syncsvc.ConflictResolution{{QuestionID: "q-missing", Resolution: syncsvc.KeepLocal}}) {
			t.Fatal("missing record should not fail the batch")
		}
	})
}

func TestSyncFromCloudToleratesBadRecords(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	remote.masters["q-good"] = masterFor("q-good")
	remote.answers[akey("u1", "q-good")] = cloudQ("q-good", "o1", 1, nowMillis)
	bad := masterFor("q-bad")
	bad.QuestionData = "{not json"
	remote.masters["q-bad"] = bad
	remote.answers[akey("u1", "q-bad")] = cloudQ("q-bad", "o2", 1, nowMillis)

	if !newSyncer(local, remote, nil).SyncFromCloud(ctx) {
		t.Fatal("download should succeed despite the bad record")
	}
	if _, ok := local.records["q-good"]; !ok {
		t.Fatal("good record was not downloaded")
	}
	if _, ok := local.records["q-bad"]; ok {
		t.Fatal("bad record should be skipped")
	}
}

func TestSyncSingleImmediately(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	raw := map[string]any{
		"external_id":    "q-now",
		"stem":           "fresh miss",
		"type":           "mcq",
		"domain":         "geometry",
		"correct_answer": []any{"C"},
	}

	local.SaveWrongQuestion(ctx, raw, "o1")

	s := newSyncer(local, remote, nil)
	if !s.SyncSingleImmediately(ctx, raw, "o1") {
		t.Fatal("immediate sync failed")
	}
	if _, ok := remote.masters["q-now"]; !ok {
		t.Fatal("master row missing")
	}
	got := remote.answers[akey("u1", "q-now")]
	if got.UserAnswer != "o1" || got.CorrectAnswer != "C" || got.Attempts != 1 {
		t.Fatalf("uploaded answer: %+v", got)
	}
	if rec, ok := local.WrongQuestion(ctx, "q-now"); !ok || !rec.IsSynced {
		t.Fatalf("local record after immediate sync: ok=%v synced=%v", ok, rec.IsSynced)
	}

	// The next full pass has nothing left to upload.
	if got := local.UnsyncedWrongQuestions(ctx); len(got) != 0 {
		t.Fatalf("unsynced after immediate sync: %d", len(got))
	}

	// Unauthenticated devices skip silently.
	anon := syncsvc.New(local, remote, syncsvc.SessionFunc(func(context.Context) string { return "" }), nil,
		func() time.Time { return testNow }, nil)
	before := remote.upsertCalls
	if anon.SyncSingleImmediately(ctx, raw, "o1") {
		t.Fatal("unauthenticated immediate sync should report false")
	}
	if remote.upsertCalls != before {
		t.Fatal("unauthenticated immediate sync must not write")
	}
}

func TestDeleteCloudWrongAnswer(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	remote.answers[akey("u1", "q-1")] = cloudQ("q-1", "o1", 1, nowMillis)

	s := newSyncer(local, remote, nil)
	if !s.DeleteCloudWrongAnswer(ctx, "q-1") {
		t.Fatal("delete failed")
	}
	if _, ok := remote.answers[akey("u1", "q-1")]; ok {
		t.Fatal("cloud row still present")
	}
}

func TestCheckCloudStatus(t *testing.T) {
	nowMillis := testNow.UnixMilli()
	local := newFakeLocal(nowMillis)
	remote := newFakeRemote()
	ctx := context.Background()

	local.records["q-a"] = localQ("q-a", "o1", 1, nowMillis, true)
	remote.answers[akey("u1", "q-b")] = cloudQ("q-b", "o2", 1, nowMillis)
	remote.answers[akey("u1", "q-c")] = cloudQ("q-c", "o3", 1, nowMillis)

	got := newSyncer(local, remote, nil).CheckCloudStatus(ctx)
	if !got.HasCloudData || got.CloudCount != 2 || got.LocalCount != 1 {
		t.Fatalf("status: %+v", got)
	}
}
