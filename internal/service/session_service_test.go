package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prepdeck/prepdeck-backend/internal/clock"
	"github.com/prepdeck/prepdeck-backend/internal/model"
	"github.com/prepdeck/prepdeck-backend/internal/repository"
	"github.com/rs/zerolog"
)

// ─── In-memory fakes ───────────────────────────────────────────────────

type fakeAttempts struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*model.Attempt
}

func newFakeAttempts() *fakeAttempts {
	return &fakeAttempts{attempts: make(map[uuid.UUID]*model.Attempt)}
}

func (f *fakeAttempts) Create(_ context.Context, a *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Mirrors the partial unique index on (user_id, exam_id) WHERE running.
	for _, existing := range f.attempts {
		if existing.UserID == a.UserID && existing.ExamID == a.ExamID &&
			existing.Status == model.AttemptStatusRunning {
			return repository.ErrAlreadyRunning
		}
	}
	cp := *a
	f.attempts[a.ID] = &cp
	return nil
}

func (f *fakeAttempts) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAttempts) ListByUser(_ context.Context, userID int) ([]model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAttempts) Finalize(_ context.Context, id uuid.UUID, trigger model.FinalizeTrigger, at time.Time) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if a.Status != model.AttemptStatusRunning {
		return nil, repository.ErrAlreadyFinalized
	}
	a.Status = model.AttemptStatusSubmitted
	a.Trigger = &trigger
	a.FinalizedAt = &at
	cp := *a
	return &cp, nil
}

func (f *fakeAttempts) running(id uuid.UUID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	return ok && a.Status == model.AttemptStatusRunning
}

type fakeAnswers struct {
	mu       sync.Mutex
	attempts *fakeAttempts
	answers  map[uuid.UUID]map[uuid.UUID]model.AnswerRecord
}

func newFakeAnswers(attempts *fakeAttempts) *fakeAnswers {
	return &fakeAnswers{
		attempts: attempts,
		answers:  make(map[uuid.UUID]map[uuid.UUID]model.AnswerRecord),
	}
}

func (f *fakeAnswers) Upsert(_ context.Context, rec model.AnswerRecord) error {
	if !f.attempts.running(rec.AttemptID) {
		return repository.ErrAttemptNotRunning
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.answers[rec.AttemptID]
	if !ok {
		m = make(map[uuid.UUID]model.AnswerRecord)
		f.answers[rec.AttemptID] = m
	}
	m[rec.QuestionID] = rec
	return nil
}

func (f *fakeAnswers) ListByAttempt(_ context.Context, attemptID uuid.UUID) ([]model.AnswerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.AnswerRecord
	for _, rec := range f.answers[attemptID] {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeAnswers) Saved(_ context.Context, attemptID uuid.UUID) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string)
	for qid, rec := range f.answers[attemptID] {
		out[qid.String()] = string(rec.Selected)
	}
	return out, nil
}

func (f *fakeAnswers) ClearCache(_ context.Context, _ uuid.UUID) {}

type fakeResults struct {
	mu      sync.Mutex
	results map[uuid.UUID]*model.Result
	saves   int
}

func newFakeResults() *fakeResults {
	return &fakeResults{results: make(map[uuid.UUID]*model.Result)}
}

func (f *fakeResults) Save(_ context.Context, res *model.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if _, ok := f.results[res.AttemptID]; ok {
		return nil // ON CONFLICT DO NOTHING
	}
	cp := *res
	f.results[res.AttemptID] = &cp
	return nil
}

func (f *fakeResults) GetByAttempt(_ context.Context, attemptID uuid.UUID) (*model.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.results[attemptID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (f *fakeResults) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

// flakyResults fails the first N saves, then behaves normally.
type flakyResults struct {
	*fakeResults
	mu       sync.Mutex
	failures int
}

func (f *flakyResults) Save(ctx context.Context, res *model.Result) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("result storage offline")
	}
	f.mu.Unlock()
	return f.fakeResults.Save(ctx, res)
}

type fakeExams struct {
	defs map[uuid.UUID]*model.ExamDefinition
}

func (f *fakeExams) GetDefinition(_ context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	def, ok := f.defs[examID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return def, nil
}

func (f *fakeExams) ListPublished(_ context.Context) ([]model.ExamSummary, error) {
	var out []model.ExamSummary
	for _, def := range f.defs {
		if def.Published {
			out = append(out, model.ExamSummary{
				ID:            def.ID,
				Title:         def.Title(),
				QuestionCount: def.QuestionCount(),
			})
		}
	}
	return out, nil
}

func (f *fakeExams) Paper(_ context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	def, ok := f.defs[examID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return def.PaperFor(), nil
}

type fakeClock struct {
	mu        sync.Mutex
	deadlines map[uuid.UUID]time.Time
	now       func() time.Time
	sets      int

	// fallback mirrors the durable deadline lookup the real store does on a
	// cache miss.
	fallback func(uuid.UUID) (time.Time, bool)
}

func newFakeClock(now func() time.Time) *fakeClock {
	return &fakeClock{deadlines: make(map[uuid.UUID]time.Time), now: now}
}

func (f *fakeClock) SetDeadline(_ context.Context, attemptID uuid.UUID, deadline time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	if _, ok := f.deadlines[attemptID]; ok {
		return clock.ErrDeadlineAlreadySet
	}
	f.deadlines[attemptID] = deadline
	return nil
}

func (f *fakeClock) Remaining(_ context.Context, attemptID uuid.UUID) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deadline, ok := f.deadlines[attemptID]
	if !ok {
		if f.fallback != nil {
			deadline, ok = f.fallback(attemptID)
		}
		if !ok {
			return 0, false, clock.ErrDeadlineNotFound
		}
	}
	left := deadline.Sub(f.now())
	if left <= 0 {
		return 0, true, nil
	}
	secs := int64((left + time.Second - 1) / time.Second)
	return secs, false, nil
}

func (f *fakeClock) Clear(_ context.Context, attemptID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deadlines, attemptID)
	return nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []model.AttemptEvent
}

func (f *fakeAudit) RecordFinalize(_ context.Context, ev model.AttemptEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeAudit) last() (model.AttemptEvent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.events) == 0 {
		return model.AttemptEvent{}, false
	}
	return f.events[len(f.events)-1], true
}

// ─── Test harness ──────────────────────────────────────────────────────

type env struct {
	svc      *SessionService
	attempts *fakeAttempts
	answers  *fakeAnswers
	results  *fakeResults
	exams    *fakeExams
	clock    *fakeClock
	audit    *fakeAudit
	def      *model.ExamDefinition

	mu  sync.Mutex
	now time.Time
}

func (e *env) Now() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *env) Advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func testExam() *model.ExamDefinition {
	def := &model.ExamDefinition{
		ID:              uuid.New(),
		Name:            "DCET",
		Year:            2023,
		DurationMinutes: 10,
		TotalMarks:      2,
		AccessTier:      model.AccessTierFree,
		Published:       true,
		Sections: []model.Section{
			{ID: uuid.New(), Name: "Main", Order: 1, MaxMarks: 2, Questions: []model.Question{
				{ID: uuid.New(), Number: 1, CorrectOption: model.OptionA, Marks: 1},
				{ID: uuid.New(), Number: 2, CorrectOption: model.OptionB, Marks: 1},
			}},
		},
	}
	return def
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		attempts: newFakeAttempts(),
		results:  newFakeResults(),
		audit:    &fakeAudit{},
		def:      testExam(),
		now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	e.answers = newFakeAnswers(e.attempts)
	e.clock = newFakeClock(e.Now)
	e.clock.fallback = func(id uuid.UUID) (time.Time, bool) {
		a, err := e.attempts.GetByID(context.Background(), id)
		if err != nil {
			return time.Time{}, false
		}
		return a.Deadline, true
	}
	e.exams = &fakeExams{defs: map[uuid.UUID]*model.ExamDefinition{e.def.ID: e.def}}

	e.svc = NewSessionService(e.attempts, e.answers, e.results, e.exams, e.clock, e.audit, zerolog.Nop())
	e.svc.now = e.Now
	return e
}

func (e *env) start(t *testing.T, userID int) *model.StartAttemptResponse {
	t.Helper()
	resp, err := e.svc.StartAttempt(context.Background(), userID, model.AccessTierFree, e.def.ID)
	if err != nil {
		t.Fatalf("StartAttempt: %v", err)
	}
	return resp
}

// ─── Tests ─────────────────────────────────────────────────────────────

func TestStartAttemptFixesDeadline(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)

	if resp.RemainingSeconds != 600 {
		t.Errorf("remaining = %d, want 600", resp.RemainingSeconds)
	}
	if resp.TotalQuestions != 2 || resp.TotalMarks != 2 {
		t.Errorf("paper stats = %d questions / %d marks, want 2/2", resp.TotalQuestions, resp.TotalMarks)
	}
	if e.clock.sets != 1 {
		t.Errorf("deadline set %d times, want 1", e.clock.sets)
	}

	ck, err := e.svc.Clock(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("Clock: %v", err)
	}
	if ck.Status != model.AttemptStatusRunning || ck.RemainingSeconds != 600 {
		t.Errorf("clock = %+v, want running/600", ck)
	}
}

func TestStartAttemptAvailabilityGates(t *testing.T) {
	e := newEnv(t)

	e.def.Published = false
	if _, err := e.svc.StartAttempt(context.Background(), 1, model.AccessTierFree, e.def.ID); !errors.Is(err, ErrExamNotAvailable) {
		t.Errorf("unpublished exam: err = %v, want ErrExamNotAvailable", err)
	}

	e.def.Published = true
	e.def.AccessTier = model.AccessTierPro
	if _, err := e.svc.StartAttempt(context.Background(), 1, model.AccessTierFree, e.def.ID); !errors.Is(err, ErrUpgradeRequired) {
		t.Errorf("pro exam on free plan: err = %v, want ErrUpgradeRequired", err)
	}
	if _, err := e.svc.StartAttempt(context.Background(), 1, model.AccessTierPro, e.def.ID); err != nil {
		t.Errorf("pro exam on pro plan: err = %v, want nil", err)
	}
}

func TestStartAttemptSingleRunning(t *testing.T) {
	e := newEnv(t)
	const workers = 20

	var wg sync.WaitGroup
	wins := make(chan uuid.UUID, workers)
	losses := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.svc.StartAttempt(context.Background(), 1, model.AccessTierFree, e.def.ID)
			if err != nil {
				losses <- err
				return
			}
			wins <- resp.AttemptID
		}()
	}
	wg.Wait()
	close(wins)
	close(losses)

	if len(wins) != 1 {
		t.Fatalf("winners = %d, want exactly 1", len(wins))
	}
	for err := range losses {
		if !errors.Is(err, repository.ErrAlreadyRunning) {
			t.Errorf("loser err = %v, want ErrAlreadyRunning", err)
		}
	}
}

func TestClockExpiresLazily(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)

	e.Advance(11 * time.Minute)

	ck, err := e.svc.Clock(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("Clock: %v", err)
	}
	if ck.Status != model.AttemptStatusExpired || ck.RemainingSeconds != 0 {
		t.Errorf("clock = %+v, want expired/0", ck)
	}

	// The read itself finalized the attempt.
	a, err := e.attempts.GetByID(context.Background(), resp.AttemptID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a.Status != model.AttemptStatusSubmitted || a.Trigger == nil || *a.Trigger != model.TriggerTimeout {
		t.Errorf("attempt = %+v, want submitted with timeout trigger", a)
	}
	if e.results.count() != 1 {
		t.Errorf("results stored = %d, want 1", e.results.count())
	}
	if ev, ok := e.audit.last(); !ok || ev.Trigger != model.TriggerTimeout {
		t.Errorf("audit event = %+v (present=%t), want timeout trigger", ev, ok)
	}
}

func TestClockNeverNegative(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)

	last := int64(601)
	for _, step := range []time.Duration{0, time.Minute, 5 * time.Minute, 3*time.Minute + 59*time.Second, time.Minute} {
		e.Advance(step)
		ck, err := e.svc.Clock(context.Background(), 1, resp.AttemptID)
		if err != nil {
			t.Fatalf("Clock: %v", err)
		}
		if ck.RemainingSeconds < 0 {
			t.Errorf("remaining went negative: %d", ck.RemainingSeconds)
		}
		if ck.RemainingSeconds > last {
			t.Errorf("remaining increased: %d after %d", ck.RemainingSeconds, last)
		}
		last = ck.RemainingSeconds
	}
}

func TestRecordAnswerOverwrites(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)
	q := e.def.Sections[0].Questions[0]

	for _, pick := range []model.OptionKey{model.OptionC, model.OptionA} {
		err := e.svc.RecordAnswer(context.Background(), 1, resp.AttemptID, model.SubmitAnswerRequest{
			QuestionID:     q.ID,
			SelectedOption: pick,
		})
		if err != nil {
			t.Fatalf("RecordAnswer(%s): %v", pick, err)
		}
	}

	saved, err := e.answers.Saved(context.Background(), resp.AttemptID)
	if err != nil {
		t.Fatalf("Saved: %v", err)
	}
	if len(saved) != 1 || saved[q.ID.String()] != "A" {
		t.Errorf("saved = %v, want single entry %s=A", saved, q.ID)
	}
}

func TestRecordAnswerUnknownQuestion(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)

	err := e.svc.RecordAnswer(context.Background(), 1, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID:     uuid.New(),
		SelectedOption: model.OptionA,
	})
	if !errors.Is(err, ErrQuestionNotInExam) {
		t.Errorf("err = %v, want ErrQuestionNotInExam", err)
	}
}

func TestRecordAnswerAfterExpiry(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)
	q := e.def.Sections[0].Questions[0]

	e.Advance(10*time.Minute + time.Second)

	err := e.svc.RecordAnswer(context.Background(), 1, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID:     q.ID,
		SelectedOption: q.CorrectOption,
	})
	if !errors.Is(err, ErrTimeExpired) {
		t.Fatalf("err = %v, want ErrTimeExpired", err)
	}

	// The late answer must not be scored.
	res, err := e.results.GetByAttempt(context.Background(), resp.AttemptID)
	if err != nil {
		t.Fatalf("GetByAttempt: %v", err)
	}
	if res.Score != 0 || res.AnsweredCount != 0 {
		t.Errorf("result = score %v / answered %d, want 0/0", res.Score, res.AnsweredCount)
	}
}

func TestSubmitExamScoresAnswers(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)
	q0 := e.def.Sections[0].Questions[0]

	// One question answered correctly, the other left blank.
	if err := e.svc.RecordAnswer(context.Background(), 1, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID: q0.ID, SelectedOption: q0.CorrectOption,
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	res, err := e.svc.SubmitExam(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	if res.Score != 1 || res.Percentage != 50.0 {
		t.Errorf("result = score %v / %v%%, want 1 / 50.0", res.Score, res.Percentage)
	}

	a, _ := e.attempts.GetByID(context.Background(), resp.AttemptID)
	if a.Trigger == nil || *a.Trigger != model.TriggerUserSubmit {
		t.Errorf("trigger = %v, want user-submit", a.Trigger)
	}
	if _, ok := e.clock.deadlines[resp.AttemptID]; ok {
		t.Error("deadline entry not cleared after finalize")
	}

	// Submitting again returns the stored snapshot, not a rescore.
	again, err := e.svc.SubmitExam(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("second SubmitExam: %v", err)
	}
	if again.Score != res.Score || e.results.count() != 1 {
		t.Errorf("second submit: score %v, stored %d, want same score and 1 stored", again.Score, e.results.count())
	}
}

func TestSubmitExamAfterDeadlineIsTimeout(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)

	e.Advance(11 * time.Minute)

	if _, err := e.svc.SubmitExam(context.Background(), 1, resp.AttemptID); err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	a, _ := e.attempts.GetByID(context.Background(), resp.AttemptID)
	if a.Trigger == nil || *a.Trigger != model.TriggerTimeout {
		t.Errorf("trigger = %v, want timeout", a.Trigger)
	}
	if a.PublicStatus() != model.AttemptStatusExpired {
		t.Errorf("public status = %s, want expired", a.PublicStatus())
	}
}

func TestConcurrentFinalizeSingleResult(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)
	q0 := e.def.Sections[0].Questions[0]
	if err := e.svc.RecordAnswer(context.Background(), 1, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID: q0.ID, SelectedOption: q0.CorrectOption,
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	const workers = 10
	var wg sync.WaitGroup
	scores := make(chan float64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.svc.SubmitExam(context.Background(), 1, resp.AttemptID)
			if err != nil {
				t.Errorf("SubmitExam: %v", err)
				return
			}
			scores <- res.Score
		}()
	}
	wg.Wait()
	close(scores)

	if e.results.count() != 1 {
		t.Errorf("results stored = %d, want exactly 1", e.results.count())
	}
	for score := range scores {
		if score != 1 {
			t.Errorf("score = %v, want 1 for every caller", score)
		}
	}
}

func TestFinalizeRecoversFromLostSnapshot(t *testing.T) {
	e := newEnv(t)
	flaky := &flakyResults{fakeResults: e.results, failures: 1}
	e.svc = NewSessionService(e.attempts, e.answers, flaky, e.exams, e.clock, e.audit, zerolog.Nop())
	e.svc.now = e.Now

	resp := e.start(t, 1)
	q0 := e.def.Sections[0].Questions[0]
	if err := e.svc.RecordAnswer(context.Background(), 1, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID: q0.ID, SelectedOption: q0.CorrectOption,
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	// The status flip commits, then the result write fails: the submit
	// errors and the attempt is left submitted with no snapshot.
	if _, err := e.svc.SubmitExam(context.Background(), 1, resp.AttemptID); err == nil {
		t.Fatal("SubmitExam succeeded despite the failed result write")
	}
	a, err := e.attempts.GetByID(context.Background(), resp.AttemptID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a.Status != model.AttemptStatusSubmitted {
		t.Fatalf("status = %s, want submitted", a.Status)
	}
	if e.results.count() != 0 {
		t.Fatalf("results stored = %d, want 0 before recovery", e.results.count())
	}

	// Once the store recovers, the next submit rescores from the durable
	// answers instead of waiting forever for a snapshot nobody wrote.
	res, err := e.svc.SubmitExam(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("SubmitExam after recovery: %v", err)
	}
	if res.Score != 1 || res.Percentage != 50.0 {
		t.Errorf("recovered result = score %v / %v%%, want 1 / 50.0", res.Score, res.Percentage)
	}
	if e.results.count() != 1 {
		t.Errorf("results stored = %d, want 1", e.results.count())
	}

	// Result reads heal the same way.
	res, err = e.svc.Result(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("Result after recovery: %v", err)
	}
	if res.Score != 1 {
		t.Errorf("score = %v, want 1", res.Score)
	}
}

func TestResultWhileRunning(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)

	if _, err := e.svc.Result(context.Background(), 1, resp.AttemptID); !errors.Is(err, ErrAttemptStillRunning) {
		t.Errorf("err = %v, want ErrAttemptStillRunning", err)
	}

	// Past the deadline the same read finalizes and answers.
	e.Advance(11 * time.Minute)
	res, err := e.svc.Result(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("Result after expiry: %v", err)
	}
	if res.Score != 0 {
		t.Errorf("score = %v, want 0", res.Score)
	}
}

func TestOwnershipEnforced(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)

	if _, err := e.svc.Clock(context.Background(), 2, resp.AttemptID); !errors.Is(err, ErrForbidden) {
		t.Errorf("Clock: err = %v, want ErrForbidden", err)
	}
	if _, err := e.svc.SubmitExam(context.Background(), 2, resp.AttemptID); !errors.Is(err, ErrForbidden) {
		t.Errorf("SubmitExam: err = %v, want ErrForbidden", err)
	}
	if _, err := e.svc.Clock(context.Background(), 1, uuid.New()); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown attempt: err = %v, want ErrNotFound", err)
	}
}

func TestPaperRestoresSavedAnswers(t *testing.T) {
	e := newEnv(t)
	resp := e.start(t, 1)
	q0 := e.def.Sections[0].Questions[0]
	if err := e.svc.RecordAnswer(context.Background(), 1, resp.AttemptID, model.SubmitAnswerRequest{
		QuestionID: q0.ID, SelectedOption: model.OptionC,
	}); err != nil {
		t.Fatalf("RecordAnswer: %v", err)
	}

	paper, err := e.svc.Paper(context.Background(), 1, resp.AttemptID)
	if err != nil {
		t.Fatalf("Paper: %v", err)
	}
	if len(paper.Questions) != 2 {
		t.Errorf("questions = %d, want 2", len(paper.Questions))
	}
	if paper.SavedAnswers[q0.ID.String()] != "C" {
		t.Errorf("saved answers = %v, want %s=C", paper.SavedAnswers, q0.ID)
	}
}
