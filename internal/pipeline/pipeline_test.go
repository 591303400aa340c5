package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbakr/mailtriage/internal/config"
	"github.com/nbakr/mailtriage/internal/ews"
	"github.com/nbakr/mailtriage/internal/llm"
	"github.com/nbakr/mailtriage/internal/metrics"
	"github.com/nbakr/mailtriage/internal/rules"
	"github.com/nbakr/mailtriage/internal/store"
)

// ---- fakes ----

type fakeSource struct {
	inbox    []ews.Message
	sent     []ews.SentMessage
	inboxErr error
	sentErr  error
}

func (f *fakeSource) FetchInbox(ctx context.Context, start, end time.Time) ([]ews.Message, error) {
	return f.inbox, f.inboxErr
}

func (f *fakeSource) FetchSent(ctx context.Context, start, end time.Time) ([]ews.SentMessage, error) {
	return f.sent, f.sentErr
}

type fakeClassifier struct {
	label string
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, content string) string {
	f.calls++
	return f.label
}

type fakeExtractor struct {
	ext   *llm.Extraction
	err   error
	calls int
	vocab llm.Vocabulary
}

func (f *fakeExtractor) Extract(ctx context.Context, content string, vocab llm.Vocabulary) (*llm.Extraction, error) {
	f.calls++
	f.vocab = vocab
	return f.ext, f.err
}

type fakeDirectory struct {
	entries map[string]*ews.DirectoryEntry
	calls   int
}

func (f *fakeDirectory) ResolveName(ctx context.Context, email string) *ews.DirectoryEntry {
	f.calls++
	return f.entries[email]
}

// ---- fixtures ----

func testConfig() *config.Config {
	return &config.Config{
		EWSEmail:           "me@corp.example",
		TaskConfidenceMin:  30,
		TruncateChars:      2000,
		DefaultSyncDays:    3,
		ArchiveAfterDays:   3,
		DirectoryCacheSize: 8,
		DefaultProjects:    "Unknown",
		DefaultTags:        "follow-up,decision,report",
		DefaultDomains:     "Unknown",
	}
}

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestPipeline(t *testing.T, st *store.Store, src *fakeSource, cl *fakeClassifier, ex *fakeExtractor, dir *fakeDirectory) *Pipeline {
	t.Helper()
	d := Deps{
		Store:      st,
		Source:     src,
		Classifier: cl,
		Extractor:  ex,
		Rules:      rules.Default(),
		Metrics:    metrics.New(),
		Logger:     zerolog.Nop(),
	}
	if dir != nil {
		d.Directory = dir
	}
	return New(testConfig(), d)
}

func actionableExtraction() *llm.Extraction {
	return &llm.Extraction{
		IsTask:          "YES",
		ConfidenceScore: 80,
		TaskSummary:     "Review the budget",
		TaskDetail:      "Q3 budget needs sign-off",
		RequiredAction:  "Reply with approval",
		ReplyOptions: llm.ReplyOptions{
			Acknowledge: "Got it, will review.",
			Done:        "Approved.",
			Delegate:    "Forwarding to finance.",
		},
		Project:               "Atlas",
		Tags:                  []string{"decision"},
		EffortEstimateMinutes: 20,
		BusinessImpact:        "Blocks Q3 planning",
	}
}

func inboxMessage(id, subject, body string) ews.Message {
	return ews.Message{
		MessageID:  id,
		ItemID:     "item-" + id,
		ChangeKey:  "ck-" + id,
		Subject:    subject,
		Sender:     ews.Mailbox{Name: "Ann", Email: "ann@corp.example"},
		To:         []ews.Mailbox{{Email: "me@corp.example"}},
		TextBody:   body,
		ReceivedAt: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
	}
}

func window() (time.Time, time.Time) {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
}

// ---- tests ----

func TestRun_CreatesTaskFromActionableMessage(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Urgent: server migration", "We need the migration plan signed off."),
	}}
	ex := &fakeExtractor{ext: actionableExtraction()}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassAction}, ex, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 1, res.Analyzed)
	assert.Equal(t, 1, res.Created)

	task, err := st.GetTaskByMessageID("<m1@x>")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, store.StatusNew, task.Status)
	assert.Equal(t, "Review the budget", task.TaskSummary)
	assert.Equal(t, "high", task.Priority) // "urgent" in the subject
	assert.Equal(t, "Atlas", task.Project)
	assert.InDelta(t, 20.0/60.0, task.EffortEstimateHours, 0.001)
	assert.Equal(t, "Approved.", task.ReplyDone)
	assert.Empty(t, task.SuggestedReply)
	assert.Equal(t, `["me@corp.example"]`, task.ToRecipients)
	assert.Equal(t, time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC).UnixMilli(), task.ReceivedAt)
}

func TestRun_IdempotentIngestion(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Urgent: sign-off needed", "Please sign off today."),
	}}
	ex := &fakeExtractor{ext: actionableExtraction()}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassAction}, ex, nil)

	start, end := window()
	first, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Analyzed)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, ex.calls) // dedup short-circuits before the model

	tasks, err := st.ListTasks(store.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestRun_FYINeverInvokesModels(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "[FYI] Office move", "The office is moving to the third floor next month."),
	}}
	cl := &fakeClassifier{label: llm.ClassAction}
	ex := &fakeExtractor{ext: actionableExtraction()}
	p := newTestPipeline(t, st, src, cl, ex, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, cl.calls)
	assert.Equal(t, 0, ex.calls)

	sum, err := st.GetSummary("2026-01-01")
	require.NoError(t, err)
	require.NotNil(t, sum)
	snippets := sum.Snippets()
	require.Len(t, snippets, 1)
	assert.Equal(t, "[FYI] Office move", snippets[0].Subject)
	assert.Equal(t, "ann@corp.example", snippets[0].Sender)
}

func TestRun_ApproveForcesQuickAction(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "[APPROVE] Budget", "Please approve the attached budget."),
	}}
	ext := actionableExtraction()
	ext.TriageCategory = "deep_work"
	ext.EffortEstimateMinutes = 60
	cl := &fakeClassifier{label: llm.ClassInfo} // must not be consulted
	p := newTestPipeline(t, st, src, cl, &fakeExtractor{ext: ext}, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, cl.calls)

	task, err := st.GetTaskByMessageID("<m1@x>")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "quick_action", task.TriageCategory)
}

func TestRun_JunkDroppedButSenderRecorded(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Weekly newsletter", "Click unsubscribe to stop receiving this."),
	}}
	cl := &fakeClassifier{label: llm.ClassAction}
	ex := &fakeExtractor{ext: actionableExtraction()}
	p := newTestPipeline(t, st, src, cl, ex, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Analyzed)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 0, cl.calls)
	assert.Equal(t, 0, ex.calls)

	sum, err := st.GetSummary("2026-01-01")
	require.NoError(t, err)
	assert.Nil(t, sum) // junk leaves no digest entry

	person, err := st.GetPersonByEmail("ann@corp.example")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, 1, person.InteractionCount)
}

func TestRun_ExtractorRejectionDowngradesToDigest(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Question about the roadmap", "Could someone clarify the roadmap priorities for next quarter?"),
	}}
	ext := actionableExtraction()
	ext.ConfidenceScore = 10 // below the bar
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassAction}, &fakeExtractor{ext: ext}, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)

	sum, err := st.GetSummary("2026-01-01")
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Len(t, sum.Snippets(), 1)
}

func TestRun_ExtractorErrorDowngradesToDigest(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Please review the proposal", "The proposal document needs your comments by Friday."),
	}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassAction},
		&fakeExtractor{err: errors.New("model timeout")}, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)

	sum, err := st.GetSummary("2026-01-01")
	require.NoError(t, err)
	require.NotNil(t, sum)
}

func TestRun_CompletionDetection(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTask(&store.Task{
		EmailMessageID: "M1",
		Subject:        "Budget approval",
		TaskSummary:    "Approve budget",
	}))

	sentAt := time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC)
	src := &fakeSource{sent: []ews.SentMessage{
		{MessageID: "<r1@x>", InReplyTo: "M1", TextBody: "Done, approved.", SentAt: sentAt},
	}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AutoCompleted)

	task, err := st.GetTaskByMessageID("M1")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, store.StatusClosed, task.Status)
	assert.Equal(t, store.ActionAutoCompleted, task.ActionTaken)
	assert.NotZero(t, task.AutoCompletedAt)
	assert.Contains(t, task.CompletionEvidence, "2026-01-06 09:30")
	assert.Contains(t, task.CompletionEvidence, "Done, approved.")
}

func TestRun_CompletionFirstReplyWins(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTask(&store.Task{EmailMessageID: "M1", TaskSummary: "t"}))

	src := &fakeSource{sent: []ews.SentMessage{
		{MessageID: "<r1@x>", InReplyTo: "M1", TextBody: "Handled this morning.", SentAt: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)},
		{MessageID: "<r2@x>", InReplyTo: "M1", TextBody: "Also done.", SentAt: time.Date(2026, 1, 6, 8, 0, 0, 0, time.UTC)},
	}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AutoCompleted)

	task, err := st.GetTaskByMessageID("M1")
	require.NoError(t, err)
	assert.Contains(t, task.CompletionEvidence, "Handled this morning.")
}

func TestCompletionEvidence_MultibyteBodyStaysValid(t *testing.T) {
	body := strings.Repeat("تم إنجاز المهمة والرد على الطلب ", 10)
	ev := completionEvidence(body, time.Date(2026, 1, 6, 9, 30, 0, 0, time.UTC))

	assert.True(t, utf8.ValidString(ev))
	assert.Contains(t, ev, "2026-01-06 09:30")
}

func TestRun_NonCompletionReplyLeavesTaskOpen(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTask(&store.Task{EmailMessageID: "M1", TaskSummary: "t"}))

	src := &fakeSource{sent: []ews.SentMessage{
		{MessageID: "<r1@x>", InReplyTo: "M1", TextBody: "Still looking into it.", SentAt: time.Now()},
	}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.AutoCompleted)

	task, err := st.GetTaskByMessageID("M1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusNew, task.Status)
}

func TestRun_WatermarkPersistence(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	start, end := window()
	_, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Empty(t, st.GetSetting(store.SettingLastSyncTime, ""))

	_, err = p.Run(context.Background(), start, end, true)
	require.NoError(t, err)
	assert.Equal(t, end.Format(time.RFC3339), st.GetSetting(store.SettingLastSyncTime, ""))
}

func TestRun_ConnectivityErrorIsFatal(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inboxErr: ews.ErrNotConnected}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	start, end := window()
	_, err := p.Run(context.Background(), start, end, true)
	assert.ErrorIs(t, err, ews.ErrNotConnected)
	// No partial watermark after a failed run.
	assert.Empty(t, st.GetSetting(store.SettingLastSyncTime, ""))
}

func TestRun_NoMailboxConfigured(t *testing.T) {
	st := testStore(t)
	// An open task would otherwise send the run into the sent-mail scan.
	require.NoError(t, st.CreateTask(&store.Task{EmailMessageID: "<open@x>", TaskSummary: "pending"}))

	p := New(testConfig(), Deps{
		Store:      st,
		Classifier: &fakeClassifier{label: llm.ClassInfo},
		Extractor:  &fakeExtractor{},
		Rules:      rules.Default(),
		Metrics:    metrics.New(),
		Logger:     zerolog.Nop(),
	})

	start, end := window()
	_, err := p.Run(context.Background(), start, end, true)
	assert.ErrorIs(t, err, ErrNoMailbox)
	assert.Empty(t, st.GetSetting(store.SettingLastSyncTime, ""))
}

func TestRun_ContactUpsertAcrossCasings(t *testing.T) {
	st := testStore(t)
	m1 := inboxMessage("<m1@x>", "[FYI] First note", "Sharing the first note about the ongoing rollout effort.")
	m2 := inboxMessage("<m2@x>", "[FYI] Second note", "Sharing the second note about the ongoing rollout effort.")
	m2.Sender.Email = "ANN@CORP.EXAMPLE"
	src := &fakeSource{inbox: []ews.Message{m1, m2}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	start, end := window()
	_, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)

	people, err := st.ListPeople(store.PersonFilter{IncludeHidden: true})
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "ann@corp.example", people[0].Email)
	assert.Equal(t, 2, people[0].InteractionCount)
}

func TestRun_OperatorNeverEntersCircle(t *testing.T) {
	st := testStore(t)
	m := inboxMessage("<m1@x>", "[FYI] Note to self", "A note I sent to myself about the upcoming review cycle.")
	m.Sender = ews.Mailbox{Name: "Me", Email: "me@corp.example"}
	src := &fakeSource{inbox: []ews.Message{m}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	start, end := window()
	_, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)

	people, err := st.ListPeople(store.PersonFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestRun_DirectoryEnrichmentAndProjectMerge(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Urgent: approve headcount", "Need your approval on the headcount request."),
	}}
	dir := &fakeDirectory{entries: map[string]*ews.DirectoryEntry{
		"ann@corp.example": {Name: "Ann Ahmed", JobTitle: "Director", Department: "Finance", Office: "HQ-3", Manager: "Big Boss"},
	}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassAction},
		&fakeExtractor{ext: actionableExtraction()}, dir)

	start, end := window()
	_, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)

	person, err := st.GetPersonByEmail("ann@corp.example")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Equal(t, "Ann Ahmed", person.Name)
	assert.Equal(t, "Director", person.JobTitle)
	assert.Equal(t, "Finance", person.Department)
	assert.Equal(t, 1, dir.calls)

	projects := person.Projects()
	require.Len(t, projects, 1)
	assert.Equal(t, "Atlas", projects[0].Name)
	assert.Equal(t, "Contributor", projects[0].Role)
}

func TestRun_UnknownProjectNotMerged(t *testing.T) {
	st := testStore(t)
	ext := actionableExtraction()
	ext.Project = "Unknown"
	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Urgent: decision needed", "A decision is needed on the vendor contract."),
	}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassAction}, &fakeExtractor{ext: ext}, nil)

	start, end := window()
	_, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)

	person, err := st.GetPersonByEmail("ann@corp.example")
	require.NoError(t, err)
	require.NotNil(t, person)
	assert.Empty(t, person.Projects())
}

func TestRun_VocabularyFromSettings(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.SetJSONListSetting(store.SettingClassificationProjects, []string{"Atlas", "Borealis"}))

	src := &fakeSource{inbox: []ews.Message{
		inboxMessage("<m1@x>", "Please review the draft", "The draft contract needs your review before we send it out."),
	}}
	ex := &fakeExtractor{ext: actionableExtraction()}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassAction}, ex, nil)

	start, end := window()
	_, err := p.Run(context.Background(), start, end, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlas", "Borealis"}, ex.vocab.Projects)
	assert.Equal(t, []string{"follow-up", "decision", "report"}, ex.vocab.Tags) // config default
}

func TestRun_EndToEndScenario(t *testing.T) {
	st := testStore(t)
	fyi := inboxMessage("<a@x>", "[FYI] Update", "The platform migration completed over the weekend without issues.")
	approve := inboxMessage("<b@x>", "[APPROVE] Budget", "Please approve the Q3 budget attached to this message.")
	junk := inboxMessage("<c@x>", "Special webinar invitation", "Join our webinar invitation, unsubscribe below.")
	junk.Sender.Email = "marketing@vendor.example"

	ext := actionableExtraction()
	ext.EffortEstimateMinutes = 20
	ex := &fakeExtractor{ext: ext}
	src := &fakeSource{inbox: []ews.Message{fyi, approve, junk}}
	p := newTestPipeline(t, st, src, &fakeClassifier{label: llm.ClassInfo}, ex, nil)

	start, end := window()
	res, err := p.Run(context.Background(), start, end, true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Analyzed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, ex.calls) // only the APPROVE message reached the extractor

	task, err := st.GetTaskByMessageID("<b@x>")
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "quick_action", task.TriageCategory)

	sum, err := st.GetSummary("2026-01-01")
	require.NoError(t, err)
	require.NotNil(t, sum)
	require.Len(t, sum.Snippets(), 1) // FYI only; junk left no trace
	assert.Equal(t, "[FYI] Update", sum.Snippets()[0].Subject)

	// A later reply with completion language closes the APPROVE task.
	src.inbox = nil
	src.sent = []ews.SentMessage{
		{MessageID: "<r@x>", InReplyTo: "<b@x>", TextBody: "Approved, done.", SentAt: end.Add(time.Hour)},
	}
	res, err = p.Run(context.Background(), start, end.Add(2*time.Hour), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AutoCompleted)

	task, err = st.GetTaskByMessageID("<b@x>")
	require.NoError(t, err)
	assert.Equal(t, store.StatusClosed, task.Status)
}

func TestArchive(t *testing.T) {
	st := testStore(t)
	require.NoError(t, st.CreateTask(&store.Task{
		EmailMessageID:   "M1",
		TaskSummary:      "t",
		ReplyAcknowledge: "ack draft",
	}))
	require.NoError(t, st.UpdateTaskStatus(1, store.StatusClosed, store.ActionDone))

	// Backdate the close beyond the threshold.
	old := time.Now().AddDate(0, 0, -10).UnixMilli()
	_, err := st.DB().Exec(`UPDATE tasks SET status_updated_at = ? WHERE id = 1`, old)
	require.NoError(t, err)

	p := newTestPipeline(t, st, &fakeSource{}, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)
	n, err := p.Archive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	task, err := st.GetTaskByMessageID("M1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusArchived, task.Status)
	assert.Empty(t, task.ReplyAcknowledge)
}

func TestSyncWindow(t *testing.T) {
	st := testStore(t)
	p := newTestPipeline(t, st, &fakeSource{}, &fakeClassifier{label: llm.ClassInfo}, &fakeExtractor{}, nil)

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	start, end := p.SyncWindow(now)
	assert.Equal(t, now.AddDate(0, 0, -3), start)
	assert.Equal(t, now, end)

	mark := time.Date(2026, 1, 9, 6, 0, 0, 0, time.UTC)
	require.NoError(t, st.SetSetting(store.SettingLastSyncTime, mark.Format(time.RFC3339)))
	start, _ = p.SyncWindow(now)
	assert.True(t, start.Equal(mark))
}
