// ABOUTME: End-to-end tests of ingestion runs against fake collaborators
// ABOUTME: Covers ordering, marking, persistence rules, and fatal paths

package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/maillog/internal/classify"
	"github.com/harper/maillog/internal/command"
	"github.com/harper/maillog/internal/db"
	"github.com/harper/maillog/internal/metrics"
	"github.com/harper/maillog/internal/models"
	"github.com/harper/maillog/internal/storage"
	tu "github.com/harper/maillog/internal/testutil"
)

const (
	allowed = "owner@example.com"
	owner   = "Owner <owner@example.com>"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// countingStore wraps a JSONStore and counts writes.
type countingStore struct {
	*storage.JSONStore
	persists int
	err      error
}

func (s *countingStore) Persist(entries []models.Entry) error {
	if s.err != nil {
		return s.err
	}
	s.persists++
	return s.JSONStore.Persist(entries)
}

type fakeJournal struct {
	rows []db.Outcome
	err  error
}

func (j *fakeJournal) RecordOutcome(ctx context.Context, o db.Outcome) error {
	if j.err != nil {
		return j.err
	}
	j.rows = append(j.rows, o)
	return nil
}

type harness struct {
	runner *Runner
	box    *tu.FakeMailbox
	host   *tu.FakeHost
	store  *countingStore
	path   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	box := tu.NewFakeMailbox()
	host := tu.NewFakeHost()
	proc, err := command.New(command.Options{Mailbox: box, Images: host})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "data", "entries.json")
	store := &countingStore{JSONStore: storage.NewJSONStore(path)}

	return &harness{
		runner: &Runner{
			Mailbox:     box,
			Processor:   proc,
			Store:       store,
			AllowedFrom: allowed,
			Query:       "is:unread in:inbox",
			MaxMessages: 25,
		},
		box:   box,
		host:  host,
		store: store,
		path:  path,
	}
}

func (h *harness) seed(t *testing.T, entries ...models.Entry) {
	t.Helper()
	require.NoError(t, storage.NewJSONStore(h.path).Persist(entries))
}

func (h *harness) load(t *testing.T) []models.Entry {
	t.Helper()
	entries, err := storage.NewJSONStore(h.path).Load()
	require.NoError(t, err)
	return entries
}

func TestScenarioAddWithLink(t *testing.T) {
	h := newHarness(t)
	h.box.AddMessage(tu.PlainMessage("m1", owner, "Birds",
		"[add] Saw a heron https://example.com/x visiting the lake", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Added)
	assert.True(t, report.Persisted)
	assert.Equal(t, 1, h.store.persists)

	entries := h.load(t)
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "https://example.com/x", e.LinkURL)
	assert.Equal(t, "Saw a heron  visiting the lake", e.Text)
	assert.Equal(t, "", e.PhotoURL)
	assert.Equal(t, "birds", e.Category)
	assert.Equal(t, models.EntryIDForMessage("m1"), e.ID)

	assert.Equal(t, []string{"m1"}, h.box.Modified)
	assert.False(t, h.box.Unread["m1"])
	assert.Equal(t, []string{"Label_processed-email-log"}, h.box.Labels["m1"])
}

func TestScenarioDeleteMatching(t *testing.T) {
	h := newHarness(t)
	target := models.NewEntry("old-1", baseTime.Add(-48*time.Hour).Unix(), "", "Saw a heron visiting the lake")
	keep1 := models.NewEntry("old-2", baseTime.Add(-24*time.Hour).Unix(), "", "egret")
	keep2 := models.NewEntry("old-3", baseTime.Add(-72*time.Hour).Unix(), "", "duck")
	h.seed(t, keep2, target, keep1)

	h.box.AddMessage(tu.PlainMessage("m2", owner, "", "[delete] Saw a heron visiting the lake", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, h.host.Destroyed)

	entries := h.load(t)
	require.Len(t, entries, 2)
	assert.Equal(t, keep1.ID, entries[0].ID)
	assert.Equal(t, keep2.ID, entries[1].ID)
	assert.Equal(t, []string{"m2"}, h.box.Modified)
}

func TestScenarioForeignSender(t *testing.T) {
	h := newHarness(t)
	h.box.AddMessage(tu.PlainMessage("m3", "stranger@example.org", "", "[add] test", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Outcomes[classify.OutOfScope])
	assert.Equal(t, 0, report.Added)
	assert.False(t, report.Persisted)
	assert.Equal(t, 0, h.store.persists)
	assert.Equal(t, []string{"m3"}, h.box.Modified)

	_, err = os.Stat(h.path)
	assert.True(t, os.IsNotExist(err), "document should not be written")
}

func TestScenarioAmbiguous(t *testing.T) {
	h := newHarness(t)
	h.seed(t, models.NewEntry("old", 1, "", "x"))
	before, err := os.ReadFile(h.path)
	require.NoError(t, err)

	h.box.AddMessage(tu.PlainMessage("m4", owner, "", "[add] x [delete] x", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Messages, 1)
	assert.Equal(t, classify.Ambiguous, report.Messages[0].Outcome)
	assert.Equal(t, "ignored-ambiguous", report.Messages[0].Outcome.String())
	assert.Equal(t, []string{"m4"}, h.box.Modified)
	assert.Equal(t, 0, h.store.persists)

	after, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNoCommandMarkedProcessed(t *testing.T) {
	h := newHarness(t)
	h.box.AddMessage(tu.PlainMessage("m5", owner, "", "just saying hi", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Outcomes[classify.NoCommand])
	assert.Equal(t, []string{"m5"}, h.box.Modified)
	assert.Equal(t, 0, h.store.persists)
}

func TestDeleteNoMatchLeavesDocumentUnwritten(t *testing.T) {
	h := newHarness(t)
	h.seed(t, models.NewEntry("old", 1, "", "heron"))
	before, err := os.ReadFile(h.path)
	require.NoError(t, err)

	h.box.AddMessage(tu.PlainMessage("m6", owner, "", "[delete] egret", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.DeleteMisses)
	assert.False(t, report.Changed)
	assert.Equal(t, 0, h.store.persists)

	after, err := os.ReadFile(h.path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestOldestFirstProcessing(t *testing.T) {
	h := newHarness(t)
	// Added then deleted in the same run only works oldest-first.
	h.box.AddMessage(tu.PlainMessage("later", owner, "", "[delete] heron", baseTime.Add(time.Hour)))
	h.box.AddMessage(tu.PlainMessage("earlier", owner, "", "[add] heron", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"earlier", "later"}, h.box.Modified)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, h.load(t))
	assert.Equal(t, 1, h.store.persists)
}

func TestPersistOrderNewestFirst(t *testing.T) {
	h := newHarness(t)
	h.seed(t, models.NewEntry("seed", baseTime.Add(-time.Hour).Unix(), "", "seed"))
	for i, id := range []string{"a", "b", "c"} {
		h.box.AddMessage(tu.PlainMessage(id, owner, "", "[add] item "+id, baseTime.Add(time.Duration(i)*time.Minute)))
	}

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	entries := h.load(t)
	require.Len(t, entries, 4)
	for i := 0; i+1 < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i].CreatedTS, entries[i+1].CreatedTS)
	}
	assert.Equal(t, "item c", entries[0].Text)
}

func TestMaxMessagesBoundsBatch(t *testing.T) {
	h := newHarness(t)
	h.runner.MaxMessages = 2
	for i, id := range []string{"a", "b", "c"} {
		h.box.AddMessage(tu.PlainMessage(id, owner, "", "hello", baseTime.Add(time.Duration(i)*time.Minute)))
	}

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, []string{"b", "c"}, h.box.Modified)
	assert.True(t, h.box.Unread["a"])
}

func TestZeroMaxMessagesUsesDefault(t *testing.T) {
	h := newHarness(t)
	h.runner.MaxMessages = 0
	for i := 0; i < DefaultMaxMessages+1; i++ {
		id := fmt.Sprintf("m%02d", i)
		h.box.AddMessage(tu.PlainMessage(id, owner, "", "hello", baseTime.Add(time.Duration(i)*time.Minute)))
	}

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxMessages, report.Fetched)
	assert.True(t, h.box.Unread["m00"])
}

func TestNoMessages(t *testing.T) {
	h := newHarness(t)

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Fetched)
	assert.Equal(t, 0, h.store.persists)
	assert.Equal(t, []string{"is:unread in:inbox"}, h.box.Queries)
}

func TestReprocessedAddSuppressed(t *testing.T) {
	h := newHarness(t)
	msg := tu.PhotoMessage("m7", owner, "", "[add] heron", baseTime, "a.jpg", "image/jpeg", "att")
	h.box.AddMessage(msg)
	h.box.AddAttachment("m7", "att", []byte("img"))

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	// Simulate a crash before marking: the message is unread again.
	h.box.Unread["m7"] = true
	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 0, report.Added)
	assert.Len(t, h.host.Uploads, 1)
	assert.Len(t, h.load(t), 1)
	assert.Equal(t, 1, h.store.persists)
}

func TestFetchFailureAbortsWithoutPersist(t *testing.T) {
	h := newHarness(t)
	h.box.AddMessage(tu.PlainMessage("first", owner, "", "[add] one", baseTime))
	h.box.AddMessage(tu.PlainMessage("second", owner, "", "[add] two", baseTime.Add(time.Minute)))
	h.box.GetErr["second"] = errors.New("backend unavailable")

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")

	// The first message stays marked; nothing was written.
	assert.Equal(t, []string{"first"}, h.box.Modified)
	assert.Equal(t, 0, h.store.persists)
}

func TestUploadFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.host.UploadErr = errors.New("upload refused")
	h.box.AddMessage(tu.PhotoMessage("m8", owner, "", "[add] photo", baseTime, "a.png", "image/png", "att"))
	h.box.AddAttachment("m8", "att", []byte("img"))

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.box.Modified)
	assert.Equal(t, 0, h.store.persists)
}

func TestDestroyFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	entry := models.NewEntry("old", 1, "", "heron")
	entry.PhotoPublicID = "email-log/old-1"
	h.seed(t, entry)
	h.host.DestroyErr = errors.New("cloud down")
	m := metrics.New()
	h.runner.Metrics = m

	h.box.AddMessage(tu.PlainMessage("m9", owner, "", "[delete] heron", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, h.load(t))
	assert.Equal(t, []string{"email-log/old-1"}, h.host.Destroyed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DestroyFailures))
}

func TestCorruptDocumentFailsFast(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(h.path), 0755))
	require.NoError(t, os.WriteFile(h.path, []byte("{not json"), 0644))
	h.box.AddMessage(tu.PlainMessage("m10", owner, "", "[add] x", baseTime))

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrCorruptDocument)
	assert.Empty(t, h.box.Modified)
	assert.Empty(t, h.box.Queries)
}

func TestPersistFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("disk full")
	h.box.AddMessage(tu.PlainMessage("m11", owner, "", "[add] x", baseTime))

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, []string{"m11"}, h.box.Modified)
}

func TestLabelFailuresAreFatal(t *testing.T) {
	h := newHarness(t)
	h.box.EnsureErr = errors.New("no scope")
	h.box.AddMessage(tu.PlainMessage("m12", owner, "", "[add] x", baseTime))

	_, err := h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, h.box.Queries)

	h = newHarness(t)
	h.box.ModifyErr = errors.New("rate limited")
	h.box.AddMessage(tu.PlainMessage("m13", owner, "", "[add] x", baseTime))

	_, err = h.runner.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, h.store.persists)
}

func TestJournalAndMetrics(t *testing.T) {
	h := newHarness(t)
	journal := &fakeJournal{}
	m := metrics.New()
	h.runner.Journal = journal
	h.runner.Metrics = m

	var seen []string
	h.runner.OnMessage = func(res MessageResult) { seen = append(seen, res.MessageID) }

	h.box.AddMessage(tu.PlainMessage("a", owner, "", "[add] heron", baseTime))
	h.box.AddMessage(tu.PlainMessage("b", "x@y.z", "", "[add] heron", baseTime.Add(time.Minute)))
	h.box.AddMessage(tu.PlainMessage("c", owner, "", "[delete] nothing", baseTime.Add(2*time.Minute)))

	_, err := h.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, seen)
	require.Len(t, journal.rows, 3)
	assert.Equal(t, "add", journal.rows[0].Outcome)
	assert.Equal(t, models.EntryIDForMessage("a"), journal.rows[0].EntryID)
	assert.Equal(t, "out-of-scope", journal.rows[1].Outcome)
	assert.Equal(t, "no match: nothing", journal.rows[2].Detail)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Messages.WithLabelValues("add")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Messages.WithLabelValues("out-of-scope")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EntriesAdded))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Entries))
	assert.NotZero(t, testutil.ToFloat64(m.LastRunSuccess))
}

func TestJournalFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.runner.Journal = &fakeJournal{err: errors.New("locked")}
	h.box.AddMessage(tu.PlainMessage("m14", owner, "", "[add] x", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Persisted)
}

func TestDryRun(t *testing.T) {
	h := newHarness(t)
	proc, err := command.New(command.Options{DryRun: true})
	require.NoError(t, err)
	h.runner.Processor = proc
	h.runner.DryRun = true
	journal := &fakeJournal{}
	h.runner.Journal = journal

	h.box.AddMessage(tu.PlainMessage("m15", owner, "", "[add] heron", baseTime))

	report, err := h.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.True(t, report.Changed)
	assert.False(t, report.Persisted)
	assert.Empty(t, h.box.Modified)
	assert.True(t, h.box.Unread["m15"])
	assert.Empty(t, journal.rows)
	assert.Equal(t, 0, h.store.persists)
}

func TestCancelledContext(t *testing.T) {
	h := newHarness(t)
	h.box.AddMessage(tu.PlainMessage("m16", owner, "", "[add] x", baseTime))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.box.Modified)
}
