// ABOUTME: Tests for Add and Delete command execution
// ABOUTME: Uses fake collaborators to check mutations, uploads, and destroy handling

package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harper/maillog/internal/imagehost"
	"github.com/harper/maillog/internal/models"
	"github.com/harper/maillog/internal/testutil"
)

const owner = "Owner <owner@example.com>"

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestProcessor(t *testing.T) (*Processor, *testutil.FakeMailbox, *testutil.FakeHost) {
	t.Helper()
	box := testutil.NewFakeMailbox()
	host := testutil.NewFakeHost()
	p, err := New(Options{Mailbox: box, Images: host})
	require.NoError(t, err)
	return p, box, host
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{DryRun: true})
	assert.NoError(t, err)
}

func TestAddPlain(t *testing.T) {
	p, _, host := newTestProcessor(t)
	state := NewState(nil)

	body := "[add] Saw a heron https://example.com/x visiting the lake"
	msg := testutil.PlainMessage("m1", owner, " Birds ", body, baseTime)

	res, err := p.Add(context.Background(), state, msg, body)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)

	e := res.Entry
	assert.Equal(t, "Saw a heron  visiting the lake", e.Text)
	assert.Equal(t, "saw a heron visiting the lake", e.NormalizedText)
	assert.Equal(t, "https://example.com/x", e.LinkURL)
	assert.Equal(t, "birds", e.Category)
	assert.Equal(t, baseTime.Unix(), e.CreatedTS)
	assert.Equal(t, "2024-05-01", e.Date)
	assert.Empty(t, e.PhotoURL)
	assert.Empty(t, e.PhotoPublicID)
	assert.Empty(t, host.Uploads)

	assert.True(t, state.Changed())
	assert.Equal(t, 1, state.Len())
}

func TestAddStripsEveryMarkerCaseInsensitively(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	state := NewState(nil)

	body := "[ADD] first [Add] second"
	res, err := p.Add(context.Background(), state, testutil.PlainMessage("m1", owner, "", body, baseTime), body)
	require.NoError(t, err)
	assert.Equal(t, "first  second", res.Entry.Text)
	assert.Equal(t, "", res.Entry.Category)
}

func TestAddWithPhoto(t *testing.T) {
	p, box, host := newTestProcessor(t)
	state := NewState(nil)

	body := "[add] heron photo"
	msg := testutil.PhotoMessage("m2", owner, "Birds", body, baseTime, "IMG_1.HEIC", "application/octet-stream", "att-1")
	box.AddMessage(msg)
	box.AddAttachment("m2", "att-1", []byte("image-bytes"))

	res, err := p.Add(context.Background(), state, msg, body)
	require.NoError(t, err)

	require.Len(t, host.Uploads, 1)
	upload := host.Uploads[0]
	assert.True(t, strings.HasPrefix(upload.PublicID, "email-log/m2-"), upload.PublicID)
	assert.Len(t, strings.TrimPrefix(upload.PublicID, "email-log/m2-"), 32)
	assert.Equal(t, []byte("image-bytes"), host.Data[upload.PublicID])

	assert.Equal(t, upload.PublicID, res.Entry.PhotoPublicID)
	assert.Equal(t, "https://img.test/"+upload.PublicID, res.Entry.PhotoURL)
}

func TestAddSkipsNonImageAttachments(t *testing.T) {
	p, _, host := newTestProcessor(t)
	state := NewState(nil)

	body := "[add] report"
	msg := testutil.PhotoMessage("m3", owner, "", body, baseTime, "report.pdf", "application/pdf", "att-1")

	res, err := p.Add(context.Background(), state, msg, body)
	require.NoError(t, err)
	assert.Empty(t, host.Uploads)
	assert.Empty(t, res.Entry.PhotoPublicID)
}

func TestAddUploadFailureIsFatal(t *testing.T) {
	p, box, host := newTestProcessor(t)
	host.UploadErr = errors.New("quota exceeded")
	state := NewState(nil)

	body := "[add] photo"
	msg := testutil.PhotoMessage("m4", owner, "", body, baseTime, "a.jpg", "image/jpeg", "att-1")
	box.AddAttachment("m4", "att-1", []byte("x"))

	_, err := p.Add(context.Background(), state, msg, body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.False(t, state.Changed())
	assert.Equal(t, 0, state.Len())
}

func TestAddWithDisabledHostSkipsPhoto(t *testing.T) {
	box := testutil.NewFakeMailbox()
	p, err := New(Options{Mailbox: box, Images: imagehost.NoopHost{}})
	require.NoError(t, err)
	state := NewState(nil)

	body := "[add] photo"
	msg := testutil.PhotoMessage("m4b", owner, "", body, baseTime, "a.jpg", "image/jpeg", "att-1")
	box.AddAttachment("m4b", "att-1", []byte("x"))

	res, err := p.Add(context.Background(), state, msg, body)
	require.NoError(t, err)
	assert.Equal(t, "photo", res.Entry.Text)
	assert.Empty(t, res.Entry.PhotoURL)
	assert.Empty(t, res.Entry.PhotoPublicID)
	assert.Equal(t, 1, state.Len())
}

func TestAddAttachmentFetchFailureIsFatal(t *testing.T) {
	p, _, host := newTestProcessor(t)
	state := NewState(nil)

	body := "[add] photo"
	msg := testutil.PhotoMessage("m5", owner, "", body, baseTime, "a.jpg", "image/jpeg", "missing")

	_, err := p.Add(context.Background(), state, msg, body)
	require.Error(t, err)
	assert.Empty(t, host.Uploads)
	assert.False(t, state.Changed())
}

func TestAddDuplicateMessageSuppressed(t *testing.T) {
	p, box, host := newTestProcessor(t)

	body := "[add] photo"
	msg := testutil.PhotoMessage("m6", owner, "", body, baseTime, "a.jpg", "image/jpeg", "att-1")
	box.AddAttachment("m6", "att-1", []byte("x"))

	state := NewState(nil)
	_, err := p.Add(context.Background(), state, msg, body)
	require.NoError(t, err)

	// A later run reprocesses the same message.
	rerun := NewState(state.Entries())
	res, err := p.Add(context.Background(), rerun, msg, body)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, rerun.Changed())
	assert.Equal(t, 1, rerun.Len())
	assert.Len(t, host.Uploads, 1)
}

func TestAddDeleteRoundTrip(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	other := models.NewEntry("other", 10, "", "keep me")
	state := NewState([]models.Entry{other})
	ctx := context.Background()

	addBody := "[add] Saw a heron visiting the lake"
	added, err := p.Add(ctx, state, testutil.PlainMessage("m1", owner, "", addBody, baseTime), addBody)
	require.NoError(t, err)

	res, err := p.Delete(ctx, state, "[delete]   saw a HERON\nvisiting the lake ")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.Equal(t, added.Entry.ID, res.Entry.ID)

	require.Equal(t, 1, state.Len())
	assert.Equal(t, other, state.Entries()[0])
}

func TestDeleteNewestWins(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	older := models.NewEntry("old", 100, "", "same text")
	newer := models.NewEntry("new", 200, "", "Same  Text")
	state := NewState([]models.Entry{newer, older})

	res, err := p.Delete(context.Background(), state, "[delete] same text")
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, newer.ID, res.Entry.ID)
	require.Equal(t, 1, state.Len())
	assert.Equal(t, older.ID, state.Entries()[0].ID)
}

func TestDeleteNoMatch(t *testing.T) {
	p, _, host := newTestProcessor(t)
	entries := []models.Entry{models.NewEntry("a", 1, "", "heron")}
	state := NewState(entries)

	res, err := p.Delete(context.Background(), state, "[DELETE] egret")
	require.NoError(t, err)
	assert.False(t, res.Matched)
	assert.Equal(t, "egret", res.Needle)
	assert.False(t, state.Changed())
	assert.Equal(t, entries, state.Entries())
	assert.Empty(t, host.Destroyed)
}

func TestDeleteDestroysPhoto(t *testing.T) {
	p, _, host := newTestProcessor(t)
	entry := models.NewEntry("a", 1, "", "heron")
	entry.PhotoPublicID = "email-log/a-123"
	state := NewState([]models.Entry{entry})

	res, err := p.Delete(context.Background(), state, "[delete] heron")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.NoError(t, res.DestroyErr)
	assert.Equal(t, []string{"email-log/a-123"}, host.Destroyed)
	assert.Equal(t, 0, state.Len())
}

func TestDeleteDestroyFailureStillRemoves(t *testing.T) {
	p, _, host := newTestProcessor(t)
	host.DestroyErr = errors.New("cloud down")
	entry := models.NewEntry("a", 1, "", "heron")
	entry.PhotoPublicID = "email-log/a-123"
	state := NewState([]models.Entry{entry})

	res, err := p.Delete(context.Background(), state, "[delete] heron")
	require.NoError(t, err)
	assert.True(t, res.Matched)
	assert.EqualError(t, res.DestroyErr, "cloud down")
	assert.Equal(t, 0, state.Len())
	assert.True(t, state.Changed())
}

func TestDeleteWithoutPhotoSkipsDestroy(t *testing.T) {
	p, _, host := newTestProcessor(t)
	state := NewState([]models.Entry{models.NewEntry("a", 1, "", "heron")})

	_, err := p.Delete(context.Background(), state, "[delete] heron")
	require.NoError(t, err)
	assert.Empty(t, host.Destroyed)
}

func TestDryRunSkipsRemoteCalls(t *testing.T) {
	p, err := New(Options{DryRun: true})
	require.NoError(t, err)

	entry := models.NewEntry("a", 1, "", "heron")
	entry.PhotoPublicID = "email-log/a-123"
	state := NewState([]models.Entry{entry})
	ctx := context.Background()

	body := "[add] photo"
	msg := testutil.PhotoMessage("m7", owner, "", body, baseTime, "a.jpg", "image/jpeg", "att-1")
	res, err := p.Add(ctx, state, msg, body)
	require.NoError(t, err)
	assert.Empty(t, res.Entry.PhotoPublicID)

	del, err := p.Delete(ctx, state, "[delete] heron")
	require.NoError(t, err)
	assert.True(t, del.Matched)
	assert.Equal(t, 1, state.Len())
}

func TestStateClone(t *testing.T) {
	state := NewState([]models.Entry{models.NewEntry("a", 1, "", "x")})
	clone := state.Clone()
	clone.add(models.NewEntry("b", 2, "", "y"))

	assert.Equal(t, 1, state.Len())
	assert.False(t, state.Changed())
	assert.Equal(t, 2, clone.Len())
}
