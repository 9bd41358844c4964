package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sutcoin/business/internal/mailer"
	"github.com/sutcoin/business/internal/model"
)

type fakeNormalizer struct {
	failFor map[string]bool
	calls   int
}

func (f *fakeNormalizer) Normalize(data []byte) ([]byte, error) {
	f.calls++
	if f.failFor[string(data)] {
		return nil, errors.New("decode image: unknown format")
	}
	return append([]byte("norm:"), data...), nil
}

type fakeUploader struct {
	uploadErr  error
	presignErr error
	uploads    []string
	presigns   int
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ []byte, _ string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.uploads = append(f.uploads, key)
	return nil
}

func (f *fakeUploader) PresignURL(_ context.Context, key string, _ time.Duration) (string, error) {
	f.presigns++
	if f.presignErr != nil {
		return "", f.presignErr
	}
	return "https://s3.example.com/" + key + "?sig=abc", nil
}

type fakeDispatcher struct {
	err  error
	sent []model.Notification
}

func (f *fakeDispatcher) Send(_ context.Context, msg model.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func validFields() model.SubmissionFields {
	return model.SubmissionFields{
		BusinessName: "Corner Bakery",
		Address:      "12 Main St",
		Phone:        "+1 555 0100",
		DiscountRate: "10%",
		MapLink:      "https://maps.example.com/corner-bakery",
		Description:  "Fresh bread daily",
	}
}

func newOrchestrator(n *fakeNormalizer, u *fakeUploader, d *fakeDispatcher) *Orchestrator {
	return NewOrchestrator(n, u, d, mailer.Composer{Recipient: "ops@example.com"}, time.Hour, zap.NewNop())
}

func TestProcessMissingFieldsStopsEverything(t *testing.T) {
	normalizer := &fakeNormalizer{}
	uploader := &fakeUploader{}
	dispatcher := &fakeDispatcher{}
	orchestrator := newOrchestrator(normalizer, uploader, dispatcher)

	fields := validFields()
	fields.Phone = "  "
	fields.MapLink = ""

	_, err := orchestrator.Process(context.Background(), fields, []model.UploadedFile{
		{OriginalName: "a.jpg", Data: []byte("a")},
	})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, []string{"phone", "map_link"}, vErr.Missing)
	assert.Zero(t, normalizer.calls)
	assert.Empty(t, uploader.uploads)
	assert.Empty(t, dispatcher.sent)
}

func TestProcessNoAttachments(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	orchestrator := newOrchestrator(&fakeNormalizer{}, &fakeUploader{}, dispatcher)

	outcomes, err := orchestrator.Process(context.Background(), validFields(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
	require.Len(t, dispatcher.sent, 1)
	assert.Contains(t, dispatcher.sent[0].HTMLBody, "No images attached.")
}

func TestProcessTwoAttachmentsStored(t *testing.T) {
	uploader := &fakeUploader{}
	dispatcher := &fakeDispatcher{}
	orchestrator := newOrchestrator(&fakeNormalizer{}, uploader, dispatcher)

	outcomes, err := orchestrator.Process(context.Background(), validFields(), []model.UploadedFile{
		{OriginalName: "front.jpg", Data: []byte("a")},
		{OriginalName: "inside.png", Data: []byte("b")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	for _, outcome := range outcomes {
		assert.False(t, outcome.Skipped())
		assert.NotEmpty(t, outcome.Stored.URL)
	}
	assert.Len(t, uploader.uploads, 2)
	require.Len(t, dispatcher.sent, 1)
	assert.Contains(t, dispatcher.sent[0].HTMLBody, "Photos (2)")
	assert.Equal(t, 2, strings.Count(dispatcher.sent[0].HTMLBody, "<li>"))
}

func TestProcessFaultIsolationAcrossFiles(t *testing.T) {
	normalizer := &fakeNormalizer{failFor: map[string]bool{"bad": true}}
	uploader := &fakeUploader{}
	dispatcher := &fakeDispatcher{}
	orchestrator := newOrchestrator(normalizer, uploader, dispatcher)

	outcomes, err := orchestrator.Process(context.Background(), validFields(), []model.UploadedFile{
		{OriginalName: "broken.jpg", Data: []byte("bad")},
		{OriginalName: "fine.jpg", Data: []byte("good")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Skipped())
	assert.False(t, outcomes[1].Skipped())
	assert.Len(t, uploader.uploads, 1)
	require.Len(t, dispatcher.sent, 1)
	assert.Contains(t, dispatcher.sent[0].HTMLBody, "Photos (1)")
}

func TestProcessSingleFailingAttachmentStillNotifies(t *testing.T) {
	normalizer := &fakeNormalizer{failFor: map[string]bool{"bad": true}}
	dispatcher := &fakeDispatcher{}
	orchestrator := newOrchestrator(normalizer, &fakeUploader{}, dispatcher)

	outcomes, err := orchestrator.Process(context.Background(), validFields(), []model.UploadedFile{
		{OriginalName: "broken.jpg", Data: []byte("bad")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped())
	require.Len(t, dispatcher.sent, 1)
	assert.Contains(t, dispatcher.sent[0].HTMLBody, "No images attached.")
}

func TestProcessUploadFailureSkipsFile(t *testing.T) {
	uploader := &fakeUploader{uploadErr: errors.New("connection refused")}
	dispatcher := &fakeDispatcher{}
	orchestrator := newOrchestrator(&fakeNormalizer{}, uploader, dispatcher)

	outcomes, err := orchestrator.Process(context.Background(), validFields(), []model.UploadedFile{
		{OriginalName: "a.jpg", Data: []byte("a")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped())
	assert.Contains(t, outcomes[0].SkipReason, "connection refused")
	require.Len(t, dispatcher.sent, 1)
}

func TestProcessPresignFailureCountsAsStored(t *testing.T) {
	uploader := &fakeUploader{presignErr: fmt.Errorf("presign object: access denied")}
	dispatcher := &fakeDispatcher{}
	orchestrator := newOrchestrator(&fakeNormalizer{}, uploader, dispatcher)

	outcomes, err := orchestrator.Process(context.Background(), validFields(), []model.UploadedFile{
		{OriginalName: "a.jpg", Data: []byte("a")},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	require.False(t, outcomes[0].Skipped())
	assert.Empty(t, outcomes[0].Stored.URL)
	assert.Contains(t, dispatcher.sent[0].HTMLBody, "link unavailable")
}

func TestProcessMailFailureIsTerminal(t *testing.T) {
	uploader := &fakeUploader{}
	dispatcher := &fakeDispatcher{err: errors.New("smtp connect: timeout")}
	orchestrator := newOrchestrator(&fakeNormalizer{}, uploader, dispatcher)

	outcomes, err := orchestrator.Process(context.Background(), validFields(), []model.UploadedFile{
		{OriginalName: "a.jpg", Data: []byte("a")},
	})

	var mErr *MailError
	require.ErrorAs(t, err, &mErr)
	// Uploads happened before the dispatch failure flipped the result.
	assert.Len(t, uploader.uploads, 1)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Skipped())
}
