// Package service drives one submission end to end: validate the fields, run
// the per-file normalize/upload pipeline, compose the notification and hand
// it to the dispatcher.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sutcoin/business/internal/imaging"
	"github.com/sutcoin/business/internal/mailer"
	"github.com/sutcoin/business/internal/model"
	"github.com/sutcoin/business/internal/s3storage"
)

// Normalizer re-encodes one photo into its bounded form.
type Normalizer interface {
	Normalize(data []byte) ([]byte, error)
}

// Uploader stores normalized photos and mints retrieval links.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	PresignURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Dispatcher delivers the composed notification.
type Dispatcher interface {
	Send(ctx context.Context, msg model.Notification) error
}

// Orchestrator owns the lifecycle of one submission. Files are processed
// strictly sequentially; a failing file becomes a Skipped outcome and never
// aborts the loop.
type Orchestrator struct {
	normalizer Normalizer
	uploader   Uploader
	dispatcher Dispatcher
	composer   mailer.Composer
	presignTTL time.Duration
	log        *zap.Logger
}

// NewOrchestrator wires the submission pipeline.
func NewOrchestrator(normalizer Normalizer, uploader Uploader, dispatcher Dispatcher, composer mailer.Composer, presignTTL time.Duration, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		normalizer: normalizer,
		uploader:   uploader,
		dispatcher: dispatcher,
		composer:   composer,
		presignTTL: presignTTL,
		log:        log,
	}
}

// Process validates the fields, runs every file through the pipeline and
// dispatches the notification. The returned outcomes mirror the input file
// order. Errors are *ValidationError, *MailError, or an unclassified render
// failure; per-file failures never surface here.
func (o *Orchestrator) Process(ctx context.Context, fields model.SubmissionFields, files []model.UploadedFile) ([]model.UploadOutcome, error) {
	if err := validateFields(fields); err != nil {
		return nil, err
	}
	outcomes := make([]model.UploadOutcome, 0, len(files))
	for _, file := range files {
		outcomes = append(outcomes, o.processFile(ctx, file))
	}
	msg, err := o.composer.Compose(fields, outcomes)
	if err != nil {
		return outcomes, err
	}
	if err := o.dispatcher.Send(ctx, msg); err != nil {
		return outcomes, &MailError{Err: err}
	}
	return outcomes, nil
}

func (o *Orchestrator) processFile(ctx context.Context, file model.UploadedFile) model.UploadOutcome {
	outcome := model.UploadOutcome{OriginalName: file.OriginalName}

	normalized, err := o.normalizer.Normalize(file.Data)
	if err != nil {
		o.log.Warn("photo normalization failed, skipping file",
			zap.String("file", file.OriginalName), zap.Error(err))
		outcome.SkipReason = err.Error()
		return outcome
	}

	key := s3storage.ObjectKey(file.OriginalName)
	if err := o.uploader.Upload(ctx, key, normalized, imaging.ContentType); err != nil {
		o.log.Warn("photo upload failed, skipping file",
			zap.String("file", file.OriginalName), zap.String("key", key), zap.Error(err))
		outcome.SkipReason = err.Error()
		return outcome
	}

	stored := &model.StoredImage{Key: key, Size: int64(len(normalized))}
	url, err := o.uploader.PresignURL(ctx, key, o.presignTTL)
	if err != nil {
		// The object is in the bucket; report it stored without a link.
		o.log.Warn("presign failed for stored photo",
			zap.String("file", file.OriginalName), zap.String("key", key), zap.Error(err))
	} else {
		stored.URL = url
	}
	outcome.Stored = stored
	return outcome
}

func validateFields(fields model.SubmissionFields) error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	require("business_name", fields.BusinessName)
	require("address", fields.Address)
	require("phone", fields.Phone)
	require("discount_rate", fields.DiscountRate)
	require("map_link", fields.MapLink)
	require("description", fields.Description)
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
