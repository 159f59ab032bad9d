package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"osce-station/internal/station"
)

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

// Store persists finished reports.
type Store interface {
	Save(ctx context.Context, r *station.FeedbackReport) error
}

// Publisher archives a finished report and delivers it to the examiner.
// Every collaborator is optional.
type Publisher struct {
	store    Store
	renderer station.PDFRenderer
	tg       TelegramClient
	chatID   int64
	logger   *slog.Logger
}

func NewPublisher(store Store, renderer station.PDFRenderer, tg TelegramClient, examinerChatID int64, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:    store,
		renderer: renderer,
		tg:       tg,
		chatID:   examinerChatID,
		logger:   logger,
	}
}

// Publish runs every configured step and returns their joined errors.
func (p *Publisher) Publish(ctx context.Context, r *station.FeedbackReport) error {
	var errs []error

	if p.store != nil {
		if err := p.store.Save(ctx, r); err != nil {
			errs = append(errs, fmt.Errorf("archive report: %w", err))
		}
	}

	if p.tg != nil && p.chatID != 0 {
		if err := p.tg.SendMessage(ctx, p.chatID, r.Text()); err != nil {
			errs = append(errs, fmt.Errorf("send summary: %w", err))
		}
		if p.renderer != nil {
			if err := p.sendPDF(ctx, r); err != nil {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (p *Publisher) sendPDF(ctx context.Context, r *station.FeedbackReport) error {
	data, err := p.renderer.RenderPDF(r)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	fileName := fmt.Sprintf("report_%s.pdf", r.SessionID.String())
	if err := p.tg.SendDocument(ctx, p.chatID, data, fileName); err != nil {
		return fmt.Errorf("send pdf: %w", err)
	}
	return nil
}

// OnComplete is a station.CompletionHook. Failures are logged only.
func (p *Publisher) OnComplete(ctx context.Context, s *station.Session, r *station.FeedbackReport) {
	if r == nil {
		return
	}
	if err := p.Publish(ctx, r); err != nil {
		p.logger.Error("failed to publish report", "session_id", s.ID.String(), "error", err)
		return
	}
	p.logger.Info("report published", "session_id", s.ID.String(), "case_id", r.CaseID)
}
