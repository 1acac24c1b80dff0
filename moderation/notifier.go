package moderation

import (
	"context"

	"github.com/kagura-bot/kagura/models"
)

// LogNotifier is the hook through which the coordinators tell the rendering
// layer that a ledger row was written or changed, so the corresponding log
// message or forum post can be created or updated. Rendering itself is out
// of scope here; implementations live with the chat-facing code.
//
// Notifier failures never fail the operation that triggered them.
type LogNotifier interface {
	CaseLogged(ctx context.Context, c *models.Case) error
	ReportLogged(ctx context.Context, r *models.Report) error
}

type NullNotifier struct{}

var _ LogNotifier = NullNotifier{}

func (NullNotifier) CaseLogged(ctx context.Context, c *models.Case) error {
	return nil
}

func (NullNotifier) ReportLogged(ctx context.Context, r *models.Report) error {
	return nil
}
