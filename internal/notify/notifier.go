package notify

import (
	"context"

	"go.uber.org/zap"
)

// Recorder receives email delivery outcomes.
type Recorder interface {
	EmailSent(err error)
}

type Options struct {
	// LogEmails logs the full email body of every notification.
	LogEmails bool
	// Mailer enables email delivery when non-nil.
	Mailer     Mailer
	Recipients []string
	Recorder   Recorder
}

type Notifier struct {
	log  *zap.Logger
	opts Options
}

func NewNotifier(log *zap.Logger, opts Options) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{log: log, opts: opts}
}

// Notify logs n and, when email is enabled, mails it to every recipient.
// Email failures are logged as warnings and never returned.
func (n *Notifier) Notify(ctx context.Context, note *Notification) {
	n.log.Info("new ballot",
		zap.String("network", note.Network),
		zap.String("contract", note.Contract.String()),
		zap.Stringer("ballot_type", note.Log.BallotType),
		zap.Stringer("ballot_id", note.Log.BallotID),
		zap.Uint64("block", note.Log.BlockNumber),
	)

	body := note.EmailText()
	if n.opts.LogEmails {
		n.log.Info("notification email", zap.String("subject", note.Subject()), zap.String("body", body))
	}

	if n.opts.Mailer == nil {
		return
	}
	if len(n.opts.Recipients) == 0 {
		n.log.Warn("email notifications enabled but no recipients configured")
		return
	}

	results := deliverAll(ctx, n.opts.Recipients, func(ctx context.Context, to string) error {
		return n.opts.Mailer.Send(ctx, to, note.Subject(), body)
	})
	for _, r := range results {
		if n.opts.Recorder != nil {
			n.opts.Recorder.EmailSent(r.Err)
		}
		if r.Err != nil {
			n.log.Warn("failed to send email", zap.String("recipient", r.Recipient), zap.Error(r.Err))
			continue
		}
		n.log.Debug("email sent", zap.String("recipient", r.Recipient))
	}
}
