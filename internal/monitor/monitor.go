// Package monitor drives the poll loop: for every block window it collects
// newly created ballots from each governance contract and notifies them in
// block order.
package monitor

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/dmagro/poagov/internal/ballot"
	"github.com/dmagro/poagov/internal/chain"
	"github.com/dmagro/poagov/internal/contract"
	"github.com/dmagro/poagov/internal/notify"
)

// Governance reads ballots from the governance contracts.
type Governance interface {
	BallotCreatedLogs(ctx context.Context, d contract.Descriptor, w chain.Window) ([]ballot.CreatedLog, error)
	Details(ctx context.Context, d contract.Descriptor, ballotID *big.Int) (ballot.Details, error)
}

type Notifier interface {
	Notify(ctx context.Context, n *notify.Notification)
}

// Recorder receives loop progress.
type Recorder interface {
	WindowScanned(start, stop uint64)
	BallotNotified(kind, version, ballotType string)
}

type Config struct {
	Network   string
	Endpoint  string
	Contracts []contract.Descriptor
	Start     chain.StartBlock
	BlockTime time.Duration
	// NotificationLimit stops the run after that many notifications. Zero
	// means no limit.
	NotificationLimit int
}

// Summary describes what a run covered.
type Summary struct {
	FirstBlock   *uint64
	LastBlock    *uint64
	Windows      int
	Notified     []*notify.Notification
	LimitReached bool
}

type Option func(*Monitor)

func WithLogger(log *zap.Logger) Option {
	return func(m *Monitor) { m.log = log }
}

func WithRecorder(r Recorder) Option {
	return func(m *Monitor) { m.recorder = r }
}

type Monitor struct {
	cfg      Config
	src      chain.BlockSource
	gov      Governance
	notifier Notifier
	recorder Recorder
	log      *zap.Logger
}

func New(cfg Config, src chain.BlockSource, gov Governance, notifier Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		cfg:      cfg,
		src:      src,
		gov:      gov,
		notifier: notifier,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run polls until ctx is cancelled, the notification limit is reached, or an
// error occurs. Cancellation is a normal exit and returns a nil error. It is
// observed only between windows: a window that has been handed out is always
// collected and notified in full.
func (m *Monitor) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	it, err := chain.New(ctx, m.src, m.cfg.Start, m.cfg.BlockTime)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return sum, nil
		}
		return sum, errors.Wrap(err, "failed to initialize block windows")
	}

	// In-flight window work ignores cancellation.
	work := context.WithoutCancel(ctx)

	for w, err := range it.Windows(ctx) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return sum, nil
			}
			return sum, errors.Wrap(err, "failed to advance block window")
		}

		notes, err := m.collect(work, w)
		if err != nil {
			return sum, err
		}

		for _, n := range notes {
			m.notifier.Notify(work, n)
			sum.Notified = append(sum.Notified, n)
			if m.recorder != nil {
				m.recorder.BallotNotified(n.Contract.Kind.String(), n.Contract.Version.String(), n.Log.BallotType.String())
			}
			if m.cfg.NotificationLimit > 0 && len(sum.Notified) >= m.cfg.NotificationLimit {
				m.log.Info("notification limit reached", zap.Int("limit", m.cfg.NotificationLimit))
				sum.LimitReached = true
				sum.scanned(w)
				return sum, nil
			}
		}

		sum.scanned(w)
		if m.recorder != nil {
			m.recorder.WindowScanned(w.Start, w.Stop)
		}
		m.log.Info("finished checking blocks",
			zap.Uint64("from", w.Start),
			zap.Uint64("to", w.Stop),
			zap.Int("ballots", len(notes)),
		)
	}

	return sum, nil
}

// collect gathers the window's ballots from every contract, ordered by
// block number. Ballots in the same block keep contract order.
func (m *Monitor) collect(ctx context.Context, w chain.Window) ([]*notify.Notification, error) {
	var notes []*notify.Notification
	for _, d := range m.cfg.Contracts {
		logs, err := m.gov.BallotCreatedLogs(ctx, d, w)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to fetch ballots from %s in blocks %s", d, w)
		}
		for _, l := range logs {
			details, err := m.gov.Details(ctx, d, l.BallotID)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read ballot %s from %s", l.BallotID, d)
			}
			m.log.Debug("decoded ballot",
				zap.Stringer("contract", d),
				zap.Stringer("ballot_id", l.BallotID),
				zap.Uint64("block", l.BlockNumber),
			)
			notes = append(notes, &notify.Notification{
				Network:  m.cfg.Network,
				Endpoint: m.cfg.Endpoint,
				Contract: d,
				Log:      l,
				Details:  details,
			})
		}
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Log.BlockNumber < notes[j].Log.BlockNumber
	})
	return notes, nil
}

func (s *Summary) scanned(w chain.Window) {
	if s.FirstBlock == nil {
		start := w.Start
		s.FirstBlock = &start
	}
	stop := w.Stop
	s.LastBlock = &stop
	s.Windows++
}
