package moderation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kagura-bot/kagura/ledger"
)

// ExpirationScheduler periodically scans the case ledger for timed actions
// that have run out and resolves them through the normal DeleteCase path.
// One instance per deployment is assumed; running several would need an
// external leader lock around each tick.
type ExpirationScheduler struct {
	Cases    *CaseCoordinator
	Ledger   *ledger.Store
	Logger   *slog.Logger
	Interval time.Duration

	exit chan struct{}
	wg   sync.WaitGroup
}

func NewExpirationScheduler(cases *CaseCoordinator, store *ledger.Store, logger *slog.Logger) *ExpirationScheduler {
	return &ExpirationScheduler{
		Cases:    cases,
		Ledger:   store,
		Logger:   logger.With("system", "scheduler"),
		Interval: time.Minute,
		exit:     make(chan struct{}),
	}
}

// Start launches the tick loop. It runs until Shutdown.
func (s *ExpirationScheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(s.Interval)
		defer t.Stop()
		for {
			select {
			case <-s.exit:
				return
			case <-t.C:
				if err := s.ScanOnce(context.Background()); err != nil {
					s.Logger.Error("expiration scan failed", "err", err)
				}
			}
		}
	}()
}

func (s *ExpirationScheduler) Shutdown() {
	s.Logger.Info("stopping expiration scheduler")
	close(s.exit)
	s.wg.Wait()
	s.Logger.Info("expiration scheduler stopped")
}

// ScanOnce resolves every due case. A failure on one row never aborts the
// scan.
func (s *ExpirationScheduler) ScanOnce(ctx context.Context) error {
	start := time.Now()
	defer func() {
		schedulerScanDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := s.Ledger.FindUnprocessedCases(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, c := range due {
		if c.ActionExpiration == nil || c.ActionExpiration.After(now) {
			continue
		}
		_, err := s.Cases.DeleteCase(ctx, DeleteCaseParams{
			GuildID: c.GuildID,
			CaseID:  c.CaseID,
		})
		if err != nil {
			if errors.Is(err, ErrAlreadyResolved) {
				// a manual resolution won the conditional write
				s.Logger.Debug("case resolved concurrently", "guildId", c.GuildID, "caseId", c.CaseID)
				continue
			}
			schedulerRowErrorCount.Inc()
			s.Logger.Error("resolving expired case failed",
				"guildId", c.GuildID, "caseId", c.CaseID, "action", c.Action.String(), "err", err)
			continue
		}
		schedulerResolvedCount.Inc()
		s.Logger.Info("expired case resolved", "guildId", c.GuildID, "caseId", c.CaseID, "action", c.Action.String())
	}
	return nil
}
