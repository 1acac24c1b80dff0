package moderation

import (
	"context"
	"log/slog"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/lockstore"
	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/platform"
)

// TestFixture wires both coordinators against an in-memory ledger, lock
// store, and platform so tests can drive the full coordination path.
type TestFixture struct {
	Ledger   *ledger.Store
	Locks    *lockstore.MemLockStore
	Platform *platform.MockClient
	Notifier *RecordingNotifier
	Cases    *CaseCoordinator
	Reports  *ReportCoordinator
}

func NewTestFixture() *TestFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		panic(err)
	}
	// each pooled sqlite :memory: connection is a distinct database
	sqldb, err := db.DB()
	if err != nil {
		panic(err)
	}
	sqldb.SetMaxOpenConns(1)
	store, err := ledger.NewStore(db, slog.Default())
	if err != nil {
		panic(err)
	}

	locks := lockstore.NewMemLockStore()
	mock := platform.NewMockClient()
	notifier := &RecordingNotifier{}
	logger := slog.Default()

	reports := &ReportCoordinator{
		Ledger:   store,
		Locks:    locks,
		Notifier: notifier,
		Logger:   logger,
	}
	cases := &CaseCoordinator{
		Ledger: store,
		Locks:  locks,
		Executor: &ActionExecutor{
			Platform: mock,
			Logger:   logger,
		},
		Reports:  reports,
		Notifier: notifier,
		Logger:   logger,
	}

	return &TestFixture{
		Ledger:   store,
		Locks:    locks,
		Platform: mock,
		Notifier: notifier,
		Cases:    cases,
		Reports:  reports,
	}
}

// RecordingNotifier captures notifier calls for assertions.
type RecordingNotifier struct {
	mu      sync.Mutex
	Cases   []models.Case
	Reports []models.Report
}

var _ LogNotifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) CaseLogged(ctx context.Context, c *models.Case) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Cases = append(n.Cases, *c)
	return nil
}

func (n *RecordingNotifier) ReportLogged(ctx context.Context, r *models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Reports = append(n.Reports, *r)
	return nil
}

// LastReport returns the most recent report render, or nil.
func (n *RecordingNotifier) LastReport() *models.Report {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Reports) == 0 {
		return nil
	}
	r := n.Reports[len(n.Reports)-1]
	return &r
}
