package repository

import (
	"github.com/smbgAlokk/bharatforce/internal/application/port"
	"github.com/smbgAlokk/bharatforce/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// Store bundles the SQLite repositories behind one transaction manager
type Store struct {
	*sqlite.DB
	records  port.RecordRepository
	balances port.LeaveBalanceRepository
	employee *EmployeeRepository
}

// NewStore creates a SQLite-backed store
func NewStore(db *sqlite.DB, logger *zap.Logger) *Store {
	return &Store{
		DB:       db,
		records:  NewRecordRepository(db.DB, logger),
		balances: NewLeaveBalanceRepository(db.DB, logger),
		employee: NewEmployeeRepository(db.DB, logger),
	}
}

func (s *Store) Records() port.RecordRepository             { return s.records }
func (s *Store) LeaveBalances() port.LeaveBalanceRepository { return s.balances }
func (s *Store) ExitStatuses() port.ExitStatusRepository    { return s.employee }
func (s *Store) PayrollSyncs() port.PayrollSyncRepository   { return s.employee }
func (s *Store) Letters() port.LetterRepository             { return s.employee }
func (s *Store) Profiles() port.ProfileRepository           { return s.employee }
func (s *Store) EffectLogs() port.EffectLogRepository       { return s.employee }

// Verify interface compliance
var _ port.Store = (*Store)(nil)
