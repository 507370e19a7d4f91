package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tournament-factory/battle"
	"tournament-factory/escrow"
	"tournament-factory/factory"
	"tournament-factory/models"
	"tournament-factory/tournament"
)

// LedgerService owns the factory and applies commands one at a time. Every
// command that changes state is journaled together with its events and the
// refreshed projections in a single transaction.
type LedgerService struct {
	DB       *gorm.DB
	Registry *battle.Registry
	Now      func() time.Time

	mu      sync.Mutex
	factory *factory.Factory
	seq     uint64
	// failed is set while the in-memory state may not match the journal.
	// Commands and queries are refused until a replay succeeds.
	failed bool
}

func NewLedgerService(db *gorm.DB, registry *battle.Registry) *LedgerService {
	if registry == nil {
		registry = battle.NewRegistry()
	}
	return &LedgerService{DB: db, Registry: registry, Now: time.Now}
}

// Migrate creates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.JournalEntry{},
		&models.EventRecord{},
		&models.TournamentSnapshot{},
		&models.WalletBalance{},
	)
}

// Open replays the journal. An empty journal is initialised by journaling
// a deploy command built from args.
func (s *LedgerService) Open(args DeployArgs) error {
	s.mu.Lock()
	err := s.rebuild()
	var owner string
	if s.factory != nil {
		owner = s.factory.Owner()
	}
	seq := s.seq
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if owner != "" {
		log.Printf("✅ [LEDGER] Replayed %d journal entries", seq)
		if args.Owner != "" && args.Owner != owner {
			log.Printf("⚠️  [LEDGER] Configured owner %q ignored; journal owner is %q", args.Owner, owner)
		}
		return nil
	}

	if _, err := s.Execute(Command{Op: OpDeploy, Sender: args.Owner, Deploy: &args}); err != nil {
		return fmt.Errorf("deploy factory: %w", err)
	}
	log.Printf("✅ [LEDGER] Deployed factory %q (%s) owned by %s", args.DisplayName, args.Symbol, args.Owner)
	return nil
}

// Execute applies cmd and journals it when it changed state. A call that
// fails after changing state, such as an unresolvable round, is journaled
// and returns both its events and the error.
func (s *LedgerService) Execute(cmd Command) (Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execute(cmd)
}

// execute is Execute for callers holding s.mu.
func (s *LedgerService) execute(cmd Command) (Receipt, error) {
	if s.failed {
		if err := s.rebuild(); err != nil {
			return Receipt{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		log.Printf("✅ [LEDGER] Recovered by replaying %d journal entries", s.seq)
	}

	if cmd.Timestamp == 0 {
		cmd.Timestamp = s.Now().Unix()
	}

	id, events, applyErr := s.apply(cmd)
	receipt := Receipt{TournamentID: id, Events: events}
	if len(events) == 0 {
		return receipt, applyErr
	}

	seq := s.seq + 1
	if err := s.persist(seq, cmd, events, applyErr); err != nil {
		log.Printf("❌ [LEDGER] Persist of %s (seq %d) failed, rebuilding from journal: %v", cmd.Op, seq, err)
		if rerr := s.rebuild(); rerr != nil {
			log.Printf("❌ [LEDGER] Rebuild failed, refusing commands until the journal replays: %v", rerr)
			return Receipt{}, fmt.Errorf("%w: %v", ErrPersist, errors.Join(err, rerr))
		}
		return Receipt{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	s.seq = seq
	receipt.Seq = seq
	return receipt, applyErr
}

func outcome(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func (s *LedgerService) persist(seq uint64, cmd Command, events []tournament.Event, applyErr error) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	emitted := unix(cmd.Timestamp)

	entry := models.JournalEntry{
		ID:      uuid.NewString(),
		Seq:     seq,
		Op:      cmd.Op,
		Sender:  cmd.Sender,
		Payload: string(payload),
		Outcome: outcome(applyErr),
	}

	records := make([]models.EventRecord, 0, len(events))
	for i, e := range events {
		attrs, err := json.Marshal(e.Attributes)
		if err != nil {
			return err
		}
		records = append(records, models.EventRecord{
			ID:           uuid.NewString(),
			Seq:          seq,
			Position:     i,
			Name:         e.Type,
			TournamentID: e.TournamentID,
			Attributes:   string(attrs),
			EmittedAt:    emitted,
		})
	}

	snapshots, err := s.snapshots(seq, events)
	if err != nil {
		return err
	}
	balances := s.balances(seq, cmd, events)

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		if err := tx.Create(&records).Error; err != nil {
			return err
		}
		if len(snapshots) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(models.SnapshotColumns),
			}).Create(&snapshots).Error; err != nil {
				return err
			}
		}
		if len(balances) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "account"}},
				DoUpdates: clause.AssignmentColumns([]string{"balance", "last_seq", "updated_at"}),
			}).Create(&balances).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *LedgerService) snapshots(seq uint64, events []tournament.Event) ([]models.TournamentSnapshot, error) {
	seen := make(map[uint64]bool)
	var out []models.TournamentSnapshot
	for _, e := range events {
		if e.TournamentID == 0 || seen[e.TournamentID] {
			continue
		}
		seen[e.TournamentID] = true

		t, err := s.factory.Tournament(e.TournamentID)
		if err != nil {
			return nil, err
		}
		snap, err := snapshotOf(t.View(), seq)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func snapshotOf(v tournament.View, seq uint64) (models.TournamentSnapshot, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return models.TournamentSnapshot{}, err
	}
	return models.TournamentSnapshot{
		ID:                   v.ID,
		Creator:              v.Creator,
		State:                v.State.String(),
		EntryFee:             v.EntryFee,
		MaxParticipants:      v.MaxParticipants,
		Participants:         len(v.Participants),
		PooledStake:          v.PooledStake,
		Winner:               v.Winner,
		Resolver:             v.Resolver,
		RegistrationDeadline: v.RegistrationDeadline,
		View:                 string(body),
		LastSeq:              seq,
	}, nil
}

// balances collects the accounts whose external balance may have moved.
func (s *LedgerService) balances(seq uint64, cmd Command, events []tournament.Event) []models.WalletBalance {
	accounts := make(map[string]bool)
	for _, e := range events {
		for _, key := range []string{"account", "participant", "winner"} {
			if a := e.Attributes[key]; a != "" {
				accounts[a] = true
			}
		}
		if e.Type == tournament.EventTournamentAborted {
			if t, err := s.factory.Tournament(e.TournamentID); err == nil {
				for _, p := range t.Participants() {
					accounts[p] = true
				}
			}
		}
	}

	names := make([]string, 0, len(accounts))
	for a := range accounts {
		names = append(names, a)
	}
	sort.Strings(names)

	now := unix(cmd.Timestamp)
	out := make([]models.WalletBalance, 0, len(names))
	for _, a := range names {
		out = append(out, models.WalletBalance{
			Account:   a,
			Balance:   s.factory.Balance(a),
			LastSeq:   seq,
			UpdatedAt: now,
		})
	}
	return out
}

// rebuild resets the in-memory state and replays the whole journal. On
// failure the ledger is left empty and marked failed, never half replayed.
// Callers hold s.mu.
func (s *LedgerService) rebuild() error {
	s.factory, s.seq, s.failed = nil, 0, true

	var entries []models.JournalEntry
	if err := s.DB.Order("seq asc").Find(&entries).Error; err != nil {
		return fmt.Errorf("load journal: %w", err)
	}

	if err := s.replay(entries); err != nil {
		s.factory, s.seq = nil, 0
		return err
	}
	s.failed = false
	return nil
}

func (s *LedgerService) replay(entries []models.JournalEntry) error {
	for _, e := range entries {
		var cmd Command
		if err := json.Unmarshal([]byte(e.Payload), &cmd); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrJournalDiverged, e.Seq, err)
		}
		_, events, err := s.apply(cmd)
		if len(events) == 0 {
			return fmt.Errorf("%w: entry %d (%s) changed nothing: %v", ErrJournalDiverged, e.Seq, e.Op, err)
		}
		if outcome(err) != e.Outcome {
			return fmt.Errorf("%w: entry %d (%s) outcome %q, journaled %q", ErrJournalDiverged, e.Seq, e.Op, outcome(err), e.Outcome)
		}
		s.seq = e.Seq
	}
	return nil
}

// current returns the live factory. Callers hold s.mu.
func (s *LedgerService) current() (*factory.Factory, error) {
	switch {
	case s.failed:
		return nil, ErrUnavailable
	case s.factory == nil:
		return nil, ErrNotDeployed
	}
	return s.factory, nil
}

// LockDue issues a lock command for every tournament whose registration
// can be closed at now. The ledger stays locked for the whole pass so no
// other command can lock a due tournament first.
func (s *LedgerService) LockDue(now time.Time, sender string) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed {
		if err := s.rebuild(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	f := s.factory
	if f == nil {
		return nil, nil
	}

	var locked []uint64
	var errs []error
	for _, id := range f.DueForLock(now) {
		_, err := s.execute(Command{Op: OpLock, Sender: sender, Timestamp: now.Unix(), TournamentID: id})
		if err != nil {
			errs = append(errs, fmt.Errorf("tournament %d: %w", id, err))
			if errors.Is(err, ErrPersist) {
				break
			}
			continue
		}
		locked = append(locked, id)
	}
	return locked, errors.Join(errs...)
}

// FactoryInfo describes the deployed factory.
type FactoryInfo struct {
	Owner       string         `json:"owner"`
	Config      factory.Config `json:"config"`
	Resolver    string         `json:"resolver"`
	Resolvers   []string       `json:"resolvers"`
	Paused      bool           `json:"paused"`
	Tournaments int            `json:"tournaments"`
	Custody     escrow.Amount  `json:"custody"`
	Seq         uint64         `json:"seq"`
}

func (s *LedgerService) Info() (FactoryInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.current()
	if err != nil {
		return FactoryInfo{}, err
	}
	return FactoryInfo{
		Owner:       f.Owner(),
		Config:      f.Config(),
		Resolver:    f.Resolver(),
		Resolvers:   s.Registry.Names(),
		Paused:      f.Paused(),
		Tournaments: len(f.Tournaments()),
		Custody:     f.Custody(),
		Seq:         s.seq,
	}, nil
}

func (s *LedgerService) Owner() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.current()
	if err != nil {
		return "", err
	}
	return f.Owner(), nil
}

func (s *LedgerService) DefaultEntryFee() (escrow.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.current()
	if err != nil {
		return 0, err
	}
	return f.Config().DefaultEntryFee, nil
}

func (s *LedgerService) Tournament(id uint64) (tournament.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.current()
	if err != nil {
		return tournament.View{}, err
	}
	t, err := f.Tournament(id)
	if err != nil {
		return tournament.View{}, err
	}
	return t.View(), nil
}

func (s *LedgerService) Tournaments() ([]tournament.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.current()
	if err != nil {
		return nil, err
	}
	all := f.Tournaments()
	out := make([]tournament.View, len(all))
	for i, t := range all {
		out[i] = t.View()
	}
	return out, nil
}

func (s *LedgerService) Balance(account string) (escrow.Amount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.current()
	if err != nil {
		return 0, err
	}
	return f.Balance(account), nil
}

// EventFilter narrows an event query. Deprecated event names are accepted.
type EventFilter struct {
	Name         string
	TournamentID uint64
	AfterSeq     uint64
	Limit        int
}

func (s *LedgerService) Events(filter EventFilter) ([]models.EventRecord, error) {
	q := s.DB.Model(&models.EventRecord{}).Order("seq asc, position asc")
	if filter.Name != "" {
		q = q.Where("name = ?", factory.CanonicalEventName(filter.Name))
	}
	if filter.TournamentID > 0 {
		q = q.Where("tournament_id = ?", filter.TournamentID)
	}
	if filter.AfterSeq > 0 {
		q = q.Where("seq > ?", filter.AfterSeq)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 500
	}

	var records []models.EventRecord
	if err := q.Limit(filter.Limit).Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *LedgerService) Journal(afterSeq uint64, limit int) ([]models.JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var entries []models.JournalEntry
	err := s.DB.Where("seq > ?", afterSeq).Order("seq asc").Limit(limit).Find(&entries).Error
	return entries, err
}
