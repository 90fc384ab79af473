package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"tournament_market/internal/domain"
)

type record struct {
	version int64
	data    []byte
}

type docKey struct {
	coll string
	id   string
}

// Memory is an in-process Store with optimistic concurrency: documents are kept encoded,
// every read returns a private copy and commit re-checks every version the unit of work saw.
type Memory struct {
	mu       sync.RWMutex
	docs     map[string]map[string]*record
	ledger   []*domain.CreditTransaction
	payments map[string]struct{}
	seq      int64
	// last is the highest version each document ever had; it outlives deletion so a
	// re-created document never reuses a version an older reader saw.
	last map[docKey]int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: map[string]map[string]*record{
			CollTournaments:        {},
			CollTeams:              {},
			CollWallets:            {},
			CollWithdrawalRequests: {},
		},
		payments: make(map[string]struct{}),
		last:     make(map[docKey]int64),
	}
}

func (m *Memory) RunTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{
		m:      m,
		reads:  make(map[docKey]int64),
		staged: make(map[docKey]*stagedDoc),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.commit()
}

func (m *Memory) get(coll, id string) (*record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.docs[coll][id]
	if !ok {
		return nil, false
	}
	return &record{version: r.version, data: r.data}, true
}

// stamp identifies the state of a document for read validation: its version while it exists,
// the negated last version once deleted, 0 if it never existed. Callers hold m.mu.
func (m *Memory) stamp(k docKey) int64 {
	if r, ok := m.docs[k.coll][k.id]; ok {
		return r.version
	}
	return -m.last[k]
}

func (m *Memory) lookup(k docKey) (*record, int64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := m.stamp(k)
	r, ok := m.docs[k.coll][k.id]
	if !ok {
		return nil, st, false
	}
	return &record{version: r.version, data: r.data}, st, true
}

func (m *Memory) Tournament(_ context.Context, id string) (*domain.Tournament, error) {
	r, ok := m.get(CollTournaments, id)
	if !ok {
		return nil, ErrNotFound
	}
	return decodeTournament(r)
}

func (m *Memory) ExpiredTournaments(_ context.Context, now time.Time, limit int) ([]*domain.Tournament, error) {
	all, err := m.tournaments()
	if err != nil {
		return nil, err
	}
	var out []*domain.Tournament
	for _, t := range all {
		if t.TTL != nil && !t.TTL.After(now) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TTL.Before(*out[j].TTL) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) TournamentsWithoutTTL(_ context.Context, limit int) ([]*domain.Tournament, error) {
	all, err := m.tournaments()
	if err != nil {
		return nil, err
	}
	var out []*domain.Tournament
	for _, t := range all {
		if t.TTL == nil {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) tournaments() ([]*domain.Tournament, error) {
	m.mu.RLock()
	recs := make([]*record, 0, len(m.docs[CollTournaments]))
	for _, r := range m.docs[CollTournaments] {
		recs = append(recs, &record{version: r.version, data: r.data})
	}
	m.mu.RUnlock()

	out := make([]*domain.Tournament, 0, len(recs))
	for _, r := range recs {
		t, err := decodeTournament(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *Memory) Wallet(_ context.Context, userID string) (*domain.Wallet, error) {
	r, ok := m.get(CollWallets, userID)
	if !ok {
		return &domain.Wallet{UserID: userID}, nil
	}
	return decodeWallet(r)
}

func (m *Memory) Transactions(_ context.Context, userID string) ([]*domain.CreditTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.CreditTransaction
	for _, ct := range m.ledger {
		if ct.UserID == userID {
			cp := *ct
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *Memory) Withdrawal(_ context.Context, id string) (*domain.WithdrawalRequest, error) {
	r, ok := m.get(CollWithdrawalRequests, id)
	if !ok {
		return nil, ErrNotFound
	}
	return decodeWithdrawal(r)
}

func (m *Memory) PendingWithdrawals(_ context.Context, limit int) ([]*domain.WithdrawalRequest, error) {
	m.mu.RLock()
	recs := make([]*record, 0)
	for _, r := range m.docs[CollWithdrawalRequests] {
		recs = append(recs, &record{version: r.version, data: r.data})
	}
	m.mu.RUnlock()

	var out []*domain.WithdrawalRequest
	for _, r := range recs {
		w, err := decodeWithdrawal(r)
		if err != nil {
			return nil, err
		}
		if w.Status == domain.WithdrawalPending {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

type stagedDoc struct {
	expect  int64 // version the write is conditional on, 0 = must not exist
	data    []byte
	deleted bool
	// setVersion publishes the committed version back to the caller's object.
	setVersion func(int64)
}

type memTx struct {
	m        *Memory
	reads    map[docKey]int64
	staged   map[docKey]*stagedDoc
	order    []docKey
	appended []*domain.CreditTransaction
}

func (tx *memTx) read(coll, id string) (*record, bool) {
	k := docKey{coll, id}
	if s, ok := tx.staged[k]; ok {
		if s.deleted {
			return nil, false
		}
		return &record{version: s.expect, data: s.data}, true
	}
	r, st, ok := tx.m.lookup(k)
	if _, seen := tx.reads[k]; !seen {
		tx.reads[k] = st
	}
	return r, ok
}

func (tx *memTx) stage(coll, id string, expect int64, v any, setVersion func(int64)) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	k := docKey{coll, id}
	if prev, ok := tx.staged[k]; ok {
		// second write of the same document inside one unit of work keeps the original condition
		expect = prev.expect
	} else {
		tx.order = append(tx.order, k)
	}
	tx.staged[k] = &stagedDoc{expect: expect, data: data, setVersion: setVersion}
	return nil
}

func (tx *memTx) stageDelete(coll, id string, expect int64) {
	k := docKey{coll, id}
	if prev, ok := tx.staged[k]; ok {
		expect = prev.expect
	} else {
		tx.order = append(tx.order, k)
	}
	tx.staged[k] = &stagedDoc{expect: expect, deleted: true}
}

func (tx *memTx) commit() error {
	m := tx.m
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range tx.reads {
		if m.stamp(k) != v {
			return ErrConflict
		}
	}
	for _, k := range tx.order {
		r, exists := m.docs[k.coll][k.id]
		expect := tx.staged[k].expect
		if expect == 0 && exists || expect != 0 && (!exists || r.version != expect) {
			return ErrConflict
		}
	}
	for _, ct := range tx.appended {
		if ct.PaymentRef == "" {
			continue
		}
		if _, dup := m.payments[ct.PaymentRef]; dup {
			return ErrConflict
		}
	}

	for _, k := range tx.order {
		s := tx.staged[k]
		if s.deleted {
			delete(m.docs[k.coll], k.id)
			continue
		}
		next := m.last[k] + 1
		m.last[k] = next
		m.docs[k.coll][k.id] = &record{version: next, data: s.data}
		if s.setVersion != nil {
			s.setVersion(next)
		}
	}
	for _, ct := range tx.appended {
		m.seq++
		ct.Seq = m.seq
		cp := *ct
		m.ledger = append(m.ledger, &cp)
		if ct.PaymentRef != "" {
			m.payments[ct.PaymentRef] = struct{}{}
		}
	}
	return nil
}

func (tx *memTx) Tournament(_ context.Context, id string) (*domain.Tournament, error) {
	r, ok := tx.read(CollTournaments, id)
	if !ok {
		return nil, ErrNotFound
	}
	return decodeTournament(r)
}

func (tx *memTx) InsertTournament(_ context.Context, t *domain.Tournament) error {
	if _, exists := tx.read(CollTournaments, t.ID); exists {
		return ErrConflict
	}
	return tx.stage(CollTournaments, t.ID, 0, t, func(v int64) { t.Version = v })
}

func (tx *memTx) UpdateTournament(_ context.Context, t *domain.Tournament) error {
	return tx.stage(CollTournaments, t.ID, t.Version, t, func(v int64) { t.Version = v })
}

func (tx *memTx) DeleteTournament(_ context.Context, t *domain.Tournament) error {
	tx.stageDelete(CollTournaments, t.ID, t.Version)
	return nil
}

func (tx *memTx) Team(_ context.Context, id string) (*domain.Team, error) {
	r, ok := tx.read(CollTeams, id)
	if !ok {
		return nil, ErrNotFound
	}
	return decodeTeam(r)
}

func (tx *memTx) InsertTeam(_ context.Context, team *domain.Team) error {
	if _, exists := tx.read(CollTeams, team.ID); exists {
		return ErrConflict
	}
	return tx.stage(CollTeams, team.ID, 0, team, func(v int64) { team.Version = v })
}

func (tx *memTx) UpdateTeam(_ context.Context, team *domain.Team) error {
	return tx.stage(CollTeams, team.ID, team.Version, team, func(v int64) { team.Version = v })
}

func (tx *memTx) DeleteTeams(_ context.Context, tournamentID string) error {
	tx.m.mu.RLock()
	ids := make([]string, 0)
	for id, r := range tx.m.docs[CollTeams] {
		var team domain.Team
		if err := json.Unmarshal(r.data, &team); err != nil {
			tx.m.mu.RUnlock()
			return err
		}
		if team.TournamentID == tournamentID {
			ids = append(ids, id)
		}
	}
	tx.m.mu.RUnlock()

	for _, id := range ids {
		r, ok := tx.read(CollTeams, id)
		if !ok {
			continue
		}
		tx.stageDelete(CollTeams, id, r.version)
	}
	return nil
}

func (tx *memTx) Wallet(_ context.Context, userID string) (*domain.Wallet, error) {
	r, ok := tx.read(CollWallets, userID)
	if !ok {
		return &domain.Wallet{UserID: userID}, nil
	}
	return decodeWallet(r)
}

func (tx *memTx) SaveWallet(_ context.Context, w *domain.Wallet) error {
	return tx.stage(CollWallets, w.UserID, w.Version, w, func(v int64) { w.Version = v })
}

func (tx *memTx) AppendTransaction(_ context.Context, ct *domain.CreditTransaction) error {
	tx.appended = append(tx.appended, ct)
	return nil
}

func (tx *memTx) PaymentRecorded(_ context.Context, paymentRef string) (bool, error) {
	for _, ct := range tx.appended {
		if ct.PaymentRef == paymentRef {
			return true, nil
		}
	}
	tx.m.mu.RLock()
	defer tx.m.mu.RUnlock()
	_, ok := tx.m.payments[paymentRef]
	return ok, nil
}

func (tx *memTx) Withdrawal(_ context.Context, id string) (*domain.WithdrawalRequest, error) {
	r, ok := tx.read(CollWithdrawalRequests, id)
	if !ok {
		return nil, ErrNotFound
	}
	return decodeWithdrawal(r)
}

func (tx *memTx) InsertWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	if _, exists := tx.read(CollWithdrawalRequests, w.ID); exists {
		return ErrConflict
	}
	return tx.stage(CollWithdrawalRequests, w.ID, 0, w, func(v int64) { w.Version = v })
}

func (tx *memTx) UpdateWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	return tx.stage(CollWithdrawalRequests, w.ID, w.Version, w, func(v int64) { w.Version = v })
}

func decodeTournament(r *record) (*domain.Tournament, error) {
	var t domain.Tournament
	if err := json.Unmarshal(r.data, &t); err != nil {
		return nil, err
	}
	t.Version = r.version
	return &t, nil
}

func decodeTeam(r *record) (*domain.Team, error) {
	var t domain.Team
	if err := json.Unmarshal(r.data, &t); err != nil {
		return nil, err
	}
	t.Version = r.version
	return &t, nil
}

func decodeWallet(r *record) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := json.Unmarshal(r.data, &w); err != nil {
		return nil, err
	}
	w.Version = r.version
	return &w, nil
}

func decodeWithdrawal(r *record) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	if err := json.Unmarshal(r.data, &w); err != nil {
		return nil, err
	}
	w.Version = r.version
	return &w, nil
}
