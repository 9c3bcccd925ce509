package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgermatch/reconcile-backend/internal/domain/consistency"
	"github.com/ledgermatch/reconcile-backend/internal/domain/dedup"
	"github.com/ledgermatch/reconcile-backend/internal/domain/model"
	"github.com/ledgermatch/reconcile-backend/internal/domain/scorer"
	"github.com/ledgermatch/reconcile-backend/internal/ledger"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	mu           sync.Mutex
	txns         map[string]*model.AtomicTransaction
	entries      map[int64]*model.JournalEntry
	matches      map[string]*model.ReconciliationMatch
	audits       map[string][]model.MatchAudit
	checks       map[string]*model.ConsistencyCheck
	checkKeys    map[string]string // user|content_key -> check id
	ruleVersions map[string]*model.RuleVersion
	runs         map[int64]*model.MatchRun
	nextEntryID  int64
	nextRunID    int64

	// Hooks for test assertions
	UpsertTransactionCalled bool
	CreateMatchCalled       bool
	LastCreatedMatch        *model.ReconciliationMatch
	TransitionCalled        bool
	PostCalled              bool
	LastPostRequest         *ledger.PostingRequest
	UnpostCalled            bool
	UnpostedMatchIDs        []string

	// Error injection for testing error paths
	UpsertTransactionErr error
	CreateMatchErr       error
	TransitionErr        error
	FindCandidatesErr    error
	PostErr              error
	UnpostErr            error
	SaveFindingErr       error
	StartRunErr          error
	GetStatsErr          error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		txns:         make(map[string]*model.AtomicTransaction),
		entries:      make(map[int64]*model.JournalEntry),
		matches:      make(map[string]*model.ReconciliationMatch),
		audits:       make(map[string][]model.MatchAudit),
		checks:       make(map[string]*model.ConsistencyCheck),
		checkKeys:    make(map[string]string),
		ruleVersions: make(map[string]*model.RuleVersion),
		runs:         make(map[int64]*model.MatchRun),
		nextEntryID:  1,
		nextRunID:    1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// --- TransactionRepository ---

func (m *MockRepository) UpsertTransaction(ctx context.Context, txn model.AtomicTransaction) (model.AtomicTransaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertTransactionCalled = true
	if m.UpsertTransactionErr != nil {
		return model.AtomicTransaction{}, false, m.UpsertTransactionErr
	}

	if txn.DedupHash == "" {
		txn.DedupHash = dedup.HashTransaction(txn)
	}

	for _, existing := range m.txns {
		if existing.UserID == txn.UserID && existing.DedupHash == txn.DedupHash {
			existing.SourceRefs = appendRefs(existing.SourceRefs, txn.SourceRefs)
			return *existing, false, nil
		}
	}

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.CreatedAt = time.Now().UTC()
	copied := txn
	m.txns[txn.ID] = &copied
	return txn, true, nil
}

func (m *MockRepository) GetTransaction(ctx context.Context, id string) (*model.AtomicTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn, ok := m.txns[id]
	if !ok {
		return nil, nil
	}
	copied := *txn
	return &copied, nil
}

func (m *MockRepository) ListUnmatchedTransactions(ctx context.Context, userID string) ([]model.AtomicTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AtomicTransaction
	for _, txn := range m.txns {
		if txn.UserID != userID || txn.Ignored {
			continue
		}
		if m.activeMatchForTxn(txn.ID) != nil {
			continue
		}
		out = append(out, *txn)
	}
	sortTxns(out)
	return out, nil
}

func (m *MockRepository) ListTransactions(ctx context.Context, userID string) ([]model.AtomicTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.AtomicTransaction
	for _, txn := range m.txns {
		if txn.UserID == userID {
			out = append(out, *txn)
		}
	}
	sortTxns(out)
	return out, nil
}

// --- MatchRepository ---

func (m *MockRepository) CreateMatch(ctx context.Context, match *model.ReconciliationMatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateMatchCalled = true
	m.LastCreatedMatch = match
	if m.CreateMatchErr != nil {
		return m.CreateMatchErr
	}

	for _, txnID := range match.TxnIDs {
		if existing := m.activeMatchForTxn(txnID); existing != nil {
			return &ConflictError{TxnID: txnID, ExistingMatchID: existing.ID}
		}
	}

	if match.ID == "" {
		match.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	match.CreatedAt = now
	match.UpdatedAt = now

	copied := *match
	m.matches[match.ID] = &copied
	m.audits[match.ID] = append(m.audits[match.ID], model.MatchAudit{
		ID:       int64(len(m.audits[match.ID]) + 1),
		MatchID:  match.ID,
		ToStatus: match.Status,
		Actor:    "engine",
		At:       now,
	})
	return nil
}

func (m *MockRepository) GetMatch(ctx context.Context, id string) (*model.ReconciliationMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	copied := *match
	return &copied, nil
}

func (m *MockRepository) ListMatches(ctx context.Context, filters MatchFilters) (*MatchPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := filters.Status
	if status == "" {
		status = string(model.MatchPendingReview)
	}

	var all []model.ReconciliationMatch
	for _, match := range m.matches {
		if filters.UserID != "" && match.UserID != filters.UserID {
			continue
		}
		if string(match.Status) != status {
			continue
		}
		if filters.MinScore > 0 && match.Score < filters.MinScore {
			continue
		}
		if filters.MaxScore > 0 && match.Score > filters.MaxScore {
			continue
		}
		all = append(all, *match)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].ID < all[j].ID
	})

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	page := &MatchPage{TotalCount: len(all), Limit: limit, Offset: filters.Offset}
	start := filters.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	page.Matches = all[start:end]
	return page, nil
}

func (m *MockRepository) TransitionMatch(ctx context.Context, matchID string, to model.MatchStatus, actor, reason string) (*model.ReconciliationMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TransitionCalled = true
	if m.TransitionErr != nil {
		return nil, m.TransitionErr
	}

	match, ok := m.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	}
	if !transitionAllowed(match.Status, to) {
		return nil, &InvalidTransitionError{MatchID: matchID, From: match.Status, To: to}
	}

	from := match.Status
	match.Status = to
	match.UpdatedAt = time.Now().UTC()
	m.audits[matchID] = append(m.audits[matchID], model.MatchAudit{
		ID:         int64(len(m.audits[matchID]) + 1),
		MatchID:    matchID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
		At:         match.UpdatedAt,
	})

	copied := *match
	return &copied, nil
}

func (m *MockRepository) AcceptBatch(ctx context.Context, postings []BatchPosting) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stage originals of everything touched so a failing member leaves
	// no partial batch behind.
	savedMatches := map[string]model.ReconciliationMatch{}
	savedAudits := map[string][]model.MatchAudit{}
	savedEntries := map[int64]model.JournalEntry{}
	var feeIDs []int64
	savedNextEntryID := m.nextEntryID

	undo := func() {
		for id, match := range savedMatches {
			copied := match
			m.matches[id] = &copied
		}
		for id, audit := range savedAudits {
			m.audits[id] = audit
		}
		for id, entry := range savedEntries {
			copied := entry
			m.entries[id] = &copied
		}
		for _, id := range feeIDs {
			delete(m.entries, id)
		}
		m.nextEntryID = savedNextEntryID
	}

	accept := func(p BatchPosting) error {
		m.TransitionCalled = true
		if m.TransitionErr != nil {
			return m.TransitionErr
		}

		match, ok := m.matches[p.MatchID]
		if !ok {
			return fmt.Errorf("match %s: %w", p.MatchID, ErrNotFound)
		}
		if !transitionAllowed(match.Status, model.MatchAccepted) {
			return &InvalidTransitionError{MatchID: p.MatchID, From: match.Status, To: model.MatchAccepted}
		}

		savedMatches[p.MatchID] = *match
		savedAudits[p.MatchID] = append([]model.MatchAudit(nil), m.audits[p.MatchID]...)

		from := match.Status
		match.Status = model.MatchAccepted
		match.UpdatedAt = time.Now().UTC()
		m.audits[p.MatchID] = append(m.audits[p.MatchID], model.MatchAudit{
			ID:         int64(len(m.audits[p.MatchID]) + 1),
			MatchID:    p.MatchID,
			FromStatus: from,
			ToStatus:   model.MatchAccepted,
			Actor:      p.Actor,
			At:         match.UpdatedAt,
		})

		req := p.Posting
		m.PostCalled = true
		m.LastPostRequest = &req
		if m.PostErr != nil {
			return m.PostErr
		}

		total := decimal.Zero
		for _, id := range req.EntryIDs {
			entry, ok := m.entries[id]
			if !ok {
				return &ledger.RejectionError{MatchID: req.MatchID, Reason: fmt.Sprintf("entry %d not found", id)}
			}
			if entry.MatchID != "" && entry.MatchID != req.MatchID {
				return &ledger.RejectionError{MatchID: req.MatchID, Reason: fmt.Sprintf("entry %d already claimed", id)}
			}
			total = total.Add(entry.Amount)
		}
		if req.FeeAdjustment != nil {
			total = total.Add(*req.FeeAdjustment)
		}
		if !total.Equal(req.ExpectedTotal) {
			return &ledger.RejectionError{
				MatchID: req.MatchID,
				Reason:  fmt.Sprintf("posting unbalanced: claimed %s, expected %s", total, req.ExpectedTotal),
			}
		}

		for _, id := range req.EntryIDs {
			if _, seen := savedEntries[id]; !seen {
				savedEntries[id] = *m.entries[id]
			}
			m.entries[id].MatchID = req.MatchID
		}
		if req.FeeAdjustment != nil {
			fee := model.JournalEntry{
				UserID:      req.UserID,
				EntryDate:   req.FeeDate,
				Amount:      *req.FeeAdjustment,
				Direction:   req.FeeDirection,
				AccountCode: req.FeeAccountCode,
				AccountType: model.AccountExpense,
				Memo:        req.Memo,
				Currency:    req.Currency,
				Status:      model.EntryPosted,
				MatchID:     req.MatchID,
			}
			fee.ID = m.nextEntryID
			m.nextEntryID++
			m.entries[fee.ID] = &fee
			feeIDs = append(feeIDs, fee.ID)
		}
		return nil
	}

	for _, p := range postings {
		if err := accept(p); err != nil {
			undo()
			return fmt.Errorf("batch member %s: %w", p.MatchID, err)
		}
	}
	return nil
}

func (m *MockRepository) ListAudit(ctx context.Context, matchID string) ([]model.MatchAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.MatchAudit(nil), m.audits[matchID]...), nil
}

func (m *MockRepository) MerchantAffinity(ctx context.Context, userID string) (AffinityIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	index := AffinityIndex{}
	for _, match := range m.matches {
		if match.UserID != userID {
			continue
		}
		if match.Status != model.MatchAccepted && match.Status != model.MatchAutoAccepted {
			continue
		}
		for _, txnID := range match.TxnIDs {
			txn, ok := m.txns[txnID]
			if !ok {
				continue
			}
			key := normalizeKey(txn.Description)
			for _, entryID := range match.EntryIDs {
				entry, ok := m.entries[entryID]
				if !ok || entry.AccountCode == "" {
					continue
				}
				if index[key] == nil {
					index[key] = map[string]bool{}
				}
				index[key][entry.AccountCode] = true
			}
		}
	}
	return index, nil
}

// --- CheckRepository ---

func (m *MockRepository) SaveFinding(ctx context.Context, userID string, finding consistency.Finding) (model.ConsistencyCheck, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveFindingErr != nil {
		return model.ConsistencyCheck{}, false, m.SaveFindingErr
	}

	key := userID + "|" + findingContentKey(finding)
	if id, ok := m.checkKeys[key]; ok {
		return *m.checks[id], false, nil
	}

	check := model.ConsistencyCheck{
		ID:            uuid.NewString(),
		UserID:        userID,
		Type:          finding.Type,
		RelatedTxnIDs: finding.TxnIDs,
		Details:       finding.DetailsJSON(),
		Severity:      finding.Severity,
		Status:        model.CheckPending,
		CreatedAt:     time.Now().UTC(),
	}
	copied := check
	m.checks[check.ID] = &copied
	m.checkKeys[key] = check.ID
	return check, true, nil
}

func (m *MockRepository) ListChecks(ctx context.Context, userID string, status model.CheckStatus) ([]model.ConsistencyCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.ConsistencyCheck
	for _, check := range m.checks {
		if check.UserID != userID {
			continue
		}
		if status != "" && check.Status != status {
			continue
		}
		out = append(out, *check)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) ResolveCheck(ctx context.Context, checkID string, status model.CheckStatus) (*model.ConsistencyCheck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	check, ok := m.checks[checkID]
	if !ok {
		return nil, nil
	}
	check.Status = status
	copied := *check
	return &copied, nil
}

func (m *MockRepository) PendingCheckIDsForTxns(ctx context.Context, txnIDs []string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(txnIDs))
	for _, id := range txnIDs {
		wanted[id] = true
	}

	out := map[string][]string{}
	for _, check := range m.checks {
		if check.Status != model.CheckPending {
			continue
		}
		for _, txnID := range check.RelatedTxnIDs {
			if wanted[txnID] {
				out[txnID] = append(out[txnID], check.ID)
			}
		}
	}
	return out, nil
}

// --- RuleRepository ---

func (m *MockRepository) EnsureRuleVersion(ctx context.Context, rules scorer.Rules) (model.RuleVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := rules.ContentHash()
	for _, version := range m.ruleVersions {
		if version.ContentHash == hash {
			return *version, nil
		}
	}

	config, err := json.Marshal(rules)
	if err != nil {
		return model.RuleVersion{}, err
	}
	version := model.RuleVersion{
		ID:          uuid.NewString(),
		ContentHash: hash,
		ConfigJSON:  string(config),
		CreatedAt:   time.Now().UTC(),
	}
	copied := version
	m.ruleVersions[version.ID] = &copied
	return version, nil
}

func (m *MockRepository) GetRuleVersion(ctx context.Context, id string) (*model.RuleVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	version, ok := m.ruleVersions[id]
	if !ok {
		return nil, nil
	}
	copied := *version
	return &copied, nil
}

// --- RunRepository ---

func (m *MockRepository) StartRun(ctx context.Context, userID, ruleVersionID string, dryRun bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.StartRunErr != nil {
		return 0, m.StartRunErr
	}

	id := m.nextRunID
	m.nextRunID++
	m.runs[id] = &model.MatchRun{
		ID:            id,
		UserID:        userID,
		RuleVersionID: ruleVersionID,
		StartedAt:     time.Now().UTC().Format(time.RFC3339),
		DryRun:        dryRun,
		Status:        "running",
	}
	return id, nil
}

func (m *MockRepository) CompleteRun(ctx context.Context, runID int64, c RunCounters) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %d not found", runID)
	}
	run.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	run.TxnsSeen = c.TxnsSeen
	run.Matched = c.Matched
	run.AutoAccepted = c.AutoAccepted
	run.PendingReview = c.PendingReview
	run.Unmatched = c.Unmatched
	run.Errored = c.Errored
	run.Status = "completed"
	if c.Errored > 0 {
		run.Status = "completed_with_errors"
	}
	return nil
}

func (m *MockRepository) ListRuns(ctx context.Context, userID string, limit int) ([]model.MatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	var out []model.MatchRun
	for _, run := range m.runs {
		if userID != "" && run.UserID != userID {
			continue
		}
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) GetRun(ctx context.Context, runID int64) (*model.MatchRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	copied := *run
	return &copied, nil
}

// --- StatsRepository ---

func (m *MockRepository) GetStats(ctx context.Context, userID string) (*Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetStatsErr != nil {
		return nil, m.GetStatsErr
	}

	stats := &Stats{ScoreHistogram: map[string]int{}}
	matchedTxns := map[string]bool{}
	autoTxns := map[string]bool{}
	for _, match := range m.matches {
		if match.UserID != userID {
			continue
		}
		if match.Status != model.MatchRejected {
			bucket := (match.Score / 10) * 10
			stats.ScoreHistogram[fmt.Sprintf("%d-%d", bucket, bucket+9)]++
		}
		switch match.Status {
		case model.MatchPendingReview:
			stats.PendingReview++
		case model.MatchAccepted, model.MatchAutoAccepted:
			for _, txnID := range match.TxnIDs {
				matchedTxns[txnID] = true
				if match.Status == model.MatchAutoAccepted {
					autoTxns[txnID] = true
				}
			}
		}
	}
	for _, txn := range m.txns {
		if txn.UserID != userID {
			continue
		}
		stats.TotalTransactions++
		if m.activeMatchForTxn(txn.ID) == nil {
			stats.UnmatchedCount++
		}
	}
	stats.MatchedCount = len(matchedTxns)
	stats.AutoAcceptedCount = len(autoTxns)
	if stats.TotalTransactions > 0 {
		stats.MatchRate = float64(stats.MatchedCount) / float64(stats.TotalTransactions)
		stats.AutoAcceptRate = float64(stats.AutoAcceptedCount) / float64(stats.TotalTransactions)
	}
	return stats, nil
}

// --- ledger.Ledger ---

// AddEntry seeds a journal entry and returns its id. Test setup helper.
func (m *MockRepository) AddEntry(entry model.JournalEntry) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == 0 {
		entry.ID = m.nextEntryID
		m.nextEntryID++
	} else if entry.ID >= m.nextEntryID {
		m.nextEntryID = entry.ID + 1
	}
	if entry.Status == "" {
		entry.Status = model.EntryPosted
	}
	copied := entry
	m.entries[entry.ID] = &copied
	return entry.ID
}

func (m *MockRepository) FindCandidates(ctx context.Context, q ledger.Query) ([]model.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FindCandidatesErr != nil {
		return nil, m.FindCandidatesErr
	}

	var out []model.JournalEntry
	for _, entry := range m.entries {
		if entry.UserID != q.UserID || entry.Status != model.EntryPosted {
			continue
		}
		if q.Direction != "" && entry.Direction != q.Direction {
			continue
		}
		if q.Currency != "" && entry.Currency != q.Currency {
			continue
		}
		if entry.Amount.LessThan(q.MinAmount) || entry.Amount.GreaterThan(q.MaxAmount) {
			continue
		}
		if entry.EntryDate.Before(q.DateFrom) || entry.EntryDate.After(q.DateTo) {
			continue
		}
		if q.Unclaimed && entry.MatchID != "" {
			continue
		}
		out = append(out, *entry)
	}

	midpoint := q.DateFrom.Add(q.DateTo.Sub(q.DateFrom) / 2)
	sort.Slice(out, func(i, j int) bool {
		di := absDuration(out[i].EntryDate.Sub(midpoint))
		dj := absDuration(out[j].EntryDate.Sub(midpoint))
		if di != dj {
			return di < dj
		}
		return out[i].ID < out[j].ID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MockRepository) Post(ctx context.Context, req ledger.PostingRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PostCalled = true
	m.LastPostRequest = &req
	if m.PostErr != nil {
		return m.PostErr
	}

	total := decimal.Zero
	for _, id := range req.EntryIDs {
		entry, ok := m.entries[id]
		if !ok {
			return &ledger.RejectionError{MatchID: req.MatchID, Reason: fmt.Sprintf("entry %d not found", id)}
		}
		if entry.MatchID != "" && entry.MatchID != req.MatchID {
			return &ledger.RejectionError{MatchID: req.MatchID, Reason: fmt.Sprintf("entry %d already claimed", id)}
		}
		total = total.Add(entry.Amount)
	}
	if req.FeeAdjustment != nil {
		total = total.Add(*req.FeeAdjustment)
	}
	if !total.Equal(req.ExpectedTotal) {
		return &ledger.RejectionError{
			MatchID: req.MatchID,
			Reason:  fmt.Sprintf("posting unbalanced: claimed %s, expected %s", total, req.ExpectedTotal),
		}
	}

	for _, id := range req.EntryIDs {
		m.entries[id].MatchID = req.MatchID
	}
	if req.FeeAdjustment != nil {
		fee := model.JournalEntry{
			UserID:      req.UserID,
			EntryDate:   req.FeeDate,
			Amount:      *req.FeeAdjustment,
			Direction:   req.FeeDirection,
			AccountCode: req.FeeAccountCode,
			AccountType: model.AccountExpense,
			Memo:        req.Memo,
			Currency:    req.Currency,
			Status:      model.EntryPosted,
			MatchID:     req.MatchID,
		}
		fee.ID = m.nextEntryID
		m.nextEntryID++
		m.entries[fee.ID] = &fee
	}
	return nil
}

func (m *MockRepository) Unpost(ctx context.Context, matchID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnpostCalled = true
	m.UnpostedMatchIDs = append(m.UnpostedMatchIDs, matchID)
	if m.UnpostErr != nil {
		return m.UnpostErr
	}

	match := m.matches[matchID]
	linked := map[int64]bool{}
	if match != nil {
		for _, id := range match.EntryIDs {
			linked[id] = true
		}
	}
	for _, entry := range m.entries {
		if entry.MatchID != matchID {
			continue
		}
		entry.MatchID = ""
		if !linked[entry.ID] {
			// Auxiliary fee entry the posting created.
			entry.Status = model.EntryVoid
		}
	}
	return nil
}

// --- helpers ---

func (m *MockRepository) activeMatchForTxn(txnID string) *model.ReconciliationMatch {
	for _, match := range m.matches {
		if !match.Status.Active() {
			continue
		}
		for _, id := range match.TxnIDs {
			if id == txnID {
				return match
			}
		}
	}
	return nil
}

func sortTxns(txns []model.AtomicTransaction) {
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].TxnDate.Equal(txns[j].TxnDate) {
			return txns[i].TxnDate.Before(txns[j].TxnDate)
		}
		return txns[i].ID < txns[j].ID
	})
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
