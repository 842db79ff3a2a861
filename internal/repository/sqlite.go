package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/blockvote/internal/models"
)

// Meta keys
const (
	MetaNextElectionID = "next_election_id"
	MetaAdminWallet    = "admin_wallet"
)

// dbtx is the subset of *sql.DB and *sql.Tx the queries need
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every statement. It runs against either the pool or a transaction.
type queries struct {
	db dbtx
}

// Repository provides data access methods
type Repository struct {
	*queries
	conn *sql.DB
}

// Tx is a Store bound to an open transaction
type Tx struct {
	*queries
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, err
	}

	// A single connection serialises writers and keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	repo := newRepository(db)

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

func newRepository(db *sql.DB) *Repository {
	return &Repository{queries: &queries{db: db}, conn: db}
}

// DB returns the underlying database connection
func (r *Repository) DB() *sql.DB {
	return r.conn
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.conn.PingContext(ctx)
}

// InTx runs fn in a transaction. The transaction is rolled back if fn
// returns an error and committed otherwise.
func (r *Repository) InTx(ctx context.Context, fn func(Store) error) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := fn(&Tx{queries: &queries{db: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ledger_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS elections (
			id INTEGER PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			candidate_count INTEGER NOT NULL DEFAULT 0 CHECK (candidate_count >= 0),
			next_candidate_id INTEGER NOT NULL DEFAULT 1,
			deleted BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS candidates (
			election_id INTEGER NOT NULL,
			id INTEGER NOT NULL,
			name TEXT NOT NULL,
			vote_count INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
			PRIMARY KEY (election_id, id),
			FOREIGN KEY (election_id) REFERENCES elections(id)
		)`,
		`CREATE TABLE IF NOT EXISTS voters (
			wallet TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			matric_no TEXT NOT NULL UNIQUE COLLATE NOCASE,
			is_verified BOOLEAN NOT NULL DEFAULT 0,
			registered_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS voter_elections (
			wallet TEXT NOT NULL,
			election_id INTEGER NOT NULL,
			voted_at INTEGER NOT NULL,
			PRIMARY KEY (wallet, election_id),
			FOREIGN KEY (wallet) REFERENCES voters(wallet),
			FOREIGN KEY (election_id) REFERENCES elections(id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT UNIQUE NOT NULL,
			type TEXT NOT NULL,
			election_id INTEGER,
			candidate_id INTEGER,
			wallet TEXT,
			actor TEXT NOT NULL,
			payload TEXT,
			at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_election ON candidates(election_id)`,
		`CREATE INDEX IF NOT EXISTS idx_voter_elections_election ON voter_elections(election_id)`,
		`CREATE INDEX IF NOT EXISTS idx_voters_verified ON voters(is_verified)`,
	}

	for _, migration := range migrations {
		if _, err := r.conn.Exec(migration); err != nil {
			return err
		}
	}

	_, err := r.conn.Exec(`INSERT OR IGNORE INTO ledger_meta (key, value) VALUES (?, '1')`, MetaNextElectionID)
	return err
}

// checkWindow refuses election boundaries that would wrap when stored as nanoseconds
func checkWindow(e models.Election) error {
	if !models.InWindowRange(e.StartTime) || !models.InWindowRange(e.EndTime) {
		return fmt.Errorf("election %d window %s - %s is outside the storable range", e.ID,
			e.StartTime.Format(time.RFC3339), e.EndTime.Format(time.RFC3339))
	}
	return nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ==================== Meta Methods ====================

// GetMeta retrieves a ledger-wide value
func (q *queries) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM ledger_meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

// SetMeta stores a ledger-wide value
func (q *queries) SetMeta(ctx context.Context, key, value string) error {
	_, err := q.db.ExecContext(ctx, `INSERT OR REPLACE INTO ledger_meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// AllocateElectionID returns the next election id and advances the counter.
// Ids are never reused, even after an election is deleted.
func (q *queries) AllocateElectionID(ctx context.Context) (int64, error) {
	raw, err := q.GetMeta(ctx, MetaNextElectionID)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s %q: %w", MetaNextElectionID, raw, err)
	}
	if err := q.SetMeta(ctx, MetaNextElectionID, strconv.FormatInt(id+1, 10)); err != nil {
		return 0, err
	}
	return id, nil
}

// ==================== Election Methods ====================

const electionColumns = `id, title, description, start_time, end_time, candidate_count, next_candidate_id, deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanElection(row rowScanner) (*models.Election, error) {
	var e models.Election
	var start, end int64
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &start, &end,
		&e.CandidateCount, &e.NextCandidateID, &e.Deleted); err != nil {
		return nil, err
	}
	e.StartTime = fromNanos(start)
	e.EndTime = fromNanos(end)
	return &e, nil
}

// InsertElection stores a new election under its pre-allocated id
func (q *queries) InsertElection(ctx context.Context, e models.Election) error {
	if err := checkWindow(e); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO elections (id, title, description, start_time, end_time)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Title, e.Description, toNanos(e.StartTime), toNanos(e.EndTime))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetElection returns an election by id, including tombstoned ones
func (q *queries) GetElection(ctx context.Context, id int64) (*models.Election, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+electionColumns+` FROM elections WHERE id = ?`, id)
	e, err := scanElection(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return e, err
}

// ListElections returns live elections in id order
func (q *queries) ListElections(ctx context.Context) ([]models.Election, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+electionColumns+` FROM elections WHERE deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	elections := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, err
		}
		elections = append(elections, *e)
	}
	return elections, rows.Err()
}

// UpdateElection overwrites an election's title, description and window
func (q *queries) UpdateElection(ctx context.Context, e models.Election) error {
	if err := checkWindow(e); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `
		UPDATE elections SET title = ?, description = ?, start_time = ?, end_time = ?
		WHERE id = ? AND deleted = 0
	`, e.Title, e.Description, toNanos(e.StartTime), toNanos(e.EndTime), e.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// TombstoneElection marks an election deleted. The row stays so its id is never reused.
func (q *queries) TombstoneElection(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `UPDATE elections SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// AllocateCandidateID returns the next candidate id within an election and advances its counter
func (q *queries) AllocateCandidateID(ctx context.Context, electionID int64) (int64, error) {
	var next int64
	err := q.db.QueryRowContext(ctx,
		`SELECT next_candidate_id FROM elections WHERE id = ? AND deleted = 0`, electionID).Scan(&next)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	if _, err := q.db.ExecContext(ctx,
		`UPDATE elections SET next_candidate_id = ? WHERE id = ?`, next+1, electionID); err != nil {
		return 0, err
	}
	return next, nil
}

// AdjustCandidateCount adds delta to an election's candidate count
func (q *queries) AdjustCandidateCount(ctx context.Context, electionID int64, delta int) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE elections SET candidate_count = candidate_count + ? WHERE id = ?`, delta, electionID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ==================== Candidate Methods ====================

// InsertCandidate stores a new candidate under its pre-allocated id
func (q *queries) InsertCandidate(ctx context.Context, c models.Candidate) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO candidates (election_id, id, name, vote_count) VALUES (?, ?, ?, ?)
	`, c.ElectionID, c.ID, c.Name, c.VoteCount)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetCandidate returns one candidate of an election
func (q *queries) GetCandidate(ctx context.Context, electionID, candidateID int64) (*models.Candidate, error) {
	var c models.Candidate
	err := q.db.QueryRowContext(ctx, `
		SELECT election_id, id, name, vote_count FROM candidates WHERE election_id = ? AND id = ?
	`, electionID, candidateID).Scan(&c.ElectionID, &c.ID, &c.Name, &c.VoteCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCandidates returns an election's candidates in id order
func (q *queries) ListCandidates(ctx context.Context, electionID int64) ([]models.Candidate, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT election_id, id, name, vote_count FROM candidates WHERE election_id = ? ORDER BY id
	`, electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var c models.Candidate
		if err := rows.Scan(&c.ElectionID, &c.ID, &c.Name, &c.VoteCount); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// RenameCandidate changes a candidate's name
func (q *queries) RenameCandidate(ctx context.Context, electionID, candidateID int64, name string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE candidates SET name = ? WHERE election_id = ? AND id = ?`, name, electionID, candidateID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// DeleteCandidate removes a candidate
func (q *queries) DeleteCandidate(ctx context.Context, electionID, candidateID int64) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM candidates WHERE election_id = ? AND id = ?`, electionID, candidateID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ==================== Voter Methods ====================

const voterColumns = `wallet, name, matric_no, is_verified, registered_at`

func scanVoter(row rowScanner) (*models.Voter, error) {
	var v models.Voter
	var wallet string
	var registered int64
	if err := row.Scan(&wallet, &v.Name, &v.MatricNo, &v.IsVerified, &registered); err != nil {
		return nil, err
	}
	v.Wallet = common.HexToAddress(wallet)
	v.RegisteredAt = fromNanos(registered)
	v.VotedElections = []int64{}
	return &v, nil
}

// InsertVoter stores a new voter registration
func (q *queries) InsertVoter(ctx context.Context, v models.Voter) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO voters (wallet, name, matric_no, is_verified, registered_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.Wallet.Hex(), v.Name, v.MatricNo, v.IsVerified, toNanos(v.RegisteredAt))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// GetVoter returns a voter with their voted elections
func (q *queries) GetVoter(ctx context.Context, wallet common.Address) (*models.Voter, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voters WHERE wallet = ?`, wallet.Hex())
	return q.loadVoter(ctx, row)
}

// GetVoterByMatricNo looks a voter up by matriculation number, ignoring case
func (q *queries) GetVoterByMatricNo(ctx context.Context, matricNo string) (*models.Voter, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+voterColumns+` FROM voters WHERE matric_no = ?`, matricNo)
	return q.loadVoter(ctx, row)
}

func (q *queries) loadVoter(ctx context.Context, row *sql.Row) (*models.Voter, error) {
	v, err := scanVoter(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ids, err := q.votedElectionsOf(ctx, v.Wallet)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		v.VotedElections = ids
	}
	return v, nil
}

// ListVoters returns every registered voter in registration order
func (q *queries) ListVoters(ctx context.Context) ([]models.Voter, error) {
	return q.listVoters(ctx, `SELECT `+voterColumns+` FROM voters ORDER BY registered_at, wallet`)
}

// ListPendingVoters returns voters awaiting verification in registration order
func (q *queries) ListPendingVoters(ctx context.Context) ([]models.Voter, error) {
	return q.listVoters(ctx, `SELECT `+voterColumns+` FROM voters WHERE is_verified = 0 ORDER BY registered_at, wallet`)
}

func (q *queries) listVoters(ctx context.Context, query string) ([]models.Voter, error) {
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	voters := []models.Voter{}
	for rows.Next() {
		v, err := scanVoter(rows)
		if err != nil {
			return nil, err
		}
		voters = append(voters, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	voted, err := q.votedElections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range voters {
		if ids, ok := voted[voters[i].Wallet.Hex()]; ok {
			voters[i].VotedElections = ids
		}
	}
	return voters, nil
}

// votedElectionsOf returns the elections one wallet has voted in, in vote order
func (q *queries) votedElectionsOf(ctx context.Context, wallet common.Address) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT election_id FROM voter_elections WHERE wallet = ? ORDER BY voted_at, election_id`, wallet.Hex())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var electionID int64
		if err := rows.Scan(&electionID); err != nil {
			return nil, err
		}
		ids = append(ids, electionID)
	}
	return ids, rows.Err()
}

// votedElections maps wallet hex to the elections it has voted in, in vote order
func (q *queries) votedElections(ctx context.Context) (map[string][]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT wallet, election_id FROM voter_elections ORDER BY voted_at, election_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	voted := make(map[string][]int64)
	for rows.Next() {
		var wallet string
		var electionID int64
		if err := rows.Scan(&wallet, &electionID); err != nil {
			return nil, err
		}
		voted[wallet] = append(voted[wallet], electionID)
	}
	return voted, rows.Err()
}

// SetVoterVerified updates a voter's verification flag
func (q *queries) SetVoterVerified(ctx context.Context, wallet common.Address, verified bool) error {
	res, err := q.db.ExecContext(ctx, `UPDATE voters SET is_verified = ? WHERE wallet = ?`, verified, wallet.Hex())
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ==================== Ballot Methods ====================

// IncrementVoteCount adds one vote to a candidate and returns the new tally
func (q *queries) IncrementVoteCount(ctx context.Context, electionID, candidateID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE candidates SET vote_count = vote_count + 1 WHERE election_id = ? AND id = ?`,
		electionID, candidateID)
	if err != nil {
		return 0, err
	}
	if err := expectOneRow(res); err != nil {
		return 0, err
	}

	var count int64
	err = q.db.QueryRowContext(ctx,
		`SELECT vote_count FROM candidates WHERE election_id = ? AND id = ?`,
		electionID, candidateID).Scan(&count)
	return count, err
}

// MarkVoted records that wallet has voted in an election.
// A second mark for the same pair returns ErrDuplicate.
func (q *queries) MarkVoted(ctx context.Context, wallet common.Address, electionID int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO voter_elections (wallet, election_id, voted_at) VALUES (?, ?, ?)`,
		wallet.Hex(), electionID, toNanos(at))
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// HasVoted reports whether wallet has voted in an election
func (q *queries) HasVoted(ctx context.Context, electionID int64, wallet common.Address) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voter_elections WHERE election_id = ? AND wallet = ?`,
		electionID, wallet.Hex()).Scan(&n)
	return n > 0, err
}

// SumVotes returns the total of all candidate tallies in an election
func (q *queries) SumVotes(ctx context.Context, electionID int64) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(vote_count), 0) FROM candidates WHERE election_id = ?`, electionID).Scan(&total)
	return total, err
}

// CountVoters returns how many voters have voted in an election
func (q *queries) CountVoters(ctx context.Context, electionID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voter_elections WHERE election_id = ?`, electionID).Scan(&n)
	return n, err
}

// ==================== Audit Methods ====================

// InsertEvent appends an event to the audit log
func (q *queries) InsertEvent(ctx context.Context, evt models.Event) error {
	var payload sql.NullString
	if len(evt.Payload) > 0 {
		raw, err := json.Marshal(evt.Payload)
		if err != nil {
			return err
		}
		payload = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_id, type, election_id, candidate_id, wallet, actor, payload, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, evt.ID.String(), string(evt.Type), nullInt(evt.ElectionID), nullInt(evt.CandidateID),
		nullString(evt.Wallet), evt.Actor, payload, toNanos(evt.At))
	return err
}

// ListEvents returns the most recent events, newest first.
// A limit <= 0 returns the whole log.
func (q *queries) ListEvents(ctx context.Context, limit int) ([]models.Event, error) {
	query := `
		SELECT event_id, type, election_id, candidate_id, wallet, actor, payload, at
		FROM audit_log ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var evt models.Event
		var id, typ string
		var electionID, candidateID sql.NullInt64
		var wallet, payload sql.NullString
		var at int64

		if err := rows.Scan(&id, &typ, &electionID, &candidateID, &wallet, &evt.Actor, &payload, &at); err != nil {
			return nil, err
		}

		evt.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("audit event %q: %w", id, err)
		}
		evt.Type = models.EventType(typ)
		evt.ElectionID = electionID.Int64
		evt.CandidateID = candidateID.Int64
		evt.Wallet = wallet.String
		evt.At = fromNanos(at)
		if payload.Valid {
			if err := json.Unmarshal([]byte(payload.String), &evt.Payload); err != nil {
				return nil, fmt.Errorf("audit event %q payload: %w", id, err)
			}
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// ==================== Helpers ====================

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
