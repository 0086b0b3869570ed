// Package store provides the sqlite persistence layer for users, alert
// rules and beaches.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shorewatch/shorewatch/internal/models"
	"github.com/shorewatch/shorewatch/pkg/tiers"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id             TEXT PRIMARY KEY,
	email          TEXT NOT NULL,
	tier           TEXT NOT NULL,
	status         TEXT NOT NULL,
	trial_end_date TIMESTAMP,
	created_at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS alert_rules (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	beach_id   TEXT NOT NULL,
	metric     TEXT NOT NULL,
	operator   TEXT NOT NULL,
	threshold  REAL,
	channels   TEXT NOT NULL,
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rules_beach_active ON alert_rules(beach_id, is_active);
CREATE INDEX IF NOT EXISTS idx_rules_user_active ON alert_rules(user_id, is_active);
CREATE TABLE IF NOT EXISTS beaches (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	island    TEXT,
	is_active INTEGER NOT NULL DEFAULT 1
);
`

// Store implements the user, rule and beach persistence contracts on a
// single sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at path. An empty path selects
// an in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	// modernc sqlite serializes writers itself, one connection avoids
	// SQLITE_BUSY under concurrent load.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle so the quota counter store can share it.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var (
		u        models.User
		tierStr  string
		status   string
		trialEnd sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, tier, status, trial_end_date, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &tierStr, &status, &trialEnd, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.Tier = tiers.Tier(tierStr)
	u.Status = models.SubscriptionStatus(status)
	if trialEnd.Valid {
		t := trialEnd.Time
		u.TrialEndDate = &t
	}
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, tier, status, trial_end_date, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, string(u.Tier), string(u.Status), u.TrialEndDate, u.CreatedAt)
	return err
}

// DowngradeTrial applies the trial expiry transition with a conditional
// update. The WHERE clause is the compare-and-set: only one of several
// concurrent observers sees a row change.
func (s *Store) DowngradeTrial(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET tier = ?, status = ? WHERE id = ? AND status = ?`,
		string(tiers.TierFree), string(models.StatusActive), id, string(models.StatusTrial))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	channels := make([]string, 0, len(rule.Channels))
	for _, ch := range rule.Channels {
		channels = append(channels, string(ch))
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_rules (id, user_id, beach_id, metric, operator, threshold, channels, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.UserID, rule.BeachID, string(rule.Metric), string(rule.Operator),
		rule.Threshold, strings.Join(channels, ","), rule.IsActive, rule.CreatedAt)
	return err
}

func (s *Store) GetRule(ctx context.Context, ruleID string) (*models.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, beach_id, metric, operator, threshold, channels, is_active, created_at
		 FROM alert_rules WHERE id = ?`, ruleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	rule, err := scanRule(rows)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Store) ActiveRulesForBeach(ctx context.Context, beachID string) ([]models.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, beach_id, metric, operator, threshold, channels, is_active, created_at
		 FROM alert_rules WHERE beach_id = ? AND is_active = 1`, beachID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (s *Store) ActiveRuleCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alert_rules WHERE user_id = ? AND is_active = 1`, userID).Scan(&n)
	return n, err
}

func (s *Store) SetRuleActive(ctx context.Context, ruleID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE alert_rules SET is_active = ? WHERE id = ?`, active, ruleID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	return nil
}

func scanRule(rows *sql.Rows) (models.AlertRule, error) {
	var (
		rule      models.AlertRule
		metric    string
		operator  string
		threshold sql.NullFloat64
		channels  string
		createdAt time.Time
	)
	if err := rows.Scan(&rule.ID, &rule.UserID, &rule.BeachID, &metric, &operator,
		&threshold, &channels, &rule.IsActive, &createdAt); err != nil {
		return rule, err
	}
	rule.Metric = models.Metric(metric)
	rule.Operator = models.Operator(operator)
	if threshold.Valid {
		v := threshold.Float64
		rule.Threshold = &v
	}
	for _, ch := range strings.Split(channels, ",") {
		if ch != "" {
			rule.Channels = append(rule.Channels, tiers.Channel(ch))
		}
	}
	rule.CreatedAt = createdAt
	return rule, nil
}

func (s *Store) ListActiveBeaches(ctx context.Context) ([]models.Beach, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, island, is_active FROM beaches WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Beach
	for rows.Next() {
		var (
			b      models.Beach
			island sql.NullString
		)
		if err := rows.Scan(&b.ID, &b.Name, &island, &b.IsActive); err != nil {
			return nil, err
		}
		b.Island = island.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) GetBeach(ctx context.Context, id string) (*models.Beach, error) {
	var (
		b      models.Beach
		island sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, island, is_active FROM beaches WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &island, &b.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("beach %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.Island = island.String
	return &b, nil
}

// SeedBeaches inserts beaches that are not present yet. Used at startup
// so a fresh database has something to sweep.
func (s *Store) SeedBeaches(ctx context.Context, beaches []models.Beach) error {
	for _, b := range beaches {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO beaches (id, name, island, is_active) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			b.ID, b.Name, b.Island, b.IsActive); err != nil {
			return err
		}
	}
	return nil
}
