package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/classics"
	"github.com/haneul-labs/saju-engine/internal/saju"
	"github.com/haneul-labs/saju-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init
// works inside the Docker runtime image, which does not copy
// internal/db/schema.sql into the final stage.
//
//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// noRows folds pgx's not-found sentinel into the (nil, nil) convention.
func noRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	log.Info().Msg("connected to PostgreSQL")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	log.Info().Msg("schema initialized")
	return nil
}

// --- profiles ---

const profileColumns = `platform, user_id, display_name,
	birth_year, birth_month, birth_day, birth_hour, birth_minute, gender,
	is_active, premium_until, free_unlocks, referral_code, last_active_at, created_at`

func scanProfile(row interface{ Scan(dest ...any) error }) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.Platform, &p.UserID, &p.DisplayName,
		&p.Birth.Year, &p.Birth.Month, &p.Birth.Day, &p.Birth.Hour, &p.Birth.Minute, &p.Birth.Gender,
		&p.IsActive, &p.PremiumUntil, &p.FreeUnlocks, &p.ReferralCode, &p.LastActiveAt, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, platform models.Platform, userID string) (*models.Profile, error) {
	sql := `SELECT ` + profileColumns + ` FROM profiles WHERE platform = $1 AND user_id = $2`
	p, err := scanProfile(s.pool.QueryRow(ctx, sql, platform, userID))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

func (s *PostgresStore) UpsertProfile(ctx context.Context, p *models.Profile) error {
	sql := `
		INSERT INTO profiles (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (platform, user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			birth_year = EXCLUDED.birth_year,
			birth_month = EXCLUDED.birth_month,
			birth_day = EXCLUDED.birth_day,
			birth_hour = EXCLUDED.birth_hour,
			birth_minute = EXCLUDED.birth_minute,
			gender = EXCLUDED.gender,
			is_active = EXCLUDED.is_active,
			premium_until = EXCLUDED.premium_until,
			free_unlocks = EXCLUDED.free_unlocks,
			referral_code = EXCLUDED.referral_code,
			last_active_at = EXCLUDED.last_active_at;
	`
	_, err := s.pool.Exec(ctx, sql,
		p.Platform, p.UserID, p.DisplayName,
		p.Birth.Year, p.Birth.Month, p.Birth.Day, p.Birth.Hour, p.Birth.Minute, p.Birth.Gender,
		p.IsActive, p.PremiumUntil, p.FreeUnlocks, p.ReferralCode, p.LastActiveAt, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteProfile(ctx context.Context, platform models.Platform, userID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, sql := range []string{
		`DELETE FROM conversation_turns WHERE platform = $1 AND user_id = $2`,
		`DELETE FROM pending_actions WHERE platform = $1 AND user_id = $2`,
		`DELETE FROM interest_scores WHERE platform = $1 AND user_id = $2`,
		`DELETE FROM profiles WHERE platform = $1 AND user_id = $2`,
	} {
		if _, err := tx.Exec(ctx, sql, platform, userID); err != nil {
			return fmt.Errorf("failed to delete profile data: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) SetProfileActive(ctx context.Context, platform models.Platform, userID string, active bool) error {
	sql := `UPDATE profiles SET is_active = $3 WHERE platform = $1 AND user_id = $2`
	_, err := s.pool.Exec(ctx, sql, platform, userID, active)
	return err
}

func (s *PostgresStore) TouchLastActive(ctx context.Context, platform models.Platform, userID string, at time.Time) error {
	sql := `UPDATE profiles SET last_active_at = $3 WHERE platform = $1 AND user_id = $2`
	_, err := s.pool.Exec(ctx, sql, platform, userID, at)
	return err
}

func (s *PostgresStore) ActiveProfilesSince(ctx context.Context, since time.Time) ([]models.Profile, error) {
	sql := `SELECT ` + profileColumns + ` FROM profiles
		WHERE is_active AND last_active_at >= $1 ORDER BY user_id`
	rows, err := s.pool.Query(ctx, sql, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) FindProfileByReferral(ctx context.Context, code string) (*models.Profile, error) {
	sql := `SELECT ` + profileColumns + ` FROM profiles WHERE referral_code = $1 LIMIT 1`
	p, err := scanProfile(s.pool.QueryRow(ctx, sql, code))
	if noRows(err) {
		return nil, nil
	}
	return p, err
}

func (s *PostgresStore) AddFreeUnlocks(ctx context.Context, platform models.Platform, userID string, delta int) error {
	sql := `UPDATE profiles SET free_unlocks = free_unlocks + $3 WHERE platform = $1 AND user_id = $2`
	_, err := s.pool.Exec(ctx, sql, platform, userID, delta)
	return err
}

// SpendFreeUnlock decrements atomically; the guard in the WHERE clause
// makes concurrent spends safe without a transaction.
func (s *PostgresStore) SpendFreeUnlock(ctx context.Context, platform models.Platform, userID string) (bool, error) {
	sql := `UPDATE profiles SET free_unlocks = free_unlocks - 1
		WHERE platform = $1 AND user_id = $2 AND free_unlocks > 0`
	tag, err := s.pool.Exec(ctx, sql, platform, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SetPremiumUntil(ctx context.Context, platform models.Platform, userID string, until time.Time) error {
	sql := `UPDATE profiles SET premium_until = $3 WHERE platform = $1 AND user_id = $2`
	_, err := s.pool.Exec(ctx, sql, platform, userID, until)
	return err
}

// --- conversation history ---

// AppendTurn inserts the turn and prunes beyond HistoryCap in one
// transaction, so a crash between the two cannot grow histories
// without bound.
func (s *PostgresStore) AppendTurn(ctx context.Context, turn *models.ConversationTurn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertSQL := `
		INSERT INTO conversation_turns (platform, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := tx.Exec(ctx, insertSQL, turn.Platform, turn.UserID, turn.Role, turn.Content, turn.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}

	pruneSQL := `
		DELETE FROM conversation_turns WHERE id IN (
			SELECT id FROM conversation_turns
			WHERE platform = $1 AND user_id = $2
			ORDER BY id DESC OFFSET $3
		);
	`
	if _, err := tx.Exec(ctx, pruneSQL, turn.Platform, turn.UserID, HistoryCap); err != nil {
		return fmt.Errorf("failed to prune turns: %w", err)
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) RecentTurns(ctx context.Context, platform models.Platform, userID string, n int) ([]models.ConversationTurn, error) {
	if n <= 0 || n > HistoryCap {
		n = HistoryCap
	}
	sql := `
		SELECT platform, user_id, role, content, created_at FROM (
			SELECT id, platform, user_id, role, content, created_at
			FROM conversation_turns
			WHERE platform = $1 AND user_id = $2
			ORDER BY id DESC LIMIT $3
		) latest ORDER BY id ASC;
	`
	rows, err := s.pool.Query(ctx, sql, platform, userID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ConversationTurn
	for rows.Next() {
		var t models.ConversationTurn
		if err := rows.Scan(&t.Platform, &t.UserID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- pending actions ---

func (s *PostgresStore) SetPending(ctx context.Context, a *models.PendingAction) error {
	sql := `
		INSERT INTO pending_actions (platform, user_id, kind, payload, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (platform, user_id, kind) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at,
			created_at = EXCLUDED.created_at;
	`
	_, err := s.pool.Exec(ctx, sql, a.Platform, a.UserID, a.Kind, []byte(a.Payload), a.ExpiresAt, a.CreatedAt)
	return err
}

func (s *PostgresStore) GetPending(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) (*models.PendingAction, error) {
	sql := `SELECT platform, user_id, kind, payload, expires_at, created_at
		FROM pending_actions WHERE platform = $1 AND user_id = $2 AND kind = $3`
	var a models.PendingAction
	var payload []byte
	err := s.pool.QueryRow(ctx, sql, platform, userID, kind).
		Scan(&a.Platform, &a.UserID, &a.Kind, &payload, &a.ExpiresAt, &a.CreatedAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Payload = payload
	return &a, nil
}

func (s *PostgresStore) DeletePending(ctx context.Context, platform models.Platform, userID string, kind models.PendingKind) error {
	sql := `DELETE FROM pending_actions WHERE platform = $1 AND user_id = $2 AND kind = $3`
	_, err := s.pool.Exec(ctx, sql, platform, userID, kind)
	return err
}

func (s *PostgresStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM pending_actions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// --- daily usage ---

func (s *PostgresStore) DailyUsage(ctx context.Context, platform models.Platform, userID, day string) (int, error) {
	sql := `SELECT used FROM daily_usage WHERE platform = $1 AND user_id = $2 AND day = $3`
	var used int
	err := s.pool.QueryRow(ctx, sql, platform, userID, day).Scan(&used)
	if noRows(err) {
		return 0, nil
	}
	return used, err
}

func (s *PostgresStore) IncrementDailyUsage(ctx context.Context, platform models.Platform, userID, day string) error {
	sql := `
		INSERT INTO daily_usage (platform, user_id, day, used) VALUES ($1, $2, $3, 1)
		ON CONFLICT (platform, user_id, day) DO UPDATE SET used = daily_usage.used + 1;
	`
	_, err := s.pool.Exec(ctx, sql, platform, userID, day)
	return err
}

// --- billing ---

func (s *PostgresStore) Subscription(ctx context.Context, platform models.Platform, userID string) (*models.Subscription, error) {
	sql := `SELECT platform, user_id, tier, expires_at, created_at
		FROM subscriptions WHERE platform = $1 AND user_id = $2`
	var sub models.Subscription
	err := s.pool.QueryRow(ctx, sql, platform, userID).
		Scan(&sub.Platform, &sub.UserID, &sub.Tier, &sub.ExpiresAt, &sub.CreatedAt)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) CreditBalance(ctx context.Context, platform models.Platform, userID string) (int, error) {
	sql := `SELECT COALESCE(SUM(delta), 0) FROM credit_ledger WHERE platform = $1 AND user_id = $2`
	var balance int
	err := s.pool.QueryRow(ctx, sql, platform, userID).Scan(&balance)
	return balance, err
}

func (s *PostgresStore) SaveOrder(ctx context.Context, o *models.Order) error {
	sql := `
		INSERT INTO orders (id, platform, user_id, product, amount_krw, status, created_at, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			paid_at = EXCLUDED.paid_at;
	`
	_, err := s.pool.Exec(ctx, sql, o.ID, o.Platform, o.UserID, o.Product, o.AmountKRW, o.Status, o.CreatedAt, o.PaidAt)
	return err
}

func (s *PostgresStore) SaveSubscription(ctx context.Context, sub *models.Subscription) error {
	sql := `
		INSERT INTO subscriptions (platform, user_id, tier, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (platform, user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			expires_at = EXCLUDED.expires_at;
	`
	_, err := s.pool.Exec(ctx, sql, sub.Platform, sub.UserID, sub.Tier, sub.ExpiresAt, sub.CreatedAt)
	return err
}

func (s *PostgresStore) AddCredits(ctx context.Context, platform models.Platform, userID string, delta int, reason string) error {
	sql := `INSERT INTO credit_ledger (platform, user_id, delta, reason) VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, sql, platform, userID, delta, reason)
	return err
}

// --- interests ---

func (s *PostgresStore) TrackInterest(ctx context.Context, platform models.Platform, userID string, categories []models.InterestCategory, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	upsertSQL := `
		INSERT INTO interest_scores (platform, user_id, category, ask_count, weighted_count, last_asked_at)
		VALUES ($1, $2, $3, 1, 2, $4)
		ON CONFLICT (platform, user_id, category) DO UPDATE SET
			ask_count = interest_scores.ask_count + 1,
			weighted_count = interest_scores.weighted_count + 2,
			last_asked_at = EXCLUDED.last_asked_at;
	`
	for _, cat := range categories {
		if _, err := tx.Exec(ctx, upsertSQL, platform, userID, cat, now); err != nil {
			return fmt.Errorf("failed to upsert interest: %w", err)
		}
	}

	rows, err := s.readInterestRows(ctx, tx, platform, userID)
	if err != nil {
		return err
	}
	recomputeScores(rows)
	if err := writeInterestScores(ctx, tx, platform, userID, rows); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) InterestScores(ctx context.Context, platform models.Platform, userID string) ([]models.InterestScore, error) {
	sql := `
		SELECT category, ask_count, weighted_count, score, last_asked_at
		FROM interest_scores WHERE platform = $1 AND user_id = $2
		ORDER BY weighted_count DESC;
	`
	rows, err := s.pool.Query(ctx, sql, platform, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InterestScore
	for rows.Next() {
		var r models.InterestScore
		if err := rows.Scan(&r.Category, &r.AskCount, &r.WeightedCount, &r.Score, &r.LastAskedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DecayInterests shrinks stale weighted counts, then renormalizes every
// touched user's scores so they still sum to 100.
func (s *PostgresStore) DecayInterests(ctx context.Context, olderThan time.Time, _ time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	decaySQL := `
		UPDATE interest_scores SET weighted_count = weighted_count * $2
		WHERE last_asked_at < $1
		RETURNING platform, user_id;
	`
	rows, err := tx.Query(ctx, decaySQL, olderThan, interestDecayFactor)
	if err != nil {
		return 0, err
	}
	type key struct {
		platform models.Platform
		userID   string
	}
	decayed := 0
	touched := make(map[key]struct{})
	for rows.Next() {
		var k key
		if err := rows.Scan(&k.platform, &k.userID); err != nil {
			rows.Close()
			return 0, err
		}
		touched[k] = struct{}{}
		decayed++
	}
	rows.Close()
	if rows.Err() != nil {
		return 0, rows.Err()
	}

	for k := range touched {
		scoreRows, err := s.readInterestRows(ctx, tx, k.platform, k.userID)
		if err != nil {
			return 0, err
		}
		recomputeScores(scoreRows)
		if err := writeInterestScores(ctx, tx, k.platform, k.userID, scoreRows); err != nil {
			return 0, err
		}
	}
	return decayed, tx.Commit(ctx)
}

func (s *PostgresStore) readInterestRows(ctx context.Context, tx pgx.Tx, platform models.Platform, userID string) ([]models.InterestScore, error) {
	sql := `
		SELECT category, ask_count, weighted_count, score, last_asked_at
		FROM interest_scores WHERE platform = $1 AND user_id = $2;
	`
	rows, err := tx.Query(ctx, sql, platform, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InterestScore
	for rows.Next() {
		var r models.InterestScore
		if err := rows.Scan(&r.Category, &r.AskCount, &r.WeightedCount, &r.Score, &r.LastAskedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func writeInterestScores(ctx context.Context, tx pgx.Tx, platform models.Platform, userID string, rows []models.InterestScore) error {
	sql := `UPDATE interest_scores SET score = $4
		WHERE platform = $1 AND user_id = $2 AND category = $3`
	for _, r := range rows {
		if _, err := tx.Exec(ctx, sql, platform, userID, r.Category, r.Score); err != nil {
			return fmt.Errorf("failed to write interest score: %w", err)
		}
	}
	return nil
}

// --- push log ---

func (s *PostgresStore) AppendPushLog(ctx context.Context, rec *models.PushRecord) error {
	sql := `
		INSERT INTO push_log (platform, user_id, category, message, status, opened, converted_to_premium, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, sql, rec.Platform, rec.UserID, rec.Category, rec.Message,
		rec.Status, rec.Opened, rec.ConvertedToPremium, rec.SentAt)
	return err
}

// MarkPushOpened flags the user's most recent push; engagement always
// attributes to the latest send.
func (s *PostgresStore) MarkPushOpened(ctx context.Context, platform models.Platform, userID string, converted bool) error {
	sql := `
		UPDATE push_log SET opened = TRUE, converted_to_premium = converted_to_premium OR $3
		WHERE id = (
			SELECT id FROM push_log WHERE platform = $1 AND user_id = $2
			ORDER BY id DESC LIMIT 1
		);
	`
	_, err := s.pool.Exec(ctx, sql, platform, userID, converted)
	return err
}

// --- pillar cache ---

func (s *PostgresStore) GetPillars(ctx context.Context, key string) (*saju.Pillars, error) {
	sql := `
		SELECT year_stem, year_branch, month_stem, month_branch,
			day_stem, day_branch, hour_stem, hour_branch
		FROM pillar_cache WHERE cache_key = $1;
	`
	var p saju.Pillars
	err := s.pool.QueryRow(ctx, sql, key).Scan(
		&p.Year.Stem, &p.Year.Branch, &p.Month.Stem, &p.Month.Branch,
		&p.Day.Stem, &p.Day.Branch, &p.Hour.Stem, &p.Hour.Branch,
	)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) PutPillars(ctx context.Context, key string, p saju.Pillars) error {
	sql := `
		INSERT INTO pillar_cache (cache_key, year_stem, year_branch, month_stem, month_branch,
			day_stem, day_branch, hour_stem, hour_branch)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (cache_key) DO NOTHING;
	`
	_, err := s.pool.Exec(ctx, sql, key,
		p.Year.Stem, p.Year.Branch, p.Month.Stem, p.Month.Branch,
		p.Day.Stem, p.Day.Branch, p.Hour.Stem, p.Hour.Branch,
	)
	return err
}

// --- classics ---

// SearchChunks loads the source's chunks and ranks by cosine in
// process. Corpora are a few thousand passages per source, small
// enough that an extension-backed vector index is not worth the
// operational cost.
func (s *PostgresStore) SearchChunks(ctx context.Context, source string, embedding []float32, k int, minScore float64) ([]models.ClassicsChunk, error) {
	sql := `SELECT id, source, section, content, embedding FROM classics_chunks WHERE source = $1`
	rows, err := s.pool.Query(ctx, sql, source)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ClassicsChunk
	for rows.Next() {
		var c models.ClassicsChunk
		if err := rows.Scan(&c.ID, &c.Source, &c.Section, &c.Content, &c.Embedding); err != nil {
			return nil, err
		}
		c.Score = classics.Cosine(embedding, c.Embedding)
		if c.Score < minScore {
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (s *PostgresStore) InsertChunk(ctx context.Context, c *models.ClassicsChunk) error {
	sql := `
		INSERT INTO classics_chunks (source, section, content, embedding)
		VALUES ($1, $2, $3, $4) RETURNING id;
	`
	return s.pool.QueryRow(ctx, sql, c.Source, c.Section, c.Content, c.Embedding).Scan(&c.ID)
}
