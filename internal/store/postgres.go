package store

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ugaemi/yamago-server/internal/game"
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    start_at TIMESTAMPTZ,
    countdown_start_at TIMESTAMPTZ,
    countdown_end_at TIMESTAMPTZ,
    countdown_duration_sec INTEGER,
    game_duration_sec INTEGER,
    pin_count INTEGER,
    timed_event_quarters INTEGER[] NOT NULL DEFAULT '{}',
    timed_event_active BOOLEAN NOT NULL DEFAULT false,
    timed_event_active_started_at TIMESTAMPTZ,
    timed_event_active_duration_sec INTEGER,
    timed_event_active_quarter INTEGER,
    timed_event_target_pin_id TEXT,
    timed_event_required_runners INTEGER,
    timed_event_result TEXT,
    timed_event_result_at TIMESTAMPTZ,
    oni_capture_radius_multiplier DOUBLE PRECISION NOT NULL DEFAULT 1,
    end_result TEXT,
    version BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_games_status ON games(status);

CREATE TABLE IF NOT EXISTS players (
    game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    nickname TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active',
    active BOOLEAN NOT NULL DEFAULT true,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (game_id, id)
);

CREATE TABLE IF NOT EXISTS pins (
    game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    id TEXT NOT NULL,
    lat DOUBLE PRECISION NOT NULL,
    lng DOUBLE PRECISION NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    cleared BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (game_id, id)
);

CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    game_id TEXT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
    type TEXT NOT NULL,
    quarter INTEGER NOT NULL,
    required_runners INTEGER NOT NULL,
    event_duration_seconds INTEGER NOT NULL,
    target_pin_id TEXT,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_game_created ON events(game_id, created_at DESC);
`

const gameColumns = `id, status, start_at, countdown_start_at, countdown_end_at,
	countdown_duration_sec, game_duration_sec, pin_count, timed_event_quarters,
	timed_event_active, timed_event_active_started_at, timed_event_active_duration_sec,
	timed_event_active_quarter, timed_event_target_pin_id, timed_event_required_runners,
	timed_event_result, timed_event_result_at, oni_capture_radius_multiplier,
	end_result, version, updated_at`

// PostgresStore implements GameStore using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and initializes the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// CreateGame inserts a new game.
func (s *PostgresStore) CreateGame(ctx context.Context, g *game.Game) error {
	row := encodeGame(g)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO games (`+gameColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, NOW())`,
		row.args()...)
	return classify(err)
}

// UpsertPlayer inserts or replaces a player.
func (s *PostgresStore) UpsertPlayer(ctx context.Context, gameID string, p game.Player) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO players (game_id, id, nickname, role, status, active)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (game_id, id) DO UPDATE
		 SET nickname = EXCLUDED.nickname, role = EXCLUDED.role, status = EXCLUDED.status,
		     active = EXCLUDED.active, updated_at = NOW()`,
		gameID, p.ID, p.Nickname, p.Role.String(), p.Status.String(), p.Active)
	return classify(err)
}

// SetPlayerStatus changes a player's status, as gameplay does on capture.
func (s *PostgresStore) SetPlayerStatus(ctx context.Context, gameID, playerID string, status game.PlayerStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE players SET status = $1, updated_at = NOW() WHERE game_id = $2 AND id = $3`,
		status.String(), gameID, playerID)
	return classify(err)
}

// InsertPins appends pins to a game.
func (s *PostgresStore) InsertPins(ctx context.Context, gameID string, pins []game.Pin) error {
	batch := &pgx.Batch{}
	queueInsertPins(batch, gameID, pins)
	return classify(s.pool.SendBatch(ctx, batch).Close())
}

// ClearPin marks a pin cleared, as gameplay does when runners clear it.
func (s *PostgresStore) ClearPin(ctx context.Context, gameID, pinID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE pins SET status = 'cleared', cleared = true, updated_at = NOW()
		 WHERE game_id = $1 AND id = $2`, gameID, pinID)
	return classify(err)
}

// GetGame returns the game, or nil if it does not exist.
func (s *PostgresStore) GetGame(ctx context.Context, id string) (*game.Game, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
	g, err := scanGame(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return g, classify(err)
}

// ListGamesByStatus returns games in any of the given statuses.
func (s *PostgresStore) ListGamesByStatus(ctx context.Context, statuses ...game.Status) ([]*game.Game, error) {
	names := make([]string, 0, len(statuses))
	for _, st := range statuses {
		names = append(names, st.String())
	}
	return s.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games WHERE status = ANY($1) ORDER BY id`, names)
}

// ListActiveTimedEventGames returns running games with an active timed event.
func (s *PostgresStore) ListActiveTimedEventGames(ctx context.Context) ([]*game.Game, error) {
	return s.queryGames(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE status = 'running' AND timed_event_active = true ORDER BY id`)
}

func (s *PostgresStore) queryGames(ctx context.Context, sql string, args ...any) ([]*game.Game, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []*game.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, classify(rows.Err())
}

// ListPlayers returns the players of a game.
func (s *PostgresStore) ListPlayers(ctx context.Context, gameID string) ([]game.Player, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, nickname, role, status, active FROM players WHERE game_id = $1 ORDER BY id`, gameID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []game.Player
	for rows.Next() {
		var p game.Player
		var role, status string
		if err := rows.Scan(&p.ID, &p.Nickname, &role, &status, &p.Active); err != nil {
			return nil, err
		}
		p.Role = game.ParseRole(role)
		p.Status = game.ParsePlayerStatus(status)
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

// ListPins returns the pins of a game.
func (s *PostgresStore) ListPins(ctx context.Context, gameID string) ([]game.Pin, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lat, lng, status, cleared FROM pins WHERE game_id = $1 ORDER BY created_at, id`, gameID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []game.Pin
	for rows.Next() {
		var p game.Pin
		var status string
		if err := rows.Scan(&p.ID, &p.Lat, &p.Lng, &status, &p.Cleared); err != nil {
			return nil, err
		}
		p.Status = game.ParsePinStatus(status)
		out = append(out, p)
	}
	return out, classify(rows.Err())
}

// LatestEvent returns the most recent event-log record, or nil.
func (s *PostgresStore) LatestEvent(ctx context.Context, gameID string) (*game.Event, error) {
	var ev game.Event
	var target *string
	err := s.pool.QueryRow(ctx,
		`SELECT id, game_id, type, quarter, required_runners, event_duration_seconds, target_pin_id, created_at
		 FROM events WHERE game_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, gameID).
		Scan(&ev.ID, &ev.GameID, &ev.Type, &ev.Quarter, &ev.RequiredRunners, &ev.EventDurationSeconds, &target, &ev.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	if target != nil {
		ev.TargetPinID = *target
	}
	return &ev, nil
}

// RunTransaction locks the game row, applies decide to the fresh state and
// writes the result guarded by the version it read.
func (s *PostgresStore) RunTransaction(ctx context.Context, gameID string, decide Decide) (game.Game, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return game.Game{}, false, classify(err)
	}
	defer tx.Rollback(ctx)

	current, err := scanGame(tx.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1 FOR UPDATE`, gameID))
	if errors.Is(err, pgx.ErrNoRows) {
		return game.Game{}, false, nil
	}
	if err != nil {
		return game.Game{}, false, classify(err)
	}

	m, ok := decide(current.Clone())
	if !ok {
		return *current, false, nil
	}

	next := m.Game.Clone()
	next.ID = gameID
	next.TimedEventQuarters = game.NormalizeQuarters(next.TimedEventQuarters)
	next.Version = current.Version
	row := encodeGame(&next)
	tag, err := tx.Exec(ctx,
		`UPDATE games SET
		    status = $2, start_at = $3, countdown_start_at = $4, countdown_end_at = $5,
		    countdown_duration_sec = $6, game_duration_sec = $7, pin_count = $8,
		    timed_event_quarters = $9, timed_event_active = $10,
		    timed_event_active_started_at = $11, timed_event_active_duration_sec = $12,
		    timed_event_active_quarter = $13, timed_event_target_pin_id = $14,
		    timed_event_required_runners = $15, timed_event_result = $16,
		    timed_event_result_at = $17, oni_capture_radius_multiplier = $18,
		    end_result = $19, version = version + 1, updated_at = NOW()
		 WHERE id = $1 AND version = $20`,
		row.args()...)
	if err != nil {
		return game.Game{}, false, classify(err)
	}
	if tag.RowsAffected() == 0 {
		return *current, false, nil
	}

	for _, ev := range m.Events {
		if _, err := tx.Exec(ctx,
			`INSERT INTO events (id, game_id, type, quarter, required_runners, event_duration_seconds, target_pin_id, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			ev.ID, gameID, ev.Type, ev.Quarter, ev.RequiredRunners, ev.EventDurationSeconds,
			nullString(ev.TargetPinID), ev.CreatedAt); err != nil {
			return game.Game{}, false, classify(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return game.Game{}, false, classify(err)
	}
	next.Version = current.Version + 1
	return next, true, nil
}

// ResetBoard revives downed runners and replaces all pins in one transaction.
func (s *PostgresStore) ResetBoard(ctx context.Context, gameID string, pins []game.Pin) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`UPDATE players SET status = 'active', updated_at = NOW()
			WHERE game_id = $1 AND role = 'runner' AND status = 'downed'`, gameID)
		batch.Queue(`DELETE FROM pins WHERE game_id = $1`, gameID)
		queueInsertPins(batch, gameID, pins)
		return tx.SendBatch(ctx, batch).Close()
	})
}

// RelocatePins moves pins that are still pending in one transaction. Pins
// cleared since the caller read them stay where they are.
func (s *PostgresStore) RelocatePins(ctx context.Context, gameID string, moves []PinMove) error {
	if len(moves) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, mv := range moves {
			batch.Queue(`UPDATE pins SET lat = $1, lng = $2, updated_at = NOW()
				WHERE game_id = $3 AND id = $4 AND status = 'pending' AND cleared = false`,
				mv.To.Lat, mv.To.Lng, gameID, mv.PinID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

func queueInsertPins(batch *pgx.Batch, gameID string, pins []game.Pin) {
	for _, p := range pins {
		batch.Queue(`INSERT INTO pins (game_id, id, lat, lng, status, cleared) VALUES ($1, $2, $3, $4, $5, $6)`,
			gameID, p.ID, p.Lat, p.Lng, p.Status.String(), p.Cleared)
	}
}

// gameRow is the column-level encoding of a game.
type gameRow struct {
	id                   string
	status               string
	startAt              any
	countdownStartAt     any
	countdownEndAt       any
	countdownDurationSec *int32
	gameDurationSec      *int32
	pinCount             *int32
	quarters             []int32
	active               bool
	activeStartedAt      any
	activeDurationSec    *int32
	activeQuarter        *int32
	targetPinID          *string
	requiredRunners      *int32
	result               *string
	resultAt             any
	multiplier           float64
	endResult            *string
	version              int64
}

func (r gameRow) args() []any {
	return []any{
		r.id, r.status, r.startAt, r.countdownStartAt, r.countdownEndAt,
		r.countdownDurationSec, r.gameDurationSec, r.pinCount, r.quarters,
		r.active, r.activeStartedAt, r.activeDurationSec, r.activeQuarter,
		r.targetPinID, r.requiredRunners, r.result, r.resultAt, r.multiplier,
		r.endResult, r.version,
	}
}

func encodeGame(g *game.Game) gameRow {
	row := gameRow{
		id:                   g.ID,
		status:               g.Status.String(),
		startAt:              g.StartAt,
		countdownStartAt:     g.CountdownStartAt,
		countdownEndAt:       g.CountdownEndAt,
		countdownDurationSec: nullInt(g.CountdownDurationSec),
		gameDurationSec:      nullInt(g.GameDurationSec),
		pinCount:             nullInt(g.PinCount),
		quarters:             make([]int32, 0, len(g.TimedEventQuarters)),
		active:               g.TimedEventActive(),
		resultAt:             g.TimedEventResultAt,
		multiplier:           g.OniCaptureRadiusMultiplier,
		version:              g.Version,
	}
	for _, q := range g.TimedEventQuarters {
		row.quarters = append(row.quarters, int32(q))
	}
	if ev := g.TimedEvent; ev != nil {
		row.activeStartedAt = ev.StartedAt
		row.activeDurationSec = nullInt(ev.DurationSec)
		row.activeQuarter = nullInt(ev.Quarter)
		row.targetPinID = nullString(ev.TargetPinID)
		row.requiredRunners = nullInt(ev.RequiredRunners)
	}
	if g.TimedEventResult != game.ResultNone {
		s := g.TimedEventResult.String()
		row.result = &s
	}
	if g.EndResult != game.EndNone {
		s := g.EndResult.String()
		row.endResult = &s
	}
	return row
}

func scanGame(row pgx.Row) (*game.Game, error) {
	var (
		g                                         game.Game
		status                                    string
		countdownSec, durationSec, pinCount       *int32
		quarters                                  []int32
		active                                    bool
		activeStartedAt                           *time.Time
		activeDuration, activeQuarter, reqRunners *int32
		target, result, endResult                 *string
	)
	err := row.Scan(
		&g.ID, &status, &g.StartAt, &g.CountdownStartAt, &g.CountdownEndAt,
		&countdownSec, &durationSec, &pinCount, &quarters,
		&active, &activeStartedAt, &activeDuration, &activeQuarter, &target, &reqRunners,
		&result, &g.TimedEventResultAt, &g.OniCaptureRadiusMultiplier,
		&endResult, &g.Version, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Status = game.ParseStatus(status)
	g.CountdownDurationSec = intValue(countdownSec)
	g.GameDurationSec = intValue(durationSec)
	g.PinCount = intValue(pinCount)
	qs := make([]int, 0, len(quarters))
	for _, q := range quarters {
		qs = append(qs, int(q))
	}
	g.TimedEventQuarters = game.NormalizeQuarters(qs)
	g.TimedEvent = game.NewTimedEventFromFields(active, activeStartedAt,
		intPtr(activeDuration), intPtr(activeQuarter), intPtr(reqRunners), target)
	if result != nil {
		g.TimedEventResult = game.ParseTimedEventResult(*result)
	}
	if endResult != nil {
		g.EndResult = game.ParseEndResult(*endResult)
	}
	if g.OniCaptureRadiusMultiplier <= 0 {
		g.OniCaptureRadiusMultiplier = game.NormalCaptureMultiplier
	}
	return &g, nil
}

// classify wraps connection-level and serialization failures as ErrTransient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "57P01", "57P03", "53300":
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

func nullInt(v int) *int32 {
	if v == 0 {
		return nil
	}
	n := int32(v)
	return &n
}

func intValue(v *int32) int {
	if v == nil {
		return 0
	}
	return int(*v)
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
