// Package database archives finished matches in Postgres.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jason-s-yu/whot/engine"
	"github.com/jason-s-yu/whot/internal/models"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var (
	ErrDuplicateResult = errors.New("match result already archived")
	ErrResultNotFound  = errors.New("match result not found")
	ErrUnexpected      = errors.New("unexpected database error")
)

// Archive stores match results.
type Archive struct {
	pool *pgxpool.Pool
}

// Open connects to connString and verifies the connection.
func Open(ctx context.Context, connString string) (*Archive, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Archive{pool: pool}, nil
}

func (a *Archive) Close() { a.pool.Close() }

// Migrate applies the embedded schema migrations.
func (a *Archive) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(a.pool)
	defer db.Close()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	logrus.Info("Database migrations applied")
	return nil
}

// StoreMatchResult writes a result and its seats in one transaction.
func (a *Archive) StoreMatchResult(ctx context.Context, res models.MatchResult) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO match_results (room_id, room_code, tournament_id, match_id, game_mode, winner_id, started_at, finished_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8)`,
		res.RoomID, res.RoomCode, res.TournamentID, res.MatchID, string(res.GameMode), res.WinnerID, res.StartedAt, res.FinishedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateResult
		}
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}

	batch := &pgx.Batch{}
	for seat, p := range res.Players {
		batch.Queue(`
			INSERT INTO match_players (room_id, seat, player_id, name, score, cards_left, spectator)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			res.RoomID, seat, p.ID, p.Name, p.Score, p.CardsLeft, p.Spectator)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	return nil
}

// MatchResult loads the archived result of roomID.
func (a *Archive) MatchResult(ctx context.Context, roomID string) (models.MatchResult, error) {
	res := models.MatchResult{RoomID: roomID}
	var tournamentID, matchID, winnerID *string
	var mode string
	var started, finished time.Time

	err := a.pool.QueryRow(ctx, `
		SELECT room_code, tournament_id, match_id, game_mode, winner_id, started_at, finished_at
		FROM match_results WHERE room_id = $1`, roomID).
		Scan(&res.RoomCode, &tournamentID, &matchID, &mode, &winnerID, &started, &finished)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return models.MatchResult{}, ErrResultNotFound
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return models.MatchResult{}, err
		default:
			return models.MatchResult{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
		}
	}
	res.TournamentID = deref(tournamentID)
	res.MatchID = deref(matchID)
	res.WinnerID = deref(winnerID)
	res.GameMode = engine.GameMode(mode)
	res.StartedAt, res.FinishedAt = started, finished

	rows, err := a.pool.Query(ctx, `
		SELECT player_id, name, score, cards_left, spectator
		FROM match_players WHERE room_id = $1 ORDER BY seat`, roomID)
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ResultPlayer, error) {
		var p models.ResultPlayer
		err := row.Scan(&p.ID, &p.Name, &p.Score, &p.CardsLeft, &p.Spectator)
		return p, err
	})
	if err != nil {
		return models.MatchResult{}, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	res.Players = players
	return res, nil
}

// PlayerWins counts archived matches won by playerID.
func (a *Archive) PlayerWins(ctx context.Context, playerID string) (int, error) {
	var n int
	err := a.pool.QueryRow(ctx, `SELECT count(*) FROM match_results WHERE winner_id = $1`, playerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrUnexpected, err)
	}
	return n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
