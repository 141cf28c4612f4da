package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"lol-trivia-service/internal/domain"
)

// Store persists lobbies, players and champion masteries in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const uniqueViolation = "23505"

const playerColumns = `p.riot_id, p.game_name, p.tag_line, p.puuid, p.region, p.rank,
	p.most_kills, p.most_deaths, p.winrate, p.updated_at`

func (s *Store) CreateLobby(ctx context.Context, lobby domain.Lobby) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO lobbies (id, code, host_id, started, created_at) VALUES ($1, $2, $3, $4, $5)`,
		lobby.ID, lobby.Code, lobby.HostID, lobby.Started, lobby.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrDuplicateLobbyCode
	}
	if err != nil {
		return fmt.Errorf("insert lobby: %w", err)
	}
	return nil
}

func (s *Store) GetLobby(ctx context.Context, lobbyID string) (domain.Lobby, error) {
	var lobby domain.Lobby
	err := s.pool.QueryRow(ctx,
		`SELECT id, code, host_id, started, created_at FROM lobbies WHERE id=$1`, lobbyID).
		Scan(&lobby.ID, &lobby.Code, &lobby.HostID, &lobby.Started, &lobby.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lobby{}, domain.ErrLobbyNotFound
	}
	if err != nil {
		return domain.Lobby{}, fmt.Errorf("load lobby: %w", err)
	}

	players, err := s.lobbyPlayers(ctx, lobbyID)
	if err != nil {
		return domain.Lobby{}, err
	}
	lobby.Players = players
	return lobby, nil
}

func (s *Store) GetLobbyPlayers(ctx context.Context, lobbyID string) ([]domain.Player, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lobbies WHERE id=$1)`, lobbyID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check lobby: %w", err)
	}
	if !exists {
		return nil, domain.ErrLobbyNotFound
	}
	return s.lobbyPlayers(ctx, lobbyID)
}

func (s *Store) lobbyPlayers(ctx context.Context, lobbyID string) ([]domain.Player, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+playerColumns+`
		FROM lobby_players lp JOIN players p ON p.riot_id = lp.riot_id
		WHERE lp.lobby_id=$1 ORDER BY lp.joined_at, p.riot_id`, lobbyID)
	if err != nil {
		return nil, fmt.Errorf("load lobby players: %w", err)
	}
	defer rows.Close()

	players := []domain.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lobby player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// AddLobbyPlayer inserts a stub player row for riot ids that have never been synced.
func (s *Store) AddLobbyPlayer(ctx context.Context, lobbyID, riotID string) error {
	name, tag, _ := domain.SplitRiotID(riotID)
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO players (riot_id, game_name, tag_line) VALUES ($1, $2, $3) ON CONFLICT (riot_id) DO NOTHING`,
			riotID, name, tag); err != nil {
			return fmt.Errorf("ensure player: %w", err)
		}
		res, err := tx.Exec(ctx,
			`INSERT INTO lobby_players (lobby_id, riot_id)
			 SELECT id, $2 FROM lobbies WHERE id=$1
			 ON CONFLICT (lobby_id, riot_id) DO NOTHING`, lobbyID, riotID)
		if err != nil {
			return fmt.Errorf("add lobby player: %w", err)
		}
		if res.RowsAffected() == 0 {
			return s.requireLobby(ctx, tx, lobbyID)
		}
		return nil
	})
}

func (s *Store) RemoveLobbyPlayer(ctx context.Context, lobbyID, riotID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM lobby_players WHERE lobby_id=$1 AND riot_id=$2`, lobbyID, riotID); err != nil {
		return fmt.Errorf("remove lobby player: %w", err)
	}
	return nil
}

func (s *Store) SetLobbyStarted(ctx context.Context, lobbyID string, started bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE lobbies SET started=$2 WHERE id=$1`, lobbyID, started)
	if err != nil {
		return fmt.Errorf("update lobby: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLobbyNotFound
	}
	return nil
}

func (s *Store) GetPlayer(ctx context.Context, riotID string) (domain.Player, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM players p WHERE p.riot_id=$1`, riotID)
	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.Player{}, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

// SavePlayerStats upserts the player and replaces its mastery rows in one transaction.
func (s *Store) SavePlayerStats(ctx context.Context, stats domain.PlayerStats) (domain.Player, error) {
	var player domain.Player
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `INSERT INTO players AS p
			(riot_id, game_name, tag_line, puuid, region, rank, most_kills, most_deaths, winrate, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
			ON CONFLICT (riot_id) DO UPDATE SET
				game_name=EXCLUDED.game_name, tag_line=EXCLUDED.tag_line, puuid=EXCLUDED.puuid,
				region=EXCLUDED.region, rank=EXCLUDED.rank, most_kills=EXCLUDED.most_kills,
				most_deaths=EXCLUDED.most_deaths, winrate=EXCLUDED.winrate, updated_at=EXCLUDED.updated_at
			RETURNING `+playerColumns,
			stats.RiotID, stats.GameName, stats.TagLine, stats.PUUID, stats.Region, stats.Rank,
			stats.MostKills, stats.MostDeaths, stats.Winrate)
		p, err := scanPlayer(row)
		if err != nil {
			return fmt.Errorf("upsert player: %w", err)
		}
		player = p

		if _, err := tx.Exec(ctx, `DELETE FROM champion_masteries WHERE riot_id=$1`, stats.RiotID); err != nil {
			return fmt.Errorf("clear masteries: %w", err)
		}
		if len(stats.Masteries) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, m := range stats.Masteries {
			batch.Queue(`INSERT INTO champion_masteries (riot_id, champion_id, champion_name, points) VALUES ($1, $2, $3, $4)`,
				stats.RiotID, m.ChampionID, m.ChampionName, m.Points)
		}
		br := tx.SendBatch(ctx, batch)
		for range stats.Masteries {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("insert mastery: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return domain.Player{}, err
	}
	return player, nil
}

func (s *Store) GetPlayerStat(ctx context.Context, riotID string, field domain.StatField) (domain.StatValue, error) {
	var (
		v   domain.StatValue
		err error
	)
	switch field {
	case domain.StatMostKills, domain.StatMostDeaths:
		column := "most_kills"
		if field == domain.StatMostDeaths {
			column = "most_deaths"
		}
		var n *int
		err = s.pool.QueryRow(ctx, `SELECT `+column+` FROM players WHERE riot_id=$1`, riotID).Scan(&n)
		if n != nil {
			v = domain.StatValue{Valid: true, Number: *n}
		}
	case domain.StatRank:
		var rank string
		err = s.pool.QueryRow(ctx, `SELECT rank FROM players WHERE riot_id=$1`, riotID).Scan(&rank)
		v = domain.StatValue{Valid: rank != "", Text: rank}
	default:
		return domain.StatValue{}, fmt.Errorf("unknown stat field %q", field)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StatValue{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.StatValue{}, fmt.Errorf("load %s: %w", field, err)
	}
	return v, nil
}

func (s *Store) GetTopMasteries(ctx context.Context, riotID string, n int, order domain.SortOrder) ([]domain.ChampionMastery, error) {
	direction := "DESC"
	if order == domain.Ascending {
		direction = "ASC"
	}
	rows, err := s.pool.Query(ctx, `SELECT riot_id, champion_id, champion_name, points
		FROM champion_masteries WHERE riot_id=$1
		ORDER BY points `+direction+`, champion_id LIMIT $2`, riotID, n)
	if err != nil {
		return nil, fmt.Errorf("load masteries: %w", err)
	}
	defer rows.Close()

	var out []domain.ChampionMastery
	for rows.Next() {
		var m domain.ChampionMastery
		if err := rows.Scan(&m.RiotID, &m.ChampionID, &m.ChampionName, &m.Points); err != nil {
			return nil, fmt.Errorf("scan mastery: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		if _, err := s.GetPlayer(ctx, riotID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) requireLobby(ctx context.Context, tx pgx.Tx, lobbyID string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lobbies WHERE id=$1)`, lobbyID).Scan(&exists); err != nil {
		return fmt.Errorf("check lobby: %w", err)
	}
	if !exists {
		return domain.ErrLobbyNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanPlayer(row pgx.Row) (domain.Player, error) {
	var (
		p         domain.Player
		updatedAt *time.Time
	)
	err := row.Scan(&p.ID, &p.GameName, &p.TagLine, &p.PUUID, &p.Region, &p.Rank,
		&p.MostKills, &p.MostDeaths, &p.Winrate, &updatedAt)
	if err != nil {
		return domain.Player{}, err
	}
	if updatedAt != nil {
		p.UpdatedAt = *updatedAt
	}
	return p, nil
}
