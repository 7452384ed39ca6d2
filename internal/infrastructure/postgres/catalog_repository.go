package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/catalog"
)

type sessionRow struct {
	ID            int64     `db:"id"`
	MovieID       int64     `db:"movie_id"`
	TheaterID     int64     `db:"theater_id"`
	TheaterTypeID int64     `db:"theater_type_id"`
	StartTime     time.Time `db:"start_time"`
	EndTime       time.Time `db:"end_time"`
}

// CatalogRepository は上映回・会員レベルを読み取る
type CatalogRepository struct{ db *sqlx.DB }

var _ catalog.Reader = (*CatalogRepository)(nil)

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository { return &CatalogRepository{db: db} }

func (r *CatalogRepository) GetSession(ctx context.Context, id int64) (*catalog.Session, error) {
	var row sessionRow
	query := `
		SELECT ms.id, ms.movie_id, ms.theater_id, t.theater_type_id, ms.start_time, ms.end_time
		FROM movie_sessions ms
		JOIN theaters t ON t.id = ms.theater_id
		WHERE ms.id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrSessionNotFound
		}
		return nil, wrapErr("上映回取得に失敗", err)
	}
	return &catalog.Session{
		ID: row.ID, MovieID: row.MovieID, TheaterID: row.TheaterID,
		TheaterTypeID: row.TheaterTypeID, StartTime: row.StartTime, EndTime: row.EndTime,
	}, nil
}

// GetMemberLevel は最新の会員レベルを返す
func (r *CatalogRepository) GetMemberLevel(ctx context.Context, memberID int64) (int, error) {
	var level int
	query := `SELECT level FROM member_levels WHERE member_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &level, query, memberID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.DefaultMemberLevel, nil
		}
		return 0, wrapErr("会員レベル取得に失敗", err)
	}
	return level, nil
}
