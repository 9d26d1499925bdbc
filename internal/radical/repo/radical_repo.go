package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pictoria/service-api/internal/radical/entity"
	"github.com/ovaphlow/pictoria/service-api/pkg/database"
)

// RadicalRepo provides data access for the radicals table.
type RadicalRepo struct {
	db *sqlx.DB
}

func NewRadicalRepo(db *sqlx.DB) *RadicalRepo { return &RadicalRepo{db: db} }

const postgresDDL = `
CREATE TABLE IF NOT EXISTS radicals (
  id BIGSERIAL PRIMARY KEY,
  user_id UUID NOT NULL,
  forms JSONB NOT NULL DEFAULT '[]'::jsonb,
  pinyin JSONB NOT NULL DEFAULT '[]'::jsonb,
  kangxi_number INT NOT NULL UNIQUE CHECK (kangxi_number BETWEEN 1 AND 214),
  hsk_level INT CHECK (hsk_level BETWEEN 1 AND 6),
  name_en TEXT NOT NULL,
  meaning TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_radicals_user_id ON radicals(user_id);
CREATE INDEX IF NOT EXISTS idx_radicals_hsk_level ON radicals(hsk_level);
`

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS radicals (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  forms TEXT NOT NULL DEFAULT '[]',
  pinyin TEXT NOT NULL DEFAULT '[]',
  kangxi_number INTEGER NOT NULL UNIQUE CHECK (kangxi_number BETWEEN 1 AND 214),
  hsk_level INTEGER CHECK (hsk_level BETWEEN 1 AND 6),
  name_en TEXT NOT NULL,
  meaning TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_radicals_user_id ON radicals(user_id);
CREATE INDEX IF NOT EXISTS idx_radicals_hsk_level ON radicals(hsk_level);
`

// EnsureTable creates the radicals table if not exists (idempotent).
func (r *RadicalRepo) EnsureTable(ctx context.Context) error {
	ddl := postgresDDL
	if r.db.DriverName() == database.DriverSQLite {
		ddl = sqliteDDL
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectColumns = `id, user_id, forms, pinyin, kangxi_number, hsk_level, name_en, meaning, created_at, updated_at`

// Filter narrows a list read; zero values mean "no constraint".
type Filter struct {
	HSKLevel   *int
	SearchTerm string
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.HSKLevel != nil {
		conds = append(conds, "hsk_level = ?")
		args = append(args, *f.HSKLevel)
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		like := "%" + database.EscapeLike(strings.ToLower(term)) + "%"
		conds = append(conds, `(LOWER(name_en) LIKE ? ESCAPE '\' OR LOWER(meaning) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns one page ordered by Kangxi number.
func (r *RadicalRepo) List(ctx context.Context, f Filter, limit, offset int) ([]entity.Radical, error) {
	where, args := f.where()
	q := `SELECT ` + selectColumns + ` FROM radicals` + where + ` ORDER BY kangxi_number ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows := []entity.Radical{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list radicals: %w", err)
	}
	return rows, nil
}

func (r *RadicalRepo) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM radicals`+where), args...); err != nil {
		return 0, fmt.Errorf("count radicals: %w", err)
	}
	return n, nil
}

// GetByID returns a row or sql.ErrNoRows.
func (r *RadicalRepo) GetByID(ctx context.Context, id int64) (*entity.Radical, error) {
	var row entity.Radical
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+selectColumns+` FROM radicals WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetByKangxi returns a row or sql.ErrNoRows.
func (r *RadicalRepo) GetByKangxi(ctx context.Context, number int) (*entity.Radical, error) {
	var row entity.Radical
	q := r.db.Rebind(`SELECT ` + selectColumns + ` FROM radicals WHERE kangxi_number = ?`)
	if err := r.db.GetContext(ctx, &row, q, number); err != nil {
		return nil, err
	}
	return &row, nil
}

// CreateMany inserts all rows in one transaction and sets their IDs and timestamps.
func (r *RadicalRepo) CreateMany(ctx context.Context, rows []*entity.Radical) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := tx.Rebind(`INSERT INTO radicals (user_id, forms, pinyin, kangxi_number, hsk_level, name_en, meaning,
		created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	now := time.Now().UTC()
	for _, rad := range rows {
		rad.CreatedAt, rad.UpdatedAt = now, now
		err := tx.QueryRowxContext(ctx, q,
			rad.UserID, rad.Forms, rad.Pinyin, rad.KangxiNumber, rad.HSKLevel, rad.NameEn, rad.Meaning,
			rad.CreatedAt, rad.UpdatedAt,
		).Scan(&rad.ID)
		if err != nil {
			return fmt.Errorf("insert radical %d: %w", rad.KangxiNumber, err)
		}
	}
	return tx.Commit()
}

// Update overwrites the row only when it is owned by rad.UserID.
func (r *RadicalRepo) Update(ctx context.Context, rad *entity.Radical) (int64, error) {
	rad.UpdatedAt = time.Now().UTC()
	q := r.db.Rebind(`UPDATE radicals SET forms = ?, pinyin = ?, kangxi_number = ?, hsk_level = ?,
		name_en = ?, meaning = ?, updated_at = ? WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, q,
		rad.Forms, rad.Pinyin, rad.KangxiNumber, rad.HSKLevel, rad.NameEn, rad.Meaning, rad.UpdatedAt,
		rad.ID, rad.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("update radical %d: %w", rad.ID, err)
	}
	return res.RowsAffected()
}

// Delete removes the row only when it is owned by userID.
func (r *RadicalRepo) Delete(ctx context.Context, id int64, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM radicals WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete radical %d: %w", id, err)
	}
	return res.RowsAffected()
}
