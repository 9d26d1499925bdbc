package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pictoria/service-api/internal/hanzi/entity"
	"github.com/ovaphlow/pictoria/service-api/pkg/database"
)

// HanziRepo provides data access for the hanzi table using sqlx. Queries are
// written with `?` and rebound so they run on postgres and sqlite alike.
type HanziRepo struct {
	db *sqlx.DB
}

func NewHanziRepo(db *sqlx.DB) *HanziRepo { return &HanziRepo{db: db} }

const postgresDDL = `
CREATE TABLE IF NOT EXISTS hanzi (
  id BIGSERIAL PRIMARY KEY,
  user_id UUID NOT NULL,
  standard_character TEXT NOT NULL,
  traditional_character TEXT,
  is_identical BOOLEAN NOT NULL DEFAULT false,
  pinyin JSONB NOT NULL DEFAULT '[]'::jsonb,
  definition TEXT NOT NULL,
  simplified_stroke_count INT NOT NULL CHECK (simplified_stroke_count BETWEEN 1 AND 64),
  traditional_stroke_count INT CHECK (traditional_stroke_count BETWEEN 1 AND 64),
  hsk_level INT NOT NULL CHECK (hsk_level BETWEEN 1 AND 6),
  frequency_rank INT CHECK (frequency_rank >= 1),
  simplified_radical_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
  traditional_radical_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_hanzi_hsk_level ON hanzi(hsk_level);
CREATE INDEX IF NOT EXISTS idx_hanzi_frequency_rank ON hanzi(frequency_rank);
CREATE INDEX IF NOT EXISTS idx_hanzi_user_id ON hanzi(user_id);
`

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS hanzi (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id TEXT NOT NULL,
  standard_character TEXT NOT NULL,
  traditional_character TEXT,
  is_identical BOOLEAN NOT NULL DEFAULT 0,
  pinyin TEXT NOT NULL DEFAULT '[]',
  definition TEXT NOT NULL,
  simplified_stroke_count INTEGER NOT NULL CHECK (simplified_stroke_count BETWEEN 1 AND 64),
  traditional_stroke_count INTEGER CHECK (traditional_stroke_count BETWEEN 1 AND 64),
  hsk_level INTEGER NOT NULL CHECK (hsk_level BETWEEN 1 AND 6),
  frequency_rank INTEGER CHECK (frequency_rank >= 1),
  simplified_radical_ids TEXT NOT NULL DEFAULT '[]',
  traditional_radical_ids TEXT NOT NULL DEFAULT '[]',
  created_at TIMESTAMP NOT NULL,
  updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hanzi_hsk_level ON hanzi(hsk_level);
CREATE INDEX IF NOT EXISTS idx_hanzi_frequency_rank ON hanzi(frequency_rank);
CREATE INDEX IF NOT EXISTS idx_hanzi_user_id ON hanzi(user_id);
`

// EnsureTable creates the hanzi table if not exists (idempotent).
// This is a convenience for early development; prefer migrations in production.
func (r *HanziRepo) EnsureTable(ctx context.Context) error {
	ddl := postgresDDL
	if r.db.DriverName() == database.DriverSQLite {
		ddl = sqliteDDL
	}
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const selectColumns = `id, user_id, standard_character, traditional_character, is_identical,
	pinyin, definition, simplified_stroke_count, traditional_stroke_count, hsk_level,
	frequency_rank, simplified_radical_ids, traditional_radical_ids, created_at, updated_at`

// Filter narrows a list read; zero values mean "no constraint".
type Filter struct {
	HSKLevel      *int
	CharacterType string
	SearchTerm    string
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.HSKLevel != nil {
		conds = append(conds, "hsk_level = ?")
		args = append(args, *f.HSKLevel)
	}
	switch f.CharacterType {
	case entity.TypeIdentical:
		conds = append(conds, "is_identical = ?")
		args = append(args, true)
	case entity.TypeSimplified:
		conds = append(conds, "is_identical = ? AND traditional_character IS NOT NULL")
		args = append(args, false)
	case entity.TypeTraditional:
		conds = append(conds, "is_identical = ? AND traditional_character IS NULL")
		args = append(args, false)
	}
	if term := strings.TrimSpace(f.SearchTerm); term != "" {
		conds = append(conds, `standard_character LIKE ? ESCAPE '\'`)
		args = append(args, "%"+database.EscapeLike(term)+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func fill(rows []entity.Hanzi) {
	for i := range rows {
		rows[i].CharacterType = entity.DeriveCharacterType(rows[i].IsIdentical, rows[i].TraditionalCharacter)
	}
}

// List returns one page ordered by frequency rank, unranked characters last.
func (r *HanziRepo) List(ctx context.Context, f Filter, limit, offset int) ([]entity.Hanzi, error) {
	where, args := f.where()
	q := `SELECT ` + selectColumns + ` FROM hanzi` + where +
		` ORDER BY frequency_rank ASC NULLS LAST, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows := []entity.Hanzi{}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list hanzi: %w", err)
	}
	fill(rows)
	return rows, nil
}

// Count returns the number of rows matching f.
func (r *HanziRepo) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.where()
	var n int
	if err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM hanzi`+where), args...); err != nil {
		return 0, fmt.Errorf("count hanzi: %w", err)
	}
	return n, nil
}

// GetByID returns a row or sql.ErrNoRows.
func (r *HanziRepo) GetByID(ctx context.Context, id int64) (*entity.Hanzi, error) {
	var row entity.Hanzi
	q := r.db.Rebind(`SELECT ` + selectColumns + ` FROM hanzi WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		return nil, err
	}
	row.CharacterType = entity.DeriveCharacterType(row.IsIdentical, row.TraditionalCharacter)
	return &row, nil
}

// CreateMany inserts all rows in one transaction and sets their IDs and timestamps.
func (r *HanziRepo) CreateMany(ctx context.Context, rows []*entity.Hanzi) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	q := tx.Rebind(`INSERT INTO hanzi (user_id, standard_character, traditional_character, is_identical,
		pinyin, definition, simplified_stroke_count, traditional_stroke_count, hsk_level,
		frequency_rank, simplified_radical_ids, traditional_radical_ids, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	now := time.Now().UTC()
	for _, h := range rows {
		h.CreatedAt, h.UpdatedAt = now, now
		err := tx.QueryRowxContext(ctx, q,
			h.UserID, h.StandardCharacter, h.TraditionalCharacter, h.IsIdentical,
			h.Pinyin, h.Definition, h.SimplifiedStrokeCount, h.TraditionalStrokeCount, h.HSKLevel,
			h.FrequencyRank, h.SimplifiedRadicalIDs, h.TraditionalRadicalIDs, h.CreatedAt, h.UpdatedAt,
		).Scan(&h.ID)
		if err != nil {
			return fmt.Errorf("insert hanzi %q: %w", h.StandardCharacter, err)
		}
	}
	return tx.Commit()
}

// Update overwrites the row only when it is owned by h.UserID. It returns the
// number of rows affected; zero means missing or not owned.
func (r *HanziRepo) Update(ctx context.Context, h *entity.Hanzi) (int64, error) {
	h.UpdatedAt = time.Now().UTC()
	q := r.db.Rebind(`UPDATE hanzi SET standard_character = ?, traditional_character = ?, is_identical = ?,
		pinyin = ?, definition = ?, simplified_stroke_count = ?, traditional_stroke_count = ?, hsk_level = ?,
		frequency_rank = ?, simplified_radical_ids = ?, traditional_radical_ids = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, q,
		h.StandardCharacter, h.TraditionalCharacter, h.IsIdentical,
		h.Pinyin, h.Definition, h.SimplifiedStrokeCount, h.TraditionalStrokeCount, h.HSKLevel,
		h.FrequencyRank, h.SimplifiedRadicalIDs, h.TraditionalRadicalIDs, h.UpdatedAt,
		h.ID, h.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("update hanzi %d: %w", h.ID, err)
	}
	return res.RowsAffected()
}

// Delete removes the row only when it is owned by userID.
func (r *HanziRepo) Delete(ctx context.Context, id int64, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM hanzi WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return 0, fmt.Errorf("delete hanzi %d: %w", id, err)
	}
	return res.RowsAffected()
}
