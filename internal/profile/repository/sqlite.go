package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"alprofile/internal/profile/models"
)

// ============================================================
// SQLite Repository
// ============================================================

//go:embed migrations/001_init_profiles.sql
var initMigration string

// ErrNotFound профиля с таким id нет.
var ErrNotFound = errors.New("profile not found")

const profileColumns = `id, name, code, company, size, width_mm, height_mm, notes, file_path, thumb_path, source, date_added`

type Repository struct {
	db *sql.DB
}

func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Init создаёт таблицу profiles, если её ещё нет.
func (r *Repository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, initMigration); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// Ping для readiness-проверки.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Create(ctx context.Context, p *models.Profile) error {
	_, err := r.db.ExecContext(ctx, `
        INSERT INTO profiles (`+profileColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `,
		p.ID, p.Name, p.Code, p.Company, p.Size, p.WidthMM, p.HeightMM,
		p.Notes, p.FilePath, p.ThumbPath, p.Source, p.DateAdded,
	)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
        SELECT `+profileColumns+`
        FROM profiles
        WHERE id = ?
    `, id)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// List профили, новые первыми. Непустой query ищет подстроку в имени,
// коде, компании и размере; % и _ в запросе ищутся буквально.
func (r *Repository) List(ctx context.Context, query string) ([]models.Profile, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+profileColumns+`
        FROM profiles
        WHERE name LIKE ?1 ESCAPE '\'
           OR code LIKE ?1 ESCAPE '\'
           OR company LIKE ?1 ESCAPE '\'
           OR size LIKE ?1 ESCAPE '\'
        ORDER BY date_added DESC, rowid DESC
    `, likePattern(query))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := make([]models.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
}

func (r *Repository) Update(ctx context.Context, p *models.Profile) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE profiles
        SET name = ?, code = ?, company = ?, size = ?, notes = ?
        WHERE id = ?
    `, p.Name, p.Code, p.Company, p.Size, p.Notes, p.ID)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return expectOne(res)
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return expectOne(res)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (*models.Profile, error) {
	var p models.Profile
	err := s.Scan(&p.ID, &p.Name, &p.Code, &p.Company, &p.Size, &p.WidthMM, &p.HeightMM,
		&p.Notes, &p.FilePath, &p.ThumbPath, &p.Source, &p.DateAdded)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?mode=rwc&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
