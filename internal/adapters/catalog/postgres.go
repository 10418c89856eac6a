package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SBCM-Alliance/G-Cart/internal/domain/model"
)

const (
	listProjectsSQL = `SELECT id, name, location, budget, tags, description, image
FROM projects ORDER BY id`
	getProjectSQL = `SELECT id, name, location, budget, tags, description, image
FROM projects WHERE id = $1`
)

// Postgres reads projects from a "projects" table:
//
//	id integer primary key, name text, location text, budget bigint,
//	tags text[], description text, image text
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool and checks it.
func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect catalog database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping catalog database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Projects implements Catalog.
func (c *Postgres) Projects(ctx context.Context) ([]model.Project, error) {
	rows, err := c.pool.Query(ctx, listProjectsSQL)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return out, nil
}

// Project implements Catalog.
func (c *Postgres) Project(ctx context.Context, id int) (model.Project, error) {
	p, err := scanProject(c.pool.QueryRow(ctx, getProjectSQL, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	return p, err
}

// Close releases the pool.
func (c *Postgres) Close() {
	c.pool.Close()
}

func scanProject(row pgx.Row) (model.Project, error) {
	var (
		p           model.Project
		budget      int64
		description *string
		image       *string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Location, &budget, &p.RequiredTags, &description, &image); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Project{}, err
		}
		return model.Project{}, fmt.Errorf("scan project: %w", err)
	}
	p.Budget = model.Amount(budget)
	if description != nil {
		p.Description = *description
	}
	if image != nil {
		p.Image = *image
	}
	return p, nil
}
