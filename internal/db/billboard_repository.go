package db

import (
	"context"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/corridor/internal/billboard"
)

// BillboardRepository stores billboard placements. It implements
// billboard.Repository.
type BillboardRepository struct {
	pool *pgxpool.Pool
}

// NewBillboardRepository creates a new billboard repository
func NewBillboardRepository(pool *pgxpool.Pool) *BillboardRepository {
	return &BillboardRepository{pool: pool}
}

// LoadAll loads every placement in insertion order.
func (r *BillboardRepository) LoadAll(ctx context.Context) ([]billboard.Placement, error) {
	query := `
		SELECT id, kind, x, y, z, texture
		FROM billboards
		ORDER BY seq
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("loading all billboards: %w", err)
	}
	defer rows.Close()

	placements := make([]billboard.Placement, 0, 64)

	for rows.Next() {
		var (
			id, kindName, texture string
			x, y, z               float64
		)
		if err := rows.Scan(&id, &kindName, &x, &y, &z, &texture); err != nil {
			return nil, fmt.Errorf("scanning billboard row: %w", err)
		}

		kind, err := billboard.ParseKind(kindName)
		if err != nil {
			return nil, fmt.Errorf("billboard %s: %w", id, err)
		}

		placements = append(placements, billboard.Placement{
			ID:       id,
			Kind:     kind,
			Position: mgl64.Vec3{x, y, z},
			Texture:  texture,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating billboard rows: %w", err)
	}

	return placements, nil
}

const insertBillboard = `
	INSERT INTO billboards (id, kind, x, y, z, texture)
	VALUES ($1, $2, $3, $4, $5, $6)
`

// Insert stores one placement.
func (r *BillboardRepository) Insert(ctx context.Context, p billboard.Placement) error {
	_, err := r.pool.Exec(ctx, insertBillboard,
		p.ID, p.Kind.String(), p.Position.X(), p.Position.Y(), p.Position.Z(), p.Texture)
	if err != nil {
		return fmt.Errorf("inserting billboard %s: %w", p.ID, err)
	}
	return nil
}

// InsertAll stores placements in one transaction, preserving their order.
func (r *BillboardRepository) InsertAll(ctx context.Context, placements []billboard.Placement) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, p := range placements {
		batch.Queue(insertBillboard,
			p.ID, p.Kind.String(), p.Position.X(), p.Position.Y(), p.Position.Z(), p.Texture)
	}

	br := tx.SendBatch(ctx, batch)
	for _, p := range placements {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("inserting billboard %s: %w", p.ID, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing billboards: %w", err)
	}
	return nil
}

// Count returns the number of stored placements.
func (r *BillboardRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM billboards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting billboards: %w", err)
	}
	return n, nil
}
