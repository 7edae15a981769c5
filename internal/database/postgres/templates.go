package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

// TemplateRepository keeps a pgvector copy of the registered face template
// so distances can be inspected with SQL.
type TemplateRepository struct {
	pool *Pool
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(pool *Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

// MirrorTemplate replaces the stored copy with tmpl
func (r *TemplateRepository) MirrorTemplate(ctx context.Context, tmpl *facematch.FaceTemplate) error {
	return r.pool.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM face_templates"); err != nil {
			return fmt.Errorf("clear face templates: %w", err)
		}
		for i, d := range tmpl.Descriptors {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO face_templates (descriptor_index, label, embedding) VALUES ($1, $2, $3)",
				i, tmpl.Label, pgvector.NewVector(d),
			)
			if err != nil {
				return fmt.Errorf("insert face template descriptor %d: %w", i, err)
			}
		}
		return nil
	})
}

// Get returns the mirrored template, or nil if none is stored
func (r *TemplateRepository) Get(ctx context.Context) (*facematch.FaceTemplate, error) {
	rows, err := r.pool.query(ctx, "SELECT label, embedding FROM face_templates ORDER BY descriptor_index")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tmpl *facematch.FaceTemplate
	for rows.Next() {
		var label string
		var embedding pgvector.Vector
		if err := rows.Scan(&label, &embedding); err != nil {
			return nil, fmt.Errorf("scan face template: %w", err)
		}
		if tmpl == nil {
			tmpl = &facematch.FaceTemplate{Label: label}
		}
		tmpl.Descriptors = append(tmpl.Descriptors, facematch.Descriptor(embedding.Slice()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face templates: %w", err)
	}
	return tmpl, nil
}

// NearestDistance returns the label and euclidean distance of the stored
// descriptor closest to query. found is false when nothing is stored.
func (r *TemplateRepository) NearestDistance(ctx context.Context, query facematch.Descriptor) (label string, distance float64, found bool, err error) {
	err = r.pool.queryRow(ctx,
		"SELECT label, embedding <-> $1 AS distance FROM face_templates ORDER BY distance LIMIT 1",
		pgvector.NewVector(query),
	).Scan(&label, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("query nearest template: %w", err)
	}
	return label, distance, true, nil
}
