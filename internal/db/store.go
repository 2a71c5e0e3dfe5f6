package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ListParams narrows the candidate set in SQL. Every filter here is also a
// hard filter in the matcher, so the prefilter never drops a true match.
type ListParams struct {
	OrgType            models.OrgType
	MinAmount          *float64
	MaxAmount          *float64
	DeadlineWithinDays *int
	Now                time.Time
	Limit              int
}

const selectCols = `id, title, funder, source, url, amount_min, amount_max,
	tags, deadline_at, eligibility, description`

func scanOpportunity(scan func(dest ...interface{}) error) (models.Opportunity, error) {
	var o models.Opportunity
	var eligibility []string

	err := scan(
		&o.ID, &o.Title, &o.Funder, &o.Source, &o.URL, &o.AmountMin, &o.AmountMax,
		&o.Tags, &o.Deadline, &eligibility, &o.Description,
	)
	if err != nil {
		return o, err
	}
	for _, e := range eligibility {
		o.Eligibility = append(o.Eligibility, models.OrgType(e))
	}
	o.Deadline = o.Deadline.UTC()
	return o, nil
}

// buildListQuery renders the candidate query and its positional args.
func buildListQuery(params ListParams) (string, []interface{}) {
	where := "WHERE deadline_at >= $1"
	args := []interface{}{params.Now}
	argIdx := 2

	if params.OrgType != "" {
		where += fmt.Sprintf(" AND $%d = ANY(eligibility)", argIdx)
		args = append(args, string(params.OrgType))
		argIdx++
	}
	if params.MinAmount != nil {
		where += fmt.Sprintf(" AND amount_max >= $%d", argIdx)
		args = append(args, *params.MinAmount)
		argIdx++
	}
	if params.MaxAmount != nil {
		where += fmt.Sprintf(" AND amount_min <= $%d", argIdx)
		args = append(args, *params.MaxAmount)
		argIdx++
	}
	if params.DeadlineWithinDays != nil {
		where += fmt.Sprintf(" AND deadline_at <= $%d", argIdx)
		args = append(args, params.Now.Add(time.Duration(*params.DeadlineWithinDays)*24*time.Hour))
		argIdx++
	}

	query := "SELECT " + selectCols + " FROM opportunities " + where + " ORDER BY deadline_at ASC, id ASC"
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, params.Limit)
	}
	return query, args
}

func (s *Store) ListOpportunities(ctx context.Context, params ListParams) ([]models.Opportunity, error) {
	query, args := buildListQuery(params)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing opportunities: %w", err)
	}
	defer rows.Close()

	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning opportunity: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating opportunities: %w", err)
	}
	return out, nil
}

func (s *Store) GetOpportunity(ctx context.Context, id string) (models.Opportunity, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+selectCols+" FROM opportunities WHERE id = $1", id)
	o, err := scanOpportunity(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, apperr.NotFound("opportunity", id)
	}
	if err != nil {
		return o, fmt.Errorf("loading opportunity %s: %w", id, err)
	}
	return o, nil
}

// UpsertOpportunity inserts or replaces a record by id.
func (s *Store) UpsertOpportunity(ctx context.Context, o models.Opportunity) error {
	eligibility := make([]string, 0, len(o.Eligibility))
	for _, e := range o.Eligibility {
		eligibility = append(eligibility, string(e))
	}
	tags := o.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (id, title, funder, source, url, amount_min, amount_max, tags, deadline_at, eligibility, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			funder = EXCLUDED.funder,
			source = EXCLUDED.source,
			url = EXCLUDED.url,
			amount_min = EXCLUDED.amount_min,
			amount_max = EXCLUDED.amount_max,
			tags = EXCLUDED.tags,
			deadline_at = EXCLUDED.deadline_at,
			eligibility = EXCLUDED.eligibility,
			description = EXCLUDED.description,
			updated_at = NOW()
	`, o.ID, o.Title, o.Funder, o.Source, o.URL, o.AmountMin, o.AmountMax, tags, o.Deadline, eligibility, o.Description)
	if err != nil {
		return fmt.Errorf("upserting opportunity %s: %w", o.ID, err)
	}
	return nil
}
