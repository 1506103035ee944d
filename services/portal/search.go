package portal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"vellum/pkg/db"
)

type searchRow struct {
	ID          uuid.UUID       `db:"id"`
	OwnerID     uuid.UUID       `db:"owner_id"`
	Title       string          `db:"title"`
	Abstract    string          `db:"abstract"`
	Keywords    json.RawMessage `db:"keywords"`
	Section     string          `db:"section"`
	Status      string          `db:"status"`
	SubmittedAt *time.Time      `db:"submitted_at"`
	DecidedAt   *time.Time      `db:"decided_at"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
	Rank        float32         `db:"rank"`
}

const searchQuery = `
SELECT s.id, s.owner_id, s.title, s.abstract, s.keywords, s.section, s.status,
       s.submitted_at, s.decided_at, s.created_at, s.updated_at,
       ts_rank(s.search_vector, websearch_to_tsquery('english', $1)) AS rank
FROM submissions s
WHERE s.deleted_at IS NULL
  AND s.search_vector @@ websearch_to_tsquery('english', $1)
  AND ($2::uuid IS NULL OR s.owner_id = $2)
  AND ($3::text = '' OR s.status = $3)
ORDER BY rank DESC, s.created_at DESC
LIMIT $4 OFFSET $5`

// searchSubmissions runs a ranked full-text query over titles, abstracts,
// and keywords. ownerID narrows results to one account when non-nil.
func (a *API) searchSubmissions(ctx context.Context, query string, ownerID *uuid.UUID, status string, limit, offset int) ([]Submission, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	var rows []searchRow
	if err := db.Select(ctx, a.store.DB, &rows, searchQuery, query, ownerID, status, limit, offset); err != nil {
		return nil, err
	}

	out := make([]Submission, 0, len(rows))
	for _, row := range rows {
		keywords := []string{}
		if len(row.Keywords) > 0 {
			_ = json.Unmarshal(row.Keywords, &keywords)
		}
		out = append(out, Submission{
			ID:          row.ID,
			OwnerID:     row.OwnerID,
			Title:       row.Title,
			Abstract:    row.Abstract,
			Keywords:    keywords,
			Section:     row.Section,
			Status:      row.Status,
			Metadata:    map[string]any{},
			SubmittedAt: row.SubmittedAt,
			DecidedAt:   row.DecidedAt,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return out, nil
}
