package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"
)

// Table names come from configuration, not user input, but they are still
// interpolated into SQL so they get validated as plain identifiers.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

type PostgresProvider struct {
	db    *sql.DB
	table string
	log   logger.Logger
}

func NewPostgresProvider(db *sql.DB, table string, log logger.Logger) (*PostgresProvider, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid corpus table name %q", table)
	}
	return &PostgresProvider{
		db:    db,
		table: table,
		log:   log.WithFields(map[string]interface{}{"corpus": "pg:" + table}),
	}, nil
}

func (p *PostgresProvider) FetchOutcomes(ctx context.Context, q Query) ([]models.ApplicationOutcome, error) {
	query := fmt.Sprintf(`
		SELECT id, grant_type, organization_type, summary, outcome, score, submitted_at
		FROM %s
		WHERE grant_type = $1 AND ($2 = '' OR organization_type = $2)
		ORDER BY submitted_at DESC
		LIMIT $3`, p.table)

	rows, err := p.db.QueryContext(ctx, query, q.GrantType, q.OrganizationType, q.limit())
	if err != nil {
		return nil, errors.NewCorpusQueryFailedError("pg:"+p.table, err)
	}
	defer rows.Close()

	var outcomes []models.ApplicationOutcome
	for rows.Next() {
		var o models.ApplicationOutcome
		var score sql.NullFloat64
		if err := rows.Scan(&o.ID, &o.GrantType, &o.OrganizationType, &o.Summary, &o.Outcome, &score, &o.SubmittedAt); err != nil {
			return nil, errors.NewCorpusQueryFailedError("pg:"+p.table, err)
		}
		if score.Valid {
			v := score.Float64
			o.Score = &v
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewCorpusQueryFailedError("pg:"+p.table, err)
	}

	p.log.Debug("fetched outcomes", map[string]interface{}{
		"grantType": q.GrantType,
		"count":     len(outcomes),
	})
	return outcomes, nil
}
