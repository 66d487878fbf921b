// Package corpus reads historical application outcomes for pattern mining.
// A corpus reference names both the backing store and the location inside it:
// "pg:<table>" for the relational archive, "es:<index>" for the search index.
package corpus

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const defaultLimit = 500

// Query narrows which outcomes a provider fetches.
type Query struct {
	GrantType        string
	OrganizationType string
	Limit            int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return defaultLimit
	}
	return q.Limit
}

type Provider interface {
	FetchOutcomes(ctx context.Context, q Query) ([]models.ApplicationOutcome, error)
}

// Resolver maps corpus references onto the configured providers.
type Resolver struct {
	db  *sql.DB
	es  *elasticsearch.Client
	log logger.Logger
}

func NewResolver(db *sql.DB, es *elasticsearch.Client, log logger.Logger) *Resolver {
	return &Resolver{db: db, es: es, log: log}
}

func (r *Resolver) Resolve(ref string) (Provider, error) {
	scheme, location, found := strings.Cut(ref, ":")
	if !found || location == "" {
		return nil, fmt.Errorf("malformed corpus reference %q, want scheme:location", ref)
	}

	switch scheme {
	case "pg":
		if r.db == nil {
			return nil, fmt.Errorf("corpus reference %q needs a postgres connection", ref)
		}
		return NewPostgresProvider(r.db, location, r.log)
	case "es":
		if r.es == nil {
			return nil, fmt.Errorf("corpus reference %q needs an elasticsearch connection", ref)
		}
		return NewElasticsearchProvider(r.es, location, r.log), nil
	default:
		return nil, fmt.Errorf("unknown corpus scheme %q in reference %q", scheme, ref)
	}
}
