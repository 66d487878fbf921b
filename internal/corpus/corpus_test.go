package corpus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"grant-engine/internal/common/logger"
	"grant-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{"http://localhost:9200"}})
	require.NoError(t, err)

	r := NewResolver(db, es, logger.NewTestLogger(t))

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{name: "postgres reference", ref: "pg:application_outcomes"},
		{name: "elasticsearch reference", ref: "es:grant-outcomes"},
		{name: "unknown scheme", ref: "s3:bucket", wantErr: true},
		{name: "missing location", ref: "pg:", wantErr: true},
		{name: "no scheme at all", ref: "application_outcomes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestResolver_MissingConnection(t *testing.T) {
	r := NewResolver(nil, nil, logger.NewTestLogger(t))

	_, err := r.Resolve("pg:application_outcomes")
	assert.Error(t, err)
	_, err = r.Resolve("es:grant-outcomes")
	assert.Error(t, err)
}

func TestPostgresProvider_RejectsBadTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewPostgresProvider(db, "outcomes; DROP TABLE outcomes", logger.NewTestLogger(t))
	assert.Error(t, err)
}

func TestPostgresProvider_FetchOutcomes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	submitted := time.Date(2025, 11, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT id, grant_type, organization_type, summary, outcome, score, submitted_at").
		WithArgs("research_grant", "nonprofit", 500).
		WillReturnRows(sqlmock.NewRows([]string{"id", "grant_type", "organization_type", "summary", "outcome", "score", "submitted_at"}).
			AddRow("app-1", "research_grant", "nonprofit", "quantified impact targets", "funded", 87.5, submitted).
			AddRow("app-2", "research_grant", "nonprofit", "no budget breakdown", "rejected", nil, submitted))

	p, err := NewPostgresProvider(db, "application_outcomes", logger.NewTestLogger(t))
	require.NoError(t, err)

	outcomes, err := p.FetchOutcomes(context.Background(), Query{GrantType: "research_grant", OrganizationType: "nonprofit"})
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, models.OutcomeFunded, outcomes[0].Outcome)
	require.NotNil(t, outcomes[0].Score)
	assert.Equal(t, 87.5, *outcomes[0].Score)
	assert.Nil(t, outcomes[1].Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestElasticsearchProvider_FetchOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hits": {"hits": [
				{"_source": {"id": "app-9", "grantType": "innovation_grant", "organizationType": "startup", "summary": "clear milestones", "outcome": "funded", "score": 91, "submittedAt": "2025-10-01T00:00:00Z"}}
			]}
		}`))
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	p := NewElasticsearchProvider(es, "grant-outcomes", logger.NewTestLogger(t))
	outcomes, err := p.FetchOutcomes(context.Background(), Query{GrantType: "innovation_grant"})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, "app-9", outcomes[0].ID)
	assert.Equal(t, models.OutcomeFunded, outcomes[0].Outcome)
}

func TestElasticsearchProvider_SearchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		http.Error(w, `{"error":"index_not_found_exception"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	p := NewElasticsearchProvider(es, "missing-index", logger.NewTestLogger(t))
	_, err = p.FetchOutcomes(context.Background(), Query{GrantType: "innovation_grant"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORPUS_QUERY_FAILED")
}
