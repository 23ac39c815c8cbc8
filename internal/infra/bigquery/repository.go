// Package bigquery records classification runs in BigQuery.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/expense-voice/internal/logger"
	"github.com/dvloznov/expense-voice/internal/pipeline"
)

// ResultRepository writes classification runs and their items. It holds a
// shared client to avoid creating a connection per request.
type ResultRepository struct {
	client *bigquery.Client
	ds     Dataset
}

// NewResultRepository creates a repository for projectID.datasetID.
func NewResultRepository(ctx context.Context, projectID, datasetID string) (*ResultRepository, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewResultRepository: project and dataset are required")
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewResultRepository: creating client: %w", err)
	}
	return &ResultRepository{
		client: client,
		ds:     Dataset{ProjectID: projectID, DatasetID: datasetID},
	}, nil
}

// Close closes the BigQuery client connection.
func (r *ResultRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// RecordClassification inserts the run row followed by its item rows.
func (r *ResultRepository) RecordClassification(ctx context.Context, run *pipeline.ClassificationRun) error {
	if run == nil || run.RunID == "" {
		return fmt.Errorf("RecordClassification: run id is required")
	}

	if err := InsertClassificationRunWithClient(ctx, r.client, r.ds, NewClassificationRunRow(run)); err != nil {
		return err
	}
	if err := InsertExpenseItemsWithClient(ctx, r.client, r.ds, NewExpenseItemRows(run)); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("run_id", run.RunID).
		Int("items", len(run.Items)).
		Msg("Recorded classification run")
	return nil
}

// ListRecentRuns delegates to ListRecentRunsWithClient with the shared client.
func (r *ResultRepository) ListRecentRuns(ctx context.Context, limit int) ([]*ClassificationRunRow, error) {
	return ListRecentRunsWithClient(ctx, r.client, r.ds, limit)
}

// ListItemsForRun delegates to ListItemsForRunWithClient with the shared client.
func (r *ResultRepository) ListItemsForRun(ctx context.Context, runID string) ([]*ExpenseItemRow, error) {
	return ListItemsForRunWithClient(ctx, r.client, r.ds, runID)
}

var _ pipeline.ResultRecorder = (*ResultRepository)(nil)
