package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	classificationRunsTable = "classification_runs"
	expenseItemsTable       = "expense_items"

	maxRawResponseLen = 10000
)

// Dataset locates the tables.
type Dataset struct {
	ProjectID string
	DatasetID string
}

// Table returns the backtick-quoted fully qualified table name.
func (d Dataset) Table(name string) string {
	return "`" + d.ProjectID + "." + d.DatasetID + "." + name + "`"
}

// InsertClassificationRunWithClient inserts one row into classification_runs.
// Uses DML INSERT to avoid streaming buffer issues.
func InsertClassificationRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, row *ClassificationRunRow) error {
	raw := row.RawResponse
	if len(raw) > maxRawResponseLen {
		raw = raw[:maxRawResponseLen]
	}

	q := client.Query(`
		INSERT INTO ` + ds.Table(classificationRunsTable) + ` (
			run_id, source, original_text, translated_text,
			categories, model_name, raw_response, repaired,
			item_count, run_date, created_ts
		)
		VALUES (
			@run_id, @source, @original_text, @translated_text,
			@categories, @model_name, @raw_response, @repaired,
			@item_count, @run_date, @created_ts
		)
	`)

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "source", Value: row.Source},
		{Name: "original_text", Value: row.OriginalText},
		{Name: "translated_text", Value: row.TranslatedText},
		{Name: "categories", Value: row.Categories},
		{Name: "model_name", Value: row.ModelName},
		{Name: "raw_response", Value: raw},
		{Name: "repaired", Value: row.Repaired},
		{Name: "item_count", Value: row.ItemCount},
		{Name: "run_date", Value: row.RunDate},
		{Name: "created_ts", Value: row.CreatedTS},
	}

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("InsertClassificationRun: %w", err)
	}
	return nil
}

// InsertExpenseItemsWithClient inserts all rows in a single DML statement.
func InsertExpenseItemsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, rows []*ExpenseItemRow) error {
	if len(rows) == 0 {
		return nil
	}

	sql, params := buildExpenseItemsInsert(ds, rows)
	q := client.Query(sql)
	q.Parameters = params

	if err := runAndWait(ctx, q); err != nil {
		return fmt.Errorf("InsertExpenseItems: %w", err)
	}
	return nil
}

func buildExpenseItemsInsert(ds Dataset, rows []*ExpenseItemRow) (string, []bigquery.QueryParameter) {
	var b strings.Builder
	b.WriteString("INSERT INTO " + ds.Table(expenseItemsTable) +
		" (item_id, run_id, position, category, item, amount, created_ts)\nVALUES\n")

	params := make([]bigquery.QueryParameter, 0, len(rows)*7)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(",\n")
		}
		fmt.Fprintf(&b, "(@item_id_%[1]d, @run_id_%[1]d, @position_%[1]d, @category_%[1]d, @item_%[1]d, @amount_%[1]d, @created_ts_%[1]d)", i)
		params = append(params,
			bigquery.QueryParameter{Name: fmt.Sprintf("item_id_%d", i), Value: r.ItemID},
			bigquery.QueryParameter{Name: fmt.Sprintf("run_id_%d", i), Value: r.RunID},
			bigquery.QueryParameter{Name: fmt.Sprintf("position_%d", i), Value: r.Position},
			bigquery.QueryParameter{Name: fmt.Sprintf("category_%d", i), Value: r.Category},
			bigquery.QueryParameter{Name: fmt.Sprintf("item_%d", i), Value: r.Item},
			bigquery.QueryParameter{Name: fmt.Sprintf("amount_%d", i), Value: r.Amount},
			bigquery.QueryParameter{Name: fmt.Sprintf("created_ts_%d", i), Value: r.CreatedTS},
		)
	}
	return b.String(), params
}

// ListRecentRunsWithClient returns the newest runs first.
func ListRecentRunsWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, limit int) ([]*ClassificationRunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	q := client.Query(`
		SELECT
			run_id, source, original_text, translated_text,
			categories, model_name, raw_response, repaired,
			item_count, run_date, created_ts
		FROM ` + ds.Table(classificationRunsTable) + `
		ORDER BY created_ts DESC
		LIMIT @limit
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "limit", Value: limit},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecentRuns: query read: %w", err)
	}

	var rows []*ClassificationRunRow
	for {
		var r ClassificationRunRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecentRuns: iter next: %w", err)
		}
		rows = append(rows, &r)
	}

	return rows, nil
}

// ListItemsForRunWithClient returns a run's items in position order.
func ListItemsForRunWithClient(ctx context.Context, client *bigquery.Client, ds Dataset, runID string) ([]*ExpenseItemRow, error) {
	q := client.Query(`
		SELECT item_id, run_id, position, category, item, amount, created_ts
		FROM ` + ds.Table(expenseItemsTable) + `
		WHERE run_id = @run_id
		ORDER BY position
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListItemsForRun: query read: %w", err)
	}

	var rows []*ExpenseItemRow
	for {
		var r ExpenseItemRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListItemsForRun: iter next: %w", err)
		}
		rows = append(rows, &r)
	}
	return rows, nil
}

func runAndWait(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
