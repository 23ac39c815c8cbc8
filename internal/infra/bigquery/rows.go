package bigquery

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/dvloznov/expense-voice/internal/pipeline"
)

// ClassificationRunRow is one row of classification_runs.
type ClassificationRunRow struct {
	RunID          string     `bigquery:"run_id"`          // REQUIRED
	Source         string     `bigquery:"source"`          // REQUIRED
	OriginalText   string     `bigquery:"original_text"`   // NULLABLE
	TranslatedText string     `bigquery:"translated_text"` // NULLABLE
	Categories     []string   `bigquery:"categories"`      // REPEATED
	ModelName      string     `bigquery:"model_name"`      // NULLABLE
	RawResponse    string     `bigquery:"raw_response"`    // NULLABLE
	Repaired       bool       `bigquery:"repaired"`        // NULLABLE
	ItemCount      int64      `bigquery:"item_count"`      // NULLABLE
	RunDate        civil.Date `bigquery:"run_date"`        // REQUIRED, partition column
	CreatedTS      time.Time  `bigquery:"created_ts"`      // REQUIRED
}

// ExpenseItemRow is one row of expense_items.
type ExpenseItemRow struct {
	ItemID    string    `bigquery:"item_id"`  // REQUIRED
	RunID     string    `bigquery:"run_id"`   // REQUIRED
	Position  int64     `bigquery:"position"` // REQUIRED
	Category  string    `bigquery:"category"` // REQUIRED
	Item      string    `bigquery:"item"`     // NULLABLE
	Amount    float64   `bigquery:"amount"`   // NULLABLE
	CreatedTS time.Time `bigquery:"created_ts"`
}

// NewClassificationRunRow maps a pipeline run onto its table row.
func NewClassificationRunRow(run *pipeline.ClassificationRun) *ClassificationRunRow {
	categories := run.Categories
	if categories == nil {
		categories = []string{}
	}
	return &ClassificationRunRow{
		RunID:          run.RunID,
		Source:         run.Source,
		OriginalText:   run.OriginalText,
		TranslatedText: run.TranslatedText,
		Categories:     categories,
		ModelName:      run.ModelName,
		RawResponse:    run.RawResponse,
		Repaired:       run.Repaired,
		ItemCount:      int64(len(run.Items)),
		RunDate:        civil.DateOf(run.CreatedAt),
		CreatedTS:      run.CreatedAt,
	}
}

// NewExpenseItemRows returns one row per classified item, in order.
func NewExpenseItemRows(run *pipeline.ClassificationRun) []*ExpenseItemRow {
	rows := make([]*ExpenseItemRow, 0, len(run.Items))
	for i, item := range run.Items {
		rows = append(rows, &ExpenseItemRow{
			ItemID:    uuid.NewString(),
			RunID:     run.RunID,
			Position:  int64(i),
			Category:  item.Category,
			Item:      item.Item,
			Amount:    item.Amount,
			CreatedTS: run.CreatedAt,
		})
	}
	return rows
}
