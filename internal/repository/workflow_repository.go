package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/segyhp/ledger-engine/internal/domain"
)

type workflowRepository struct {
	db sqlx.ExtContext
}

func NewWorkflowRepository(db sqlx.ExtContext) WorkflowRepository {
	return &workflowRepository{db: db}
}

func (r *workflowRepository) Append(ctx context.Context, step *domain.WorkflowStep) error {
	query := `
		INSERT INTO workflow_steps (id, payment_id, action, from_department, to_department, processed_by, reason, comments, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		step.ID,
		step.PaymentID,
		step.Action,
		step.FromDepartment,
		step.ToDepartment,
		step.ProcessedBy,
		step.Reason,
		step.Comments,
		step.Timestamp,
	)

	return classify(err)
}

func (r *workflowRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]*domain.WorkflowStep, error) {
	query := `
		SELECT id, payment_id, action, from_department, to_department, processed_by, reason, comments, timestamp
		FROM workflow_steps
		WHERE payment_id = $1
		ORDER BY timestamp ASC, seq ASC
	`

	var steps []*domain.WorkflowStep
	if err := sqlx.SelectContext(ctx, r.db, &steps, query, paymentID); err != nil {
		return nil, classify(err)
	}

	return steps, nil
}
