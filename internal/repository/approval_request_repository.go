package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/segyhp/ledger-engine/internal/domain"
)

const approvalColumns = `
	id, title, description, amount, department, requestedby, priority, type, status, approval_stage,
	admin_approved, admin_approved_by, admin_approved_at,
	finance_approved, finance_approved_by, finance_approved_at,
	rejection_reason, details, daterequested, created_at, updated_at`

type approvalRequestRepository struct {
	db sqlx.ExtContext
}

func NewApprovalRequestRepository(db sqlx.ExtContext) ApprovalRequestRepository {
	return &approvalRequestRepository{db: db}
}

func (r *approvalRequestRepository) Create(ctx context.Context, request *domain.ApprovalRequest) error {
	query := `
		INSERT INTO approval_requests (` + approvalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.Title,
		request.Description,
		request.Amount,
		request.Department,
		request.RequestedBy,
		request.Priority,
		request.Type,
		request.Status,
		request.ApprovalStage,
		request.AdminApproved,
		request.AdminApprovedBy,
		request.AdminApprovedAt,
		request.FinanceApproved,
		request.FinanceApprovedBy,
		request.FinanceApprovedAt,
		request.RejectionReason,
		request.Details,
		request.DateRequested,
		request.CreatedAt,
		request.UpdatedAt,
	)

	return classify(err)
}

func (r *approvalRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1`

	var request domain.ApprovalRequest
	if err := sqlx.GetContext(ctx, r.db, &request, query, id); err != nil {
		return nil, classify(err)
	}

	return &request, nil
}

func (r *approvalRequestRepository) Update(ctx context.Context, request *domain.ApprovalRequest) error {
	query := `
		UPDATE approval_requests
		SET description = $2, amount = $3, status = $4, approval_stage = $5,
		    admin_approved = $6, admin_approved_by = $7, admin_approved_at = $8,
		    finance_approved = $9, finance_approved_by = $10, finance_approved_at = $11,
		    rejection_reason = $12, updated_at = $13
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.Description,
		request.Amount,
		request.Status,
		request.ApprovalStage,
		request.AdminApproved,
		request.AdminApprovedBy,
		request.AdminApprovedAt,
		request.FinanceApproved,
		request.FinanceApprovedBy,
		request.FinanceApprovedAt,
		request.RejectionReason,
		request.UpdatedAt,
	)

	return affectedOne(result, err)
}
