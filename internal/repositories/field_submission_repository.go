package repositories

import (
	"context"

	"leads-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// FieldSubmissionRepository reads submissions and writes their review
// block. The assessment itself is written with the linked lead.
type FieldSubmissionRepository struct {
	DB *pgxpool.Pool
}

func NewFieldSubmissionRepository(db *pgxpool.Pool) *FieldSubmissionRepository {
	return &FieldSubmissionRepository{DB: db}
}

const submissionSelect = `SELECT fs.id, fs.canvasser_id, COALESCE(p.name, ''), fs.lead_id,
	fs.full_name, fs.phone, fs.email, fs.address1, fs.address2, fs.city, fs.postal_code,
	fs.property_type, fs.property_ownership, fs.roof_type, fs.roof_orientation, fs.shading, fs.monthly_bill, fs.notes,
	fs.review_status, fs.reviewer_id, fs.reviewed_at, fs.reviewer_notes, fs.created_at, fs.updated_at
FROM field_submissions fs
LEFT JOIN principals p ON p.id = fs.canvasser_id`

func scanSubmission(row pgx.Row) (*models.FieldSubmission, error) {
	var fs models.FieldSubmission
	err := row.Scan(&fs.ID, &fs.CanvasserID, &fs.CanvasserName, &fs.LeadID,
		&fs.FullName, &fs.Phone, &fs.Email, &fs.AddressLine1, &fs.AddressLine2, &fs.City, &fs.PostalCode,
		&fs.PropertyType, &fs.PropertyOwnership, &fs.RoofType, &fs.RoofOrientation, &fs.Shading, &fs.MonthlyBill, &fs.Notes,
		&fs.ReviewStatus, &fs.ReviewerID, &fs.ReviewedAt, &fs.ReviewerNotes, &fs.CreatedAt, &fs.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &fs, nil
}

func (r *FieldSubmissionRepository) Get(ctx context.Context, id int) (*models.FieldSubmission, error) {
	fs, err := scanSubmission(r.DB.QueryRow(ctx, submissionSelect+` WHERE fs.id=$1`, id))
	return fs, translate(err, "field submission", id)
}

// List returns newest first; a nil canvasserID lists everyone's
func (r *FieldSubmissionRepository) List(ctx context.Context, canvasserID *int) ([]*models.FieldSubmission, error) {
	rows, err := r.DB.Query(ctx,
		submissionSelect+`
         WHERE $1::int IS NULL OR fs.canvasser_id = $1
         ORDER BY fs.id DESC`, canvasserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []*models.FieldSubmission
	for rows.Next() {
		fs, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, fs)
	}
	return submissions, rows.Err()
}

func (r *FieldSubmissionRepository) UpdateReview(ctx context.Context, fs *models.FieldSubmission) error {
	err := r.DB.QueryRow(ctx,
		`UPDATE field_submissions
         SET review_status=$2, reviewer_id=$3, reviewed_at=$4, reviewer_notes=$5, updated_at=NOW()
         WHERE id=$1
         RETURNING updated_at`,
		fs.ID, fs.ReviewStatus, fs.ReviewerID, fs.ReviewedAt, fs.ReviewerNotes,
	).Scan(&fs.UpdatedAt)
	return translate(err, "field submission", fs.ID)
}
