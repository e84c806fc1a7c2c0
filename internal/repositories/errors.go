package repositories

import (
	"errors"
	"fmt"

	"leads-backend/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the repositories translate
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// uniqueFields names the column behind each unique constraint a client can hit
var uniqueFields = map[string]string{
	"principals_username_key":              "username",
	"principals_email_key":                 "email",
	"dialer_mappings_external_user_id_key": "external_user_id",
	"dialer_mappings_principal_id_key":     "principal_id",
	"field_submissions_lead_id_key":        "lead_id",
	"leads_phone_key":                      "phone",
	"leads_dialer_lead_id_key":             "dialer_lead_id",
	"leads_lead_number_key":                "lead_number",
}

// translate maps driver errors onto the apperr taxonomy. Unique violations
// on leads are handled by the lead repository, which can name the row.
func translate(err error, entity string, key any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, key)
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		field := uniqueFields[pgErr.ConstraintName]
		if field == "" {
			field = pgErr.ConstraintName
		}
		return apperr.Validation(field, "already taken")
	case pgForeignKeyViolation:
		return apperr.Validation(fkField(pgErr), fmt.Sprintf("violates %s", pgErr.ConstraintName))
	case pgCheckViolation, pgNotNullViolation:
		field := pgErr.ColumnName
		if field == "" {
			field = checkField(pgErr.ConstraintName)
		}
		return apperr.Validation(field, fmt.Sprintf("violates %s", pgErr.ConstraintName))
	}
	return err
}

// uniqueViolation returns the constraint name when err is a 23505
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

func fkField(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "leads_owning_agent_id_fkey":
		return "owning_agent_id"
	case "leads_field_sales_rep_id_fkey":
		return "field_sales_rep_id"
	case "dialer_mappings_principal_id_fkey":
		return "principal_id"
	}
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	return "reference"
}

func checkField(constraint string) string {
	switch constraint {
	case "leads_appointment_date_check":
		return "appointment_date"
	case "leads_sale_amount_check":
		return "sale_amount"
	case "leads_status_check":
		return "status"
	case "leads_phone_check":
		return "phone"
	case "leads_day_night_rate_check":
		return "day_night_rate"
	case "principals_role_check":
		return "role"
	}
	return constraint
}
