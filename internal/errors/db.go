package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Patterns for pulling structure out of PgError.Detail. The server phrases
// these consistently: "Key (field)=(value) already exists.",
// "... is still referenced from table ...", "... is not present in table ...".
var (
	reKeyField       = regexp.MustCompile(`Key \(([^)]+)\)=`)
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	reNotPresent     = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError translates driver and PostgreSQL errors into AppError values the
// rest of the system can branch on: ErrNoRows becomes not_found, unique
// violations become conflict, FK violations become foreign_key, check and
// not-null violations become validation, context expiry becomes
// timeout/canceled. Anything unrecognized passes through unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}
	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "This value already exists. Please choose a different one.",
			Field:   uniqueViolationField(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.ForeignKeyViolation:
		return &AppError{
			Code:    ErrCodeForeignKey,
			Message: foreignKeyMessage(pgErr),
			Cause:   pgErr,
		}
	case pgerrcode.NotNullViolation:
		return validationError(pgErr, "This field is required.", "Required field is missing. Please check your input.")
	case pgerrcode.CheckViolation:
		return validationError(pgErr, "This field has an invalid value.", "Invalid data. Please check your input.")
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

func validationError(pgErr *pgconn.PgError, withField, withoutField string) error {
	msg := withoutField
	if pgErr.ColumnName != "" {
		msg = withField
	}
	return &AppError{
		Code:    ErrCodeValidation,
		Message: msg,
		Field:   pgErr.ColumnName,
		Cause:   pgErr,
	}
}

// uniqueViolationField names the offending field, trying the most reliable
// source first: column metadata, then the Detail message (which also covers
// multi-column keys), then the constraint name.
func uniqueViolationField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	if pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			return m[1]
		}
	}
	return inferFieldFromConstraint(pgErr.ConstraintName)
}

// foreignKeyMessage distinguishes deleting a still-referenced parent from
// inserting a child whose parent is missing, and names the other table in
// domain terms. When Detail and table metadata are both absent the constraint
// name decides.
func foreignKeyMessage(pgErr *pgconn.PgError) string {
	if pgErr.Detail != "" {
		if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			return "Cannot delete because this item is in use by " + mapTableToDomain(m[1]) + "."
		}
		if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			return "Cannot complete operation because the referenced " + mapTableToDomain(m[1]) + " does not exist."
		}
	}
	if pgErr.TableName != "" {
		return "Cannot complete operation because this item is in use by " + mapTableToDomain(pgErr.TableName) + "."
	}
	return inferForeignKeyMessage(pgErr.ConstraintName)
}

// inferFieldFromConstraint guesses the field behind a "table_field_key" style
// constraint name. Anything with more than three segments is ambiguous
// (multi-column keys, and this schema's prefixed table names ocr_jobs_* /
// ocr_page_results_* always land there), so the guess is abandoned rather
// than risk naming the wrong field.
func inferFieldFromConstraint(constraintName string) string {
	parts := strings.Split(constraintName, "_")
	if len(parts) != 3 {
		return ""
	}
	field := parts[1]
	if isFunctionName(field) {
		// expression index like "table_lower_key", not a real column
		return ""
	}
	return field
}

var tableDomainNames = map[string]string{
	"ocr_jobs":         "Job",
	"ocr_page_results": "Page Result",
}

// mapTableToDomain turns a table name into the label users see. Unknown
// tables get title-cased with underscores as word breaks.
func mapTableToDomain(tableName string) string {
	tableName = strings.ToLower(strings.TrimSpace(tableName))
	if name, ok := tableDomainNames[tableName]; ok {
		return name
	}
	return titleCase(strings.ReplaceAll(tableName, "_", " "))
}

func titleCase(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		if len(w) > 0 && w[0] >= 'a' && w[0] <= 'z' {
			words[i] = string(w[0]-32) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// inferForeignKeyMessage is the last-resort FK message when the server gave
// no Detail or table metadata. Page results are matched before jobs because
// "ocr_page_results_job_id_fkey" contains both substrings.
func inferForeignKeyMessage(constraintName string) string {
	constraintName = strings.ToLower(constraintName)
	switch {
	case strings.Contains(constraintName, "page_result"):
		return "Cannot save page results because the owning Job no longer exists."
	case strings.Contains(constraintName, "job"):
		return "Cannot complete operation because the referenced Job does not exist."
	default:
		return "Cannot complete operation because this item is in use."
	}
}

var sqlFunctionNames = map[string]bool{
	"lower": true, "upper": true, "trim": true, "ltrim": true, "rtrim": true,
	"md5": true, "sha1": true, "sha256": true, "encode": true, "decode": true,
}

// isFunctionName reports whether s is a SQL function commonly seen in
// expression index names.
func isFunctionName(s string) bool {
	return sqlFunctionNames[strings.ToLower(s)]
}
