package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/playreport/api/pkg/domain/scope"
	"github.com/playreport/api/pkg/domain/shared"
)

// IdentityRepository loads the stored tenant assignment of report users.
// Scheduled runs use it so a saved report always executes with its
// owner's current scope.
type IdentityRepository struct {
	db *DB
}

// NewIdentityRepository creates a new IdentityRepository.
func NewIdentityRepository(db *DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// CallerScope returns the current scope of userID. Unknown users are
// reported as forbidden so callers fail closed.
func (r *IdentityRepository) CallerScope(ctx context.Context, userID string) (scope.CallerScope, error) {
	query := `
		SELECT u.role, u.white_label_id, u.tracker,
		       COALESCE(ARRAY_AGG(w.white_label_id ORDER BY w.white_label_id)
		                FILTER (WHERE w.white_label_id IS NOT NULL), '{}')
		FROM report_users u
		LEFT JOIN report_user_white_labels w ON w.user_id = u.user_id
		WHERE u.user_id = $1
		GROUP BY u.user_id, u.role, u.white_label_id, u.tracker
	`

	var (
		role         string
		whiteLabelID sql.NullInt64
		tracker      sql.NullString
		whiteLabels  pq.Int64Array
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&role, &whiteLabelID, &tracker, &whiteLabels)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return scope.CallerScope{}, fmt.Errorf("%w: no report identity for user", shared.ErrForbidden)
		}
		return scope.CallerScope{}, classify(err, "load report identity")
	}

	parsed, err := scope.ParseRole(role)
	if err != nil {
		return scope.CallerScope{}, err
	}

	id := scope.CallerScope{UserID: userID, Role: parsed}
	switch parsed {
	case scope.RolePartner:
		id.TenantIDs = []int64(whiteLabels)
	case scope.RoleSubpartner:
		if whiteLabelID.Valid {
			tenant := whiteLabelID.Int64
			id.TenantID = &tenant
		}
		if tracker.Valid && tracker.String != "" {
			t := tracker.String
			id.TrackerConstraint = &t
		}
	}
	return id, nil
}
