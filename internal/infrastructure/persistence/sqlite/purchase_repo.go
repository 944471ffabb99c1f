package sqlite

import (
	"context"
	"database/sql"

	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// PurchaseRepository implements purchase.Repository on SQLite.
type PurchaseRepository struct {
	db *sql.DB
}

var _ purchase.Repository = (*PurchaseRepository)(nil)

// Create inserts the purchase. The UNIQUE(user_id, course_id) constraint is the
// only duplicate check, so two racing buyers cannot both succeed.
func (r *PurchaseRepository) Create(ctx context.Context, p *purchase.Purchase) error {
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO course_purchases (
			id, user_id, course_id, course_title, purchase_price,
			purchase_date, payment_status, transaction_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID.String(), p.CourseID.Int64(), p.CourseTitle, p.PurchasePrice,
		toMillis(p.PurchaseDate), string(p.PaymentStatus), p.TransactionID,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return shared.ErrCourseAlreadyPurchased
		case isForeignKeyViolation(err):
			return shared.ErrUserNotFound
		}
		return storageErr("purchase", "Create", err)
	}
	return nil
}

// ListByUser returns the user's purchases, most recent first.
func (r *PurchaseRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*purchase.Purchase, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, course_id, course_title, purchase_price,
			purchase_date, payment_status, transaction_id
		FROM course_purchases
		WHERE user_id = ?
		ORDER BY purchase_date DESC, id DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, storageErr("purchase", "ListByUser", err)
	}
	defer rows.Close()

	result := make([]*purchase.Purchase, 0)
	for rows.Next() {
		var (
			p        purchase.Purchase
			uid      string
			courseID int64
			date     int64
			status   string
		)
		if err := rows.Scan(
			&p.ID, &uid, &courseID, &p.CourseTitle, &p.PurchasePrice,
			&date, &status, &p.TransactionID,
		); err != nil {
			return nil, storageErr("purchase", "ListByUser", err)
		}
		p.UserID = shared.UserID(uid)
		p.CourseID = shared.CourseID(courseID)
		p.PurchaseDate = fromMillis(date)
		p.PaymentStatus = purchase.PaymentStatus(status)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("purchase", "ListByUser", err)
	}
	return result, nil
}

// Exists reports whether the user holds a completed purchase of the course.
func (r *PurchaseRepository) Exists(ctx context.Context, userID shared.UserID, courseID shared.CourseID) (bool, error) {
	var found int
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_purchases
			WHERE user_id = ? AND course_id = ? AND payment_status = ?
		)`,
		userID.String(), courseID.Int64(), string(purchase.PaymentCompleted),
	).Scan(&found)
	if err != nil {
		return false, storageErr("purchase", "Exists", err)
	}
	return found == 1, nil
}
