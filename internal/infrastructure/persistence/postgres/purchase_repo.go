package postgres

import (
	"context"

	"github.com/alem-hub/learnhub/internal/domain/purchase"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

// PurchaseRepository implements purchase.Repository using PostgreSQL.
type PurchaseRepository struct {
	conn *Connection
}

var _ purchase.Repository = (*PurchaseRepository)(nil)

// Create inserts the purchase. The one_purchase_per_course constraint is the
// only duplicate check.
func (r *PurchaseRepository) Create(ctx context.Context, p *purchase.Purchase) error {
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := r.conn.Pool().Exec(ctx, `
		INSERT INTO course_purchases (
			id, user_id, course_id, course_title, purchase_price,
			purchase_date, payment_status, transaction_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.UserID.String(), p.CourseID.Int64(), p.CourseTitle, p.PurchasePrice,
		p.PurchaseDate, string(p.PaymentStatus), p.TransactionID,
	)
	if err != nil {
		switch {
		case IsUniqueViolation(err):
			return shared.ErrCourseAlreadyPurchased
		case IsForeignKeyViolation(err):
			return shared.ErrUserNotFound
		}
		return storageErr("purchase", "Create", err)
	}
	return nil
}

// ListByUser returns the user's purchases, most recent first.
func (r *PurchaseRepository) ListByUser(ctx context.Context, userID shared.UserID) ([]*purchase.Purchase, error) {
	rows, err := r.conn.Pool().Query(ctx, `
		SELECT id::text, user_id::text, course_id, course_title, purchase_price,
			purchase_date, payment_status, transaction_id
		FROM course_purchases
		WHERE user_id = $1
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
			status   string
		)
		if err := rows.Scan(
			&p.ID, &uid, &courseID, &p.CourseTitle, &p.PurchasePrice,
			&p.PurchaseDate, &status, &p.TransactionID,
		); err != nil {
			return nil, storageErr("purchase", "ListByUser", err)
		}
		p.UserID = shared.UserID(uid)
		p.CourseID = shared.CourseID(courseID)
		p.PurchaseDate = p.PurchaseDate.UTC()
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
	var found bool
	err := r.conn.Pool().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM course_purchases
			WHERE user_id = $1 AND course_id = $2 AND payment_status = $3
		)`,
		userID.String(), courseID.Int64(), string(purchase.PaymentCompleted),
	).Scan(&found)
	if err != nil {
		return false, storageErr("purchase", "Exists", err)
	}
	return found, nil
}
