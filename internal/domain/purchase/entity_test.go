package purchase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learnhub/internal/domain/catalog"
	"github.com/alem-hub/learnhub/internal/domain/shared"
)

const buyer = shared.UserID("6f1c0f7a-2d7e-4b7a-8d61-0c1e1b9a4f22")

func TestNewTransactionID_Format(t *testing.T) {
	id := NewTransactionID()

	assert.True(t, strings.HasPrefix(id, "MOCK-"))
	assert.True(t, IsValidTransactionID(id))
	assert.True(t, IsValidTransactionID(strings.ToUpper(id)))
	assert.True(t, IsValidTransactionID("mock-"+strings.TrimPrefix(id, "MOCK-")))
	assert.NotEqual(t, id, NewTransactionID())
}

func TestIsValidTransactionID_Rejects(t *testing.T) {
	assert.False(t, IsValidTransactionID(""))
	assert.False(t, IsValidTransactionID("MOCK-"))
	assert.False(t, IsValidTransactionID("PAY-6f1c0f7a-2d7e-4b7a-8d61-0c1e1b9a4f22"))
	assert.False(t, IsValidTransactionID("MOCK-6f1c0f7a2d7e4b7a8d610c1e1b9a4f22"))
	assert.False(t, IsValidTransactionID("MOCK-6f1c0f7a-2d7e-4b7a-8d61-0c1e1b9a4f22-x"))
}

func TestNew_CapturesPrice(t *testing.T) {
	now := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	course := &catalog.Course{ID: 1, Title: "Software Design Patterns", Price: 2990}

	p, err := New(buyer, course, now)
	require.NoError(t, err)

	assert.Equal(t, buyer, p.UserID)
	assert.Equal(t, shared.CourseID(1), p.CourseID)
	assert.Equal(t, int64(2990), p.PurchasePrice)
	assert.Equal(t, "Software Design Patterns", p.CourseTitle)
	assert.Equal(t, PaymentCompleted, p.PaymentStatus)
	assert.Equal(t, now, p.PurchaseDate)
	assert.True(t, IsValidTransactionID(p.TransactionID))

	course.Price = 4990
	assert.Equal(t, int64(2990), p.PurchasePrice)
}

func TestPurchase_Validate(t *testing.T) {
	p, err := New(buyer, &catalog.Course{ID: 1, Title: "Software Design Patterns", Price: 2990}, time.Now())
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	forged := *p
	forged.TransactionID = "PAY-123"
	assert.True(t, shared.IsValidation(forged.Validate()))

	negative := *p
	negative.PurchasePrice = -1
	assert.True(t, errors.Is(negative.Validate(), shared.ErrNegativeValue))
}

func TestNew_RejectsFreeCourse(t *testing.T) {
	_, err := New(buyer, &catalog.Course{ID: 2, IsFree: true}, time.Now())

	assert.True(t, errors.Is(err, shared.ErrFreeCourse))
	assert.Contains(t, err.Error(), "cannot purchase free course")
}

func TestNew_RejectsMissingCourseAndBadUser(t *testing.T) {
	_, err := New(buyer, nil, time.Now())
	assert.True(t, shared.IsNotFound(err))

	_, err = New("bad", &catalog.Course{ID: 1, Price: 10}, time.Now())
	assert.True(t, shared.IsValidation(err))
}
