package progress

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alem-hub/learnhub/internal/domain/shared"
)

const testUser = shared.UserID("0b8a2c9e-4f0e-4c1b-9a57-3d2f1e6b7c80")

func sampleAt(pos, dur float64, at time.Time) Sample {
	return Sample{UserID: testUser, LessonID: 1, CourseID: 1, Position: pos, Duration: dur, ReportedAt: at}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(10, 0))
	assert.Equal(t, 0, Percentage(0, 100))
	assert.Equal(t, 30, Percentage(30, 100))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 100, Percentage(150, 100))
}

func TestMerge_FirstSample(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	next := Merge(nil, sampleAt(30, 100, now), DefaultCompletionThreshold, now)

	assert.Equal(t, 30.0, next.LastPosition)
	assert.Equal(t, 100.0, next.Duration)
	assert.Equal(t, 30, next.Percentage)
	assert.False(t, next.Completed)
	assert.False(t, next.Submitted)
	assert.Equal(t, StateInProgress, next.State())
}

func TestMerge_CompletionIsMonotonic(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	done := Merge(nil, sampleAt(95, 100, t0), DefaultCompletionThreshold, t0)
	assert.True(t, done.Completed)
	assert.True(t, JustCompleted(nil, done))

	rewound := Merge(&done, sampleAt(10, 100, t0.Add(time.Minute)), DefaultCompletionThreshold, t0.Add(time.Minute))
	assert.True(t, rewound.Completed)
	assert.Equal(t, 10.0, rewound.LastPosition)
	assert.False(t, JustCompleted(&done, rewound))
	assert.Equal(t, StateCanSubmit, rewound.State())
}

func TestMerge_ThresholdBoundary(t *testing.T) {
	now := time.Now()

	below := Merge(nil, sampleAt(94.4, 100, now), DefaultCompletionThreshold, now)
	assert.False(t, below.Completed)

	at := Merge(nil, sampleAt(94.5, 100, now), DefaultCompletionThreshold, now)
	assert.Equal(t, 95, at.Percentage)
	assert.True(t, at.Completed)
}

func TestMerge_StaleSampleKeepsPositionButCanComplete(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	current := Merge(nil, sampleAt(40, 100, t0.Add(time.Minute)), DefaultCompletionThreshold, t0)

	stale := Merge(&current, sampleAt(20, 100, t0), DefaultCompletionThreshold, t0.Add(2*time.Minute))
	assert.Equal(t, 40.0, stale.LastPosition)
	assert.Equal(t, current.LastReportedAt, stale.LastReportedAt)
	assert.False(t, stale.Completed)

	staleDone := Merge(&current, sampleAt(99, 100, t0), DefaultCompletionThreshold, t0.Add(2*time.Minute))
	assert.Equal(t, 40.0, staleDone.LastPosition)
	assert.True(t, staleDone.Completed)
}

func TestMerge_ZeroDurationKeepsStoredDuration(t *testing.T) {
	now := time.Now()

	first := Merge(nil, sampleAt(10, 600, now), DefaultCompletionThreshold, now)
	second := Merge(&first, sampleAt(300, 0, now.Add(time.Second)), DefaultCompletionThreshold, now)

	assert.Equal(t, 600.0, second.Duration)
	assert.Equal(t, 50, second.Percentage)
}

func TestMerge_KeepsSubmission(t *testing.T) {
	now := time.Now()
	prev := &LessonProgress{
		UserID: testUser, LessonID: 1, CourseID: 1,
		LastPosition: 100, Duration: 100, Percentage: 100,
		Completed: true, Submitted: true, ExperienceGained: 200,
		LastReportedAt: now, CreatedAt: now, UpdatedAt: now,
	}

	next := Merge(prev, sampleAt(5, 100, now.Add(time.Second)), DefaultCompletionThreshold, now)
	assert.True(t, next.Submitted)
	assert.True(t, next.Completed)
	assert.Equal(t, int64(200), next.ExperienceGained)
	assert.Equal(t, StateSubmitted, next.State())
}

func TestSample_Validate(t *testing.T) {
	now := time.Now()

	assert.NoError(t, sampleAt(0, 0, now).Validate())

	neg := sampleAt(-1, 100, now)
	assert.True(t, shared.IsValidation(neg.Validate()))

	nan := sampleAt(math.NaN(), 100, now)
	assert.True(t, shared.IsValidation(nan.Validate()))

	badLesson := sampleAt(1, 1, now)
	badLesson.LessonID = 0
	assert.True(t, shared.IsValidation(badLesson.Validate()))

	badUser := sampleAt(1, 1, now)
	badUser.UserID = "nope"
	assert.True(t, shared.IsValidation(badUser.Validate()))
}

func TestState_NoBackEdges(t *testing.T) {
	assert.Equal(t, StateNotStarted, StateOf(nil))
	assert.True(t, StateNotStarted.CanTransitionTo(StateInProgress))
	assert.True(t, StateInProgress.CanTransitionTo(StateCanSubmit))
	assert.True(t, StateCanSubmit.CanTransitionTo(StateSubmitted))
	assert.False(t, StateSubmitted.CanTransitionTo(StateCanSubmit))
	assert.False(t, StateCanSubmit.CanTransitionTo(StateInProgress))
}
