package redis

import (
	"strconv"
	"strings"
	"time"
)

// Every key lives under "learnhub:"; catalog entries under "learnhub:catalog:".
const (
	keyRoot      = "learnhub"
	nsCatalog    = "catalog"
	nsRateLimit  = "ratelimit"
	TTLCatalog   = 5 * time.Minute
	rateLimitTTL = time.Minute
)

func key(parts ...string) string {
	return keyRoot + ":" + strings.Join(parts, ":")
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func CourseKey(courseID int64) string              { return key(nsCatalog, "course", itoa(courseID)) }
func CourseListKey() string                        { return key(nsCatalog, "courses") }
func LessonKey(lessonID int64) string              { return key(nsCatalog, "lesson", itoa(lessonID)) }
func LessonListKey(courseID int64) string          { return key(nsCatalog, "course", itoa(courseID), "lessons") }
func RateLimitKey(who string, window int64) string { return key(nsRateLimit, who, itoa(window)) }
