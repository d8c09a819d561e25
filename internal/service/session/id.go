package session

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

const (
	idPrefix     = "widget_"
	randomLength = 9
	base36       = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// NewSessionID builds "widget_<9 base36 chars>_<unix millis>". Uniqueness is
// not checked; the ids only key analytics rows.
func NewSessionID(now time.Time) string {
	var b strings.Builder
	b.Grow(len(idPrefix) + randomLength + 14)
	b.WriteString(idPrefix)
	for i := 0; i < randomLength; i++ {
		b.WriteByte(base36[rand.IntN(len(base36))])
	}
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 10))
	return b.String()
}
