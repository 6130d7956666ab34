package chatsession

import (
	"time"

	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

// DayGroup is one rendered date divider and the messages under it.
type DayGroup struct {
	Day      time.Time
	Label    string
	Messages []chatwire.Message
}

// DayGroups splits the message list by calendar day in the given location.
// Grouping is display-local: two participants in different timezones may cut
// the same history at different midnights, and both are correct.
func (s *Session) DayGroups(loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}

	messages := s.Messages()
	today := dayStart(s.cfg.Clock().In(loc))

	groups := make([]DayGroup, 0)
	for _, message := range messages {
		day := dayStart(message.CreatedAt.In(loc))
		if len(groups) == 0 || !groups[len(groups)-1].Day.Equal(day) {
			groups = append(groups, DayGroup{
				Day:   day,
				Label: dayLabel(day, today),
			})
		}
		last := &groups[len(groups)-1]
		last.Messages = append(last.Messages, message)
	}
	return groups
}

func dayStart(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func dayLabel(day, today time.Time) string {
	switch days := daysBetween(day, today); {
	case days == 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days > 1 && days < 7:
		return day.Format("Monday")
	default:
		return day.Format("January 2, 2006")
	}
}

// daysBetween counts calendar days in UTC so DST shifts cannot skew the
// label arithmetic.
func daysBetween(day, today time.Time) int {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(d).Hours() / 24)
}
