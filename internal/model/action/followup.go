package action

import "time"

// FollowUpStatus is the delivery state of a scheduled check-in.
type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpSent      FollowUpStatus = "sent"
	FollowUpResponded FollowUpStatus = "responded"
	FollowUpSkipped   FollowUpStatus = "skipped"
)

// FollowUp is a check-in scheduled for an action.
type FollowUp struct {
	ID               int64          `json:"id"`
	ActionID         int64          `json:"actionId"`
	ScheduledFor     time.Time      `json:"scheduledFor"`
	Status           FollowUpStatus `json:"status"`
	NotificationSent *time.Time     `json:"notificationSent"`
	Response         *string        `json:"response"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// Due pairs a pending follow-up with the action it belongs to.
type Due struct {
	FollowUp FollowUp
	Action   Action
}

// DefaultFollowUpIntervals are the day offsets for check-ins on a chat action.
var DefaultFollowUpIntervals = []int{2, 4, 7, 10, 14, 21}

// GoalStepIntervals are the day offsets for check-ins on an active goal step.
var GoalStepIntervals = []int{2, 4}

// CheckInHour is the UTC hour follow-ups are scheduled at.
const CheckInHour = 18

// MaxFollowUpDays is the furthest a check-in may be scheduled ahead.
const MaxFollowUpDays = 60

// ValidIntervals reports whether a requested schedule has at most as many
// check-ins as the default one, each 1 to MaxFollowUpDays days out.
func ValidIntervals(intervals []int) bool {
	if len(intervals) > len(DefaultFollowUpIntervals) {
		return false
	}
	for _, days := range intervals {
		if days < 1 || days > MaxFollowUpDays {
			return false
		}
	}
	return true
}

// ScheduleTimes returns one check-in per interval, each at CheckInHour UTC
// on the day that lies intervalDays after from.
func ScheduleTimes(from time.Time, intervals []int) []time.Time {
	base := from.UTC()
	out := make([]time.Time, 0, len(intervals))
	for _, days := range intervals {
		day := base.AddDate(0, 0, days)
		out = append(out, time.Date(day.Year(), day.Month(), day.Day(), CheckInHour, 0, 0, 0, time.UTC))
	}
	return out
}
