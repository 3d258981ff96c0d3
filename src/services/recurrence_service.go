package services

import (
	"fmt"
	"time"

	"reportscheduler/src/models"
	"reportscheduler/src/utils"
)

type RecurrenceServiceI interface {
	ValidateRule(rule models.RecurrenceRule) error
	ComputeNextRunAt(rule models.RecurrenceRule, from time.Time) (time.Time, error)
}

// RecurrenceService computes the next execution instant for a recurrence
// rule. All arithmetic happens on wall-clock values in the rule's IANA zone,
// so daylight-saving transitions are respected; the result is returned in
// UTC.
type RecurrenceService struct{}

func NewRecurrenceService() *RecurrenceService {
	return &RecurrenceService{}
}

// ValidateRule rejects rules that could never be scheduled. Called at
// create/update time, before anything is persisted.
func (rs *RecurrenceService) ValidateRule(rule models.RecurrenceRule) error {
	switch rule.Frequency {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly:
	default:
		return utils.UnprocessableEntity(fmt.Sprintf("unknown frequency %q", rule.Frequency))
	}

	if rule.Hour < 0 || rule.Hour > 23 {
		return utils.UnprocessableEntity(fmt.Sprintf("hour %d out of range [0,23]", rule.Hour))
	}
	if rule.Minute < 0 || rule.Minute > 59 {
		return utils.UnprocessableEntity(fmt.Sprintf("minute %d out of range [0,59]", rule.Minute))
	}

	if rule.Frequency == models.FrequencyWeekly {
		if rule.DayOfWeek == nil {
			return utils.UnprocessableEntity("dayOfWeek is required for weekly schedules")
		}
		if *rule.DayOfWeek < 0 || *rule.DayOfWeek > 6 {
			return utils.UnprocessableEntity(fmt.Sprintf("dayOfWeek %d out of range [0,6]", *rule.DayOfWeek))
		}
	}

	if rule.Frequency == models.FrequencyMonthly {
		if rule.DayOfMonth == nil {
			return utils.UnprocessableEntity("dayOfMonth is required for monthly schedules")
		}
		// 1..28 so the rule lands on the same day in every month.
		if *rule.DayOfMonth < 1 || *rule.DayOfMonth > 28 {
			return utils.UnprocessableEntity(fmt.Sprintf("dayOfMonth %d out of range [1,28]", *rule.DayOfMonth))
		}
	}

	if rule.Timezone == "" {
		return utils.UnprocessableEntity("timezone is required")
	}
	if _, err := time.LoadLocation(rule.Timezone); err != nil {
		return utils.UnprocessableEntity(fmt.Sprintf("unknown timezone %q", rule.Timezone))
	}

	return nil
}

// ComputeNextRunAt returns the first instant strictly after from whose
// wall-clock projection in the rule's timezone matches the rule.
func (rs *RecurrenceService) ComputeNextRunAt(rule models.RecurrenceRule, from time.Time) (time.Time, error) {
	if err := rs.ValidateRule(rule); err != nil {
		return time.Time{}, err
	}

	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		return time.Time{}, utils.UnprocessableEntity(fmt.Sprintf("unknown timezone %q", rule.Timezone))
	}

	local := from.In(loc)

	var candidate time.Time
	switch rule.Frequency {
	case models.FrequencyDaily:
		candidate = time.Date(local.Year(), local.Month(), local.Day(), rule.Hour, rule.Minute, 0, 0, loc)
		if !candidate.After(from) {
			candidate = candidate.AddDate(0, 0, 1)
		}
	case models.FrequencyWeekly:
		// Distance to the next matching weekday, today included.
		days := (*rule.DayOfWeek - int(local.Weekday()) + 7) % 7
		candidate = time.Date(local.Year(), local.Month(), local.Day()+days, rule.Hour, rule.Minute, 0, 0, loc)
		if !candidate.After(from) {
			candidate = candidate.AddDate(0, 0, 7)
		}
	case models.FrequencyMonthly:
		candidate = time.Date(local.Year(), local.Month(), *rule.DayOfMonth, rule.Hour, rule.Minute, 0, 0, loc)
		if !candidate.After(from) {
			// dayOfMonth never exceeds 28, so adding a month cannot overflow
			// into the following one.
			candidate = candidate.AddDate(0, 1, 0)
		}
	}

	return candidate.UTC(), nil
}
