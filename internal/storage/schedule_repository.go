package storage

import (
	"context"
	"time"

	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/availability"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/model"
	"github.com/ADahling/pathwaiz-career-clarity-sub001/internal/postgres"
	"github.com/google/uuid"
)

// ScheduleRepository persists a mentor's weekly rules and date exceptions.
// Both tables carry uniqueness in the schema: one rule per (mentor, weekday),
// one exception per (mentor, date), so writes are upserts.
type ScheduleRepository struct {
	pool *postgres.Pool
}

func NewScheduleRepository(pool *postgres.Pool) *ScheduleRepository {
	return &ScheduleRepository{pool: pool}
}

// Schedule loads the availability configuration the resolver needs for
// [from, to): all weekly rules plus the exceptions falling inside the range.
func (r *ScheduleRepository) Schedule(ctx context.Context, mentorID uuid.UUID, from, to time.Time) (availability.Schedule, error) {
	rules, err := r.ListWeeklyRules(ctx, mentorID)
	if err != nil {
		return availability.Schedule{}, err
	}
	exceptions, err := r.ListExceptions(ctx, mentorID, from, to)
	if err != nil {
		return availability.Schedule{}, err
	}
	return availability.Schedule{
		MentorID:   mentorID,
		Rules:      rules,
		Exceptions: exceptions,
	}, nil
}

func (r *ScheduleRepository) ListWeeklyRules(ctx context.Context, mentorID uuid.UUID) ([]model.WeeklyRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, mentor_id, weekday, start_minute, end_minute
		FROM mentor_weekly_rules
		WHERE mentor_id = $1
		ORDER BY weekday
	`, mentorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []model.WeeklyRule
	for rows.Next() {
		var rule model.WeeklyRule
		var weekday int
		if err := rows.Scan(&rule.ID, &rule.MentorID, &weekday, &rule.StartMinute, &rule.EndMinute); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *ScheduleRepository) ListExceptions(ctx context.Context, mentorID uuid.UUID, from, to time.Time) ([]model.DateException, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, mentor_id, date, available, start_minute, end_minute
		FROM mentor_date_exceptions
		WHERE mentor_id = $1 AND date >= $2::date AND date < $3::date
		ORDER BY date
	`, mentorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exceptions []model.DateException
	for rows.Next() {
		var exc model.DateException
		if err := rows.Scan(&exc.ID, &exc.MentorID, &exc.Date, &exc.Available, &exc.StartMinute, &exc.EndMinute); err != nil {
			return nil, err
		}
		exceptions = append(exceptions, exc)
	}
	return exceptions, rows.Err()
}

func (r *ScheduleRepository) UpsertWeeklyRule(ctx context.Context, rule model.WeeklyRule) (model.WeeklyRule, error) {
	var weekday int
	err := r.pool.QueryRow(ctx, `
		INSERT INTO mentor_weekly_rules (mentor_id, weekday, start_minute, end_minute)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mentor_id, weekday)
		DO UPDATE SET start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			updated_at = now()
		RETURNING id, mentor_id, weekday, start_minute, end_minute
	`, rule.MentorID, int(rule.Weekday), rule.StartMinute, rule.EndMinute).Scan(
		&rule.ID, &rule.MentorID, &weekday, &rule.StartMinute, &rule.EndMinute)
	if err != nil {
		return model.WeeklyRule{}, err
	}
	rule.Weekday = time.Weekday(weekday)
	return rule, nil
}

func (r *ScheduleRepository) DeleteWeeklyRule(ctx context.Context, mentorID uuid.UUID, weekday time.Weekday) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM mentor_weekly_rules WHERE mentor_id = $1 AND weekday = $2
	`, mentorID, int(weekday))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ScheduleRepository) UpsertException(ctx context.Context, exc model.DateException) (model.DateException, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO mentor_date_exceptions (mentor_id, date, available, start_minute, end_minute)
		VALUES ($1, $2::date, $3, $4, $5)
		ON CONFLICT (mentor_id, date)
		DO UPDATE SET available = EXCLUDED.available,
			start_minute = EXCLUDED.start_minute,
			end_minute = EXCLUDED.end_minute,
			updated_at = now()
		RETURNING id, mentor_id, date, available, start_minute, end_minute
	`, exc.MentorID, exc.Date, exc.Available, exc.StartMinute, exc.EndMinute).Scan(
		&exc.ID, &exc.MentorID, &exc.Date, &exc.Available, &exc.StartMinute, &exc.EndMinute)
	if err != nil {
		return model.DateException{}, err
	}
	return exc, nil
}

func (r *ScheduleRepository) DeleteException(ctx context.Context, mentorID uuid.UUID, date time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM mentor_date_exceptions WHERE mentor_id = $1 AND date = $2::date
	`, mentorID, date)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
