package storage

import "context"

type Birthday struct {
	Day      int    `db:"day"`
	Month    int    `db:"month"`
	UserID   string `db:"user_id"`
	Name     string `db:"name"`
	UserName string `db:"user_name"`
	Locale   string `db:"locale"`
}

const birthdayColumns = `day, month, user_id, name, user_name, locale`

func (s *Store) AddBirthday(ctx context.Context, birthday Birthday) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO birthdays (day, month, user_id, name, user_name, locale) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (day, month, user_id) DO NOTHING`,
		birthday.Day, birthday.Month, birthday.UserID, birthday.Name, birthday.UserName, birthday.Locale)
	return n > 0, err
}

func (s *Store) RemoveBirthday(ctx context.Context, userID string, day, month int) (bool, error) {
	n, err := s.exec(ctx, `DELETE FROM birthdays WHERE user_id = ? AND day = ? AND month = ?`, userID, day, month)
	return n > 0, err
}

func (s *Store) BirthdaysForUser(ctx context.Context, userID string) ([]Birthday, error) {
	var birthdays []Birthday
	err := s.db.SelectContext(ctx, &birthdays, s.db.Rebind(`SELECT `+birthdayColumns+` FROM birthdays WHERE user_id = ? ORDER BY month, day`), userID)
	return birthdays, err
}

func (s *Store) BirthdaysOn(ctx context.Context, day, month int) ([]Birthday, error) {
	var birthdays []Birthday
	err := s.db.SelectContext(ctx, &birthdays, s.db.Rebind(`SELECT `+birthdayColumns+` FROM birthdays WHERE day = ? AND month = ? ORDER BY user_id`), day, month)
	return birthdays, err
}
