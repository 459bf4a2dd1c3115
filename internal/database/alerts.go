package database

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/Parth0603/CryptoPulse/internal/types"
)

// InsertAlert saves an alert for an owner. The condition must already be
// validated; price must be positive.
func (s *Store) InsertAlert(owner, coin string, condition types.Condition, price float64) error {
	query := `
	INSERT INTO alerts (owner, coin, condition, price)
	VALUES (?, ?, ?, ?);`

	_, err := s.db.Exec(query, owner, coin, string(condition), price)
	if err != nil {
		return errors.Wrap(err, "failed to insert alert")
	}

	log.Debugf("alert inserted: owner=%s coin=%s condition=%s price=%f", owner, coin, condition, price)
	return nil
}

// AllAlerts fetches every alert, for the evaluation scheduler.
func (s *Store) AllAlerts() ([]types.Alert, error) {
	query := `SELECT id, owner, coin, condition, price, created_at FROM alerts;`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query alerts")
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var a types.Alert
		var condition string
		if err := rows.Scan(&a.ID, &a.Owner, &a.Coin, &condition, &a.Price, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan alert row")
		}
		a.Condition = types.Condition(condition)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// AlertsByOwner fetches the alerts belonging to one owner.
func (s *Store) AlertsByOwner(owner string) ([]types.Alert, error) {
	query := `SELECT id, owner, coin, condition, price, created_at FROM alerts WHERE owner = ?;`

	rows, err := s.db.Query(query, owner)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query alerts for owner %s", owner)
	}
	defer rows.Close()

	var alerts []types.Alert
	for rows.Next() {
		var a types.Alert
		var condition string
		if err := rows.Scan(&a.ID, &a.Owner, &a.Coin, &condition, &a.Price, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan alert row")
		}
		a.Condition = types.Condition(condition)
		alerts = append(alerts, a)
	}

	return alerts, rows.Err()
}

// DeleteAlert removes a triggered or abandoned alert.
func (s *Store) DeleteAlert(alertID int64) error {
	_, err := s.db.Exec(`DELETE FROM alerts WHERE id = ?;`, alertID)
	return errors.Wrapf(err, "failed to delete alert %d", alertID)
}

// CountAlerts reports the number of stored alerts, for the health endpoint.
func (s *Store) CountAlerts() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM alerts;`).Scan(&n)
	return n, errors.Wrap(err, "failed to count alerts")
}
