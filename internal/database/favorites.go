package database

import (
	"github.com/pkg/errors"
)

// AddFavorite records a coin as a favorite of an owner. Adding the same coin
// twice is a no-op thanks to the unique (owner, coin) pair.
func (s *Store) AddFavorite(owner, coin string) error {
	query := `INSERT OR IGNORE INTO favorites (owner, coin) VALUES (?, ?);`
	_, err := s.db.Exec(query, owner, coin)
	return errors.Wrap(err, "failed to insert favorite")
}

// Favorites returns the owner's favorite coin ids in insertion order.
func (s *Store) Favorites(owner string) ([]string, error) {
	rows, err := s.db.Query(`SELECT coin FROM favorites WHERE owner = ? ORDER BY rowid;`, owner)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query favorites for owner %s", owner)
	}
	defer rows.Close()

	var coins []string
	for rows.Next() {
		var coin string
		if err := rows.Scan(&coin); err != nil {
			return nil, errors.Wrap(err, "failed to scan favorite row")
		}
		coins = append(coins, coin)
	}

	return coins, rows.Err()
}

// ClearFavorites removes every favorite of an owner.
func (s *Store) ClearFavorites(owner string) error {
	_, err := s.db.Exec(`DELETE FROM favorites WHERE owner = ?;`, owner)
	return errors.Wrapf(err, "failed to clear favorites for owner %s", owner)
}

// CountFavorites reports the number of stored favorites, for the health endpoint.
func (s *Store) CountFavorites() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM favorites;`).Scan(&n)
	return n, errors.Wrap(err, "failed to count favorites")
}
