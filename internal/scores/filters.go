package scores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rossroma/cele-guess/internal/celebs"
)

// FiltersKey is the storage key of a player's last filter choice.
const FiltersKey = "celeguess-filters"

func filtersKey(playerID string) string {
	if playerID == "" {
		return FiltersKey
	}
	return FiltersKey + ":" + playerID
}

// SaveFilters remembers f as playerID's filter choice.
func (s *Store) SaveFilters(ctx context.Context, playerID string, f celebs.Filters) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode filters: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		filtersKey(playerID), string(raw), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save filters: %w", err)
	}
	return nil
}

// LoadFilters returns playerID's saved filters. ok is false when nothing
// usable is stored.
func (s *Store) LoadFilters(ctx context.Context, playerID string) (f celebs.Filters, ok bool, err error) {
	var raw string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key=?`, filtersKey(playerID)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return celebs.Filters{}, false, nil
	}
	if err != nil {
		return celebs.Filters{}, false, fmt.Errorf("load filters: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return celebs.Filters{}, false, nil
	}
	return f, true, nil
}

func (s *Store) claimFilters(ctx context.Context, anonID, userID string) error {
	if _, has, err := s.LoadFilters(ctx, userID); err != nil || has {
		return err
	}
	f, ok, err := s.LoadFilters(ctx, anonID)
	if err != nil || !ok {
		return err
	}
	return s.SaveFilters(ctx, userID, f)
}
