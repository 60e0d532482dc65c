// internal/celebs/load.go
//
// Dataset validation and loading.
//
// Initialization behavior (Init):
//   1. If a data path is given, decode the JSON document at that path.
//   2. Otherwise fall back to the dataset embedded in the assets package.
//
// Document shape:
//   { "celebrities": [ { "id": ..., "name": ..., "photo": ..., ... }, ... ] }
//
// Records missing id, name or photo are dropped (and counted in a warning);
// a document without a celebrities array is rejected outright.
// Names are trimmed and NFC-normalised so that rune counts and string
// comparisons in the game engine are stable.

package celebs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"

	"github.com/rossroma/cele-guess/assets"
)

// ErrInvalidData is returned when the document is not a celebrities list.
var ErrInvalidData = errors.New("celebs: invalid data format")

var (
	initOnce sync.Once
	all      []Celebrity
	initErr  error
)

type document struct {
	Celebrities *[]json.RawMessage `json:"celebrities"`
}

// Load decodes and validates a dataset document.
func Load(r io.Reader) ([]Celebrity, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if doc.Celebrities == nil {
		return nil, ErrInvalidData
	}

	raw := *doc.Celebrities
	out := make([]Celebrity, 0, len(raw))
	for _, msg := range raw {
		var c Celebrity
		if err := json.Unmarshal(msg, &c); err != nil {
			continue
		}
		c.ID = strings.TrimSpace(c.ID)
		c.Name = norm.NFC.String(strings.TrimSpace(c.Name))
		if !valid(c) {
			continue
		}
		out = append(out, c)
	}
	if dropped := len(raw) - len(out); dropped > 0 {
		log.Warn().Int("dropped", dropped).Int("kept", len(out)).Msg("invalid celebrities filtered out")
	}
	return out, nil
}

// valid checks the required fields of a record.
func valid(c Celebrity) bool {
	return c.ID != "" && c.Name != "" && c.Photo != ""
}

// LoadFile reads a dataset from path.
func LoadFile(path string) ([]Celebrity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Init loads the dataset exactly once, from path when non-empty and from the
// embedded default otherwise. Later calls return the first outcome.
func Init(path string) error {
	initOnce.Do(func() {
		var list []Celebrity
		if path != "" {
			list, initErr = LoadFile(path)
		} else {
			var rc io.ReadCloser
			rc, initErr = assets.Celebrities()
			if initErr != nil {
				return
			}
			defer rc.Close()
			list, initErr = Load(rc)
		}
		if initErr != nil {
			return
		}
		if len(list) == 0 {
			initErr = errors.New("celebs: dataset is empty")
			return
		}
		all = list
	})
	return initErr
}

// All returns the loaded dataset. Callers must not mutate it.
func All() []Celebrity { return all }

// Stats returns the total count and the count matching f.
func Stats(f Filters) (total, filtered int) {
	return len(all), len(Filter(all, f))
}
