// Package codec moves catalogs in and out of MovieBrain as files.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
)

// legacyInfo is one value of the old data.json store:
//
//	{"Inception": {"year": 2010, "rating": 8.8, "poster": "https://..."}}
//
// Entries saved straight from an OMDb reply carry year and rating as
// strings ("2010", "8.8", "N/A"), so both are accepted.
type legacyInfo struct {
	Year   looseNumber `json:"year"`
	Rating looseNumber `json:"rating"`
	Poster string      `json:"poster"`
}

// looseNumber decodes a JSON number or a numeric string. Anything else
// ("N/A", "", null) decodes as 0.
type looseNumber float64

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if len(s) >= 4 {
			// "2008–2013" style year ranges keep their first year.
			if year, err := strconv.Atoi(s[:4]); err == nil && !strings.Contains(s, ".") {
				*n = looseNumber(year)
				return nil
			}
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = looseNumber(f)
		return nil
	}
	if string(data) == "null" {
		*n = 0
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = looseNumber(f)
	return nil
}

// ImportJSON reads a legacy data.json document into a View.
func ImportJSON(r io.Reader) (model.View, error) {
	var raw map[string]legacyInfo
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("not a MovieBrain JSON file: %v", err))
	}

	view := make(model.View, len(raw))
	for title, info := range raw {
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		poster := strings.TrimSpace(info.Poster)
		if poster == "N/A" {
			poster = ""
		}
		view[title] = model.MovieInfo{
			Year:   int(info.Year),
			Rating: float64(info.Rating),
			Poster: poster,
		}
	}
	return view, nil
}
