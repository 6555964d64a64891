package codec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/sakif/moviebrain/internal/apperror"
	"github.com/sakif/moviebrain/internal/model"
	"github.com/sakif/moviebrain/internal/query"
)

// yamlCatalog is the exported document.
type yamlCatalog struct {
	User   string      `yaml:"user"`
	Movies []yamlMovie `yaml:"movies"`
}

type yamlMovie struct {
	Title  string  `yaml:"title"`
	Year   int     `yaml:"year"`
	Rating float64 `yaml:"rating"`
	Poster string  `yaml:"poster,omitempty"`
}

// ExportYAML writes user's catalog to w, movies in title order.
func ExportYAML(w io.Writer, user string, view model.View) error {
	doc := yamlCatalog{
		User:   user,
		Movies: make([]yamlMovie, 0, len(view)),
	}
	for _, e := range query.Entries(view) {
		doc.Movies = append(doc.Movies, yamlMovie{
			Title:  e.Title,
			Year:   e.Year,
			Rating: e.Rating,
			Poster: e.Poster,
		})
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return encoder.Close()
}

// ImportYAML reads a document written by ExportYAML back into a View.
// The user field is ignored; the caller decides whose catalog it fills.
func ImportYAML(r io.Reader) (model.View, error) {
	var doc yamlCatalog
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, apperror.ValidationFailed("file", fmt.Sprintf("not a MovieBrain YAML file: %v", err))
	}

	view := make(model.View, len(doc.Movies))
	for _, m := range doc.Movies {
		view[m.Title] = model.MovieInfo{Year: m.Year, Rating: m.Rating, Poster: m.Poster}
	}
	return view, nil
}
