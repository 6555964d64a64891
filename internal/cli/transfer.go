package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/sakif/moviebrain/internal/codec"
	"github.com/sakif/moviebrain/internal/model"
)

func (c *CLI) exportCatalog(ctx context.Context) error {
	defaultPath := c.user + ".yaml"
	path, err := c.prompt(fmt.Sprintf("Export to which file? [%s] ", defaultPath))
	if err != nil {
		return err
	}
	if path == "" {
		path = defaultPath
	}

	view, err := c.catalog.View(ctx, c.userID)
	if err != nil {
		c.fail(err)
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		c.message(fmt.Sprintf("Sorry, can't write %s: %v", path, err))
		return nil
	}
	if err := codec.ExportYAML(f, c.user, view); err != nil {
		f.Close()
		c.message(fmt.Sprintf("Sorry, exporting failed: %v", err))
		return nil
	}
	if err := f.Close(); err != nil {
		c.message(fmt.Sprintf("Sorry, exporting failed: %v", err))
		return nil
	}

	c.message(fmt.Sprintf("Exported %d movie(s) to %s.", len(view), path))
	return nil
}

// importCatalog reads a legacy data.json file, or a .yaml/.yml file written
// by exportCatalog, into the logged-in user's catalog.
func (c *CLI) importCatalog(ctx context.Context) error {
	path, err := c.prompt("Import from which file? ")
	if err != nil {
		return err
	}
	if path == "" {
		c.message("Sorry, you did not enter a file name!")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		c.message(fmt.Sprintf("Sorry, can't read %s: %v", path, err))
		return nil
	}
	defer f.Close()

	var view model.View
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		view, err = codec.ImportYAML(f)
	default:
		view, err = codec.ImportJSON(f)
	}
	if err != nil {
		c.fail(err)
		return nil
	}

	result, err := c.catalog.Import(ctx, c.userID, view)
	if err != nil {
		c.fail(err)
		return nil
	}

	c.message(fmt.Sprintf("Imported %d of %d movie(s).", len(result.Added), len(view)))
	failed := make([]string, 0, len(result.Failed))
	for title := range result.Failed {
		failed = append(failed, title)
	}
	slices.Sort(failed)
	for _, title := range failed {
		c.printf("  skipped %s: %s\n", title, userMessage(result.Failed[title]))
	}
	return nil
}
