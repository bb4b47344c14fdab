package tagcache

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomblocks/internal/models"
)

// LoadResult lists what a load pass read and skipped
type LoadResult struct {
	// Loaded holds the ids of frames now present in the cache
	Loaded []string

	// Skipped maps unreadable files to the parse error
	Skipped map[string]error
}

// LoadDirectory parses every regular file below dir. Files that are not
// DICOM are skipped and reported in the result.
func LoadDirectory(cache *MapCache, dir string, logger *slog.Logger) (*LoadResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return LoadFiles(cache, paths, logger), nil
}

// LoadFiles parses the given DICOM files without their pixel data and
// stores every models.FrameTags attribute under the file path.
func LoadFiles(cache *MapCache, paths []string, logger *slog.Logger) *LoadResult {
	if logger == nil {
		logger = slog.Default()
	}
	result := &LoadResult{Skipped: make(map[string]error)}

	for _, path := range paths {
		ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
		if err != nil {
			logger.Warn("skipping file", "path", path, "error", err)
			result.Skipped[path] = err
			continue
		}

		values := datasetValues(&ds)
		cache.Add(path)
		cache.SetAll(path, values)
		result.Loaded = append(result.Loaded, path)
		logger.Debug("loaded frame", "path", path, "attributes", len(values))
	}
	return result
}

// datasetValues extracts the textual value of every frame attribute
// present in ds
func datasetValues(ds *dicom.Dataset) map[models.Tag]string {
	values := make(map[models.Tag]string)
	for _, t := range models.FrameTags {
		elem, err := ds.FindElementByTag(tag.Tag{Group: t.Group, Element: t.Element})
		if err != nil {
			continue
		}
		if v, ok := elementString(elem); ok {
			values[t] = v
		}
	}
	return values
}

// elementString joins the values of elem with a backslash, the way they
// are stored in the file. Empty elements are treated as absent.
func elementString(elem *dicom.Element) (string, bool) {
	if elem == nil || elem.Value == nil {
		return "", false
	}

	var parts []string
	switch elem.Value.ValueType() {
	case dicom.Strings:
		for _, s := range dicom.MustGetStrings(elem.Value) {
			parts = append(parts, strings.TrimSpace(strings.TrimRight(s, "\x00")))
		}
	case dicom.Ints:
		for _, i := range dicom.MustGetInts(elem.Value) {
			parts = append(parts, strconv.Itoa(i))
		}
	case dicom.Floats:
		for _, f := range dicom.MustGetFloats(elem.Value) {
			parts = append(parts, strconv.FormatFloat(f, 'g', -1, 64))
		}
	default:
		return "", false
	}

	v := strings.Join(parts, `\`)
	if v == "" {
		return "", false
	}
	return v, true
}
