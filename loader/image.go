package loader

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tiff": true,
	".webp": true,
}

// IsImage reports whether the file extension names a supported image format.
func IsImage(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}

// ExpandImages replaces every directory in paths by the image files it
// directly contains, sorted by name. Other paths are kept as given so that a
// missing file surfaces as a load failure later.
func ExpandImages(paths []string) []string {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			slog.Error("failed to read image directory", "path", p, "error", err.Error())
			continue
		}
		var files []string
		for _, e := range entries {
			if !e.IsDir() && IsImage(e.Name()) {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(files)
		out = append(out, files...)
	}
	return out
}

// ImageSubtype returns the MIME subtype for an image path, mapping jpg to jpeg.
func ImageSubtype(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if ext == "jpg" {
		return "jpeg"
	}
	return ext
}

// LoadImage reads an image file and encodes it as a base64 data URL.
func LoadImage(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", errors.Wrapf(err, "image file not found: %s", path)
	}
	if !info.Mode().IsRegular() {
		return "", errors.Newf("%s is not a regular file", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "reading image %s", path)
	}
	slog.Debug("loaded image", "path", path, "size", humanize.Bytes(uint64(len(b))))
	return "data:image/" + ImageSubtype(path) + ";base64," + base64.StdEncoding.EncodeToString(b), nil
}
