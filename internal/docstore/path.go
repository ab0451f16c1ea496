package docstore

import (
	"fmt"
	"regexp"
	"strings"
)

// Doc joins path segments into a document or collection path.
func Doc(segments ...string) string {
	return strings.Join(segments, "/")
}

func segments(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("%w: %q has an empty segment", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// splitDoc breaks a document path into its collection path and id.
func splitDoc(path string) (collection, id string, err error) {
	parts, err := segments(path)
	if err != nil {
		return "", "", err
	}
	if len(parts)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

func checkCollection(path string) error {
	parts, err := segments(path)
	if err != nil {
		return err
	}
	if len(parts)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return nil
}

func collectionID(collection string) string {
	if i := strings.LastIndexByte(collection, '/'); i >= 0 {
		return collection[i+1:]
	}
	return collection
}

// parentID is the id of the document owning the collection that holds path,
// or "" for top-level documents.
func parentID(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[len(parts)-3]
}

// Nested segments may hold map keys such as reaction kinds, so only the
// top-level name is restricted to an identifier.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[^./\s"]+)*$`)

func checkField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return nil
}
