package imageref

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// supportedExtensions lists the source formats discovery accepts (lowercase).
var supportedExtensions = map[string]struct{}{
	".tif":  {},
	".tiff": {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".bmp":  {},
	".webp": {},
}

// Reference identifies one image by absolute path. Stem (the basename without
// extension) is the join key for context lookup and output naming.
type Reference struct {
	Path string
	Base string
	Stem string
}

// New builds a Reference for path, resolving it to an absolute path.
func New(path string) (Reference, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Reference{}, fmt.Errorf("resolve image path %q: %w", path, err)
	}
	return fromAbs(abs), nil
}

// FromPath is New for paths already known to be absolute, such as values read
// back from the tracking store.
func FromPath(path string) Reference {
	if !filepath.IsAbs(path) {
		ref, err := New(path)
		if err == nil {
			return ref
		}
	}
	return fromAbs(filepath.Clean(path))
}

func fromAbs(abs string) Reference {
	base := filepath.Base(abs)
	return Reference{
		Path: abs,
		Base: base,
		Stem: strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

func (r Reference) String() string {
	return r.Path
}

// Supported reports whether name carries an accepted image extension.
func Supported(name string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Extensions returns the accepted extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Scan lists supported images directly inside dir, sorted by name.
// Subdirectories and hidden files are ignored.
func Scan(dir string) ([]Reference, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve input directory %q: %w", dir, err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read input directory %q: %w", abs, err)
	}
	refs := make([]Reference, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || !Supported(name) {
			continue
		}
		if !entry.Type().IsRegular() {
			if entry.Type()&os.ModeSymlink == 0 {
				continue
			}
			info, err := os.Stat(filepath.Join(abs, name))
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		refs = append(refs, fromAbs(filepath.Join(abs, name)))
	}
	return refs, nil
}

// SharesStem reports whether another supported image next to ref has the
// same stem, as page.png and page.jpg do.
func SharesStem(ref Reference) bool {
	entries, err := os.ReadDir(filepath.Dir(ref.Path))
	if err != nil {
		return false
	}
	for _, entry := range entries {
		name := entry.Name()
		if name == ref.Base || entry.IsDir() || !Supported(name) {
			continue
		}
		if strings.TrimSuffix(name, filepath.Ext(name)) == ref.Stem {
			return true
		}
	}
	return false
}

// Paths flattens references to their absolute paths.
func Paths(refs []Reference) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.Path
	}
	return out
}
