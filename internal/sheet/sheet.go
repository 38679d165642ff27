package sheet

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// DefaultCodec is used for paths whose extension no codec claims.
const DefaultCodec = "csv"

// Sheet is a header row plus data records, all cells as text.
type Sheet struct {
	Header  []string
	Records [][]string
}

// Index returns the position of a header column or -1.
func (s *Sheet) Index(column string) int {
	for i, name := range s.Header {
		if name == column {
			return i
		}
	}
	return -1
}

// Codec reads and writes one tabular file format (CSV, TSV, XLSX, etc.).
type Codec interface {
	Name() string
	Extensions() []string
	Decode(r io.Reader) (*Sheet, error)
	Encode(w io.Writer, s *Sheet) error
}

// Registry keeps a mapping from codec names and file extensions to implementations.
type Registry struct {
	codecs     map[string]Codec
	extensions map[string]string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: map[string]Codec{}, extensions: map[string]string{}}
}

// Register adds or replaces a codec and claims its extensions.
func (r *Registry) Register(codec Codec) {
	if r.codecs == nil {
		r.codecs = map[string]Codec{}
	}
	if r.extensions == nil {
		r.extensions = map[string]string{}
	}
	r.codecs[codec.Name()] = codec
	for _, ext := range codec.Extensions() {
		r.extensions[strings.ToLower(ext)] = codec.Name()
	}
}

// Resolve returns a codec by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Codec, error) {
	if codec, ok := r.codecs[name]; ok {
		return codec, nil
	}
	return nil, fmt.Errorf("codec %s is not registered", name)
}

// ForPath picks the codec by file extension, falling back to DefaultCodec.
func (r *Registry) ForPath(path string) (Codec, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if name, ok := r.extensions[ext]; ok {
		return r.Resolve(name)
	}
	return r.Resolve(DefaultCodec)
}
