package xlsx2csv

import (
	"archive/zip"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Archive enumerates the named parts of an xlsx container. The central
// directory is scanned once at open time; individual parts are decompressed
// lazily, only when requested, so unselected sheets are never inflated.
type Archive struct {
	entries map[string]*zip.File
}

// OpenArchive scans the container's central directory. The reader must stay
// valid for the lifetime of the Archive.
func OpenArchive(r io.ReaderAt, size int64) (*Archive, error) {
	z, err := zip.NewReader(r, size)
	if err != nil {
		return nil, errors.Wrap(ErrArchiveCorrupt, err.Error())
	}
	entries := make(map[string]*zip.File, len(z.File))
	for _, f := range z.File {
		entries[normalizePartPath(f.Name)] = f
	}
	return &Archive{entries: entries}, nil
}

// Has reports whether the container holds a part with the given name.
func (a *Archive) Has(name string) bool {
	_, ok := a.entries[normalizePartPath(name)]
	return ok
}

// Open returns a decompression stream for one part. The caller must close it;
// the same part may be opened any number of times. A missing part yields
// ErrEntryMissing.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	f, ok := a.entries[normalizePartPath(name)]
	if !ok {
		return nil, errors.Wrap(ErrEntryMissing, name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrapf(ErrArchiveCorrupt, "open %s: %v", name, err)
	}
	return rc, nil
}

// normalizePartPath strips the leading slash some producers write into
// relationship targets and zip entry names.
func normalizePartPath(name string) string {
	return strings.TrimPrefix(name, "/")
}
