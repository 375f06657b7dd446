package datastream

import (
	"os"
	"path/filepath"

	"github.com/carlodf/archtrav/pathhierarchy"
)

// FilePartOpener opens each part of a multi-volume filesystem path as a
// FileStream. It satisfies volume.PartOpener structurally (by method
// signature) without this package importing volume, keeping the
// dependency direction leaf (datastream) -> volume -> cursor.
type FilePartOpener struct {
	// Dir is the directory containing every part file.
	Dir string
	// Logical is the hierarchy of the multi-volume group as a whole;
	// its last element must be a pathhierarchy.KindMultiVolume entry.
	// Part order and names come from that entry's OrderedParts().
	Logical pathhierarchy.Hierarchy
}

func (o FilePartOpener) partNames() []string {
	return o.Logical[len(o.Logical)-1].OrderedParts()
}

// OpenPart opens the index-th part.
func (o FilePartOpener) OpenPart(index int) (Stream, error) {
	name := o.partNames()[index]
	h := o.Logical.SelectSinglePart(index)
	return NewFileStream(h, filepath.Join(o.Dir, name)), nil
}

// PartCount reports the number of parts.
func (o FilePartOpener) PartCount() int { return len(o.partNames()) }

// PartSize reports the size of the index-th part via stat, satisfying
// volume.SizedPartOpener and enabling Seek/Tell across a multi-volume
// filesystem path.
func (o FilePartOpener) PartSize(index int) (int64, error) {
	fi, err := os.Stat(filepath.Join(o.Dir, o.partNames()[index]))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}
