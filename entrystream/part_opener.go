package entrystream

import (
	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// PartOpener opens each part of a multi-volume group whose parts are
// themselves named entries inside one parent decoder (rather than
// separate files on disk, the case datastream.FilePartOpener covers).
// It satisfies volume.PartOpener structurally, without this package
// importing volume.
type PartOpener struct {
	Parent  ParentArchive
	Logical pathhierarchy.Hierarchy // last element: KindMultiVolume
}

func (o PartOpener) partNames() []string {
	return o.Logical[len(o.Logical)-1].OrderedParts()
}

// OpenPart opens the index-th part.
func (o PartOpener) OpenPart(index int) (datastream.Stream, error) {
	name := o.partNames()[index]
	h := o.Logical.SelectSinglePart(index)
	return New(o.Parent, h, name), nil
}

// PartCount reports the number of parts.
func (o PartOpener) PartCount() int { return len(o.partNames()) }
