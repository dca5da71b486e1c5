package importer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/idealo/airbnb-benchmarking/internal/backend"
)

// Source is one folder to load into one collection.
type Source struct {
	Collection string
	Folder     string
	ChunkSize  int
}

// Run imports every source into its collection, creating missing collections first.
// It fails if any source yields no documents.
func (im *Importer) Run(ctx context.Context, b *backend.Backend, sources []Source) (int64, error) {
	im.l.Infof("Importing data into %s", b.ID)

	var total int64
	for _, src := range sources {
		coll, err := b.GetCollection(ctx, src.Collection)
		if errors.Is(err, backend.ErrCollectionNotFound) {
			im.l.Infof("Creating collection: %q", src.Collection)
			coll, err = b.AddCollection(ctx, src.Collection)
		}
		if err != nil {
			return total, errors.Wrapf(err, "failed to prepare collection %q", src.Collection)
		}

		im.l.Infof("Importing documents from %q...", src.Folder)

		count, err := im.ImportFolder(ctx, src.Folder, coll, src.ChunkSize)
		if err != nil {
			return total, err
		}
		if count == 0 {
			im.l.Errorf("Nothing imported from %s. Is the import folder configured and the dataset unzipped?", src.Folder)
			return total, errors.Errorf("failed to import from folder %s", src.Folder)
		}

		im.l.Infof("Imported %d documents from %s!", count, src.Folder)
		total += count
	}

	return total, nil
}
