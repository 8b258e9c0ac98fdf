package taxonomy

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/gorm"

	"github.com/jiangyuyi/feather-trace/internal/datastore"
	"github.com/jiangyuyi/feather-trace/internal/errors"
)

// Lookup resolves scientific names to localized taxonomy info, caching hits
// so the archiver does not hammer the database with one query per photo.
type Lookup struct {
	ds    datastore.Interface
	cache *gocache.Cache
}

// NewLookup creates a taxonomy lookup over the datastore.
func NewLookup(ds datastore.Interface) *Lookup {
	return &Lookup{
		ds:    ds,
		cache: gocache.New(30*time.Minute, 10*time.Minute),
	}
}

// Get returns the taxonomy row for a scientific name, or nil when the name
// is not in the imported list. Negative results are cached too.
func (l *Lookup) Get(scientificName string) (*datastore.Taxonomy, error) {
	if cached, found := l.cache.Get(scientificName); found {
		taxon, _ := cached.(*datastore.Taxonomy)
		return taxon, nil
	}

	taxon, err := l.ds.GetTaxon(scientificName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.cache.Set(scientificName, (*datastore.Taxonomy)(nil), gocache.DefaultExpiration)
			return nil, nil
		}
		return nil, err
	}

	l.cache.Set(scientificName, taxon, gocache.DefaultExpiration)
	return taxon, nil
}
