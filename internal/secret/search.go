package secret

import (
	"strings"

	"github.com/org/envvault/pkg/models"
)

// matchRecords filters recs to those whose key contains query, ignoring case.
// Keys starting with query come first, then the remaining matches; both groups
// keep the order of recs. An empty query matches everything.
func matchRecords(recs []*models.SecretRecord, query string) []*models.SecretRecord {
	if query == "" {
		return recs
	}
	q := strings.ToLower(query)
	var prefix, contains []*models.SecretRecord
	for _, rec := range recs {
		key := strings.ToLower(rec.Key)
		switch {
		case strings.HasPrefix(key, q):
			prefix = append(prefix, rec)
		case strings.Contains(key, q):
			contains = append(contains, rec)
		}
	}
	return append(prefix, contains...)
}
