package collect

import "digestly/internal/domain/entity"

// Deduplicate removes duplicate items, keeping the first occurrence. The URL
// is the primary identity; the content hash catches the same piece reposted
// under a different address. The operation is idempotent and preserves input
// order.
func Deduplicate(items []*entity.ContentItem) []*entity.ContentItem {
	seenURLs := make(map[string]struct{}, len(items))
	seenHashes := make(map[string]struct{}, len(items))
	unique := make([]*entity.ContentItem, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}
		if _, ok := seenURLs[item.URL]; ok {
			continue
		}
		if _, ok := seenHashes[item.ContentHash]; ok {
			continue
		}
		seenURLs[item.URL] = struct{}{}
		if item.ContentHash != "" {
			seenHashes[item.ContentHash] = struct{}{}
		}
		unique = append(unique, item)
	}
	return unique
}
