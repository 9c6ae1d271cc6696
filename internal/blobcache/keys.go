package blobcache

const (
	// KeyPrefixIndex maps a cache key to the digest of its content
	KeyPrefixIndex = "linkdump:blob:index:"
	// KeyPrefixContent holds compressed content by digest
	KeyPrefixContent = "linkdump:blob:content:"
)

// IndexKey returns the Redis key of a cache entry
func IndexKey(key string) string {
	return KeyPrefixIndex + key
}

// ContentKey returns the Redis key of a content digest
func ContentKey(sum string) string {
	return KeyPrefixContent + sum
}
