package db

// Keys lays out the Redis keyspace of one deployment:
//
//	{prefix}_collection:{name}        collection metadata hash
//	{prefix}_emb:{provider}:{model}:  embedding cache entries
//	{prefix}{name}:idx                FT index
//	{prefix}{name}:{id}               point hash
//
// Collection names never start with '_', so no point prefix covers the internal keys.
type Keys struct {
	Prefix string
}

// Meta returns the metadata hash key of a collection.
func (k Keys) Meta(collection string) string {
	return k.Prefix + "_collection:" + collection
}

// EmbeddingCache returns the key prefix of cached embeddings for one provider model.
func (k Keys) EmbeddingCache(provider, model string) string {
	return k.Prefix + "_emb:" + provider + ":" + model + ":"
}

// Index returns the FT index name of a collection.
func (k Keys) Index(collection string) string {
	return k.Prefix + collection + ":idx"
}

// PointPrefix returns the key prefix shared by every point of a collection.
func (k Keys) PointPrefix(collection string) string {
	return k.Prefix + collection + ":"
}

// Point returns the hash key of one point.
func (k Keys) Point(collection, id string) string {
	return k.PointPrefix(collection) + id
}

// PointID strips the collection prefix from a point key.
func (k Keys) PointID(collection, key string) string {
	p := k.PointPrefix(collection)
	if len(key) >= len(p) && key[:len(p)] == p {
		return key[len(p):]
	}
	return key
}
