package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sequinstream/sequin-go/pkg/decoder"
)

func fakeLookup(pks map[string]bool) PrimaryKeyLookup {
	return func(ctx context.Context, schema, table string) (map[string]bool, error) {
		return pks, nil
	}
}

func TestUpsertMarksPrimaryKeysFromCatalog(t *testing.T) {
	cache := NewWithLookup(fakeLookup(map[string]bool{"id": true}))

	rel, err := cache.Upsert(context.Background(), decoder.RelationMessage{
		RelationID:      16400,
		Namespace:       "public",
		RelationName:    "accounts",
		ReplicaIdentity: decoder.ReplicaIdentityDefault,
		Columns: []decoder.RelationColumn{
			{Name: "id", DataTypeOID: 23},
			{Name: "balance", DataTypeOID: 1700},
		},
	})
	require.NoError(t, err)
	require.True(t, rel.Columns[0].IsPK)
	require.False(t, rel.Columns[1].IsPK)
}

func TestUpsertIgnoresProtocolKeyFlagUnderReplicaIdentityFull(t *testing.T) {
	// Under REPLICA IDENTITY FULL every column's protocol "key" flag is set,
	// but the catalog query is always the sole source of truth for
	// primary-key membership.
	cache := NewWithLookup(fakeLookup(map[string]bool{"id": true}))

	rel, err := cache.Upsert(context.Background(), decoder.RelationMessage{
		RelationID:      16400,
		Namespace:       "public",
		RelationName:    "accounts",
		ReplicaIdentity: decoder.ReplicaIdentityFull,
		Columns: []decoder.RelationColumn{
			{Name: "id", Key: true},
			{Name: "balance", Key: true},
		},
	})
	require.NoError(t, err)
	require.True(t, rel.Columns[0].IsPK)
	require.False(t, rel.Columns[1].IsPK)
}

func TestUpsertOverwritesExistingOID(t *testing.T) {
	cache := NewWithLookup(fakeLookup(map[string]bool{"id": true}))
	ctx := context.Background()

	_, err := cache.Upsert(ctx, decoder.RelationMessage{
		RelationID: 1, Namespace: "public", RelationName: "old_name",
		Columns: []decoder.RelationColumn{{Name: "id"}},
	})
	require.NoError(t, err)

	updated, err := cache.Upsert(ctx, decoder.RelationMessage{
		RelationID: 1, Namespace: "public", RelationName: "new_name",
		Columns: []decoder.RelationColumn{{Name: "id"}, {Name: "extra"}},
	})
	require.NoError(t, err)

	got, ok := cache.Get(1)
	require.True(t, ok)
	require.Equal(t, "new_name", got.Name)
	require.Equal(t, updated, got)
	require.Len(t, got.Columns, 2)
}

func TestGetMissingOID(t *testing.T) {
	cache := NewWithLookup(fakeLookup(nil))
	_, ok := cache.Get(999)
	require.False(t, ok)
}

func TestQualifiedName(t *testing.T) {
	rel := Relation{Schema: "public", Name: "accounts"}
	require.Equal(t, "public.accounts", rel.QualifiedName())
}
