package repositories

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/cipherchat/internal/database"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMessageRepository_AppendOrder tests that indices follow insertion order
func TestMessageRepository_AppendOrder(t *testing.T) {
	// ARRANGE
	pool := getTestPool(t)
	repo := NewPostgresMessageRepository(pool)
	ctx := context.Background()
	contract := newTestContract(t, pool)

	// ACT: Append three messages
	for i, body := range []string{"first", "second", "third"} {
		index, err := repo.Append(ctx, contract, alice, &models.Message{
			Sender:           alice,
			EncryptedContent: []byte(body),
			Timestamp:        uint64(1700000000 + i),
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), index)
	}

	// ASSERT
	count, err := repo.Count(ctx, contract, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	message, err := repo.GetByIndex(ctx, contract, alice, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), message.EncryptedContent)
	assert.Equal(t, alice, message.Sender)
	assert.Equal(t, uint64(1700000001), message.Timestamp)

	all, err := repo.List(ctx, contract, alice)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []byte("third"), all[2].EncryptedContent)

	_, err = repo.GetByIndex(ctx, contract, alice, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestMessageRepository_ConcurrentAppend tests that concurrent appends keep indices dense
func TestMessageRepository_ConcurrentAppend(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresMessageRepository(pool)
	ctx := context.Background()
	contract := newTestContract(t, pool)

	const writers = 8
	indices := make([]uint64, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			index, err := repo.Append(ctx, contract, alice, &models.Message{Sender: alice, EncryptedContent: []byte("x")})
			assert.NoError(t, err)
			indices[i] = index
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for _, index := range indices {
		seen[index] = true
	}
	assert.Len(t, seen, writers, "Every append should get a distinct index")
	for i := uint64(0); i < writers; i++ {
		assert.True(t, seen[i], "Index %d missing", i)
	}
}

// TestMessageRepository_DeleteAll tests that clearing only touches the owner's list
func TestMessageRepository_DeleteAll(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresMessageRepository(pool)
	ctx := context.Background()
	contract := newTestContract(t, pool)

	for _, owner := range []common.Address{alice, alice, bob} {
		_, err := repo.Append(ctx, contract, owner, &models.Message{Sender: owner, EncryptedContent: []byte("x")})
		require.NoError(t, err)
	}

	// ACT
	removed, err := repo.DeleteAll(ctx, contract, alice)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	count, err := repo.Count(ctx, contract, alice)
	require.NoError(t, err)
	assert.Zero(t, count)

	count, err = repo.Count(ctx, contract, bob)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Clearing an empty list is fine.
	removed, err = repo.DeleteAll(ctx, contract, alice)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

// TestMessageRepository_DeleteAllDuringAppend tests that an append racing a
// clear never keeps an index counted before the clear
func TestMessageRepository_DeleteAllDuringAppend(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresMessageRepository(pool)
	ctx := context.Background()

	for round := 0; round < 20; round++ {
		contract := newTestContract(t, pool)
		_, err := repo.Append(ctx, contract, alice, &models.Message{Sender: alice, EncryptedContent: []byte("seed")})
		require.NoError(t, err)

		// ACT: Race one append against one clear
		var (
			wg    sync.WaitGroup
			index uint64
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			var appendErr error
			index, appendErr = repo.Append(ctx, contract, alice, &models.Message{Sender: alice, EncryptedContent: []byte("racing")})
			assert.NoError(t, appendErr)
		}()
		go func() {
			defer wg.Done()
			_, clearErr := repo.DeleteAll(ctx, contract, alice)
			assert.NoError(t, clearErr)
		}()
		wg.Wait()

		// ASSERT: A surviving append sits at index 0; a cleared one counted the seed
		count, err := repo.Count(ctx, contract, alice)
		require.NoError(t, err)
		switch count {
		case 0:
			assert.Equal(t, uint64(1), index, "round %d", round)
		case 1:
			assert.Equal(t, uint64(0), index, "round %d", round)
		default:
			t.Fatalf("round %d: unexpected count %d", round, count)
		}
	}
}

// TestMessageRepository_ContentBounds tests the table's size check
func TestMessageRepository_ContentBounds(t *testing.T) {
	pool := getTestPool(t)
	repo := NewPostgresMessageRepository(pool)
	ctx := context.Background()
	contract := newTestContract(t, pool)

	_, err := repo.Append(ctx, contract, alice, &models.Message{Sender: alice, EncryptedContent: make([]byte, models.MaxContentSize+1)})
	assert.Error(t, err)

	_, err = repo.Append(ctx, contract, alice, &models.Message{Sender: alice, EncryptedContent: make([]byte, models.MaxContentSize)})
	assert.NoError(t, err)
}

// Helper functions for test setup

// getTestPool connects to TEST_DATABASE_URL and migrates it. Tests skip when
// it is unset.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(context.Background(), pool))
	return pool
}

// newTestContract returns a fresh contract address so tests never share
// lists, and removes its rows afterwards.
func newTestContract(t *testing.T, pool *pgxpool.Pool) common.Address {
	t.Helper()

	id := uuid.New()
	contract := common.BytesToAddress(id[:])
	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), `DELETE FROM messages WHERE contract = $1`, contract.Hex()); err != nil {
			t.Logf("Warning: failed to cleanup test messages: %v", err)
		}
	})
	return contract
}
