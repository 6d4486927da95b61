package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/cipherchat/internal/models"
)

var ErrNotFound = errors.New("not found")

type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

// Append inserts message at the end of owner's list and returns its index.
// A transaction-scoped advisory lock on (contract, owner) keeps indices
// dense when the same user appends concurrently.
func (r *PostgresMessageRepository) Append(ctx context.Context, contract, owner common.Address, message *models.Message) (uint64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin append: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := lockList(ctx, tx, contract, owner); err != nil {
		return 0, err
	}

	var count int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE contract = $1 AND owner = $2`,
		contract.Hex(), owner.Hex(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}

	query := `INSERT INTO messages (contract, owner, sender, encrypted_content, timestamp, is_response)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, query,
		contract.Hex(),
		owner.Hex(),
		message.Sender.Hex(),
		message.EncryptedContent,
		int64(message.Timestamp),
		message.IsResponse,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit message: %w", err)
	}
	return uint64(count), nil
}

func (r *PostgresMessageRepository) Count(ctx context.Context, contract, owner common.Address) (uint64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM messages WHERE contract = $1 AND owner = $2`,
		contract.Hex(), owner.Hex(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return uint64(count), nil
}

func (r *PostgresMessageRepository) GetByIndex(ctx context.Context, contract, owner common.Address, index uint64) (*models.Message, error) {
	query := `SELECT sender, encrypted_content, timestamp, is_response
	          FROM messages
	          WHERE contract = $1 AND owner = $2
	          ORDER BY id ASC
	          OFFSET $3 LIMIT 1`

	message, err := scanMessage(r.pool.QueryRow(ctx, query, contract.Hex(), owner.Hex(), int64(index)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by index: %w", err)
	}
	return message, nil
}

func (r *PostgresMessageRepository) List(ctx context.Context, contract, owner common.Address) ([]*models.Message, error) {
	query := `SELECT sender, encrypted_content, timestamp, is_response
	          FROM messages
	          WHERE contract = $1 AND owner = $2
	          ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, contract.Hex(), owner.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*models.Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// DeleteAll removes the owner's whole list. Deleting an empty list is not an
// error. It takes the same lock as Append, so an append in flight either
// lands before the clear or counts from zero after it.
func (r *PostgresMessageRepository) DeleteAll(ctx context.Context, contract, owner common.Address) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := lockList(ctx, tx, contract, owner); err != nil {
		return 0, err
	}

	result, err := tx.Exec(ctx,
		`DELETE FROM messages WHERE contract = $1 AND owner = $2`,
		contract.Hex(), owner.Hex(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return result.RowsAffected(), nil
}

// lockList holds the (contract, owner) list until tx ends.
func lockList(ctx context.Context, tx pgx.Tx, contract, owner common.Address) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`, contract.Hex(), owner.Hex()); err != nil {
		return fmt.Errorf("failed to lock message list: %w", err)
	}
	return nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var (
		message   models.Message
		sender    string
		timestamp int64
	)
	if err := row.Scan(&sender, &message.EncryptedContent, &timestamp, &message.IsResponse); err != nil {
		return nil, err
	}
	message.Sender = common.HexToAddress(sender)
	message.Timestamp = uint64(timestamp)
	return &message, nil
}
