package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/akhil-km/storefront/internal/database"
	"github.com/akhil-km/storefront/internal/models"
)

const (
	walletMethodRefund   = "refund"
	walletMethodOrder    = "order"
	walletMethodExternal = "external"
)

func getOrCreateWallet(ctx context.Context, tx *sql.Tx, userID int64) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("ensure wallet: %w", err)
	}

	var walletID int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE user_id = $1`, userID).Scan(&walletID)
	if err != nil {
		return 0, fmt.Errorf("get wallet: %w", err)
	}

	return walletID, nil
}

// creditWallet appends an immutable credit transaction and bumps the
// balance. Credits are unconditional; the transaction id is whatever the
// caller derives (order refunds use orderNumber-variantID), so the same
// event must not be credited twice by the caller.
func creditWallet(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, transactionID, method string) error {
	walletID, err := getOrCreateWallet(ctx, tx, userID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
		amount, walletID)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, amount, transaction_id, method, txn_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, 'credit', NOW())`,
		uuid.NewString(), walletID, amount, transactionID, method)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return database.ErrDuplicateWalletTxn
		}
		return fmt.Errorf("record wallet credit: %w", err)
	}

	return nil
}

// debitWallet atomically withdraws amount, failing when the balance would
// go negative.
func debitWallet(ctx context.Context, tx *sql.Tx, userID int64, amount decimal.Decimal, transactionID, method string) error {
	walletID, err := getOrCreateWallet(ctx, tx, userID)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE wallets
		 SET balance = balance - $1, updated_at = NOW()
		 WHERE id = $2 AND balance >= $1`,
		amount, walletID)
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (id, wallet_id, amount, transaction_id, method, txn_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, 'debit', NOW())`,
		uuid.NewString(), walletID, amount, transactionID, method)
	if err != nil {
		return fmt.Errorf("record wallet debit: %w", err)
	}

	return nil
}

// TopUpWallet credits an external payment onto the wallet. The external
// transaction id deduplicates retries of the same payment callback.
func TopUpWallet(ctx context.Context, db *sql.DB, userID int64, amount decimal.Decimal, externalTxnID string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("top-up amount must be positive")
	}
	if externalTxnID == "" {
		return fmt.Errorf("transaction id is required")
	}

	return database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(
			     SELECT 1 FROM wallet_transactions
			     WHERE transaction_id = $1 AND method = $2)`,
			externalTxnID, walletMethodExternal).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check duplicate top-up: %w", err)
		}
		if exists {
			return database.ErrDuplicateWalletTxn
		}

		return creditWallet(ctx, tx, userID, amount, externalTxnID, walletMethodExternal)
	})
}

func GetWallet(ctx context.Context, db *sql.DB, userID int64) (*models.Wallet, error) {
	wallet := &models.Wallet{}

	err := database.WithTransaction(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := getOrCreateWallet(ctx, tx, userID); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx,
			`SELECT id, user_id, balance, created_at, updated_at FROM wallets WHERE user_id = $1`,
			userID).Scan(
			&wallet.ID,
			&wallet.UserID,
			&wallet.Balance,
			&wallet.CreatedAt,
			&wallet.UpdatedAt,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, wallet_id, amount, transaction_id, method, txn_type, created_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, id`, wallet.ID)
	if err != nil {
		return nil, fmt.Errorf("get wallet history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var txn models.WalletTxn
		err := rows.Scan(
			&txn.ID,
			&txn.WalletID,
			&txn.Amount,
			&txn.TransactionID,
			&txn.Method,
			&txn.Type,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet transaction: %w", err)
		}
		wallet.History = append(wallet.History, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return wallet, nil
}
