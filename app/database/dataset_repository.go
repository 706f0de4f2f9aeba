package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type DatasetRepositoryImpl struct {
	db *DB
}

var _ DatasetRepository = (*DatasetRepositoryImpl)(nil)

func NewDatasetRepository(db *DB) *DatasetRepositoryImpl {
	return &DatasetRepositoryImpl{db: db}
}

func (r *DatasetRepositoryImpl) CreateDataset(accountID, name string) (string, error) {
	id := uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO datasets (id, account_id, name)
		VALUES (?, ?, ?)
	`, id, accountID, name)
	if err != nil {
		return "", fmt.Errorf("failed to create dataset: %w", err)
	}

	return id, nil
}

func (r *DatasetRepositoryImpl) GetDataset(id string) (*Dataset, error) {
	var d Dataset
	err := r.db.QueryRow(`
		SELECT id, account_id, name, created_at, updated_at
		FROM datasets
		WHERE id = ?
	`, id).Scan(&d.ID, &d.AccountID, &d.Name, &d.CreatedAt, &d.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return &d, nil
}
