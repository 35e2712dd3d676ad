package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stockline/internal/core/id"
	"stockline/internal/domain/transfer"
	"stockline/internal/infrastructure/storage/postgres"
)

const (
	transfersTable     = "transfers"
	transferLinesTable = "transfer_lines"
)

// TransferRepo implements transfer.Repository.
type TransferRepo struct {
	baseDocumentRepo[transfer.Transfer]
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(txm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{baseDocumentRepo: newBaseDocumentRepo[transfer.Transfer](txm, transfersTable, "transfer")}
}

var _ transfer.Repository = (*TransferRepo)(nil)

// Create inserts the header and its lines in one batch.
func (r *TransferRepo) Create(ctx context.Context, t *transfer.Transfer) error {
	header, err := r.insertQuery(transfersTable, t)
	if err != nil {
		return err
	}
	queries := []postgres.BatchQuery{header}
	for i := range t.Lines {
		q, err := r.insertQuery(transferLinesTable, &t.Lines[i])
		if err != nil {
			return err
		}
		queries = append(queries, q)
	}
	if err := r.execBatch(ctx, queries); err != nil {
		return fmt.Errorf("insert transfer %s: %w", t.Number, err)
	}
	return nil
}

func (r *TransferRepo) Get(ctx context.Context, transferID id.ID) (*transfer.Transfer, error) {
	t, err := r.getByID(ctx, transferID, false)
	if err != nil {
		return nil, err
	}
	t.Lines = make([]transfer.Line, 0)
	if err := r.selectInto(ctx, &t.Lines, r.Builder().
		Select(postgres.ExtractDBColumns[transfer.Line]()...).
		From(transferLinesTable).
		Where(squirrel.Eq{"transfer_id": transferID}).
		OrderBy("line_no")); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *TransferRepo) List(ctx context.Context, filter transfer.ListFilter) ([]transfer.Transfer, error) {
	if filter.ToLocationID != nil {
		return r.list(ctx, squirrel.Eq{"to_location_id": *filter.ToLocationID}, filter.Limit, filter.Offset)
	}
	return r.list(ctx, nil, filter.Limit, filter.Offset)
}
