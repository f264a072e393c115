package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-mfg-scans/internal/database"
	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
)

const (
	activeCodeConstraint = "scan_records_active_code_key"
	containerBatchesPKey = "container_batches_pkey"
	palletBatchesPKey    = "pallet_batches_pkey"
	stageBox             = "box"
	stagePallet          = "pallet"
)

// errNothingToPromote rolls back a promotion that matched no records, so the
// batch label is not claimed by an empty container.
var errNothingToPromote = errors.New("nothing to promote")

// ScanRecordRepository owns every write to scan_records
type ScanRecordRepository struct {
	db *database.DB
}

// NewScanRecordRepository creates a new scan record repository
func NewScanRecordRepository(db *database.DB) *ScanRecordRepository {
	return &ScanRecordRepository{db: db}
}

const scanRecordColumns = `
	id, code, workplace, article, operator, type, status, accepted_at, box_session::text,
	container_batch, container_batch_at, container_operator,
	pallet_session::text, pallet_batch, pallet_batch_at, pallet_operator,
	rework_reason, rework_at, rework_operator`

// ExistsActive reports whether a non-reworked record carries code
func (r *ScanRecordRepository) ExistsActive(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM scan_records WHERE code = $1 AND status <> 'rework')`

	var exists bool
	if err := r.db.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to check scan record")
	}
	return exists, nil
}

// Insert appends an accepted unit to the open box of its article, opening a
// new box session when none is in flight. A concurrent insert of the same
// code fails with a conflict.
func (r *ScanRecordRepository) Insert(ctx context.Context, rec *ScanRecord) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		session, err := openSession(ctx, tx, rec.Workplace, rec.Article, stageBox)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO scan_records (code, workplace, article, operator, type, status, box_session)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, accepted_at
		`
		err = tx.QueryRow(ctx, query,
			rec.Code,
			rec.Workplace,
			rec.Article,
			rec.Operator,
			rec.Type,
			string(StatusBox),
			session,
		).Scan(&rec.ID, &rec.AcceptedAt)
		if err != nil {
			return err
		}

		rec.Status = StatusBox
		rec.BoxSession = session.String()
		return nil
	})

	if database.IsUniqueViolation(err, activeCodeConstraint) {
		return apperrors.Conflict("code already scanned: " + rec.Code)
	}
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to insert scan record")
	}
	return nil
}

// openSession returns the in-flight session of a stage, creating it if
// needed. The upsert locks the session row, so a concurrent promotion that
// closes the session either waits for this transaction or is seen as gone.
func openSession(ctx context.Context, tx pgx.Tx, workplace, article, stage string) (uuid.UUID, error) {
	query := `
		INSERT INTO open_containers (workplace, article, stage, session_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workplace, article, stage) DO UPDATE SET stage = EXCLUDED.stage
		RETURNING session_id
	`

	var session uuid.UUID
	err := tx.QueryRow(ctx, query, workplace, article, stage, uuid.New()).Scan(&session)
	return session, err
}

// closeSession removes the in-flight session of a stage. ok is false when no
// session was open, e.g. because a concurrent promotion already closed it.
func closeSession(ctx context.Context, tx pgx.Tx, workplace, article, stage string) (uuid.UUID, bool, error) {
	query := `
		DELETE FROM open_containers
		WHERE workplace = $1 AND article = $2 AND stage = $3
		RETURNING session_id
	`

	var session uuid.UUID
	err := tx.QueryRow(ctx, query, workplace, article, stage).Scan(&session)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return session, true, nil
}

// ContainerBatchExists reports whether a box label was already registered
func (r *ScanRecordRepository) ContainerBatchExists(ctx context.Context, batch string) (bool, error) {
	return r.batchExists(ctx, `SELECT EXISTS (SELECT 1 FROM container_batches WHERE batch = $1)`, batch)
}

// PalletBatchExists reports whether a pallet label was already registered
func (r *ScanRecordRepository) PalletBatchExists(ctx context.Context, batch string) (bool, error) {
	return r.batchExists(ctx, `SELECT EXISTS (SELECT 1 FROM pallet_batches WHERE batch = $1)`, batch)
}

func (r *ScanRecordRepository) batchExists(ctx context.Context, query, batch string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, query, batch).Scan(&exists); err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to check batch")
	}
	return exists, nil
}

// PromoteContainer closes the open box of an article: every box record of
// the box session moves to the open pallet, stamped with the box label.
// It returns the number of promoted records; zero means the box was empty or
// a concurrent promotion already took it, and nothing is written.
func (r *ScanRecordRepository) PromoteContainer(ctx context.Context, p Promotion) (int64, error) {
	var promoted int64

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		boxSession, ok, err := closeSession(ctx, tx, p.Workplace, p.Article, stageBox)
		if err != nil {
			return err
		}
		if !ok {
			return errNothingToPromote
		}

		claim := `
			INSERT INTO container_batches (batch, workplace, article, session_id, operator)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, claim, p.Batch, p.Workplace, p.Article, boxSession, p.Operator); err != nil {
			return err
		}

		palletSession, err := openSession(ctx, tx, p.Workplace, p.Article, stagePallet)
		if err != nil {
			return err
		}

		update := `
			UPDATE scan_records
			SET status = 'pallet',
			    container_batch = $4,
			    container_batch_at = NOW(),
			    container_operator = $5,
			    pallet_session = $6
			WHERE workplace = $1 AND article = $2 AND status = 'box' AND box_session = $3
		`
		tag, err := tx.Exec(ctx, update, p.Workplace, p.Article, boxSession, p.Batch, p.Operator, palletSession)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errNothingToPromote
		}
		promoted = tag.RowsAffected()
		return nil
	})

	switch {
	case errors.Is(err, errNothingToPromote):
		return 0, nil
	case database.IsUniqueViolation(err, containerBatchesPKey):
		return 0, apperrors.Conflict("container batch already registered: " + p.Batch)
	case err != nil:
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to promote container")
	}
	return promoted, nil
}

// PromotePallet closes the open pallet of an article and moves its records
// to the warehouse, stamped with the pallet label.
func (r *ScanRecordRepository) PromotePallet(ctx context.Context, p Promotion) (int64, error) {
	var promoted int64

	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		palletSession, ok, err := closeSession(ctx, tx, p.Workplace, p.Article, stagePallet)
		if err != nil {
			return err
		}
		if !ok {
			return errNothingToPromote
		}

		claim := `
			INSERT INTO pallet_batches (batch, workplace, article, session_id, operator)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.Exec(ctx, claim, p.Batch, p.Workplace, p.Article, palletSession, p.Operator); err != nil {
			return err
		}

		update := `
			UPDATE scan_records
			SET status = 'warehouse',
			    pallet_batch = $4,
			    pallet_batch_at = NOW(),
			    pallet_operator = $5
			WHERE workplace = $1 AND article = $2 AND status = 'pallet' AND pallet_session = $3
		`
		tag, err := tx.Exec(ctx, update, p.Workplace, p.Article, palletSession, p.Batch, p.Operator)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errNothingToPromote
		}
		promoted = tag.RowsAffected()
		return nil
	})

	switch {
	case errors.Is(err, errNothingToPromote):
		return 0, nil
	case database.IsUniqueViolation(err, palletBatchesPKey):
		return 0, apperrors.Conflict("pallet batch already registered: " + p.Batch)
	case err != nil:
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to promote pallet")
	}
	return promoted, nil
}

// ReworkUnit withdraws one box record from normal flow
func (r *ScanRecordRepository) ReworkUnit(ctx context.Context, code string, rw Rework) (int64, error) {
	query := `
		UPDATE scan_records
		SET status = 'rework',
		    rework_reason = $4,
		    rework_at = NOW(),
		    rework_operator = $5
		WHERE code = $1 AND workplace = $2 AND article = $3 AND status = 'box'
	`

	tag, err := r.db.Exec(ctx, query, code, rw.Workplace, rw.Article, rw.Reason, rw.Operator)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to rework unit")
	}
	return tag.RowsAffected(), nil
}

// ReworkContainer withdraws every pallet record packed under a box label
func (r *ScanRecordRepository) ReworkContainer(ctx context.Context, batch string, rw Rework) (int64, error) {
	query := `
		UPDATE scan_records
		SET status = 'rework',
		    rework_reason = $4,
		    rework_at = NOW(),
		    rework_operator = $5
		WHERE container_batch = $1 AND workplace = $2 AND article = $3 AND status = 'pallet'
	`

	tag, err := r.db.Exec(ctx, query, batch, rw.Workplace, rw.Article, rw.Reason, rw.Operator)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to rework container")
	}
	return tag.RowsAffected(), nil
}

// CountBox counts units in the open box of an article
func (r *ScanRecordRepository) CountBox(ctx context.Context, workplace, article string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM scan_records
		WHERE workplace = $1 AND article = $2 AND status = 'box'
	`

	var count int
	if err := r.db.QueryRow(ctx, query, workplace, article).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count box")
	}
	return count, nil
}

// CountContainersOnPallet counts distinct box labels on the open pallet
func (r *ScanRecordRepository) CountContainersOnPallet(ctx context.Context, workplace, article string) (int, error) {
	query := `
		SELECT COUNT(DISTINCT container_batch)
		FROM scan_records
		WHERE workplace = $1 AND article = $2 AND status = 'pallet'
	`

	var count int
	if err := r.db.QueryRow(ctx, query, workplace, article).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to count pallet")
	}
	return count, nil
}

// ListByCode returns the full history of a code, newest first
func (r *ScanRecordRepository) ListByCode(ctx context.Context, code string) ([]*ScanRecord, error) {
	query := `SELECT ` + scanRecordColumns + `
		FROM scan_records
		WHERE code = $1
		ORDER BY accepted_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, code)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list scan records")
	}
	defer rows.Close()

	records := make([]*ScanRecord, 0)
	for rows.Next() {
		rec := &ScanRecord{}
		var status string
		err := rows.Scan(
			&rec.ID,
			&rec.Code,
			&rec.Workplace,
			&rec.Article,
			&rec.Operator,
			&rec.Type,
			&status,
			&rec.AcceptedAt,
			&rec.BoxSession,
			&rec.ContainerBatch,
			&rec.ContainerBatchAt,
			&rec.ContainerOperator,
			&rec.PalletSession,
			&rec.PalletBatch,
			&rec.PalletBatchAt,
			&rec.PalletOperator,
			&rec.ReworkReason,
			&rec.ReworkAt,
			&rec.ReworkOperator,
		)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan scan record")
		}
		rec.Status = Status(status)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list scan records")
	}
	return records, nil
}
