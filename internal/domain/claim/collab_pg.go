package claim

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// attachmentCheckerPG answers the attachment signal from the metadata the
// attachment service writes into claim_attachments. The engine never reads
// file content, only whether a document of the required kind is on file.
type attachmentCheckerPG struct{ pool *pgxpool.Pool }

func NewAttachmentCheckerPG(pool *pgxpool.Pool) AttachmentChecker {
	return &attachmentCheckerPG{pool: pool}
}

func (r *attachmentCheckerPG) HasRequiredAttachment(ctx context.Context, claimID uuid.UUID, kind string) (bool, error) {
	var exists bool
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM claim_attachments WHERE claim_id = $1 AND kind = $2
		)`, claimID, kind).Scan(&exists)
	return exists, err
}

// paymentVerifierPG reads the treasury's payment records by reference.
type paymentVerifierPG struct{ pool *pgxpool.Pool }

func NewPaymentVerifierPG(pool *pgxpool.Pool) PaymentVerifier {
	return &paymentVerifierPG{pool: pool}
}

func (r *paymentVerifierPG) GetPaymentRecord(ctx context.Context, ref string) (*PaymentRecord, error) {
	var rec PaymentRecord
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		SELECT amount, reference, reconciled
		FROM payment_records WHERE reference = $1`, ref).
		Scan(&rec.Amount, &rec.Reference, &rec.Reconciled)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.New("payment record not found")
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
