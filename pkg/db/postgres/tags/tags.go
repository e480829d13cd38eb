package tags

import (
	"context"

	"github.com/jackc/pgx/v4"
	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/address"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

// Mutator changes user tags of runs.
type Mutator struct {
	store *records.Store
}

func New(store *records.Store) *Mutator {
	return &Mutator{store: store}
}

// Mutate adds and removes user tags of a run, in a SERIALIZABLE transaction.
//
// The run is read and written in the same transaction. When another transaction
// changes the run concurrently, one of them fails with kdb.ErrRetryable and
// changes nothing. The failure is not retried here; callers decide to retry.
//
// When the mutation changes nothing, no write is issued.
//
// # Returns
//
// - kdb.TagSet: user tags after the mutation.
//
// - error: kdb.ErrSystemTagRemoval, kdb.Unresolved, kdb.ErrRetryable or others.
func (m *Mutator) Mutate(ctx context.Context, ref kdb.RunRef, mutation kdb.TagMutation) (kdb.TagSet, error) {
	var result kdb.TagSet
	err := m.store.InTx(ctx, pgx.Serializable, func(tx kpool.Tx) error {
		run, err := address.ResolveRun(ctx, tx, ref)
		if err != nil {
			return err
		}

		next, changed, err := mutation.Apply(run.Tags, run.SystemTags)
		if err != nil {
			return err
		}
		if !changed {
			result = run.Tags.Clone()
			return nil
		}

		updated, err := records.UpdateOne[kdb.Run](ctx, tx, records.Update{
			Table: records.Runs,
			Set:   []records.Field{records.Eq("tags", next)},
			Where: []records.Field{
				records.Eq("flow_id", run.FlowId),
				records.Eq("run_number", run.RunNumber),
			},
		})
		if err != nil {
			return err
		}
		result = updated.Tags
		return nil
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return result, nil
}
