package flow

import (
	"context"

	kpool "github.com/opst/knitmeta/pkg/conn/db/postgres/pool"
	kdb "github.com/opst/knitmeta/pkg/db"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	xe "github.com/opst/knitmeta/pkg/errors"
)

type pgFlow struct {
	store *records.Store
}

var _ kdb.FlowInterface = &pgFlow{}

func New(store *records.Store) kdb.FlowInterface {
	return &pgFlow{store: store}
}

func (f *pgFlow) Create(ctx context.Context, flow kdb.NewFlow) (kdb.Flow, error) {
	if flow.FlowId == "" {
		return kdb.Flow{}, xe.Wrap(kdb.Invalid("flow_id should not be empty"))
	}

	var created kdb.Flow
	err := f.store.Read(ctx, func(q kpool.Queryer) error {
		var err error
		created, _, err = records.InsertOne[kdb.Flow](ctx, q, records.Insert{
			Table: records.Flows,
			Values: append(
				[]records.Field{records.Eq("flow_id", flow.FlowId)},
				records.Attributes(flow.Attributes)...,
			),
		})
		return err
	})
	if err != nil {
		return kdb.Flow{}, xe.Wrap(err)
	}
	return created, nil
}

func (f *pgFlow) Get(ctx context.Context, flowId string) (kdb.Flow, error) {
	var flow kdb.Flow
	err := f.store.Read(ctx, func(q kpool.Queryer) error {
		var err error
		flow, err = records.GetOne[kdb.Flow](ctx, q, records.Query{
			Table: records.Flows,
			Where: []records.Field{records.Eq("flow_id", flowId)},
		})
		return err
	})
	if err != nil {
		return kdb.Flow{}, xe.Wrap(err)
	}
	return flow, nil
}

func (f *pgFlow) List(ctx context.Context) ([]kdb.Flow, error) {
	var flows []kdb.Flow
	err := f.store.Read(ctx, func(q kpool.Queryer) error {
		var err error
		flows, err = records.Get[kdb.Flow](ctx, q, records.Query{
			Table:   records.Flows,
			OrderBy: []records.Order{records.Asc("flow_id")},
		})
		return err
	})
	if err != nil {
		return nil, xe.Wrap(err)
	}
	return flows, nil
}
