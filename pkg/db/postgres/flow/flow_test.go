package flow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	kdb "github.com/opst/knitmeta/pkg/db"
	kpgflow "github.com/opst/knitmeta/pkg/db/postgres/flow"
	"github.com/opst/knitmeta/pkg/db/postgres/pool/testenv"
	"github.com/opst/knitmeta/pkg/db/postgres/records"
	"github.com/opst/knitmeta/pkg/db/postgres/tables"
	"github.com/opst/knitmeta/pkg/utils/try"
)

func TestFlowCreate(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)

	t.Run("a flow is created with attributes", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgflow.New(records.New(pool))

		created := try.To(testee.Create(ctx, kdb.NewFlow{
			FlowId: "flow-a",
			Attributes: kdb.Attributes{
				UserName: "alice", Tags: kdb.TagSet{"x", "x", "y"}, SystemTags: kdb.TagSet{"runtime:dev"},
			},
		})).OrFatal(t)

		if created.FlowId != "flow-a" || created.UserName != "alice" {
			t.Errorf("unexpected flow: %+v", created)
		}
		if !created.Tags.Equal(kdb.TagSet{"x", "y"}) || len(created.Tags) != 2 {
			t.Errorf("tags: %v", created.Tags)
		}
		if created.TsEpoch == 0 {
			t.Errorf("ts_epoch should be assigned")
		}

		got := try.To(testee.Get(ctx, "flow-a")).OrFatal(t)
		if got.TsEpoch != created.TsEpoch || !got.SystemTags.Equal(kdb.TagSet{"runtime:dev"}) {
			t.Errorf("stored flow: actual = %+v, expected = %+v", got, created)
		}
	})

	t.Run("duplicated flows are conflict, exactly once, and the stored one is unchanged", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		if err := (tables.Operation{
			Flows: []kdb.Flow{{FlowId: "flow-a", UserName: "alice", TsEpoch: 42}},
		}).Apply(ctx, pool); err != nil {
			t.Fatal(err)
		}
		testee := kpgflow.New(records.New(pool))

		if _, err := testee.Create(ctx, kdb.NewFlow{
			FlowId: "flow-a", Attributes: kdb.Attributes{UserName: "bob"},
		}); !errors.Is(err, kdb.ErrConflict) {
			t.Errorf("expected ErrConflict, but: %v", err)
		}

		got := try.To(testee.Get(ctx, "flow-a")).OrFatal(t)
		if got.UserName != "alice" || got.TsEpoch != 42 {
			t.Errorf("flow is changed: %+v", got)
		}
	})

	t.Run("when flows with the same id are created concurrently, only one wins", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgflow.New(records.New(pool))

		const n = 5
		errs := make([]error, n)
		wg := new(sync.WaitGroup)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = testee.Create(ctx, kdb.NewFlow{FlowId: "flow-race"})
			}(i)
		}
		wg.Wait()

		ok, conflicts := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				ok += 1
			case errors.Is(err, kdb.ErrConflict):
				conflicts += 1
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if ok != 1 || conflicts != n-1 {
			t.Errorf("ok = %d, conflicts = %d", ok, conflicts)
		}
	})

	t.Run("empty flow id is invalid", func(t *testing.T) {
		ctx := context.Background()
		pool := poolBroaker.GetPool(ctx, t)
		testee := kpgflow.New(records.New(pool))
		if _, err := testee.Create(ctx, kdb.NewFlow{}); !errors.Is(err, kdb.ErrInvalid) {
			t.Errorf("expected ErrInvalid, but: %v", err)
		}
	})
}

func TestFlowGetAndList(t *testing.T) {
	poolBroaker := testenv.NewPoolBroaker(context.Background(), t)
	ctx := context.Background()
	pool := poolBroaker.GetPool(ctx, t)
	if err := (tables.Operation{
		Flows: []kdb.Flow{
			{FlowId: "flow-b", TsEpoch: 2},
			{FlowId: "flow-a", TsEpoch: 1},
		},
	}).Apply(ctx, pool); err != nil {
		t.Fatal(err)
	}
	testee := kpgflow.New(records.New(pool))

	if _, err := testee.Get(ctx, "flow-z"); !errors.Is(err, kdb.ErrMissing) {
		t.Errorf("expected ErrMissing, but: %v", err)
	}

	flows := try.To(testee.List(ctx)).OrFatal(t)
	if len(flows) != 2 || flows[0].FlowId != "flow-a" || flows[1].FlowId != "flow-b" {
		t.Errorf("unexpected flows: %+v", flows)
	}
}
