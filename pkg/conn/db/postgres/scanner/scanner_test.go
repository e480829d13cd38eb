package scanner

import "testing"

type record struct {
	FlowId    string
	RunNumber int64
	Location  string `sql:"ds_location"`
	hidden    string
}

func TestFieldFor(t *testing.T) {
	testee := New[record]().(scanner[record])

	for col, want := range map[string]string{
		"flow_id":     "FlowId",
		"run_number":  "RunNumber",
		"RunNumber":   "RunNumber",
		"ds_location": "Location",
	} {
		got, ok := testee.fieldFor(col)
		if !ok || got != want {
			t.Errorf("column %s: got (%s, %v), want %s", col, got, ok, want)
		}
	}

	for _, col := range []string{"hidden", "location", "unknown_column"} {
		if got, ok := testee.fieldFor(col); ok {
			t.Errorf("column %s should not be mapped, but got %s", col, got)
		}
	}
}

func TestCamel(t *testing.T) {
	for in, want := range map[string]string{
		"flow_id":           "FlowId",
		"a":                 "A",
		"aa__bb":            "Aa_Bb",
		"ts_epoch":          "TsEpoch",
		"last_heartbeat_ts": "LastHeartbeatTs",
	} {
		if got := camel(in); got != want {
			t.Errorf("camel(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestNewForScalar(t *testing.T) {
	if _, ok := New[int64]().(singleColumnScanner[int64]); !ok {
		t.Error("scalar type should get single column scanner")
	}
}
