package ioengine

import "testing"

func TestOperationString(t *testing.T) {
	if got := OpCreateDataset.String(); got != "CREATE_DATASET" {
		t.Errorf("OpCreateDataset.String() = %q", got)
	}
	if got := Operation(9999).String(); got != "UNKNOWN_OP" {
		t.Errorf("out-of-range Operation.String() = %q, want UNKNOWN_OP", got)
	}
}

func TestAdvanceStatusString(t *testing.T) {
	cases := map[AdvanceStatus]string{
		AdvanceOK:           "OK",
		AdvanceOver:         "OVER",
		AdvanceRandomAccess: "RANDOMACCESS",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}

func TestIOTaskCarriesTypedParameters(t *testing.T) {
	var extent Extent
	task := IOTask{
		Target: NodeID(7),
		Op:     OpOpenDataset,
		Params: OpenDatasetParameters{Name: "E/x", Extent: &extent},
	}
	params, ok := task.Params.(OpenDatasetParameters)
	if !ok {
		t.Fatalf("Params is not OpenDatasetParameters: %T", task.Params)
	}
	if params.Name != "E/x" {
		t.Errorf("Name = %q, want E/x", params.Name)
	}
}

func TestChunkTableCloneDeep(t *testing.T) {
	table := ChunkTable{
		{Offset: Offset{0, 0}, Extent: Extent{1, 1}, SourceID: 1},
	}
	clone := table.Clone()
	clone[0].Offset[0] = 42
	if table[0].Offset[0] == 42 {
		t.Errorf("Clone() aliased the source chunk's Offset slice")
	}
}
