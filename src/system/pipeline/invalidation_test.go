package pipeline

import "testing"

func Test_Path_StringParseRoundTrip(t *testing.T) {
	path := Path{"functions", "0x400000"}
	if path.String() != "/functions/0x400000" {
		t.Errorf("unexpected rendering %q", path.String())
	}
	parsed := ParsePath(path.String())
	if parsed.String() != path.String() {
		t.Errorf("round trip changed %q into %q", path.String(), parsed.String())
	}
}

func Test_Bimap_InsertIsIdempotent(t *testing.T) {
	kinds := newTestKinds()
	bimap := NewPathTargetBimap()
	entry := TargetInContainer{Target: NewTarget(kinds.lifted, "main"), ContainerName: "lifted"}

	bimap.Insert(Path{"functions", "main"}, entry)
	bimap.Insert(Path{"functions", "main"}, entry)

	if got := len(bimap.TargetsDependingOn(Path{"functions", "main"})); got != 1 {
		t.Errorf("expected 1 entry after duplicate insert, got %d", got)
	}
}

func Test_Bimap_MissReturnsNothing(t *testing.T) {
	bimap := NewPathTargetBimap()
	if got := bimap.TargetsDependingOn(Path{"functions", "unknown"}); len(got) != 0 {
		t.Errorf("expected empty result on miss, got %v", got)
	}
}

func Test_Bimap_RemoveEvictsBothDirections(t *testing.T) {
	kinds := newTestKinds()
	bimap := NewPathTargetBimap()
	entry := TargetInContainer{Target: NewTarget(kinds.lifted, "main"), ContainerName: "lifted"}
	bimap.Insert(Path{"functions", "main"}, entry)
	bimap.Insert(Path{"functions", "entry"}, entry)

	var stale TargetsList
	stale.Add(NewTarget(kinds.lifted, "main"))
	bimap.Remove(stale, "lifted")

	if bimap.Contains(entry) {
		t.Error("removed target still contained")
	}
	if got := bimap.TargetsDependingOn(Path{"functions", "main"}); len(got) != 0 {
		t.Errorf("path index still holds removed target: %v", got)
	}
	if bimap.Len() != 0 {
		t.Errorf("expected empty bimap, got %d entries", bimap.Len())
	}
}

func Test_Bimap_RemoveKeepsOtherContainersEntries(t *testing.T) {
	kinds := newTestKinds()
	bimap := NewPathTargetBimap()
	inLifted := TargetInContainer{Target: NewTarget(kinds.lifted, "main"), ContainerName: "lifted"}
	inOther := TargetInContainer{Target: NewTarget(kinds.lifted, "main"), ContainerName: "other"}
	bimap.Insert(Path{"functions", "main"}, inLifted)
	bimap.Insert(Path{"functions", "main"}, inOther)

	var stale TargetsList
	stale.Add(NewTarget(kinds.lifted, "main"))
	bimap.Remove(stale, "lifted")

	if bimap.Contains(inLifted) {
		t.Error("entry of the named container should be gone")
	}
	if !bimap.Contains(inOther) {
		t.Error("the same target in another container must survive")
	}
}

func Test_Metadata_RegisterCollectsPerGlobal(t *testing.T) {
	kinds := newTestKinds()
	metadata := NewInvalidationMetadata()
	entry := TargetInContainer{Target: NewTarget(kinds.lifted, "main"), ContainerName: "lifted"}
	metadata.Insert("model", Path{"functions", "main"}, entry)

	out := make(ContainerToTargetsMap)
	metadata.RegisterTargetsDependingOn("model", Path{"functions", "main"}, out, nil)
	if !out.Targets("lifted").Contains(NewTarget(kinds.lifted, "main")) {
		t.Errorf("expected the dependent target, got %s", out.String())
	}

	// unknown global and unknown path are quiet no-ops
	metadata.RegisterTargetsDependingOn("other-global", Path{"functions", "main"}, out, nil)
	metadata.RegisterTargetsDependingOn("model", Path{"functions", "other"}, out, nil)
	if out.Targets("lifted").Len() != 1 {
		t.Errorf("no-op lookups changed the result: %s", out.String())
	}
}

func Test_Metadata_RemoveSpansEveryGlobal(t *testing.T) {
	kinds := newTestKinds()
	metadata := NewInvalidationMetadata()
	entry := TargetInContainer{Target: NewTarget(kinds.lifted, "main"), ContainerName: "lifted"}
	metadata.Insert("model", Path{"functions", "main"}, entry)
	metadata.Insert("layout", Path{"segments", "text"}, entry)

	stale := make(ContainerToTargetsMap)
	stale.Add("lifted", NewTarget(kinds.lifted, "main"))
	metadata.Remove(stale)

	if metadata.Contains("model", entry) || metadata.Contains("layout", entry) {
		t.Error("removal must evict the target from every global's index")
	}
}

func Test_Metadata_SnapshotRestoreRoundTrip(t *testing.T) {
	kinds := newTestKinds()
	metadata := NewInvalidationMetadata()
	metadata.Insert("model", Path{"functions", "main"}, TargetInContainer{
		Target:        NewTarget(kinds.lifted, "main"),
		ContainerName: "lifted",
	})
	metadata.Insert("model", Path{"functions", "helper"}, TargetInContainer{
		Target:        NewTarget(kinds.lifted, "helper"),
		ContainerName: "lifted",
	})

	snapshot := metadata.Snapshot()
	if len(snapshot) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %d", len(snapshot))
	}

	restored := NewInvalidationMetadata()
	if err := restored.Restore(kinds.registry, snapshot); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	out := make(ContainerToTargetsMap)
	restored.RegisterTargetsDependingOn("model", Path{"functions", "main"}, out, nil)
	if !out.Targets("lifted").Contains(NewTarget(kinds.lifted, "main")) {
		t.Errorf("restored metadata lost an association: %s", out.String())
	}
}
