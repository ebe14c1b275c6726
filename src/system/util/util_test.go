package util

import "testing"

func Test_HashStrings_IsStableAndOrderSensitive(t *testing.T) {
	first := HashStrings([]string{"import", "lift"})
	second := HashStrings([]string{"import", "lift"})
	if first != second {
		t.Error("equal input must hash equal")
	}
	if len(first) != 40 {
		t.Errorf("expected a sha1 hex digest, got %q", first)
	}
	if HashStrings([]string{"lift", "import"}) == first {
		t.Error("order must change the hash")
	}
	if HashStrings([]string{"ab", "c"}) == HashStrings([]string{"a", "bc"}) {
		t.Error("part boundaries must change the hash")
	}
}

func Test_CopyStringStringMap_IsIndependent(t *testing.T) {
	src := map[string]string{"a": "1"}
	dst := CopyStringStringMap(src)
	dst["a"] = "2"
	if src["a"] != "1" {
		t.Error("mutating the copy changed the source")
	}
	if CopyStringStringMap(nil) != nil {
		t.Error("nil in, nil out")
	}
}

func Test_CopyStringSlice_IsIndependent(t *testing.T) {
	src := []string{"a", "b"}
	dst := CopyStringSlice(src)
	dst[0] = "z"
	if src[0] != "a" {
		t.Error("mutating the copy changed the source")
	}
	if CopyStringSlice(nil) != nil {
		t.Error("nil in, nil out")
	}
}
