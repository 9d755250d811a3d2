package index

import "testing"

func TestComputeSchemaHashOrderIndependent(t *testing.T) {
	a := ComputeSchemaHash([]string{"subject", "body", "project_id"})
	b := ComputeSchemaHash([]string{"project_id", "subject", "body"})
	if a != b {
		t.Fatalf("expected order-independent hash, got %s vs %s", a, b)
	}
}

func TestComputeSchemaHashDiffersOnFieldSet(t *testing.T) {
	a := ComputeSchemaHash([]string{"subject", "body"})
	b := ComputeSchemaHash([]string{"subject", "body", "importance"})
	if a == b {
		t.Fatal("expected different field sets to hash differently")
	}
}

func TestComputeSchemaHashLength(t *testing.T) {
	h := ComputeSchemaHash([]string{"a"})
	if len(h) != 16 {
		t.Fatalf("expected 16 hex chars, got %d (%s)", len(h), h)
	}
}

func TestComputeSchemaHashDoesNotMutateInput(t *testing.T) {
	fields := []string{"z", "a", "m"}
	_ = ComputeSchemaHash(fields)
	if fields[0] != "z" || fields[1] != "a" || fields[2] != "m" {
		t.Fatalf("expected input slice unmodified, got %v", fields)
	}
}
