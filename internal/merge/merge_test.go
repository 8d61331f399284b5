package merge

import (
	"reflect"
	"testing"

	"github.com/medicarekit/quotehub/internal/models"
	"github.com/medicarekit/quotehub/internal/registry"
	"github.com/medicarekit/quotehub/internal/store"
	"github.com/medicarekit/quotehub/internal/testutil"
)

const sessionID = "sess-merge-test"

func TestPartitionByPlan(t *testing.T) {
	quotes := []models.Quote{
		testutil.MakeQuote(models.CategoryMedigap, "G", "Acme", 11000),
		testutil.MakeQuote(models.CategoryMedigap, "F", "Acme", 14000),
		testutil.MakeQuote(models.CategoryMedigap, "G", "Union", 10500),
		{ID: "no-plan", Category: models.CategoryMedigap},
	}
	partitioned := PartitionByPlan(quotes)
	if len(partitioned) != 2 {
		t.Fatalf("expected 2 partitions, got %d", len(partitioned))
	}
	if len(partitioned["G"]) != 2 || len(partitioned["F"]) != 1 {
		t.Errorf("unexpected partition sizes: G=%d F=%d", len(partitioned["G"]), len(partitioned["F"]))
	}
}

// Applying the same fetch result twice must leave the bucket identical to
// applying it once.
func TestApplyMedigapIdempotent(t *testing.T) {
	st := store.NewInMemoryStore()
	m := New(st)
	incoming := []models.Quote{
		testutil.MakeQuote(models.CategoryMedigap, "G", "Acme", 11000),
		testutil.MakeQuote(models.CategoryMedigap, "G", "Union", 10500),
	}

	flat1 := m.ApplyMedigap(sessionID, nil, incoming)
	flat2 := m.ApplyMedigap(sessionID, flat1, incoming)

	if !reflect.DeepEqual(flat1, flat2) {
		t.Errorf("double apply changed the flat list: %v vs %v", flat1, flat2)
	}
	bucket, err := st.GetBucket(store.SessionKey(sessionID, registry.PlanStorageKey("G")))
	if err != nil {
		t.Fatalf("bucket read failed: %v", err)
	}
	if len(bucket) != 2 {
		t.Errorf("expected 2 quotes in G bucket, got %d", len(bucket))
	}
}

// Merging a new F result must never alter the stored G or N buckets.
func TestApplyMedigapCrossLetterIsolation(t *testing.T) {
	st := store.NewInMemoryStore()
	m := New(st)

	flat := m.ApplyMedigap(sessionID, nil, testutil.MedigapQuotes("G", "N"))
	gBefore, _ := st.GetBucket(store.SessionKey(sessionID, registry.PlanStorageKey("G")))
	nBefore, _ := st.GetBucket(store.SessionKey(sessionID, registry.PlanStorageKey("N")))

	newF := []models.Quote{testutil.MakeQuote(models.CategoryMedigap, "F", "Fresh Carrier", 15500)}
	flat = m.ApplyMedigap(sessionID, flat, newF)

	gAfter, _ := st.GetBucket(store.SessionKey(sessionID, registry.PlanStorageKey("G")))
	nAfter, _ := st.GetBucket(store.SessionKey(sessionID, registry.PlanStorageKey("N")))
	if !reflect.DeepEqual(gBefore, gAfter) {
		t.Error("F merge altered the G bucket")
	}
	if !reflect.DeepEqual(nBefore, nAfter) {
		t.Error("F merge altered the N bucket")
	}
	available := AvailablePlans(flat)
	for _, letter := range []string{"F", "G", "N"} {
		if !available[letter] {
			t.Errorf("expected plan %s available after merges, got %v", letter, available)
		}
	}
}

// A refetched letter fully replaces its previous contents in the flat list.
func TestMergeFlatReplacesRefetchedLetters(t *testing.T) {
	existing := []models.Quote{
		testutil.MakeQuote(models.CategoryMedigap, "G", "Old G Carrier", 20000),
		testutil.MakeQuote(models.CategoryMedigap, "F", "F Carrier", 14000),
	}
	replaced := map[string][]models.Quote{
		"G": {testutil.MakeQuote(models.CategoryMedigap, "G", "New G Carrier", 9900)},
	}
	merged := MergeFlat(existing, replaced)
	if len(merged) != 2 {
		t.Fatalf("expected 2 quotes after merge, got %d", len(merged))
	}
	for _, q := range merged {
		if q.PlanType == "G" && q.Carrier != "New G Carrier" {
			t.Errorf("stale G quote survived the replace: %v", q)
		}
	}
}

func TestApplyCategoryReplacesWholeBucket(t *testing.T) {
	st := store.NewInMemoryStore()
	m := New(st)

	first := []models.Quote{testutil.MakeQuote(models.CategoryDental, "", "Dental One", 3500)}
	m.ApplyCategory(sessionID, models.CategoryDental, first)

	second := []models.Quote{testutil.MakeQuote(models.CategoryDental, "", "Dental Two", 2900)}
	stored := m.ApplyCategory(sessionID, models.CategoryDental, second)

	if len(stored) != 1 || stored[0].Carrier != "Dental Two" {
		t.Errorf("second fetch did not replace bucket: %v", stored)
	}
	bucket, _ := st.GetBucket(store.SessionKey(sessionID, registry.StorageKey(models.CategoryDental)))
	if len(bucket) != 1 || bucket[0].Carrier != "Dental Two" {
		t.Errorf("persisted bucket not replaced: %v", bucket)
	}
}

// Persistence failures must not roll back the in-memory result.
func TestApplySoftFailsPersistence(t *testing.T) {
	m := New(failingStore{})
	incoming := testutil.MedigapQuotes("G")
	flat := m.ApplyMedigap(sessionID, nil, incoming)
	if len(flat) != 1 {
		t.Errorf("in-memory result lost on persistence failure: %v", flat)
	}
	stored := m.ApplyCategory(sessionID, models.CategoryDental, incoming)
	if len(stored) != 1 {
		t.Errorf("in-memory result lost on persistence failure: %v", stored)
	}
}

func TestLoadBucketFallsBack(t *testing.T) {
	m := New(failingStore{})
	fallback := testutil.MedigapQuotes("G")
	got := m.LoadBucket(sessionID, registry.StorageKey(models.CategoryMedigap), fallback)
	if !reflect.DeepEqual(got, fallback) {
		t.Errorf("expected fallback on read failure, got %v", got)
	}
}
