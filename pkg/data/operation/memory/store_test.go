package memory

import (
	"testing"

	"github.com/code-payments/token-lifecycle/pkg/data/operation/tests"
)

func TestOperationMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
