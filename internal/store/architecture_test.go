package store

import (
	"testing"

	"procurecore/testutil"
)

func TestStoreDoesNotDependOnModulePackages(t *testing.T) {
	testutil.AssertNoTransitiveDependency(t, ".", testutil.ModuleImport, "the store is generic over its entities")
}
