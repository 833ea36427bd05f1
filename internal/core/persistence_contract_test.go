package core

import (
	"go/types"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

const persistencePrefix = "procurecore/internal/infra/persistence"

func loadModule(t *testing.T, mode packages.LoadMode) []*packages.Package {
	t.Helper()
	cfg := &packages.Config{Mode: mode, Tests: true}
	pkgs, err := packages.Load(cfg, "procurecore/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	return pkgs
}

// TestSinkImplementationsStayInPersistence keeps write-through backends under
// internal/infra/persistence. The store package itself may define sinks in
// its tests.
func TestSinkImplementationsStayInPersistence(t *testing.T) {
	pkgs := loadModule(t, packages.NeedName|packages.NeedTypes)
	var sink *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "procurecore/internal/store" || p.Types == nil {
			continue
		}
		obj := p.Types.Scope().Lookup("Sink")
		if obj == nil {
			t.Fatalf("store.Sink not found")
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("store.Sink is not an interface")
		}
		sink = iface
		break
	}
	if sink == nil {
		t.Fatalf("failed to resolve store.Sink")
	}

	allowed := map[string]struct{}{
		persistencePrefix + "/file":     {},
		persistencePrefix + "/sqlite":   {},
		persistencePrefix + "/postgres": {},
		persistencePrefix + "/s3":       {},
		"procurecore/internal/store":    {},
	}
	found := make(map[string]struct{})
	var unexpected []string
	for _, p := range pkgs {
		if p.Types == nil {
			continue
		}
		scope := p.Types.Scope()
		for _, name := range scope.Names() {
			named, ok := scope.Lookup(name).Type().(*types.Named)
			if !ok {
				continue
			}
			if _, isIface := named.Underlying().(*types.Interface); isIface {
				continue
			}
			if !types.Implements(types.NewPointer(named), sink) {
				continue
			}
			if _, ok := allowed[p.PkgPath]; !ok {
				unexpected = append(unexpected, p.PkgPath+"."+name)
				continue
			}
			found[p.PkgPath] = struct{}{}
		}
	}
	if len(unexpected) > 0 {
		sort.Strings(unexpected)
		t.Fatalf("unexpected store.Sink implementations (add new backends under %s):\n%s", persistencePrefix, strings.Join(unexpected, "\n"))
	}
	for _, backend := range []string{"file", "sqlite", "postgres", "s3"} {
		if _, ok := found[persistencePrefix+"/"+backend]; !ok {
			t.Errorf("backend %s no longer implements store.Sink", backend)
		}
	}
}

// TestOnlyStorageWiringImportsBackends keeps callers on store.Store; only the
// core storage wiring and the backends' own tests reach persistence packages.
func TestOnlyStorageWiringImportsBackends(t *testing.T) {
	pkgs := loadModule(t, packages.NeedName|packages.NeedImports)
	var violations []string
	for _, p := range pkgs {
		if p.PkgPath == "procurecore/internal/core" || strings.HasPrefix(p.PkgPath, persistencePrefix) {
			continue
		}
		for path := range p.Imports {
			if strings.HasPrefix(path, persistencePrefix+"/") {
				violations = append(violations, p.PkgPath+": "+path)
			}
		}
	}
	if len(violations) > 0 {
		sort.Strings(violations)
		t.Fatalf("forbidden persistence imports:\n%s", strings.Join(violations, "\n"))
	}
}
