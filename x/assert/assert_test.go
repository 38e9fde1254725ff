package assert

import (
	"strings"
	"testing"
)

func catch(fn func()) (f *Failure) {
	defer func() { f = Recover(recover()) }()
	fn()
	return nil
}

func TestThatPassesSilently(t *testing.T) {
	if f := catch(func() { That(true, "ok") }); f != nil {
		t.Fatalf("unexpected failure: %v", f)
	}
}

func TestThatCarriesLocation(t *testing.T) {
	f := catch(func() { That(1 > 2, "1 > 2") })
	if f == nil {
		t.Fatal("expected failure")
	}
	if f.Expr != "1 > 2" {
		t.Fatalf("expr: %q", f.Expr)
	}
	if !strings.HasSuffix(f.File, "assert_test.go") || f.Line == 0 {
		t.Fatalf("location: %s:%d", f.File, f.Line)
	}
	if !strings.Contains(f.Error(), "(1 > 2)") {
		t.Fatalf("message: %q", f.Error())
	}
}

func TestRecoverRepanicsForeignValues(t *testing.T) {
	defer func() {
		if v := recover(); v != "boom" {
			t.Fatalf("expected re-panic of foreign value, got %v", v)
		}
	}()
	catch(func() { panic("boom") })
}
