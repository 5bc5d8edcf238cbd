// Package regalloc - Tests for interference and graph coloring
package regalloc_test

import (
	"errors"
	"testing"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/codegen/regalloc"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/liveness"
)

const fiveLive = `
	.method static five().V {
		t0.i32 :=.i32 1.i32;
		t1.i32 :=.i32 2.i32;
		t2.i32 :=.i32 3.i32;
		t3.i32 :=.i32 4.i32;
		t4.i32 :=.i32 5.i32;
		invokestatic(io, "use", t0.i32, t1.i32, t2.i32, t3.i32, t4.i32).V;
		ret.V;
	}
`

const loop = `
	.method loop().i32 {
		a.i32 :=.i32 0.i32;
	WHILE_0:
		if (a.i32 >=.bool 10.i32) goto ENDWHILE_0;
		a.i32 :=.i32 a.i32 +.i32 1.i32;
		goto WHILE_0;
	ENDWHILE_0:
		ret.i32 a.i32;
	}
`

const params = `
	.method mix(a.i32, b.i32).i32 {
		x.i32 :=.i32 $1.a.i32 +.i32 $2.b.i32;
		y.i32 :=.i32 x.i32 *.i32 $1.a.i32;
		z.i32 :=.i32 y.i32 -.i32 x.i32;
		ret.i32 z.i32;
	}
`

const disjoint = `
	.method static seq().i32 {
		x.i32 :=.i32 1.i32;
		invokestatic(io, "println", x.i32).V;
		y.i32 :=.i32 2.i32;
		ret.i32 y.i32;
	}
`

const deadDef = `
	.method static dead().i32 {
		y.i32 :=.i32 2.i32;
		x.i32 :=.i32 1.i32;
		ret.i32 y.i32;
	}
`

func parseMethod(t testing.TB, body string) *ir.Method {
	t.Helper()
	c, err := ir.Parse("class T {\n\timport io;\n" + body + "}\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return c.Methods[0]
}

func graphOf(t testing.TB, body string) (*ir.Method, *liveness.Result, *regalloc.InterferenceGraph) {
	m := parseMethod(t, body)
	live := liveness.Analyze(m)
	return m, live, regalloc.BuildGraph(m, live)
}

func TestFixedBudgetInfeasible(t *testing.T) {
	m, live, _ := graphOf(t, fiveLive)

	_, err := regalloc.Allocate(m, live, regalloc.Config{Registers: 2, ReportMinimum: true})
	var ie *regalloc.InfeasibleError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InfeasibleError, got %v", err)
	}
	if ie.K != 2 || ie.Registers != 2 || ie.Method != "five" {
		t.Errorf("expected failure at k=2 in five, got %+v", ie)
	}
	if ie.Minimum != 5 {
		t.Errorf("expected minimum 5, got %d", ie.Minimum)
	}
}

func TestAutomaticBudget(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		k         int
		registers int
	}{
		{"five_live", fiveLive, 5, 5},
		{"loop", loop, 1, 2},
		{"disjoint_lifetimes", disjoint, 1, 1},
		{"dead_definition", deadDef, 2, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, live, _ := graphOf(t, tt.src)
			a, err := regalloc.Allocate(m, live, regalloc.Config{Registers: regalloc.Minimum})
			if err != nil {
				t.Fatalf("Allocate failed: %v", err)
			}
			if a.K != tt.k || a.Registers != tt.registers {
				t.Errorf("expected k=%d registers=%d, got k=%d registers=%d", tt.k, tt.registers, a.K, a.Registers)
			}
		})
	}
}

func TestLoopVariableInterferesWithNothing(t *testing.T) {
	_, _, ig := graphOf(t, loop)
	if nodes := ig.Nodes(); len(nodes) != 1 || nodes[0] != "a" {
		t.Fatalf("expected a single vertex a, got %v", nodes)
	}
	if ig.Degree("a") != 0 {
		t.Errorf("expected a to interfere with nothing, got %v", ig.Neighbors("a"))
	}
}

func TestDeadDefinitionInterferes(t *testing.T) {
	_, _, ig := graphOf(t, deadDef)
	if !ig.Interferes("x", "y") {
		t.Error("expected a dead store to x to interfere with live y")
	}
}

func TestParametersArePinned(t *testing.T) {
	m, live, ig := graphOf(t, params)
	for _, n := range ig.Nodes() {
		if n == "a" || n == "b" {
			t.Errorf("expected parameter %s outside the graph", n)
		}
	}

	a, err := regalloc.Allocate(m, live, regalloc.Config{Registers: regalloc.Minimum})
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	if a.Descriptor["a"] != 1 || a.Descriptor["b"] != 2 {
		t.Errorf("expected a in 1 and b in 2, got %v", a.Descriptor)
	}
	for _, v := range []string{"x", "y", "z"} {
		if a.Descriptor[v] < 3 {
			t.Errorf("expected %s above the reserved slots, got %d", v, a.Descriptor[v])
		}
	}

	regalloc.Apply(m, a.Descriptor)
	for _, inst := range m.Insts {
		for _, v := range ir.Variables(inst) {
			if v.Reg != a.Descriptor[v.Name] {
				t.Errorf("%s: expected register %d, got %d", v.Name, a.Descriptor[v.Name], v.Reg)
			}
		}
	}
}

func TestBudgetBelowReservedSlots(t *testing.T) {
	m, live, _ := graphOf(t, params)
	_, err := regalloc.Allocate(m, live, regalloc.Config{Registers: 2})
	var ie *regalloc.InfeasibleError
	if !errors.As(err, &ie) || ie.K != -1 {
		t.Fatalf("expected InfeasibleError at k=-1, got %v", err)
	}

	if _, err := regalloc.Allocate(m, live, regalloc.Config{Registers: -3}); err == nil || errors.As(err, &ie) {
		t.Errorf("expected an invalid budget error, got %v", err)
	}
}

func TestColoringIsValid(t *testing.T) {
	for name, src := range map[string]string{"five": fiveLive, "loop": loop, "params": params, "dead": deadDef} {
		t.Run(name, func(t *testing.T) {
			_, _, ig := graphOf(t, src)
			k := ig.MinColors()
			colors, err := ig.Color(k)
			if err != nil {
				t.Fatalf("Color(%d) failed: %v", k, err)
			}
			for _, n := range ig.Nodes() {
				if ig.State(n) != regalloc.Colored {
					t.Errorf("%s: expected Colored, got %d", n, ig.State(n))
				}
				if colors[n] < 0 || colors[n] >= k {
					t.Errorf("%s: color %d outside [0,%d)", n, colors[n], k)
				}
				for _, nb := range ig.Neighbors(n) {
					if colors[n] == colors[nb] {
						t.Errorf("neighbors %s and %s share color %d", n, nb, colors[n])
					}
				}
			}
		})
	}
}

func TestColoringIsMonotone(t *testing.T) {
	_, _, ig := graphOf(t, fiveLive)
	lowest := ig.MinColors()
	for k := 0; k < lowest+4; k++ {
		_, err := ig.Color(k)
		if ok := err == nil; ok != (k >= lowest) {
			t.Errorf("Color(%d): success=%v, minimum is %d", k, ok, lowest)
		}
	}
}

func TestColoringIsDeterministic(t *testing.T) {
	_, _, ig := graphOf(t, params)
	first, _ := ig.Color(3)
	for i := 0; i < 10; i++ {
		again, _ := ig.Color(3)
		for n, c := range first {
			if again[n] != c {
				t.Fatalf("run %d: %s got %d, first run gave %d", i, n, again[n], c)
			}
		}
	}
}

func TestFallback(t *testing.T) {
	m := parseMethod(t, params)
	d, n := regalloc.Fallback(m)
	if n != 6 {
		t.Errorf("expected 6 slots (this, a, b, x, y, z), got %d", n)
	}
	seen := map[int]string{}
	for name, r := range d {
		if other, dup := seen[r]; dup {
			t.Errorf("%s and %s share register %d", name, other, r)
		}
		seen[r] = name
	}
	if d["a"] != 1 || d["b"] != 2 || d["x"] != 3 {
		t.Errorf("expected first-appearance order after parameters, got %v", d)
	}
}

func BenchmarkAllocateFiveLive(b *testing.B) {
	m := parseMethod(b, fiveLive)
	live := liveness.Analyze(m)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := regalloc.Allocate(m, live, regalloc.Config{Registers: regalloc.Minimum}); err != nil {
			b.Fatal(err)
		}
	}
}
