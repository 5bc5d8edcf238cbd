// Package liveness - Tests for the dataflow fixed point
package liveness_test

import (
	"reflect"
	"testing"

	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/ir"
	"github.com/pedrogomes29/JmmCompiler-sub000/pkg/liveness"
)

func parseMethod(t *testing.T, body string) *ir.Method {
	t.Helper()
	c, err := ir.Parse("class T {\n" + body + "}\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return c.Methods[0]
}

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

func TestLoopLiveness(t *testing.T) {
	m := parseMethod(t, loop)
	r := liveness.Analyze(m)

	tests := []struct {
		inst    int
		in, out []string
	}{
		{0, []string{}, []string{"a"}},
		{1, []string{"a"}, []string{"a"}},
		{2, []string{"a"}, []string{"a"}},
		{3, []string{"a"}, []string{"a"}},
		{4, []string{"a"}, []string{}},
	}
	for _, tt := range tests {
		if got := r.In[tt.inst].Sorted(); !reflect.DeepEqual(got, tt.in) {
			t.Errorf("in[%d]: expected %v, got %v", tt.inst, tt.in, got)
		}
		if got := r.Out[tt.inst].Sorted(); !reflect.DeepEqual(got, tt.out) {
			t.Errorf("out[%d]: expected %v, got %v", tt.inst, tt.out, got)
		}
	}
	if err := r.Verify(m); err != nil {
		t.Error(err)
	}
}

func TestDefUse(t *testing.T) {
	tests := []struct {
		src      string
		def, use []string
	}{
		{"a.i32 :=.i32 b.i32 +.i32 1.i32", []string{"a"}, []string{"b"}},
		{"arr.array.i32[i.i32] :=.i32 v.i32", []string{}, []string{"arr", "i", "v"}},
		{"x.i32 :=.i32 arr.array.i32[j.i32]", []string{"x"}, []string{"arr", "j"}},
		{"putfield(this.T, f.i32, v.i32).V", []string{}, []string{"v"}},
		{"t0.i32 :=.i32 getfield(this.T, f.i32).i32", []string{"t0"}, []string{}},
		{"invokestatic(io, \"println\", $0.p.i32, 3.i32).V", []string{}, []string{"p"}},
		{"if (!.bool c.bool) goto L", []string{}, []string{"c"}},
		{"ret.V", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			inst, err := ir.ParseInst(tt.src)
			if err != nil {
				t.Fatalf("ParseInst failed: %v", err)
			}
			def, use := liveness.DefUse(inst)
			if got := def.Sorted(); !reflect.DeepEqual(got, tt.def) {
				t.Errorf("def: expected %v, got %v", tt.def, got)
			}
			if got := use.Sorted(); !reflect.DeepEqual(got, tt.use) {
				t.Errorf("use: expected %v, got %v", tt.use, got)
			}
		})
	}
}

const branches = `
	.method static pick(a.i32, b.i32).i32 {
		x.i32 :=.i32 $0.a.i32 *.i32 2.i32;
		y.i32 :=.i32 $1.b.i32 +.i32 x.i32;
		if ($0.a.i32 <.bool $1.b.i32) goto ELSE_0;
		z.i32 :=.i32 x.i32;
		goto ENDIF_0;
	ELSE_0:
		z.i32 :=.i32 y.i32;
	ENDIF_0:
		ret.i32 z.i32;
		dead.i32 :=.i32 1.i32;
		ret.i32 dead.i32;
	}
`

func TestFixedPointEquations(t *testing.T) {
	for name, src := range map[string]string{"loop": loop, "branches": branches} {
		t.Run(name, func(t *testing.T) {
			m := parseMethod(t, src)
			r := liveness.Analyze(m)
			if err := r.Verify(m); err != nil {
				t.Fatal(err)
			}
			if len(r.Order) != len(m.Insts) {
				t.Errorf("expected every instruction visited, got order %v", r.Order)
			}
		})
	}
}

func TestUnreachableCodeIsAnalyzed(t *testing.T) {
	m := parseMethod(t, branches)
	r := liveness.Analyze(m)

	last := len(m.Insts) - 1
	if !r.In[last].Has("dead") {
		t.Errorf("expected dead live into the unreachable return, got %v", r.In[last].Sorted())
	}
	if got := r.Order[len(r.Order)-2:]; !reflect.DeepEqual(got, []int{last - 1, last}) {
		t.Errorf("expected unreachable instructions visited last, got %v", r.Order)
	}
	if got := r.LiveIn().Sorted(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected only parameters live on entry, got %v", got)
	}
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	m := parseMethod(t, branches)
	first := liveness.Analyze(m)
	second := liveness.Analyze(m)
	for i := range m.Insts {
		if !first.In[i].Equal(second.In[i]) || !first.Out[i].Equal(second.Out[i]) {
			t.Errorf("instruction %d: sets changed between runs", i)
		}
	}
	if first.Passes < 2 {
		t.Errorf("expected a final pass that changes nothing, got %d passes", first.Passes)
	}
}

func TestSet(t *testing.T) {
	s := liveness.NewSet("b", "a")
	o := s.Clone()
	o.Add("c")
	if s.Has("c") {
		t.Error("Clone shares storage with the original")
	}
	s.Union(o)
	if !s.Equal(liveness.NewSet("a", "b", "c")) {
		t.Errorf("expected {a b c}, got %v", s.Sorted())
	}
}

func BenchmarkAnalyzeLoop(b *testing.B) {
	c, err := ir.Parse("class T {\n" + loop + "}\n")
	if err != nil {
		b.Fatal(err)
	}
	m := c.Methods[0]
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		liveness.Analyze(m)
	}
}
