package link_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loom-ml/loom/internal/buffer"
	"github.com/loom-ml/loom/internal/cache"
	"github.com/loom-ml/loom/internal/graph"
	"github.com/loom-ml/loom/internal/link"
	"github.com/loom-ml/loom/internal/ops"
)

// unaryCore supplies the typing shared by the fake single-input
// operations below. Each fake adds the capability mix under test.
type unaryCore struct{ name string }

func (o unaryCore) Name() string { return o.name }
func (o unaryCore) Hash() uint64 { return xxhash.Sum64String("test:" + o.name) }

func (o unaryCore) OutputTypes(inputs []graph.Type) ([]graph.Type, error) {
	if len(inputs) != 1 {
		return nil, fmt.Errorf("%s takes 1 input, got %d", o.name, len(inputs))
	}
	return []graph.Type{inputs[0].Clone()}, nil
}

// computeOnlyOp doubles its input and can only run interpreted.
type computeOnlyOp struct{ unaryCore }

func newComputeOnly() *computeOnlyOp { return &computeOnlyOp{unaryCore{"double"}} }

func (o *computeOnlyOp) Caps() graph.Capabilities { return graph.Capabilities{Compute: true} }

func (o *computeOnlyOp) Equal(other graph.Op) bool {
	c, ok := other.(*computeOnlyOp)
	return ok && c.name == o.name
}

func (o *computeOnlyOp) Compute(inputs, outputs []graph.Storage) error {
	xs := buffer.View[float32](inputs[0])
	ys := buffer.View[float32](outputs[0])
	for i := range ys {
		ys[i] = 2 * xs[i]
	}
	return nil
}

// sourceOnlyOp negates its input and can only lower to kernel source.
type sourceOnlyOp struct{ unaryCore }

func newSourceOnly() *sourceOnlyOp { return &sourceOnlyOp{unaryCore{"flip"}} }

func (o *sourceOnlyOp) Caps() graph.Capabilities { return graph.Capabilities{EmitSource: true} }

func (o *sourceOnlyOp) Equal(other graph.Op) bool {
	s, ok := other.(*sourceOnlyOp)
	return ok && s.name == o.name
}

func (o *sourceOnlyOp) EmitSource(e graph.SourceEmitter, inputs, outputs []string) error {
	e.Emit("neg", outputs[0], inputs[0])
	return nil
}

// offsetOp adds ten to its input through a self-built thunk.
type offsetOp struct{ unaryCore }

func newOffset() *offsetOp { return &offsetOp{unaryCore{"offset"}} }

func (o *offsetOp) Caps() graph.Capabilities { return graph.Capabilities{BuildThunk: true} }

func (o *offsetOp) Equal(other graph.Op) bool {
	f, ok := other.(*offsetOp)
	return ok && f.name == o.name
}

func (o *offsetOp) BuildThunk(inputs, outputs []graph.Storage) (func() error, error) {
	return func() error {
		xs := buffer.View[float32](inputs[0])
		ys := buffer.View[float32](outputs[0])
		for i := range ys {
			ys[i] = xs[i] + 10
		}
		return nil
	}, nil
}

// mismatchOp computes an identity copy but emits a negation, so the two
// lowering strategies produce different results on purpose.
type mismatchOp struct{ unaryCore }

func newMismatch() *mismatchOp { return &mismatchOp{unaryCore{"mismatch"}} }

func (o *mismatchOp) Caps() graph.Capabilities {
	return graph.Capabilities{Compute: true, EmitSource: true}
}

func (o *mismatchOp) Equal(other graph.Op) bool {
	m, ok := other.(*mismatchOp)
	return ok && m.name == o.name
}

func (o *mismatchOp) Compute(inputs, outputs []graph.Storage) error {
	copy(outputs[0].Bytes(), inputs[0].Bytes())
	return nil
}

func (o *mismatchOp) EmitSource(e graph.SourceEmitter, inputs, outputs []string) error {
	e.Emit("neg", outputs[0], inputs[0])
	return nil
}

// inertOp declares no execution capability at all.
type inertOp struct{ unaryCore }

func newInert() *inertOp { return &inertOp{unaryCore{"inert"}} }

func (o *inertOp) Caps() graph.Capabilities { return graph.Capabilities{} }

func (o *inertOp) Equal(other graph.Op) bool {
	i, ok := other.(*inertOp)
	return ok && i.name == o.name
}

// arithGraph builds (x+y)*x and neg(y) over f32[4] and declares both as
// outputs.
func arithGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New()
	ft := graph.T(graph.Float32, 4)
	x, err := g.Input(ft, "x")
	require.NoError(t, err)
	y, err := g.Input(ft, "y")
	require.NoError(t, err)

	sum, err := g.Apply(ops.NewAdd(), x.ID(), y.ID())
	require.NoError(t, err)
	prod, err := g.Apply(ops.NewMul(), sum.Outputs()[0], x.ID())
	require.NoError(t, err)
	neg, err := g.Apply(ops.NewNeg(), y.ID())
	require.NoError(t, err)

	require.NoError(t, g.Output(prod.Outputs()[0]))
	require.NoError(t, g.Output(neg.Outputs()[0]))
	return g
}

// unaryGraph wires a single node of op over f32[2].
func unaryGraph(t *testing.T, op graph.Op) *graph.Graph {
	t.Helper()
	g := graph.New()
	x, err := g.Input(graph.T(graph.Float32, 2), "x")
	require.NoError(t, err)
	a, err := g.Apply(op, x.ID())
	require.NoError(t, err)
	require.NoError(t, g.Output(a.Outputs()[0]))
	return g
}

// mirrorRequest binds a request to the graph's declared inputs and
// outputs, position by position.
func mirrorRequest(g *graph.Graph) link.Request {
	req := link.Request{Graph: g}
	for _, v := range g.Inputs() {
		req.Inputs = append(req.Inputs, link.In{Value: v})
	}
	for _, v := range g.Outputs() {
		req.Outputs = append(req.Outputs, link.Out{Value: v})
	}
	return req
}

func feed(t *testing.T, res *link.Result, bufs ...*buffer.Buffer) {
	t.Helper()
	require.Len(t, bufs, len(res.Inputs))
	for i, b := range bufs {
		require.NoError(t, res.Inputs[i].Set(b))
	}
}

func f32s(t *testing.T, vals ...float32) *buffer.Buffer {
	t.Helper()
	b, err := buffer.Of(graph.Shape{len(vals)}, vals...)
	require.NoError(t, err)
	return b
}

func TestFused_RunsWholeGraphKernel(t *testing.T) {
	g := arithGraph(t)
	res, err := link.NewFused(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)
	require.NotNil(t, res.Program)
	assert.Equal(t, "main", res.Program.Name)

	feed(t, res, f32s(t, 1, 2, 3, 4), f32s(t, 5, 6, 7, 8))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{6, 16, 30, 48}, res.Outputs[0].Get().AsFloat32())
	assert.Equal(t, []float32{-5, -6, -7, -8}, res.Outputs[1].Get().AsFloat32())

	// Fresh inputs feed the same linked kernel on the next run.
	feed(t, res, f32s(t, 2, 2, 2, 2), f32s(t, 0, 0, 0, 0))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{4, 4, 4, 4}, res.Outputs[0].Get().AsFloat32())
	assert.Equal(t, []float32{0, 0, 0, 0}, res.Outputs[1].Get().AsFloat32())
}

func TestDispatch_MatchesFused(t *testing.T) {
	g := arithGraph(t)
	x := f32s(t, 1.5, -2, 0.25, 8)
	y := f32s(t, -3, 4.5, 0, -1)

	fused, err := link.NewFused(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)
	feed(t, fused, x, y)
	require.NoError(t, fused.Thunk())

	disp, err := link.NewDispatch(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)
	assert.Nil(t, disp.Program)
	feed(t, disp, x, y)
	require.NoError(t, disp.Thunk())

	for j := range fused.Outputs {
		assert.True(t, fused.Outputs[j].Get().Equal(disp.Outputs[j].Get()), "output %d differs", j)
	}
}

func TestDispatch_LowersSourceOnlyNodes(t *testing.T) {
	g := unaryGraph(t, newSourceOnly())
	res, err := link.NewDispatch(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	feed(t, res, f32s(t, 3, -7))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{-3, 7}, res.Outputs[0].Get().AsFloat32())
}

func TestDispatch_RunsSelfBuiltThunks(t *testing.T) {
	g := unaryGraph(t, newOffset())
	res, err := link.NewDispatch(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	feed(t, res, f32s(t, 1, -4))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{11, 6}, res.Outputs[0].Get().AsFloat32())
}

func TestFused_RejectsComputeOnlyNodes(t *testing.T) {
	g := graph.New()
	x, err := g.Input(graph.T(graph.Float32, 2), "x")
	require.NoError(t, err)
	a, err := g.Apply(newComputeOnly(), x.ID())
	require.NoError(t, err)
	b, err := g.Apply(newComputeOnly(), a.Outputs()[0])
	require.NoError(t, err)
	require.NoError(t, g.Output(b.Outputs()[0]))

	_, err = link.NewFused(link.Options{}).Link(mirrorRequest(g))
	var uerr *link.UnsupportedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "double", uerr.Op)
	assert.Equal(t, "emit kernel source", uerr.Need)

	// The audit reports every failing node, not just the first.
	assert.Equal(t, 2, strings.Count(err.Error(), "emit kernel source"))
}

func TestAuto_FallsBackToDispatch(t *testing.T) {
	g := unaryGraph(t, newComputeOnly())
	res, err := link.NewAuto(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)
	assert.Nil(t, res.Program)

	feed(t, res, f32s(t, 1.5, -3))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{3, -6}, res.Outputs[0].Get().AsFloat32())
}

func TestAuto_PrefersFusedWhenPossible(t *testing.T) {
	g := arithGraph(t)
	res, err := link.NewAuto(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)
	assert.NotNil(t, res.Program)
}

func TestAuto_SurfacesDispatchRejection(t *testing.T) {
	g := unaryGraph(t, newInert())
	_, err := link.NewAuto(link.Options{}).Link(mirrorRequest(g))
	var uerr *link.UnsupportedError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "inert", uerr.Op)
	assert.Equal(t, "execute under dispatch", uerr.Need)
}

func TestCheck_AgreesOnConsistentOps(t *testing.T) {
	g := arithGraph(t)
	res, err := link.NewCheck(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)
	require.NotNil(t, res.Program)

	feed(t, res, f32s(t, 1, 2, 3, 4), f32s(t, 5, 6, 7, 8))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{6, 16, 30, 48}, res.Outputs[0].Get().AsFloat32())
	assert.Equal(t, []float32{-5, -6, -7, -8}, res.Outputs[1].Get().AsFloat32())
}

func TestCheck_ReportsDisagreement(t *testing.T) {
	g := unaryGraph(t, newMismatch())
	res, err := link.NewCheck(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	feed(t, res, f32s(t, 1, -2))
	err = res.Thunk()
	var derr *link.DisagreementError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, g.Outputs()[0], derr.Value)
	assert.Equal(t, 0, derr.Index)
	assert.Equal(t, "-1", derr.Fused)
	assert.Equal(t, "1", derr.Plain)
}

func TestLink_ValidatesRequest(t *testing.T) {
	g := arithGraph(t)
	good := mirrorRequest(g)

	swapped := mirrorRequest(g)
	swapped.Inputs[0], swapped.Inputs[1] = swapped.Inputs[1], swapped.Inputs[0]

	missingOut := mirrorRequest(g)
	missingOut.Outputs = missingOut.Outputs[:1]

	wrongOut := mirrorRequest(g)
	wrongOut.Outputs[1].Value = good.Inputs[0].Value

	cases := []struct {
		name string
		req  link.Request
		want string
	}{
		{"nil graph", link.Request{}, "nil graph"},
		{"missing input", link.Request{Graph: g, Outputs: good.Outputs}, "binds 0 inputs"},
		{"swapped inputs", swapped, "input 0 binds value"},
		{"missing output", missingOut, "binds 1 outputs"},
		{"wrong output value", wrongOut, "output 1 binds value"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := link.NewFused(link.Options{}).Link(tc.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestThunk_RequiresEveryInput(t *testing.T) {
	g := arithGraph(t)
	res, err := link.NewFused(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	require.NoError(t, res.Inputs[0].Set(f32s(t, 1, 2, 3, 4)))
	err = res.Thunk()
	assert.ErrorIs(t, err, link.ErrUnsetInput)
	assert.Contains(t, err.Error(), "input 1")
}

func TestSlot_ConvertsPermissiveMismatches(t *testing.T) {
	g := unaryGraph(t, ops.NewNeg())
	res, err := link.NewFused(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	wide, err := buffer.Of(graph.Shape{2}, 1.5, -2.0)
	require.NoError(t, err)
	require.NoError(t, res.Inputs[0].Set(wide))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{-1.5, 2}, res.Outputs[0].Get().AsFloat32())

	// The slot stored a converted copy, so mutating the caller's buffer
	// does not change the next run.
	wide.AsFloat64()[0] = 99
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{-1.5, 2}, res.Outputs[0].Get().AsFloat32())
}

func TestSlot_StrictRejectsMismatches(t *testing.T) {
	g := unaryGraph(t, ops.NewNeg())
	req := mirrorRequest(g)
	req.Inputs[0].Strict = true
	res, err := link.NewFused(link.Options{}).Link(req)
	require.NoError(t, err)

	wide, err := buffer.Of(graph.Shape{2}, 1.5, -2.0)
	require.NoError(t, err)
	err = res.Inputs[0].Set(wide)
	var terr *link.TypeError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, graph.Float32, terr.Want.DType)
	assert.Equal(t, graph.Float64, terr.Got.DType)
}

func TestSlot_RejectsShapeMismatch(t *testing.T) {
	g := unaryGraph(t, ops.NewNeg())
	res, err := link.NewFused(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	err = res.Inputs[0].Set(f32s(t, 1, 2, 3))
	var terr *link.TypeError
	require.ErrorAs(t, err, &terr)

	require.Error(t, res.Inputs[0].Set(nil))
}

func TestSlot_TakeTransfersOwnership(t *testing.T) {
	g := unaryGraph(t, ops.NewNeg())
	res, err := link.NewFused(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	feed(t, res, f32s(t, 1, 2))
	require.NoError(t, res.Thunk())
	taken := res.Outputs[0].Take()
	assert.Nil(t, res.Outputs[0].Get())
	assert.Equal(t, []float32{-1, -2}, taken.AsFloat32())

	// The next run allocates fresh storage instead of scribbling on the
	// taken buffer.
	feed(t, res, f32s(t, 5, 6))
	require.NoError(t, res.Thunk())
	assert.Equal(t, []float32{-1, -2}, taken.AsFloat32())
	assert.Equal(t, []float32{-5, -6}, res.Outputs[0].Get().AsFloat32())
	assert.NotSame(t, taken, res.Outputs[0].Get())
}

func TestSlot_ReusedWithoutTake(t *testing.T) {
	g := unaryGraph(t, ops.NewNeg())
	res, err := link.NewDispatch(link.Options{}).Link(mirrorRequest(g))
	require.NoError(t, err)

	feed(t, res, f32s(t, 1, 2))
	require.NoError(t, res.Thunk())
	kept := res.Outputs[0].Get()

	feed(t, res, f32s(t, 5, 6))
	require.NoError(t, res.Thunk())
	assert.Same(t, kept, res.Outputs[0].Get())
	assert.Equal(t, []float32{-5, -6}, kept.AsFloat32())
}

func TestLink_PassthroughAndRepeatedOutputs(t *testing.T) {
	build := func(t *testing.T) *graph.Graph {
		g := graph.New()
		x, err := g.Input(graph.T(graph.Float32, 2), "x")
		require.NoError(t, err)
		neg, err := g.Apply(ops.NewNeg(), x.ID())
		require.NoError(t, err)
		require.NoError(t, g.Output(neg.Outputs()[0]))
		require.NoError(t, g.Output(x.ID()))
		require.NoError(t, g.Output(neg.Outputs()[0]))
		return g
	}
	for _, name := range []string{"fused", "dispatch"} {
		t.Run(name, func(t *testing.T) {
			l, err := link.ByName(name, link.Options{})
			require.NoError(t, err)
			res, err := l.Link(mirrorRequest(build(t)))
			require.NoError(t, err)

			feed(t, res, f32s(t, 1, -2))
			require.NoError(t, res.Thunk())
			assert.Equal(t, []float32{-1, 2}, res.Outputs[0].Get().AsFloat32())
			assert.Equal(t, []float32{1, -2}, res.Outputs[1].Get().AsFloat32())
			assert.Equal(t, []float32{-1, 2}, res.Outputs[2].Get().AsFloat32())
		})
	}
}

func TestByName_SelectsStrategies(t *testing.T) {
	for name, want := range map[string]string{
		"fused":    "fused",
		"dispatch": "dispatch",
		"check":    "check",
		"auto":     "auto",
		"":         "auto",
	} {
		l, err := link.ByName(name, link.Options{})
		require.NoError(t, err)
		assert.Equal(t, want, l.Name())
	}

	_, err := link.ByName("jit", link.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown linker")
}

func TestFused_ReusesCachedArtifacts(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := cache.New(cache.Config{Fs: fs, Root: "/cache", Salt: "link-test"})
	require.NoError(t, err)
	opts := link.Options{Cache: c}

	for i := 0; i < 2; i++ {
		res, err := link.NewFused(opts).Link(mirrorRequest(arithGraph(t)))
		require.NoError(t, err)
		feed(t, res, f32s(t, 1, 2, 3, 4), f32s(t, 5, 6, 7, 8))
		require.NoError(t, res.Thunk())
		assert.Equal(t, []float32{6, 16, 30, 48}, res.Outputs[0].Get().AsFloat32())
	}

	// Both links produced the same unit text, so one artifact serves
	// them all.
	assert.Equal(t, 1, countArtifacts(t, fs, c.Dir()))
}

func TestDispatch_SharesNodeKernelsAcrossGraphs(t *testing.T) {
	fs := afero.NewMemMapFs()
	c, err := cache.New(cache.Config{Fs: fs, Root: "/cache", Salt: "link-test"})
	require.NoError(t, err)
	opts := link.Options{Cache: c}

	for i := 0; i < 2; i++ {
		res, err := link.NewDispatch(opts).Link(mirrorRequest(unaryGraph(t, newSourceOnly())))
		require.NoError(t, err)
		feed(t, res, f32s(t, 4, -1))
		require.NoError(t, res.Thunk())
		assert.Equal(t, []float32{-4, 1}, res.Outputs[0].Get().AsFloat32())
	}
	assert.Equal(t, 1, countArtifacts(t, fs, c.Dir()))
}

func countArtifacts(t *testing.T, fs afero.Fs, dir string) int {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	n := 0
	for _, fi := range infos {
		if strings.HasSuffix(fi.Name(), ".lkp") {
			n++
		}
	}
	return n
}
