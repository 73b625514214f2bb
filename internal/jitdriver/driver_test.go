package jitdriver

import (
	"testing"

	"github.com/JohnDoe117/mjit/internal/metainterp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetParamRejectsUnknownName(t *testing.T) {
	d := New(Spec{Name: "s"})
	err := d.SetParam("not_a_real_param", 1)
	assert.Error(t, err)
}

func TestSetParamAppliesEachKnownTunable(t *testing.T) {
	d := New(Spec{Name: "s"})
	require.NoError(t, d.SetParam("threshold", 5))
	require.NoError(t, d.SetParam("trace_limit", 100))
	require.NoError(t, d.SetParam("inlining", true))
	require.NoError(t, d.SetParam("enable_opts", []string{"cse"}))
	require.NoError(t, d.SetParam("compile_threshold", 3))

	assert.Equal(t, 5, d.params.Threshold)
	assert.Equal(t, 100, d.params.TraceLimit)
	assert.True(t, d.params.Inlining)
	assert.Equal(t, []string{"cse"}, d.params.EnableOpts)
	assert.Equal(t, int64(3), d.params.CompileThreshold)
}

func TestDefaultParamsMatchSpec(t *testing.T) {
	p := defaultParams()
	assert.Equal(t, 1000, p.Threshold)
	assert.Equal(t, 4096, p.TraceLimit)
	assert.Equal(t, int64(10), p.CompileThreshold)
}

// TestTokensStartsEmpty checks the accessor dump tooling relies on reflects
// a freshly constructed driver's state rather than a nil map that would
// panic a caller ranging over it.
func TestTokensStartsEmpty(t *testing.T) {
	d := New(Spec{Name: "s"}, WithInterp(metainterp.New(metainterp.NewCallTable())))
	assert.Empty(t, d.Tokens())
}
