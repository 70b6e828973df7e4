package columnar

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"
)

func TestFilter(t *testing.T) {
	cases := []struct {
		match    []string
		unmatch  []string
		key      string
		expected bool
	}{
		{nil, nil, "ReconstructedParticles/ReconstructedParticles.energy", true},
		{nil, nil, "PARAMETERS/key", false},
		{[]string{"Reco"}, nil, "ReconstructedParticles/ReconstructedParticles.energy", true},
		{[]string{"Particles"}, nil, "ReconstructedParticles/ReconstructedParticles.energy", false},
		{[]string{".*Particles"}, nil, "ReconstructedParticles/ReconstructedParticles.energy", true},
		{[]string{"MC", "Reco"}, nil, "MCParticles/MCParticles.PDG", true},
		{nil, []string{"MC"}, "MCParticles/MCParticles.PDG", false},
		{[]string{"MC"}, []string{"MCParticles/MCParticles.PDG"}, "MCParticles/MCParticles.PDG", false},
		{[]string{"MC"}, []string{"MCParticles/MCParticles.PDG"}, "MCParticles/MCParticles.time", true},
	}

	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			f, err := NewFilter(tc.match, tc.unmatch)
			require.NoError(t, err)
			require.Equal(t, tc.expected, f.Accept(tc.key))
		})
	}
}

func TestFilterInvalid(t *testing.T) {
	_, err := NewFilter([]string{"("}, nil)
	require.Error(t, err)
}

func TestFlatten(t *testing.T) {
	a := Array{Events: [][]float64{{1, 2}, {}, {3}}}
	require.Equal(t, []float64{1, 2, 3}, a.Flatten())
	require.Empty(t, Array{}.Flatten())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		value    any
		expected Kind
	}{
		{int32(0), Int},
		{uint64(0), Int},
		{true, Int},
		{float32(0), Float},
		{[]float64{}, Float},
		{[][]int16{}, Int},
		{[4]float32{}, Float},
		{"", String},
		{[]string{}, String},
		{struct{}{}, Other},
	}

	for _, tc := range cases {
		t.Run("", func(t *testing.T) {
			require.Equal(t, tc.expected, kindOf(reflect.TypeOf(tc.value)))
		})
	}
}

func TestAppendValues(t *testing.T) {
	require.Equal(t, []float64{3}, appendValues(nil, reflect.ValueOf(int8(3))))
	require.Equal(t, []float64{1, 0}, appendValues(nil, reflect.ValueOf([]bool{true, false})))
	require.Equal(t, []float64{1, 2, 3}, appendValues(nil, reflect.ValueOf([][]uint16{{1}, {2, 3}})))
	require.Equal(t, []float64{}, appendValues(nil, reflect.ValueOf([]float32{})))
}

type vector3f struct {
	X float32 `groot:"x"`
	Y float32 `groot:"y"`
	Z float32 `groot:"z"`
}

type particle struct {
	Type       int32      `groot:"type"`
	Energy     float32    `groot:"energy"`
	Momentum   vector3f   `groot:"momentum"`
	Covariance [3]float32 `groot:"covMatrix[3]"`
	Name       string     `groot:"name"`
	Tracks     []vector3f `groot:"tracks"`
	Charge     float32
	seen       bool
}

func TestMembers(t *testing.T) {
	expected := []member{
		{name: "type", index: []int{0}, kind: Int},
		{name: "energy", index: []int{1}, kind: Float},
		{name: "momentum.x", index: []int{2, 0}, kind: Float},
		{name: "momentum.y", index: []int{2, 1}, kind: Float},
		{name: "momentum.z", index: []int{2, 2}, kind: Float},
		{name: "covMatrix", index: []int{3}, kind: Float},
		{name: "name", index: []int{4}, kind: String},
		{name: "tracks", index: []int{5}, kind: Other},
		{name: "Charge", index: []int{6}, kind: Float},
	}

	require.Equal(t, expected, members(elemType(reflect.TypeOf([]particle{}))))
	require.Equal(t, reflect.TypeOf(particle{}), elemType(reflect.TypeOf([2][]particle{})))
}

func TestMemberValues(t *testing.T) {
	particles := []particle{
		{Type: 11, Energy: 1.5, Momentum: vector3f{X: 1, Y: 2, Z: 3}, Covariance: [3]float32{1, 0, 1}},
		{Type: -211, Energy: 4, Momentum: vector3f{X: -1, Y: 0, Z: 8}, seen: true},
	}
	v := reflect.ValueOf(particles)

	require.Equal(t, []float64{11, -211}, memberValues(nil, v, []int{0}))
	require.Equal(t, []float64{1.5, 4}, memberValues(nil, v, []int{1}))
	require.Equal(t, []float64{2, 0}, memberValues(nil, v, []int{2, 1}))
	require.Equal(t, []float64{1, 0, 1, 0, 0, 0}, memberValues(nil, v, []int{3}))
	require.Equal(t, []float64{}, memberValues(nil, reflect.ValueOf([]particle{}), []int{1}))

	// a single struct, not a vector of them
	require.Equal(t, []float64{8}, memberValues(nil, reflect.ValueOf(particles[1]), []int{2, 2}))

	require.Equal(t, []float64{1, 2}, memberValues(nil, reflect.ValueOf([]int32{1, 2}), nil))
}

func TestLoad(t *testing.T) {
	sources := map[string]Source{
		"a.root": NewMemorySource(map[string]Array{
			"Hits/Hits.energy": {Kind: Float, Events: [][]float64{{1, 2}}},
			"Hits/Hits.cellID": {Kind: Int, Events: [][]float64{{7}}},
			"PARAMETERS/x":     {Kind: String},
		}),
		"b.root": NewMemorySource(map[string]Array{
			"Hits/Hits.energy": {Kind: Float, Events: [][]float64{{1, 3}}},
		}),
	}
	open := func(path string) (Source, error) {
		return sources[path], nil
	}

	filter, err := NewFilter(nil, []string{".*cellID"})
	require.NoError(t, err)

	ds, err := Load(t.Context(), []string{"a.root", "b.root"}, filter, open)
	require.NoError(t, err)

	require.Equal(t, []string{"a.root", "b.root"}, ds.Files)
	require.Len(t, ds.Arrays, 1)
	require.Len(t, ds.Arrays["Hits/Hits.energy"], 2)
	require.Equal(t, []float64{1, 3}, ds.Arrays["Hits/Hits.energy"][1].Events[0])
}

func TestLoadOpenError(t *testing.T) {
	boom := errors.New("not a root file")
	open := func(path string) (Source, error) {
		return nil, boom
	}

	_, err := Load(t.Context(), []string{"a.root"}, Filter{}, open)
	require.ErrorIs(t, err, boom)
}

func TestOpenROOT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.root")
	writeTestTree(t, path)

	src, err := OpenROOT(path)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, []string{"energy", "n", "nhits"}, src.Keys())

	n, err := src.Read("n")
	require.NoError(t, err)
	require.Equal(t, Int, n.Kind)
	require.Equal(t, [][]float64{{0}, {1}, {2}}, n.Events)

	energy, err := src.Read("energy")
	require.NoError(t, err)
	require.Equal(t, Float, energy.Kind)
	require.Equal(t, [][]float64{{}, {0.5}, {1.5, 2.5}}, energy.Events)

	_, err = src.Read("missing")
	require.ErrorIs(t, err, ErrNoKey)
}

func writeTestTree(t *testing.T, path string) {
	f, err := groot.Create(path)
	require.NoError(t, err)

	var (
		n      int32
		nhits  int32
		energy []float64
	)

	w, err := rtree.NewWriter(f, TreeName, []rtree.WriteVar{
		{Name: "n", Value: &n},
		{Name: "nhits", Value: &nhits},
		{Name: "energy", Value: &energy, Count: "nhits"},
	})
	require.NoError(t, err)

	for i := range 3 {
		n = int32(i)
		nhits = int32(i)
		energy = energy[:0]
		for j := range i {
			energy = append(energy, float64(i-1+j)+0.5)
		}
		_, err := w.Write()
		require.NoError(t, err)
	}

	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}
