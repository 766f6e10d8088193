package pool

import (
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/genpool/pkg/errors"
)

func TestLayoutRoundTripPreservesHandles(t *testing.T) {
	p := New[payload]()
	a := p.Spawn(payload{Name: "a"})
	b := p.Spawn(payload{Name: "b"})
	c := p.Spawn(payload{Name: "c"})
	p.Free(b)
	p.Free(a)
	a2 := p.Spawn(payload{Name: "a2"})

	data, err := gojson.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Records": [
			{"Generation": 2, "Payload": {"Name": "a2"}},
			{"Generation": 1, "Payload": null},
			{"Generation": 1, "Payload": {"Name": "c"}}
		],
		"FreeStack": [1]
	}`, string(data))

	q := New[payload]()
	require.NoError(t, gojson.Unmarshal(data, q))

	assert.Equal(t, "a2", q.Borrow(a2).Name)
	assert.Equal(t, "c", q.Borrow(c).Name)
	assert.False(t, q.IsValidHandle(a))
	assert.False(t, q.IsValidHandle(b))
	assert.Equal(t, p.Stats(), q.Stats())

	// The free-list round-trips, so the next spawn matches.
	assert.Equal(t, p.Spawn(payload{}), q.Spawn(payload{}))
}

func TestLayoutEmptyPool(t *testing.T) {
	data, err := gojson.Marshal(New[int]())
	require.NoError(t, err)
	assert.JSONEq(t, `{"Records":[],"FreeStack":[]}`, string(data))
}

func TestLayoutValidate(t *testing.T) {
	one := 1
	tests := []struct {
		name   string
		layout Layout[int]
	}{
		{
			name:   "payload without generation",
			layout: Layout[int]{Records: []LayoutRecord[int]{{Generation: 0, Payload: &one}}},
		},
		{
			name:   "free index out of range",
			layout: Layout[int]{Records: []LayoutRecord[int]{{Generation: 1}}, FreeStack: []uint32{3}},
		},
		{
			name:   "duplicate free index",
			layout: Layout[int]{Records: []LayoutRecord[int]{{Generation: 1}}, FreeStack: []uint32{0, 0}},
		},
		{
			name:   "free index of occupied record",
			layout: Layout[int]{Records: []LayoutRecord[int]{{Generation: 1, Payload: &one}}, FreeStack: []uint32{0}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.layout.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeData))

			_, err = FromLayout(tt.layout)
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalErrorLeavesPoolUnchanged(t *testing.T) {
	p := FromSlice([]int{1, 2})
	before := p.Layout()

	err := gojson.Unmarshal([]byte(`{"Records":[{"Generation":1,"Payload":1}],"FreeStack":[0]}`), p)
	require.Error(t, err)
	assert.Equal(t, before, p.Layout())

	err = p.UnmarshalJSON([]byte(`{"Records":`))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
	assert.Equal(t, before, p.Layout())
}

func TestFromLayoutPinsUnlistedEmptyRecords(t *testing.T) {
	v := 7
	p, err := FromLayout(Layout[int]{
		Records: []LayoutRecord[int]{
			{Generation: 3, Payload: &v},
			{Generation: 2},
			{Generation: 5},
		},
		FreeStack: []uint32{2},
	}, WithName("loaded"))
	require.NoError(t, err)

	assert.Equal(t, "loaded", p.Name())
	assert.Equal(t, 7, p.Borrow(NewHandle[int](0, 3)))
	assert.Equal(t, uint32(1), p.AliveCount())
	assert.Equal(t, uint32(2), p.TotalCount())

	// Record 1 is neither alive nor free-listed and is never reused.
	assert.Equal(t, NewHandle[int](2, 6), p.Spawn(1))
	assert.Equal(t, NewHandle[int](3, 1), p.Spawn(2))
}

func TestLoadInvalidatesTickets(t *testing.T) {
	p := New[int](WithLeakPolicy(LeakIgnore))
	ticket, _ := p.TakeReserve(p.Spawn(1))

	require.NoError(t, p.UnmarshalJSON([]byte(`{"Records":[],"FreeStack":[]}`)))
	assert.Equal(t, 0, p.OutstandingTickets())
	assertPanicsWith(t, errors.ErrorTypeTicket, func() { p.PutBack(ticket, 1) })
}
