package health

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"liveview/relay/internal/codes"
)

type fakeRegistry int

func (f fakeRegistry) Len() int { return int(f) }

type fakeTransport struct{ closed bool }

func (f fakeTransport) Closed() bool { return f.closed }

func TestCheckAll(t *testing.T) {
	tests := []struct {
		name    string
		live    int
		closed  bool
		wantOK  bool
		failing string
	}{
		{name: "idle", live: 0, wantOK: true},
		{name: "busy but below limit", live: codes.Capacity / 2, wantOK: true},
		{name: "registry nearly full", live: codes.Capacity - 10, wantOK: false, failing: "code_registry"},
		{name: "hub closed", live: 3, closed: true, wantOK: false, failing: "transport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := CheckAll(context.Background(), fakeRegistry(tt.live), fakeTransport{closed: tt.closed})
			assert.Equal(t, tt.wantOK, st.OK)
			assert.Len(t, st.Checks, 2)
			for _, c := range st.Checks {
				if c.Name == tt.failing {
					assert.False(t, c.OK)
					assert.NotEmpty(t, c.Error)
				} else {
					assert.True(t, c.OK, c.Name)
				}
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	st := CheckAll(context.Background(), fakeRegistry(0), fakeTransport{closed: true})
	s := st.String()
	assert.Contains(t, s, "Health: FAIL")
	assert.Contains(t, s, "✓ code_registry")
	assert.Contains(t, s, "✗ transport")
	assert.Contains(t, s, "hub closed")
}
