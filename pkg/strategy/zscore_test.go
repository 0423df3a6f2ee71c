package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZScore(t *testing.T) {
	tests := []struct {
		name   string
		points []string
		want   string
		err    error
	}{
		{"not ready", []string{"1", "2"}, "", errNotReady},
		{"flat window", []string{"5", "5", "5"}, "", errFlat},
		{"above mean", []string{"2", "3", "4"}, "1", nil},
		{"below mean", []string{"4", "3", "2"}, "-1", nil},
		{"rolls window", []string{"100", "2", "3", "4"}, "1", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := newZScore(3)
			for _, v := range tt.points {
				z.add(p(v))
			}

			value, err := z.value()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, value.String())
		})
	}
}
