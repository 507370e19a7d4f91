package escrow

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
		err  error
	}{
		{"1.0", Unit, nil},
		{"1", Unit, nil},
		{"0.25", Unit / 4, nil},
		{".5", Unit / 2, nil},
		{"0.00000001", 1, nil},
		{" 12.5 ", 12*Unit + Unit/2, nil},
		{"", 0, ErrInvalidAmount},
		{"1.", 0, ErrInvalidAmount},
		{"-1", 0, ErrInvalidAmount},
		{"abc", 0, ErrInvalidAmount},
		{"0.000000001", 0, ErrInvalidAmount},
		{"1e3", 0, ErrInvalidAmount},
		{"1.2.3", 0, ErrInvalidAmount},
		{"184467440737.09551615", ^Amount(0), nil},
		{"184467440737.09551616", 0, ErrOverflow},
		{"999999999999999999999", 0, ErrOverflow},
		{"184467440738", 0, ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "1", Unit.String())
	assert.Equal(t, "0.25", (Unit / 4).String())
	assert.Equal(t, "2.00000001", (2*Unit + 1).String())
	assert.Equal(t, "0", Amount(0).String())
	assert.Equal(t, "184467440737.09551615", (^Amount(0)).String())
	assert.Equal(t, "92233720368.54775808", Amount(1<<63).String())
}

func TestAmountAdd(t *testing.T) {
	got, err := Unit.Add(Unit / 2)
	require.NoError(t, err)
	assert.Equal(t, "1.5", got.String())

	_, err = Amount(1 << 63).Add(1 << 63)
	assert.ErrorIs(t, err, ErrOverflow)

	got, err = (^Amount(0) - 1).Add(1)
	require.NoError(t, err)
	assert.Equal(t, ^Amount(0), got)
}

func TestAmountJSON(t *testing.T) {
	var v struct {
		Fee Amount `json:"fee"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"fee":"1.5"}`), &v))
	assert.Equal(t, Unit+Unit/2, v.Fee)

	require.NoError(t, json.Unmarshal([]byte(`{"fee":2}`), &v))
	assert.Equal(t, 2*Unit, v.Fee)
	assert.Error(t, json.Unmarshal([]byte(`{"fee":"-1"}`), &v))
	v.Fee = Unit + Unit/2

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fee":"1.5"}`, string(out))
}

func TestAmountMul(t *testing.T) {
	got, err := Unit.Mul(10)
	require.NoError(t, err)
	assert.Equal(t, 10*Unit, got)

	_, err = (^Amount(0)).Mul(2)
	assert.ErrorIs(t, err, ErrOverflow)
}
