package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Timestamp
		wantErr bool
	}{
		{name: "stream id", in: "1700000000000-3", want: Timestamp{Millis: 1700000000000, Seq: 3}},
		{name: "millis only", in: "100", want: Timestamp{Millis: 100}},
		{name: "zero", in: "0-0", want: Timestamp{}},
		{name: "garbage", in: "abc", wantErr: true},
		{name: "bad seq", in: "100-x", wantErr: true},
		{name: "negative", in: "-5", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedTimestamp)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTimestampStringRoundTrip(t *testing.T) {
	ts := Timestamp{Millis: 1700000000123, Seq: 7}
	assert.Equal(t, "1700000000123-7", ts.String())

	back, err := ParseTimestamp(ts.String())
	require.NoError(t, err)
	assert.Equal(t, ts, back)
}

func TestTimestampCompare(t *testing.T) {
	a := Timestamp{Millis: 100}
	b := Timestamp{Millis: 100, Seq: 1}
	c := Timestamp{Millis: 90, Seq: 9}

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(Timestamp{Millis: 100}))
	assert.Equal(t, 1, a.Compare(c), "millis dominates seq")
	assert.True(t, Timestamp{}.IsZero())
	assert.False(t, c.IsZero())
}

func TestValidateRoomID(t *testing.T) {
	assert.NoError(t, ValidateRoomID("general"))
	assert.NoError(t, ValidateRoomID("team_a.dev-2"))
	assert.ErrorIs(t, ValidateRoomID(""), ErrInvalidRoomID)
	assert.ErrorIs(t, ValidateRoomID("has space"), ErrInvalidRoomID)
	assert.ErrorIs(t, ValidateRoomID("colon:key"), ErrInvalidRoomID)
}
