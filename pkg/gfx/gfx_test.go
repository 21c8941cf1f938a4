package gfx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForChannels(t *testing.T) {
	tests := []struct {
		channels int
		want     PixelFormat
	}{
		{1, FormatRed},
		{3, FormatRGB},
		{4, FormatRGBA},
	}
	for _, tc := range tests {
		f, err := FormatForChannels(tc.channels)
		require.NoError(t, err)
		assert.Equal(t, tc.want, f)
		assert.Equal(t, tc.channels, f.Channels())
	}
}

func TestFormatForChannelsRejectsOthers(t *testing.T) {
	for _, n := range []int{0, 2, 5} {
		_, err := FormatForChannels(n)
		assert.True(t, errors.Is(err, ErrUnsupportedChannels), "channels=%d", n)
	}
}

func TestFilterUsesMipmaps(t *testing.T) {
	assert.False(t, FilterNearest.UsesMipmaps())
	assert.False(t, FilterLinear.UsesMipmaps())
	assert.True(t, FilterLinearMipmapLinear.UsesMipmaps())
	assert.True(t, FilterNearestMipmapNearest.UsesMipmaps())
}

func TestIndexTypeSize(t *testing.T) {
	assert.Equal(t, 4, UnsignedInt.Size())
	assert.Equal(t, 2, UnsignedShortIndex.Size())
}
