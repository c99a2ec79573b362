package ballot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	var key [32]byte
	copy(key[:], "0123456789abcdef0123456789abcdef")
	s, err := NewSealer(key, 5, 3)
	require.NoError(t, err)
	return s
}

func TestNewSealerRejectsBadScheme(t *testing.T) {
	var key [32]byte
	for _, tc := range [][2]int{{5, 1}, {3, 4}, {300, 3}} {
		_, err := NewSealer(key, tc[0], tc[1])
		assert.Error(t, err, "shares=%d threshold=%d", tc[0], tc[1])
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := testSealer(t)

	sealed, err := s.Seal(12, 345)
	require.NoError(t, err)
	assert.Len(t, sealed.Shares, 5)
	assert.Equal(t, Receipt(sealed.Box), sealed.Receipt)

	eventID, candidateID, err := s.Open(sealed.Box)
	require.NoError(t, err)
	assert.Equal(t, uint(12), eventID)
	assert.Equal(t, uint(345), candidateID)
}

func TestSealUsesFreshNonce(t *testing.T) {
	s := testSealer(t)
	a, err := s.Seal(1, 1)
	require.NoError(t, err)
	b, err := s.Seal(1, 1)
	require.NoError(t, err)
	assert.NotEqual(t, a.Receipt, b.Receipt)
}

func TestOpenRejectsTampering(t *testing.T) {
	s := testSealer(t)
	sealed, err := s.Seal(1, 2)
	require.NoError(t, err)

	sealed.Box[len(sealed.Box)-1] ^= 0xff
	_, _, err = s.Open(sealed.Box)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, _, err = s.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestVerifyWithThresholdShares(t *testing.T) {
	s := testSealer(t)
	sealed, err := s.Seal(3, 4)
	require.NoError(t, err)

	subset := map[byte][]byte{}
	for k, v := range sealed.Shares {
		if len(subset) == s.Threshold() {
			break
		}
		subset[k] = v
	}

	ok, err := s.Verify(sealed.Receipt, subset)
	require.NoError(t, err)
	assert.True(t, ok)

	other, err := s.Seal(3, 4)
	require.NoError(t, err)
	ok, err = s.Verify(other.Receipt, subset)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Verify("not-hex", subset)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyNeedsThreshold(t *testing.T) {
	s := testSealer(t)
	sealed, err := s.Seal(3, 4)
	require.NoError(t, err)

	subset := map[byte][]byte{}
	for k, v := range sealed.Shares {
		subset[k] = v
		break
	}
	_, err = s.Verify(sealed.Receipt, subset)
	assert.ErrorIs(t, err, ErrNotEnoughShare)
}
