package msg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(opts...)
	require.NoError(t, err)
	return c
}

func TestHeaderRoundTrip(t *testing.T) {
	c := newCodec(t)
	for _, typ := range Types() {
		for _, cmd := range Commands() {
			for _, key := range Keys() {
				env := c.NewEnvelope()
				env.CreateHeader(typ, cmd, key)

				v, err := c.Parse(env.Bytes())
				require.NoError(t, err)
				require.Equal(t, typ, v.Type())
				require.Equal(t, cmd, v.Command())
				require.Equal(t, key, v.Key())
				require.Equal(t, env.ID(), v.ID())
			}
		}
	}
}

func TestHeaderIsBigEndian(t *testing.T) {
	c := newCodec(t, WithIDGenerator(FixedID(0x0102)))
	env := c.NewEnvelope()
	env.CreateHeader(TypeData, CommandWrite, KeyDInput)

	b := env.Bytes()
	require.Len(t, b, HeaderSize+DefaultPayloadSize)
	require.Equal(t, []byte{0x01, 0x02, 0x00, 0x02, 0x00, 0x02, 0x03, 0xe9}, b[:HeaderSize])
}

func TestSequenceIDs(t *testing.T) {
	c := newCodec(t, WithIDGenerator(NewSequence(math.MaxUint16)))
	a, b := c.NewEnvelope(), c.NewEnvelope()
	a.CreateHeader(TypeData, CommandWrite, KeyDInput)
	b.CreateHeader(TypeData, CommandWrite, KeyDInput)
	require.Equal(t, uint16(math.MaxUint16), a.ID())
	require.Equal(t, uint16(0), b.ID(), "sequence wraps modulo 65536")
}

func TestDefaultIDsIncrease(t *testing.T) {
	c := newCodec(t)
	first := c.NewEnvelope()
	first.CreateHeader(TypeData, CommandWrite, KeyDInput)
	second := c.NewEnvelope()
	second.CreateHeader(TypeData, CommandWrite, KeyDInput)
	require.Equal(t, uint16(1), first.ID())
	require.Equal(t, uint16(2), second.ID())
}

func TestSetHeaderTruncatesWideValues(t *testing.T) {
	c := newCodec(t)
	env := c.NewEnvelope()
	wide := 65536 + 7
	env.SetHeader(Header{ID: uint16(wide), Type: Type(wide), Command: CommandAck, Key: KeyDSpool})
	require.Equal(t, uint16(7), env.ID())
	require.Equal(t, Type(7), env.Type())
	require.False(t, env.Type().Known())
}

func TestPayloadBits(t *testing.T) {
	c := newCodec(t, WithPayloadSize(16))
	env := c.NewEnvelope()
	limit := env.PayloadSize() * 8

	for idx := 0; idx < limit; idx++ {
		require.NoError(t, env.SetPayloadBit(idx))
		on, err := env.IsActive(idx)
		require.NoError(t, err)
		require.True(t, on, "bit %d", idx)
		require.Equal(t, []int{idx}, env.ActiveBits(), "only bit %d may be set", idx)

		require.NoError(t, env.ClearPayloadBit(idx))
		on, err = env.IsActive(idx)
		require.NoError(t, err)
		require.False(t, on, "bit %d", idx)
		require.Empty(t, env.ActiveBits())
	}
}

func TestPayloadBitAddressing(t *testing.T) {
	c := newCodec(t)
	env := c.NewEnvelope()
	env.frame[PayloadOffset+3] = 0b0000_1111

	require.NoError(t, env.SetPayloadBit(3*8+5))
	require.Equal(t, byte(0b0010_1111), env.frame[PayloadOffset+3])
	require.NoError(t, env.SetPayloadBit(3*8+2))
	require.Equal(t, byte(0b0010_1111), env.frame[PayloadOffset+3])

	require.NoError(t, env.ClearPayloadBit(3*8))
	require.Equal(t, byte(0b0010_1110), env.frame[PayloadOffset+3])
	require.NoError(t, env.ClearPayloadBit(3*8+6))
	require.Equal(t, byte(0b0010_1110), env.frame[PayloadOffset+3])
}

func TestPayloadBitOutOfRange(t *testing.T) {
	c := newCodec(t, WithPayloadSize(4))
	env := c.NewEnvelope()
	for _, idx := range []int{-1, 32, 1 << 20} {
		require.ErrorIs(t, env.SetPayloadBit(idx), ErrBitIndexOutOfRange)
		require.ErrorIs(t, env.ClearPayloadBit(idx), ErrBitIndexOutOfRange)
		_, err := env.IsActive(idx)
		require.ErrorIs(t, err, ErrBitIndexOutOfRange)
	}
	require.ErrorIs(t, env.SetPayloadBits(1, 2, 99), ErrBitIndexOutOfRange)
	require.Equal(t, []int{1, 2}, env.ActiveBits())
	require.Equal(t, make([]byte, HeaderSize), env.Bytes()[:HeaderSize], "header untouched")
}

func TestPayloadFloat(t *testing.T) {
	c := newCodec(t)
	env := c.NewEnvelope()
	require.NoError(t, env.SetPayloadBits(0, 9, 31, 32))

	env.SetPayloadFloat(3.5)
	require.Equal(t, float32(3.5), env.PayloadFloat())
	require.Equal(t, []byte{0x40, 0x60, 0x00, 0x00}, env.Bytes()[PayloadOffset:PayloadOffset+4])

	on, err := env.IsActive(32)
	require.NoError(t, err)
	require.True(t, on, "bits past the float are kept")

	v, err := c.Parse(env.Bytes())
	require.NoError(t, err)
	require.Equal(t, float32(3.5), v.PayloadFloat())
}

func TestSetPayload(t *testing.T) {
	c := newCodec(t, WithPayloadSize(8))
	env := c.NewEnvelope()
	require.NoError(t, env.SetPayloadBits(60, 63))
	require.NoError(t, env.SetPayload([]byte{0x81}))
	require.Equal(t, []int{0, 7}, env.ActiveBits())

	require.ErrorIs(t, env.SetPayload(make([]byte, 9)), ErrPayloadTooLarge)
}

func TestSDRScenario(t *testing.T) {
	c := newCodec(t)
	env := c.NewEnvelope()
	env.CreateHeader(TypeData, CommandWrite, KeyDInput)
	require.NoError(t, env.SetPayloadBits(3, 5, 7, 80))
	require.NoError(t, env.ClearPayloadBit(5))
	require.Equal(t, []int{3, 7, 80}, env.ActiveBits())

	v, err := c.Parse(env.Bytes())
	require.NoError(t, err)
	require.Equal(t, []int{3, 7, 80}, v.ActiveBits())
	require.Equal(t, "T002.002", v.Topic())
	require.True(t, v.MatchesTopic("T002.002"))
	require.Equal(t, KeyDInput, v.Key())

	sdr, err := v.Bits(81)
	require.NoError(t, err)
	for i, on := range sdr {
		require.Equal(t, i == 3 || i == 7 || i == 80, on, "bit %d", i)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	c := newCodec(t)
	for _, n := range []int{0, 4, HeaderSize - 1, HeaderSize, c.FrameSize() - 1, c.FrameSize() + 1} {
		v, err := c.Parse(make([]byte, n))
		require.ErrorIs(t, err, ErrMalformedBuffer, "len %d", n)
		require.Nil(t, v)
	}
}

func TestParseCopiesInput(t *testing.T) {
	c := newCodec(t, WithPayloadSize(4))
	raw := make([]byte, c.FrameSize())
	raw[TypeOffset+1] = byte(TypeNetwork)

	v, err := c.Parse(raw)
	require.NoError(t, err)
	raw[TypeOffset+1] = byte(TypeData)
	require.Equal(t, TypeNetwork, v.Type())
}

func TestEnvelopeViewIsSnapshot(t *testing.T) {
	c := newCodec(t)
	env := c.NewEnvelope()
	env.CreateHeader(TypeConfiguration, CommandInput, KeyCSdrLen)
	v := env.View()

	env.Reset()
	require.Equal(t, TypeUndefined, env.Type())
	require.Equal(t, TypeConfiguration, v.Type())
	require.Equal(t, "T001.005", v.Topic())
	require.Equal(t, v.Topic(), v.Topic())
}

func TestUnknownEnumValuesAreKept(t *testing.T) {
	c := newCodec(t, WithPayloadSize(4))
	env := c.NewEnvelope()
	env.SetHeader(Header{Type: 9, Command: 77, Key: 4242})

	v, err := c.Parse(env.Bytes())
	require.NoError(t, err)
	require.Equal(t, Type(9), v.Type())
	require.False(t, v.Type().Known())
	require.Equal(t, "Command(77)", v.Command().String())
	require.True(t, v.Key().IsData())
	require.Equal(t, "T009.077", v.Topic())
}

func TestNewCodecRejectsTinyPayload(t *testing.T) {
	_, err := NewCodec(WithPayloadSize(3))
	require.ErrorIs(t, err, ErrPayloadSize)
}

func TestDebugStrings(t *testing.T) {
	c := newCodec(t, WithPayloadSize(4), WithIDGenerator(FixedID(1)))
	env := c.NewEnvelope()
	env.CreateHeader(TypeData, CommandPrint, KeyCActBts)
	require.NoError(t, env.SetPayloadBit(9))

	require.Equal(t, "0,1,0,2,0,3,0,1,0,2,0,0", env.String())
	require.Equal(t, "id=1 type=DATA cmd=PRINT key=C_ACTBTS topic=T002.003 payload=4B active=1", env.Describe())
}
