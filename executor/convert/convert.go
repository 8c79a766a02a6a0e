package convert

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/brensch/othello0/game"
)

const (
	Width         = game.Size
	Height        = game.Size
	Channels      = 3
	BytesPerFloat = 4
	FloatSize     = Channels * Width * Height
	BufferSize    = FloatSize * BytesPerFloat
)

var floatPool = sync.Pool{
	New: func() interface{} {
		b := make([]float32, FloatSize)
		return &b
	},
}

func GetFloatBuffer() *[]float32 {
	return floatPool.Get().(*[]float32)
}

func PutFloatBuffer(b *[]float32) {
	floatPool.Put(b)
}

// Encode writes the state into dst, which must hold at least FloatSize values.
// Layout: [Channels, Height, Width] (C, H, W).
//
// Channel layout (3 total):
// 0: white stones
// 1: black stones
// 2: constant plane, 1 when black is to move
func Encode(state *game.GameState, dst []float32) {
	dst = dst[:FloatSize]
	plane := Width * Height
	toMove := float32(0)
	if state.Current == game.Black {
		toMove = 1
	}
	for r := 0; r < Height; r++ {
		for c := 0; c < Width; c++ {
			idx := r*Width + c
			dst[idx] = 0
			dst[plane+idx] = 0
			switch state.Board[r][c] {
			case game.White:
				dst[idx] = 1
			case game.Black:
				dst[plane+idx] = 1
			}
			dst[2*plane+idx] = toMove
		}
	}
}

// StateToFloat32 encodes the GameState into a pooled float32 slice suitable for ONNX input.
// Caller must return it to pool using PutFloatBuffer.
func StateToFloat32(state *game.GameState) *[]float32 {
	dataPtr := GetFloatBuffer()
	Encode(state, *dataPtr)
	return dataPtr
}

// Tensor returns a standalone copy of the encoded state.
func Tensor(state *game.GameState) [FloatSize]float32 {
	var out [FloatSize]float32
	Encode(state, out[:])
	return out
}

// AppendFloat32s appends the little-endian bytes of fs to b.
func AppendFloat32s(b []byte, fs []float32) []byte {
	for _, f := range fs {
		b = binary.LittleEndian.AppendUint32(b, math.Float32bits(f))
	}
	return b
}

// Float32sFromBytes decodes little-endian float32 values. Trailing bytes that
// do not form a whole value are ignored.
func Float32sFromBytes(b []byte) []float32 {
	out := make([]float32, len(b)/BytesPerFloat)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*BytesPerFloat:]))
	}
	return out
}
