package bufferpool

import "testing"

func TestGetReturnsCleanBuffer(t *testing.T) {
	b := Get()
	if b.Len() != 0 {
		t.Fatalf("buffer from Get() has len %d, want 0", b.Len())
	}
	b.WriteString("hello")
	Put(b)

	b2 := Get()
	if b2.Len() != 0 {
		t.Fatalf("buffer from Get() after Put() has len %d, want 0", b2.Len())
	}
}

func TestPutDropsOversizedBuffer(t *testing.T) {
	ResetStats()
	b := Get()
	b.Grow(MaxBufferSize + 1)
	b.WriteByte(0)
	Put(b)

	if GetStats().Drops != 1 {
		t.Fatalf("drops = %d, want 1", GetStats().Drops)
	}
}

func TestPutNilIsNoop(t *testing.T) {
	Put(nil)
}
