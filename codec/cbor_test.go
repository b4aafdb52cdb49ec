package codec_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/xraph/orbit/codec"
)

type record struct {
	B  string            `cbor:"b"`
	A  int64             `cbor:"a"`
	M  map[string]uint64 `cbor:"m"`
	At time.Time         `cbor:"at"`
}

func TestMarshalIsDeterministic(t *testing.T) {
	r := record{
		B:  "x",
		A:  42,
		M:  map[string]uint64{"z": 1, "a": 2, "m": 3},
		At: time.Unix(1700000000, 0).UTC(),
	}

	first, err := codec.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := codec.Marshal(r)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding is not deterministic")
		}
	}

	var got record
	if err := codec.Unmarshal(first, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.A != 42 || got.M["m"] != 3 || !got.At.Equal(r.At) {
		t.Errorf("decoded %+v", got)
	}
}
