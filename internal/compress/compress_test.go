package compress_test

import (
	"bytes"
	"testing"

	"savesync/internal/compress"
)

func TestCompressRoundTrip(t *testing.T) {
	codec, err := compress.NewCodec()
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	defer codec.Close()

	payload := []byte(`{"player":{"name":"hero","level":3},"inventory":["sword","shield"]}`)
	compressed := codec.Compress(payload)
	if !compress.IsCompressed(compressed) {
		t.Fatal("compressed output lacks the zstd magic number")
	}

	restored, err := codec.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(restored, payload) {
		t.Fatalf("round trip mismatch: %s", restored)
	}
}

func TestDecompressPassesThroughLegacyPayloads(t *testing.T) {
	codec, err := compress.NewCodec()
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	defer codec.Close()

	legacy := []byte(`{"saved":"before compression shipped"}`)
	if compress.IsCompressed(legacy) {
		t.Fatal("plain JSON misdetected as compressed")
	}
	out, err := codec.Decompress(legacy)
	if err != nil {
		t.Fatalf("Decompress legacy: %v", err)
	}
	if !bytes.Equal(out, legacy) {
		t.Fatalf("legacy payload altered: %s", out)
	}
}

func TestDecompressRejectsTruncatedFrame(t *testing.T) {
	codec, err := compress.NewCodec()
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	defer codec.Close()

	compressed := codec.Compress([]byte(`{"player":"hero"}`))
	if _, err := codec.Decompress(compressed[:len(compressed)-3]); err == nil {
		t.Fatal("expected an error for a truncated frame")
	}
}
