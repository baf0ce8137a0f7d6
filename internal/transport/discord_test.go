package transport

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func buildWAV(t *testing.T, samples []int16, channels int) []byte {
	t.Helper()
	var data bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&data, binary.LittleEndian, s)
	}
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestParseWAVMono(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	wav := buildWAV(t, samples, 1)

	got, channels, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if channels != 1 {
		t.Fatalf("expected mono, got %d channels", channels)
	}
	if len(got) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(got))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d: want %d got %d", i, samples[i], got[i])
		}
	}
}

func TestParseWAVStereo(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	wav := buildWAV(t, samples, 2)

	got, channels, err := parseWAV(wav)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if channels != 2 || len(got) != 4 {
		t.Fatalf("unexpected result: channels=%d samples=%d", channels, len(got))
	}
}

func TestParseRawPCMFallback(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xFF, 0x7F} // samples 1, 32767
	got, channels, err := parseWAV(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if channels != 1 || len(got) != 2 || got[1] != 32767 {
		t.Fatalf("unexpected raw pcm result: channels=%d samples=%v", channels, got)
	}
}

func TestParseWAVRejectsNonPCM(t *testing.T) {
	wav := buildWAV(t, []int16{0, 0}, 1)
	// flip the audio format field in the fmt chunk to IEEE float (3)
	wav[20] = 3
	if _, _, err := parseWAV(wav); err == nil {
		t.Fatal("expected error for non-PCM format")
	}
}

func TestParseWAVRejectsUnsupportedChannelCount(t *testing.T) {
	wav := buildWAV(t, []int16{0, 0, 0, 0, 0, 0}, 6) // 5.1 surround
	if _, _, err := parseWAV(wav); err == nil {
		t.Fatal("expected error for 6-channel wav")
	}
}

func TestToStereoDuplicatesMono(t *testing.T) {
	out := toStereo([]int16{5, -5}, 1)
	want := []int16{5, 5, -5, -5}
	if len(out) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("sample %d: want %d got %d", i, want[i], out[i])
		}
	}
}

func TestLogTransport(t *testing.T) {
	lt := NewLogTransport()
	if !lt.IsActive() {
		t.Fatal("log transport starts active")
	}
	if err := lt.Send([]byte("abc")); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if lt.Sent() != 1 {
		t.Fatalf("expected 1 payload, got %d", lt.Sent())
	}
	lt.SetActive(false)
	if lt.IsActive() {
		t.Fatal("expected inactive after SetActive(false)")
	}
}
