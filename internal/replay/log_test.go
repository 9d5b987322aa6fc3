package replay

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(d time.Duration) {
	fs.slept = append(fs.slept, d)
}

func TestReaderReadAll(t *testing.T) {
	in := strings.NewReader(`
# comment

START
0, 0102
10, 0a 0b
`)

	rr := NewReader(in)
	recs, err := rr.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if c := rr.Comments(); len(c) != 1 || c[0] != "comment" {
		t.Fatalf("comments=%q", c)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Payload != nil {
		t.Fatalf("expected START marker (nil payload), got %v", recs[0].Payload)
	}
	if recs[1].At != 0 || !reflect.DeepEqual(recs[1].Payload, []byte{0x01, 0x02}) {
		t.Fatalf("record 1: %+v", recs[1])
	}
	if recs[2].At != 10*time.Nanosecond || !reflect.DeepEqual(recs[2].Payload, []byte{0x0a, 0x0b}) {
		t.Fatalf("record 2: %+v", recs[2])
	}
}

func TestReaderReadAll_InvalidLines(t *testing.T) {
	for _, in := range []string{
		"not-a-valid-line\n",
		"10,\n",
		"x,0102\n",
		"-5,0102\n",
		"5,zz\n",
	} {
		if _, err := NewReader(strings.NewReader(in)).ReadAll(); err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}

func TestPlay_RespectsTimingAndStart(t *testing.T) {
	var got [][]byte
	fs := &fakeSleeper{}

	recs := []Record{
		{At: 1 * time.Second},
		{At: 1 * time.Second, Payload: []byte{0xAA}},
		{At: 1*time.Second + 100*time.Nanosecond, Payload: []byte{0xBB}},
		{At: 2 * time.Second},
		{At: 2*time.Second + 50*time.Nanosecond, Payload: []byte{0xCC}},
	}

	err := Play(recs, 1.0, fs, func(p []byte) error {
		got = append(got, append([]byte(nil), p...))
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	want := [][]byte{{0xAA}, {0xBB}, {0xCC}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("payloads = %x, want %x", got, want)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{100 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [100ns]", fs.slept)
	}
}

func TestPlay_SpeedMultiplier(t *testing.T) {
	recs := []Record{
		{At: 0, Payload: []byte{0x01}},
		{At: 100 * time.Nanosecond, Payload: []byte{0x02}},
	}

	fs := &fakeSleeper{}
	if err := Play(recs, 2.0, fs, func([]byte) error { return nil }); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{50 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [50ns]", fs.slept)
	}

	// Zero speed replays without waiting.
	fs = &fakeSleeper{}
	if err := Play(recs, 0, fs, func([]byte) error { return nil }); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if len(fs.slept) != 0 {
		t.Fatalf("slept = %v, want none", fs.slept)
	}
}

func TestPlay_InvalidArgs(t *testing.T) {
	recs := []Record{{At: 0, Payload: []byte{0x01}}}
	if err := Play(recs, -1, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected speed error")
	}
	if err := Play(recs, 1, nil, nil); err == nil {
		t.Fatalf("expected callback error")
	}
	if err := Play(nil, 1, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected no records error")
	}
}

func TestWriter_WritesExpectedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	w.start = time.Unix(0, 0)

	if err := w.Comment("acc_1g=512\nx"); err != nil {
		t.Fatalf("Comment() error: %v", err)
	}
	if err := w.WritePayload(time.Unix(0, 20), []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WritePayload() error: %v", err)
	}
	if err := w.WritePayload(time.Unix(0, 30), nil); err == nil {
		t.Fatalf("expected empty payload error")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.WritePayload(time.Unix(0, 40), []byte{1}); err == nil {
		t.Fatalf("expected closed writer error")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(b) != "START\n# acc_1g=512 x\n20,0102\n" {
		t.Fatalf("unexpected file contents: %q", string(b))
	}
}
