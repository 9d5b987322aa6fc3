// Package replay records altitude hold cycles to a text log and re-runs them
// for regression checks.
package replay

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Log format: line-oriented text.
//
//   - Blank lines and lines starting with '#' are ignored.
//   - "START" resets the time origin.
//   - Data lines are <t_ns>,<hex> where t_ns is nanoseconds since START and
//     hex is one encoded cycle (see EncodeCycle).

type Record struct {
	At      time.Duration
	Payload []byte // nil for a START marker
}

type Reader struct {
	r        io.Reader
	comments []string
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			rr.comments = append(rr.comments, strings.TrimSpace(line[1:]))
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		tsStr, hexStr, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("replay: line %d: missing comma", lineNo)
		}
		tsStr = strings.TrimSpace(tsStr)
		hexStr = strings.ReplaceAll(strings.TrimSpace(hexStr), " ", "")
		if tsStr == "" || hexStr == "" {
			return nil, fmt.Errorf("replay: line %d: empty field", lineNo)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: timestamp: %w", lineNo, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("replay: line %d: negative timestamp %d", lineNo, tsNs)
		}
		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("replay: line %d: payload: %w", lineNo, err)
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Payload: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// Comments returns the text of the '#' lines seen by ReadAll.
func (rr *Reader) Comments() []string { return rr.comments }

// ReadFile reads all records of the log at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

type Writer struct {
	c      io.Closer
	w      *bufio.Writer
	start  time.Time
	closed bool
}

// CreateWriter creates (or truncates) path and writes the START marker.
func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, time.Now())
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return w, nil
}

// NewWriter writes a log to wc with time origin start.
func NewWriter(wc io.WriteCloser, start time.Time) (*Writer, error) {
	bw := bufio.NewWriterSize(wc, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		return nil, err
	}
	return &Writer{c: wc, w: bw, start: start}, nil
}

// Comment writes a '#' line.
func (ww *Writer) Comment(text string) error {
	if ww.closed {
		return errors.New("replay: writer is closed")
	}
	_, err := fmt.Fprintf(ww.w, "# %s\n", strings.ReplaceAll(text, "\n", " "))
	return err
}

func (ww *Writer) WritePayload(now time.Time, payload []byte) error {
	if ww.closed {
		return errors.New("replay: writer is closed")
	}
	if len(payload) == 0 {
		return errors.New("replay: empty payload")
	}
	d := now.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(payload))
	return err
}

func (ww *Writer) Flush() error {
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.c.Close()
		return err
	}
	return ww.c.Close()
}

type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play invokes cb for every payload record with the recorded relative
// timing. START markers reset the origin.
//
// speedMultiplier: 1.0 = real time, 2.0 = half waits. Zero means as fast
// as possible.
func Play(records []Record, speedMultiplier float64, sleeper Sleeper, cb func(payload []byte) error) error {
	if speedMultiplier < 0 {
		return fmt.Errorf("replay: speed must be >= 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("replay: callback is nil")
	}
	if len(records) == 0 {
		return errors.New("replay: no records")
	}

	var origin, lastAt time.Duration
	haveLast := false
	for _, r := range records {
		if r.Payload == nil {
			origin = r.At
			lastAt = 0
			haveLast = false
			continue
		}

		at := r.At - origin
		if at < 0 {
			at = 0
		}
		if haveLast && speedMultiplier > 0 {
			wait := time.Duration(float64(at-lastAt) / speedMultiplier)
			if wait > 0 {
				sleeper.Sleep(wait)
			}
		}
		if err := cb(r.Payload); err != nil {
			return err
		}
		lastAt = at
		haveLast = true
	}
	return nil
}
