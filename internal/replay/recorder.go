package replay

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var sessionIDCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// manifestVersion tracks the bundle layout for downstream tooling.
const manifestVersion = 1

// defaultMaxFrames bounds the in-memory buffer to roughly 30 seconds of
// animation at the reference tick rate. Older frames are discarded first.
const defaultMaxFrames = 1800

// tickFrame stores one encoded broadcast frame awaiting a dump.
type tickFrame struct {
	Tick       uint64
	CapturedAt time.Time
	Payload    []byte
}

// sessionEvent stores a control-plane event (shape change, preset apply)
// alongside the tick it landed on.
type sessionEvent struct {
	Tick       uint64
	CapturedAt time.Time
	Type       string
	Payload    []byte
}

// Recorder buffers encoded tick frames and control events until an operator
// dumps them to disk as a compressed session bundle.
type Recorder struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	maxFrames   int
	frames      []tickFrame
	events      []sessionEvent
	bytes       int64
	dropped     int64
	dumps       int64
	lastDump    time.Time
	lastDumpURI string
}

// Stats summarises recorder health for the stats endpoint.
type Stats struct {
	BufferedFrames int       `json:"buffered_frames"`
	BufferedEvents int       `json:"buffered_events"`
	BufferedBytes  int64     `json:"buffered_bytes"`
	DroppedFrames  int64     `json:"dropped_frames"`
	Dumps          int64     `json:"dumps"`
	LastDumpURI    string    `json:"last_dump_uri,omitempty"`
	LastDumpTime   time.Time `json:"last_dump_time,omitempty"`
}

// Manifest describes the bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	FrameCount int    `json:"frame_count"`
	EventCount int    `json:"event_count"`
	EventsPath string `json:"events_path"`
	FramesPath string `json:"frames_path"`
}

// NewRecorder constructs a recorder that writes bundles beneath dir.
func NewRecorder(dir string, clock func() time.Time) (*Recorder, error) {
	if dir == "" {
		return nil, fmt.Errorf("replay directory must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{dir: dir, now: clock, maxFrames: defaultMaxFrames}, nil
}

// RecordFrame appends an encoded broadcast frame to the ring buffer.
func (r *Recorder) RecordFrame(tick uint64, payload []byte) {
	if r == nil || len(payload) == 0 {
		return
	}
	clone := append([]byte(nil), payload...)
	captured := r.now().UTC()

	r.mu.Lock()
	//1.- Evict the oldest frame once the retention window is exceeded.
	if len(r.frames) >= r.maxFrames {
		evicted := r.frames[0]
		r.bytes -= int64(len(evicted.Payload))
		r.dropped++
		copy(r.frames, r.frames[1:])
		r.frames = r.frames[:len(r.frames)-1]
	}
	r.frames = append(r.frames, tickFrame{Tick: tick, CapturedAt: captured, Payload: clone})
	r.bytes += int64(len(clone))
	r.mu.Unlock()
}

// RecordEvent appends a control-plane event to the session timeline.
func (r *Recorder) RecordEvent(tick uint64, eventType string, payload []byte) {
	if r == nil || eventType == "" {
		return
	}
	clone := append([]byte(nil), payload...)
	captured := r.now().UTC()

	r.mu.Lock()
	r.events = append(r.events, sessionEvent{Tick: tick, CapturedAt: captured, Type: eventType, Payload: clone})
	r.mu.Unlock()
}

// Dump writes the buffered session to disk and clears the in-memory buffers.
// It returns the bundle directory path.
func (r *Recorder) Dump(sessionID string) (string, error) {
	if r == nil {
		return "", fmt.Errorf("recorder not configured")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	//1.- Bail out gracefully when nothing has been recorded yet.
	if len(r.frames) == 0 && len(r.events) == 0 {
		return "", fmt.Errorf("no session data buffered")
	}

	cleaned := sessionIDCleaner.ReplaceAllString(sessionID, "")
	if cleaned == "" {
		cleaned = "session"
	}
	created := r.now().UTC()
	folder := fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z"))
	path := filepath.Join(r.dir, folder)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}

	//2.- Persist the event timeline as a snappy-framed JSONL stream.
	if err := writeEvents(filepath.Join(path, "events.jsonl.sz"), r.events); err != nil {
		return "", err
	}

	//3.- Persist frames length-prefixed inside a zstd stream so replayers can
	// step through ticks without loading the whole file.
	if err := writeFrames(filepath.Join(path, "frames.bin.zst"), r.frames); err != nil {
		return "", err
	}

	manifest := Manifest{
		Version:    manifestVersion,
		CreatedAt:  created.Format(time.RFC3339Nano),
		FrameCount: len(r.frames),
		EventCount: len(r.events),
		EventsPath: "events.jsonl.sz",
		FramesPath: "frames.bin.zst",
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(path, "manifest.json"), data, 0o644); err != nil {
		return "", err
	}

	//4.- Reset the buffers so a fresh session can begin immediately.
	r.frames = nil
	r.events = nil
	r.bytes = 0
	r.dumps++
	r.lastDump = created
	r.lastDumpURI = path
	return path, nil
}

// Snapshot returns statistics describing the recorder state.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	//1.- Copy the counters so the stats endpoint avoids racing the writer.
	return Stats{
		BufferedFrames: len(r.frames),
		BufferedEvents: len(r.events),
		BufferedBytes:  r.bytes,
		DroppedFrames:  r.dropped,
		Dumps:          r.dumps,
		LastDumpURI:    r.lastDumpURI,
		LastDumpTime:   r.lastDump,
	}
}

// EventRecord is the on-disk JSONL shape of a session event.
type EventRecord struct {
	Tick       uint64 `json:"tick"`
	CapturedAt string `json:"captured_at"`
	Type       string `json:"type"`
	PayloadB64 string `json:"payload_b64,omitempty"`
}

func writeEvents(path string, events []sessionEvent) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	stream := snappy.NewBufferedWriter(file)
	for _, event := range events {
		record := EventRecord{
			Tick:       event.Tick,
			CapturedAt: event.CapturedAt.Format(time.RFC3339Nano),
			Type:       event.Type,
			PayloadB64: base64.StdEncoding.EncodeToString(event.Payload),
		}
		line, marshalErr := json.Marshal(record)
		if marshalErr != nil {
			stream.Close()
			return marshalErr
		}
		if _, writeErr := stream.Write(append(line, '\n')); writeErr != nil {
			stream.Close()
			return writeErr
		}
	}
	return stream.Close()
}

func writeFrames(path string, frames []tickFrame) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	stream, err := zstd.NewWriter(file)
	if err != nil {
		return err
	}
	//1.- Write length-prefixed frames so replayers can step efficiently.
	header := make([]byte, 8+8+4)
	for _, frame := range frames {
		binary.LittleEndian.PutUint64(header[0:8], frame.Tick)
		binary.LittleEndian.PutUint64(header[8:16], uint64(frame.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[16:20], uint32(len(frame.Payload)))
		if _, writeErr := stream.Write(header); writeErr != nil {
			stream.Close()
			return writeErr
		}
		if _, writeErr := stream.Write(frame.Payload); writeErr != nil {
			stream.Close()
			return writeErr
		}
	}
	return stream.Close()
}

// LoadedFrame is one decoded frame from a dumped bundle.
type LoadedFrame struct {
	Tick       uint64
	CapturedAt time.Time
	Payload    []byte
}

// LoadFrames reads the zstd frame stream back from a bundle directory. It
// exists for offline tooling and round-trip tests.
func LoadFrames(bundleDir string) ([]LoadedFrame, error) {
	file, err := os.Open(filepath.Join(bundleDir, "frames.bin.zst"))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	stream, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var frames []LoadedFrame
	header := make([]byte, 8+8+4)
	for {
		//1.- Read the fixed header; a clean EOF here means the stream is done.
		if _, err := io.ReadFull(stream, header); err != nil {
			if err == io.EOF {
				return frames, nil
			}
			return nil, fmt.Errorf("frame stream truncated: %w", err)
		}
		payload := make([]byte, binary.LittleEndian.Uint32(header[16:20]))
		if _, err := io.ReadFull(stream, payload); err != nil {
			return nil, fmt.Errorf("frame payload truncated: %w", err)
		}
		frames = append(frames, LoadedFrame{
			Tick:       binary.LittleEndian.Uint64(header[0:8]),
			CapturedAt: time.Unix(0, int64(binary.LittleEndian.Uint64(header[8:16]))).UTC(),
			Payload:    payload,
		})
	}
}

// LoadEvents reads the snappy event log back from a bundle directory.
func LoadEvents(bundleDir string) ([]EventRecord, error) {
	file, err := os.Open(filepath.Join(bundleDir, "events.jsonl.sz"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var records []EventRecord
	decoder := json.NewDecoder(snappy.NewReader(file))
	for decoder.More() {
		var record EventRecord
		if err := decoder.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
