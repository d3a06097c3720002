package worker

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/utils" // Using the SafeCommand wrapper
)

// ErrWorker wraps failures reported by the decoder process itself.
var ErrWorker = errors.New("decoder worker error")

// ErrNoBytes is returned when the frame handed to Detect does not carry its JPEG bytes.
var ErrNoBytes = errors.New("frame does not expose raw bytes")

// Reply status bytes.
const (
	statusOK    byte = 0
	statusError byte = 1
)

// DefaultTimeout bounds the wait for one reply from the decoder.
const DefaultTimeout = 10 * time.Second

// maxReply guards against a corrupted length header.
const maxReply = 16 * 1024 * 1024

// rawFrame is any decoded frame that still holds the bytes it was decoded from.
type rawFrame interface {
	Bytes() []byte
}

// wireCode is one entry of the decoder's JSON reply. Data is base64 in JSON.
type wireCode struct {
	Type    string   `json:"type"`
	Data    []byte   `json:"data"`
	Polygon [][2]int `json:"polygon"`
}

// DecoderWorker runs an external decoder (e.g. a pyzbar script) and talks to it
// over stdin and a dedicated FD 3 pipe.
type DecoderWorker struct {
	ID       int
	Cmd      *utils.SafeCommand
	Stdin    io.WriteCloser
	DataPipe io.ReadCloser
	// Timeout bounds each reply when DataPipe supports read deadlines.
	Timeout time.Duration

	mu     sync.Mutex
	broken error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// NewDecoderWorker starts name with args. The child receives frames on stdin and
// writes replies to FD 3, leaving stdout and stderr free for its own logging.
func NewDecoderWorker(id int, name string, args ...string) (*DecoderWorker, error) {
	proc := utils.NewSafeCommand(name, args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	proc.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := proc.StdinPipe()
	if err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, fmt.Errorf("decoder worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return &DecoderWorker{
		ID:       id,
		Cmd:      proc,
		Stdin:    stdin,
		DataPipe: r,
		Timeout:  DefaultTimeout,
	}, nil
}

// Communicate sends one length-prefixed request and reads one length-prefixed reply.
// A reply that misses the deadline leaves the pipe out of step, so the worker
// is killed and every later call fails.
func (w *DecoderWorker) Communicate(data []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.broken != nil {
		return nil, w.broken
	}

	// Protocol: [Length][Data]
	if err := binary.Write(w.Stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := w.Stdin.Write(data); err != nil {
		return nil, err
	}

	if d, ok := w.DataPipe.(readDeadliner); ok && w.Timeout > 0 {
		if err := d.SetReadDeadline(time.Now().Add(w.Timeout)); err == nil {
			defer d.SetReadDeadline(time.Time{})
		}
	}

	resp, err := w.readReply()
	if errors.Is(err, os.ErrDeadlineExceeded) {
		w.broken = fmt.Errorf("%w %d: no reply within %s: %w", ErrWorker, w.ID, w.Timeout, err)
		if w.Cmd != nil && w.Cmd.Process != nil {
			w.Cmd.Process.Kill()
		}
		return nil, w.broken
	}
	return resp, err
}

func (w *DecoderWorker) readReply() ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(w.DataPipe, header); err != nil {
		return nil, err // a crashed child surfaces here as EOF
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen > maxReply {
		return nil, fmt.Errorf("%w: reply of %d bytes exceeds limit", ErrWorker, respLen)
	}
	respBody := make([]byte, respLen)
	_, err := io.ReadFull(w.DataPipe, respBody)
	return respBody, err
}

// ProcessFrame sends a JPEG and parses the reply.
//
// Reply: [Status:0][JSON codes] or [Status:1][MsgLen][Msg].
func (w *DecoderWorker) ProcessFrame(jpeg []byte) ([]types.DetectedCode, error) {
	resp, err := w.Communicate(jpeg)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("%w: empty reply", ErrWorker)
	}

	switch resp[0] {
	case statusOK:
		return parseCodes(resp[1:])
	case statusError:
		return nil, parseError(resp[1:])
	default:
		return nil, fmt.Errorf("%w: unknown status byte %d", ErrWorker, resp[0])
	}
}

// Detect satisfies scanner.Detector for frames that keep their source bytes.
func (w *DecoderWorker) Detect(img scanner.Image) ([]types.DetectedCode, error) {
	raw, ok := img.(rawFrame)
	if !ok {
		return nil, ErrNoBytes
	}
	return w.ProcessFrame(raw.Bytes())
}

func (w *DecoderWorker) Close() error {
	w.Stdin.Close()
	w.DataPipe.Close()
	if w.Cmd == nil {
		return nil
	}
	return w.Cmd.Wait()
}

func parseCodes(body []byte) ([]types.DetectedCode, error) {
	var wire []wireCode
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: malformed reply: %v", ErrWorker, err)
	}

	codes := make([]types.DetectedCode, 0, len(wire))
	for _, c := range wire {
		poly := make(types.Polygon, len(c.Polygon))
		for i, p := range c.Polygon {
			poly[i] = image.Pt(p[0], p[1])
		}
		codes = append(codes, types.NewDetectedCode(c.Type, c.Data, poly))
	}
	return codes, nil
}

func parseError(body []byte) error {
	if len(body) < 4 {
		return fmt.Errorf("%w: truncated error reply", ErrWorker)
	}
	msgLen := binary.BigEndian.Uint32(body[:4])
	msg := body[4:]
	if uint32(len(msg)) < msgLen {
		return fmt.Errorf("%w: truncated error reply", ErrWorker)
	}
	return fmt.Errorf("%w: %s", ErrWorker, msg[:msgLen])
}
