package vision

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hybridgroup/mjpeg"
	"gocv.io/x/gocv"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
)

// MJPEG republishes annotated frames as a multipart stream, for headless hosts
// where a HighGUI window is not available.
type MJPEG struct {
	stream *mjpeg.Stream
	server *http.Server
	logger *slog.Logger
}

// NewMJPEG binds addr and starts serving the stream at "/".
func NewMJPEG(addr string, logger *slog.Logger) (*MJPEG, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("mjpeg listen on %s: %w", addr, err)
	}

	stream := mjpeg.NewStream()
	mux := http.NewServeMux()
	mux.Handle("/", stream)

	m := &MJPEG{
		stream: stream,
		server: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}

	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("mjpeg server stopped", "error", err)
		}
	}()
	logger.Info("mjpeg preview listening", "addr", ln.Addr().String())
	return m, nil
}

func (m *MJPEG) Frame(img scanner.Image, codes []types.DetectedCode, sel *scanner.Selection) error {
	mat, ok := matOf(img)
	if !ok {
		return fmt.Errorf("mjpeg: unsupported frame type %T", img)
	}
	annotate(mat, codes, sel)
	return m.publish(*mat)
}

func (m *MJPEG) Placeholder(message string) error {
	mat := placeholder(message)
	defer mat.Close()
	return m.publish(mat)
}

func (m *MJPEG) publish(mat gocv.Mat) error {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return fmt.Errorf("mjpeg encode: %w", err)
	}
	defer buf.Close()
	m.stream.UpdateJPEG(buf.GetBytes())
	return nil
}

func (m *MJPEG) ExitRequested() bool { return false }

// Close drops viewers immediately; streaming responses never go idle.
func (m *MJPEG) Close() error {
	return m.server.Close()
}
